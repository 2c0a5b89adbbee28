// Package frankfurter fetches exchange rates published by the European
// Central Bank through the frankfurter.dev API.
package frankfurter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/etnz/kasa"
	"github.com/shopspring/decimal"
)

// Name is the provenance label of this source.
const Name = "frankfurter"

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.frankfurter.dev/v1"

var currencies = map[kasa.AssetID]string{
	kasa.USD: "USD",
	kasa.EUR: "EUR",
}

// Source is a kasa.Source for USDTRY and EURTRY.
type Source struct {
	Client  *http.Client
	BaseURL string
}

// New returns a Source using client.
func New(client *http.Client) *Source {
	return &Source{Client: client, BaseURL: DefaultBaseURL}
}

func (s *Source) Name() string { return Name }

// Fetch returns one quote per supported id. One request is made per pair and
// any failure fails the whole call.
func (s *Source) Fetch(ctx context.Context, ids []kasa.AssetID) (map[kasa.AssetID]kasa.Quote, error) {
	out := make(map[kasa.AssetID]kasa.Quote)
	for _, id := range kasa.Supported(ids, kasa.USD, kasa.EUR) {
		rate, err := s.latest(ctx, currencies[id], kasa.Currency)
		if err != nil {
			return nil, kasa.Unavailable(Name, err)
		}
		out[id] = kasa.NewQuote(rate)
	}
	return out, nil
}

// latest returns the value of one unit of from in to.
func (s *Source) latest(ctx context.Context, from, to string) (decimal.Decimal, error) {
	// https://api.frankfurter.dev/v1/latest?from=USD&to=TRY
	// {"amount":1.0,"base":"USD","date":"2025-05-09","rates":{"TRY":38.71}}
	addr := fmt.Sprintf("%s/latest?from=%s&to=%s", s.BaseURL, url.QueryEscape(from), url.QueryEscape(to))

	var content struct {
		Amount decimal.Decimal            `json:"amount"`
		Base   string                     `json:"base"`
		Rates  map[string]decimal.Decimal `json:"rates"`
	}
	if err := kasa.GetJSON(ctx, s.Client, addr, &content); err != nil {
		return decimal.Zero, err
	}
	rate, ok := content.Rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("no %s rate for %s in response", to, from)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid %s%s rate %s", from, to, rate)
	}
	// amount is the quantity of base currency the rates are for, always 1 by default.
	if content.Amount.IsPositive() && !content.Amount.Equal(decimal.NewFromInt(1)) {
		rate = kasa.Div(rate, content.Amount)
	}
	return rate, nil
}
