// Package exrhost fetches exchange rates from exchangerate.host.
package exrhost

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/etnz/kasa"
	"github.com/shopspring/decimal"
)

// Name is the provenance label of this source.
const Name = "exchangerate.host"

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.exchangerate.host"

var symbols = map[kasa.AssetID]string{
	kasa.USD: "USD",
	kasa.EUR: "EUR",
}

// Source is a kasa.Source for USDTRY and EURTRY. A single request is made
// with the lira as base, rates are inverted.
type Source struct {
	Client    *http.Client
	BaseURL   string
	AccessKey string // optional, sent as access_key
}

// New returns a Source using client.
func New(client *http.Client, accessKey string) *Source {
	return &Source{Client: client, BaseURL: DefaultBaseURL, AccessKey: accessKey}
}

func (s *Source) Name() string { return Name }

// Fetch returns quotes for the supported ids present in the response. A
// symbol absent from the response is not an error.
func (s *Source) Fetch(ctx context.Context, ids []kasa.AssetID) (map[kasa.AssetID]kasa.Quote, error) {
	ids = kasa.Supported(ids, kasa.USD, kasa.EUR)
	out := make(map[kasa.AssetID]kasa.Quote)
	if len(ids) == 0 {
		return out, nil
	}

	syms := make([]string, len(ids))
	for i, id := range ids {
		syms[i] = symbols[id]
	}
	rates, err := s.latest(ctx, syms)
	if err != nil {
		return nil, kasa.Unavailable(Name, err)
	}

	for _, id := range ids {
		rate, ok := rates[symbols[id]]
		if !ok {
			continue
		}
		if !rate.IsPositive() {
			return nil, kasa.Unavailable(Name, fmt.Errorf("invalid TRY%s rate %s", symbols[id], rate))
		}
		// rate is foreign units per lira.
		out[id] = kasa.NewQuote(kasa.Div(decimal.NewFromInt(1), rate))
	}
	return out, nil
}

func (s *Source) latest(ctx context.Context, syms []string) (map[string]decimal.Decimal, error) {
	// https://api.exchangerate.host/latest?base=TRY&symbols=USD,EUR
	// {"success":true,"base":"TRY","date":"2025-05-09","rates":{"USD":0.02583,"EUR":0.02296}}
	q := url.Values{}
	q.Set("base", kasa.Currency)
	q.Set("symbols", strings.Join(syms, ","))
	if s.AccessKey != "" {
		q.Set("access_key", s.AccessKey)
	}
	addr := fmt.Sprintf("%s/latest?%s", s.BaseURL, q.Encode())

	var content struct {
		Success *bool                      `json:"success"`
		Error   apiError                 `json:"error"`
		Rates   map[string]decimal.Decimal `json:"rates"`
	}
	if err := kasa.GetJSON(ctx, s.Client, addr, &content); err != nil {
		return nil, err
	}
	if content.Success != nil && !*content.Success {
		return nil, fmt.Errorf("request refused: %s", content.Error)
	}
	if content.Rates == nil {
		return nil, fmt.Errorf("no rates in response")
	}
	return content.Rates, nil
}

// apiError is the error object returned with success=false.
type apiError struct {
	Code int    `json:"code"`
	Type string `json:"type"`
	Info string `json:"info"`
}

func (e apiError) String() string {
	if e.Info != "" {
		return e.Info
	}
	if e.Type != "" {
		return e.Type
	}
	return fmt.Sprintf("code %d", e.Code)
}
