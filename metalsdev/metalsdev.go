// Package metalsdev fetches precious metal spot prices from metals.dev.
package metalsdev

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/etnz/kasa"
	"github.com/shopspring/decimal"
)

// Name is the provenance label of this source.
const Name = "metals.dev"

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://metals.dev/api"

// ErrMissingKey is returned by Fetch when no API key is configured.
var ErrMissingKey = errors.New("METALS_DEV_API_KEY missing")

// gramsPerOunce is the troy ounce.
var gramsPerOunce = decimal.RequireFromString("31.1034768")

var symbols = map[kasa.AssetID]string{
	kasa.XAU: "XAU",
	kasa.XAG: "XAG",
}

// Source is a kasa.Source for gram gold and gram silver.
type Source struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
}

// New returns a Source using client and apiKey.
func New(client *http.Client, apiKey string) *Source {
	return &Source{Client: client, BaseURL: DefaultBaseURL, APIKey: strings.TrimSpace(apiKey)}
}

func (s *Source) Name() string { return Name }

// Fetch returns per gram quotes in lira for the supported ids present in
// the response.
func (s *Source) Fetch(ctx context.Context, ids []kasa.AssetID) (map[kasa.AssetID]kasa.Quote, error) {
	ids = kasa.Supported(ids, kasa.XAU, kasa.XAG)
	out := make(map[kasa.AssetID]kasa.Quote)
	if len(ids) == 0 {
		return out, nil
	}
	if s.APIKey == "" {
		return nil, kasa.Unavailable(Name, ErrMissingKey)
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
			return nil, kasa.Unavailable(Name, fmt.Errorf("invalid %s rate %s", symbols[id], rate))
		}
		// rate is ounces per lira.
		perOunce := kasa.Div(decimal.NewFromInt(1), rate)
		out[id] = kasa.NewQuote(kasa.Div(perOunce, gramsPerOunce))
	}
	return out, nil
}

func (s *Source) latest(ctx context.Context, syms []string) (map[string]decimal.Decimal, error) {
	// https://metals.dev/api/latest?api_key=KEY&base=TRY&symbols=XAU,XAG
	// {"status":"success","currency":"TRY","unit":"toz","rates":{"XAU":0.0000078,"XAG":0.00077}}
	q := url.Values{}
	q.Set("api_key", s.APIKey)
	q.Set("base", kasa.Currency)
	q.Set("symbols", strings.Join(syms, ","))
	addr := fmt.Sprintf("%s/latest?%s", s.BaseURL, q.Encode())

	var content struct {
		Status       string                     `json:"status"`
		ErrorMessage string                     `json:"error_message"`
		Rates        map[string]decimal.Decimal `json:"rates"`
	}
	if err := kasa.GetJSON(ctx, s.Client, addr, &content); err != nil {
		return nil, err
	}
	if content.Status == "failure" {
		return nil, fmt.Errorf("request refused: %s", content.ErrorMessage)
	}
	if content.Rates == nil {
		return nil, errors.New("no rates in response")
	}
	return content.Rates, nil
}
