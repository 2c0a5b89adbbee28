// Package kapalicarsi fetches gram gold and silver prices of the Istanbul
// Grand Bazaar from the apiluna feed.
package kapalicarsi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/kasa"
	"github.com/shopspring/decimal"
)

// Name is the provenance label of this source.
const Name = "kapalicarsi"

// DefaultURL is the public feed.
const DefaultURL = "https://kapalicarsi.apiluna.org/"

// keywords identify an item by its name, most specific first.
var keywords = map[kasa.AssetID][]string{
	kasa.XAU: {"gram alt", "gramalt", "altın", "altin"},
	kasa.XAG: {"gram güm", "gram gum", "gümüş", "gumus", "silver"},
}

// field names, in order of preference.
var (
	nameFields = []string{"name", "adi", "kod"}
	bidFields  = []string{"alis", "buy", "bid"}
	askFields  = []string{"satis", "sell", "ask"}
	lastFields = []string{"son", "last", "price"}
)

// Source is a kasa.Source for gram gold and gram silver.
type Source struct {
	Client *http.Client
	URL    string
}

// New returns a Source using client.
func New(client *http.Client) *Source {
	return &Source{Client: client, URL: DefaultURL}
}

func (s *Source) Name() string { return Name }

// Fetch returns quotes for the supported ids matched in the feed. The feed
// layout is loose: every list found at the top level is searched for items
// whose name contains one of the keywords of the asset.
func (s *Source) Fetch(ctx context.Context, ids []kasa.AssetID) (map[kasa.AssetID]kasa.Quote, error) {
	ids = kasa.Supported(ids, kasa.XAU, kasa.XAG)
	out := make(map[kasa.AssetID]kasa.Quote)
	if len(ids) == 0 {
		return out, nil
	}

	var jobj any
	if err := kasa.GetJSON(ctx, s.Client, s.URL, &jobj); err != nil {
		return nil, kasa.Unavailable(Name, err)
	}
	items, err := listItems(jobj)
	if err != nil {
		return nil, kasa.Unavailable(Name, err)
	}

	for _, id := range ids {
		it := find(items, keywords[id])
		if it == nil {
			continue
		}
		q, err := readQuote(it)
		if err != nil {
			return nil, kasa.Unavailable(Name, fmt.Errorf("%s: %w", id, err))
		}
		out[id] = q
	}
	if len(out) == 0 {
		return nil, kasa.Unavailable(Name, errors.New("nothing matched"))
	}
	return out, nil
}

// listItems returns the objects held by the top level lists of jobj.
func listItems(jobj any) ([]map[string]any, error) {
	jval, err := jsonpath.Get("$.*", jobj)
	if err != nil {
		return nil, fmt.Errorf("unexpected layout: %w", err)
	}
	// jsonpath returns a list of values for a wildcard, but stay tolerant.
	values, ok := jval.([]any)
	if !ok {
		values = []any{jval}
	}
	var items []map[string]any
	for _, v := range values {
		switch v := v.(type) {
		case []any:
			for _, e := range v {
				if it, ok := e.(map[string]any); ok {
					items = append(items, it)
				}
			}
		case map[string]any:
			// top level is itself a list of items
			items = append(items, v)
		}
	}
	return items, nil
}

// find returns the first item whose name contains a keyword, trying
// keywords in order.
func find(items []map[string]any, keywords []string) map[string]any {
	names := make([]string, len(items))
	for i, it := range items {
		if v := first(it, nameFields); v != nil {
			names[i] = strings.ToLower(fmt.Sprint(v))
		}
	}
	for _, k := range keywords {
		for i, name := range names {
			if strings.Contains(name, k) {
				return items[i]
			}
		}
	}
	return nil
}

// first returns the first non empty value of fields in it.
func first(it map[string]any, fields []string) any {
	for _, f := range fields {
		v, ok := it[f]
		if !ok || v == nil || v == "" {
			continue
		}
		return v
	}
	return nil
}

// readQuote reads bid and ask from an item. A missing side takes the value
// of the other one, and a lone last price is used for both.
func readQuote(it map[string]any) (kasa.Quote, error) {
	bidv, askv, lastv := first(it, bidFields), first(it, askFields), first(it, lastFields)
	switch {
	case bidv == nil && askv == nil && lastv == nil:
		return kasa.Quote{}, errors.New("no price fields")
	case bidv == nil && askv == nil:
		bidv, askv = lastv, lastv
	case bidv == nil:
		bidv = askv
	case askv == nil:
		askv = bidv
	}
	bid, err := toDecimal(bidv)
	if err != nil {
		return kasa.Quote{}, err
	}
	ask, err := toDecimal(askv)
	if err != nil {
		return kasa.Quote{}, err
	}
	return kasa.NewSpreadQuote(bid, ask), nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch v := v.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := kasa.ParseDecimal(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid price %q: %w", v, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("invalid price %v", v)
	}
}
