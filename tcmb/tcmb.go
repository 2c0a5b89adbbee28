// Package tcmb fetches the daily indicative exchange rates of the Central
// Bank of the Republic of Türkiye.
package tcmb

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/etnz/kasa"
	"github.com/shopspring/decimal"
)

// Name is the provenance label of this source.
const Name = "tcmb"

// DefaultURL is the daily bulletin.
const DefaultURL = "https://www.tcmb.gov.tr/kurlar/today.xml"

var codes = map[kasa.AssetID]string{
	kasa.USD: "USD",
	kasa.EUR: "EUR",
}

// Source is a kasa.Source for USDTRY and EURTRY. Quotes carry the forex
// buying rate as bid and the forex selling rate as ask.
type Source struct {
	Client *http.Client
	URL    string
}

// New returns a Source using client.
func New(client *http.Client) *Source {
	return &Source{Client: client, URL: DefaultURL}
}

func (s *Source) Name() string { return Name }

// bulletin is the subset of today.xml we read.
//
//	<Tarih_Date Tarih="09.05.2025" Date="05/09/2025" Bulten_No="2025/88">
//	  <Currency CrossOrder="0" Kod="USD" CurrencyCode="USD">
//	    <Unit>1</Unit>
//	    <ForexBuying>38.6231</ForexBuying>
//	    <ForexSelling>38.6927</ForexSelling>
//	  </Currency>
type bulletin struct {
	Date       string     `xml:"Date,attr"`
	Currencies []currency `xml:"Currency"`
}

type currency struct {
	Code         string `xml:"CurrencyCode,attr"`
	Unit         string `xml:"Unit"`
	ForexBuying  string `xml:"ForexBuying"`
	ForexSelling string `xml:"ForexSelling"`
}

// Fetch returns quotes for the supported ids found in the bulletin.
func (s *Source) Fetch(ctx context.Context, ids []kasa.AssetID) (map[kasa.AssetID]kasa.Quote, error) {
	ids = kasa.Supported(ids, kasa.USD, kasa.EUR)
	out := make(map[kasa.AssetID]kasa.Quote)
	if len(ids) == 0 {
		return out, nil
	}

	body, err := kasa.GetBody(ctx, s.Client, s.URL)
	if err != nil {
		return nil, kasa.Unavailable(Name, err)
	}
	var b bulletin
	if err := xml.Unmarshal(body, &b); err != nil {
		return nil, kasa.Unavailable(Name, fmt.Errorf("malformed xml: %w", err))
	}

	for _, id := range ids {
		for _, c := range b.Currencies {
			if c.Code != codes[id] {
				continue
			}
			q, err := c.quote()
			if err != nil {
				return nil, kasa.Unavailable(Name, fmt.Errorf("%s: %w", c.Code, err))
			}
			out[id] = q
			break
		}
	}
	return out, nil
}

// quote converts the rates of one currency to a per unit quote. The selling
// rate is mandatory, the buying rate is optional.
func (c currency) quote() (kasa.Quote, error) {
	ask, err := kasa.ParseDecimal(c.ForexSelling)
	if err != nil {
		return kasa.Quote{}, fmt.Errorf("invalid ForexSelling %q: %w", c.ForexSelling, err)
	}
	unit := decimal.NewFromInt(1)
	if u := strings.TrimSpace(c.Unit); u != "" {
		if unit, err = kasa.ParseDecimal(u); err != nil || !unit.IsPositive() {
			return kasa.Quote{}, fmt.Errorf("invalid Unit %q", c.Unit)
		}
	}
	ask = kasa.Div(ask, unit)

	bid, err := kasa.ParseDecimal(c.ForexBuying)
	if err != nil || !bid.IsPositive() {
		return kasa.NewQuote(ask), nil
	}
	bid = kasa.Div(bid, unit)
	return kasa.Quote{Mid: ask, Bid: bid, Ask: ask}, nil
}
