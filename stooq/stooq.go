// Package stooq reads the COMEX copper future (HG.F) from stooq.com.
package stooq

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/etnz/kasa"
	"github.com/shopspring/decimal"
)

// Name is the provenance label of this source.
const Name = "stooq"

// DefaultURL is the CSV quote of the copper future.
const DefaultURL = "https://stooq.com/q/l/?s=hg.f&f=sd2t2ohlcv&h&e=csv"

var hundred = decimal.NewFromInt(100)

// Source is a kasa.BaseMetalSource for copper. It does not know the lira
// so Fetch cannot price copper on its own: the kasa.Router derives it.
type Source struct {
	Client *http.Client
	URL    string
}

// New returns a Source using client.
func New(client *http.Client) *Source {
	return &Source{Client: client, URL: DefaultURL}
}

func (s *Source) Name() string { return Name }

// Fetch returns an empty map for ids without copper, and
// kasa.ErrDerivationRequired otherwise.
func (s *Source) Fetch(ctx context.Context, ids []kasa.AssetID) (map[kasa.AssetID]kasa.Quote, error) {
	if slices.Contains(ids, kasa.XCU) {
		return nil, fmt.Errorf("%s: %w", Name, kasa.ErrDerivationRequired)
	}
	return map[kasa.AssetID]kasa.Quote{}, nil
}

// USDPerPound returns the last close of HG.F. Stooq publishes it in US
// cents per pound.
//
//	Symbol,Date,Time,Open,High,Low,Close,Volume
//	HG.F,2025-05-09,22:59:59,468.6,470.95,465.3,467.15,31245
func (s *Source) USDPerPound(ctx context.Context) (decimal.Decimal, error) {
	body, err := kasa.GetBody(ctx, s.Client, s.URL)
	if err != nil {
		return decimal.Zero, kasa.Unavailable(Name, err)
	}
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return decimal.Zero, kasa.Unavailable(Name, fmt.Errorf("malformed csv: %w", err))
	}
	if len(records) < 2 {
		return decimal.Zero, kasa.Unavailable(Name, errors.New("csv is empty"))
	}

	col := slices.IndexFunc(records[0], func(h string) bool { return strings.EqualFold(strings.TrimSpace(h), "close") })
	if col < 0 {
		col = 6
	}
	row := records[1]
	if len(row) <= col {
		return decimal.Zero, kasa.Unavailable(Name, errors.New("csv is malformed"))
	}
	// "N/D" when stooq has no data for the symbol.
	cents, err := decimal.NewFromString(strings.TrimSpace(row[col]))
	if err != nil {
		return decimal.Zero, kasa.Unavailable(Name, fmt.Errorf("invalid close %q", row[col]))
	}
	return kasa.Div(cents, hundred), nil
}
