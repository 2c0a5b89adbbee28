package kasa

import (
	"github.com/shopspring/decimal"
)

// ManualSource is the provenance of prices typed in by an operator.
const ManualSource = "manual"

// Quote is a price in the valuation currency. Sources that only publish a
// last traded value report Bid == Ask == Mid, so Bid <= Mid <= Ask is not
// guaranteed.
type Quote struct {
	Mid decimal.Decimal `json:"mid"`
	Bid decimal.Decimal `json:"bid"`
	Ask decimal.Decimal `json:"ask"`
}

// NewQuote returns a quote with a single value.
func NewQuote(v decimal.Decimal) Quote {
	return Quote{Mid: v, Bid: v, Ask: v}
}

// NewSpreadQuote returns a quote whose mid is the average of bid and ask.
func NewSpreadQuote(bid, ask decimal.Decimal) Quote {
	return Quote{
		Mid: Div(bid.Add(ask), decimal.NewFromInt(2)),
		Bid: bid,
		Ask: ask,
	}
}

// IsPositive reports whether all prices are strictly positive.
func (q Quote) IsPositive() bool {
	return q.Mid.IsPositive() && q.Bid.IsPositive() && q.Ask.IsPositive()
}

// QuoteBatch is the outcome of one Router invocation. It is partial by
// nature: an asset missing from Quotes had no price this round.
type QuoteBatch struct {
	Quotes  map[AssetID]Quote
	Sources map[AssetID]string // provenance, same keys as Quotes
}

// NewQuoteBatch returns an empty batch.
func NewQuoteBatch() QuoteBatch {
	return QuoteBatch{
		Quotes:  make(map[AssetID]Quote),
		Sources: make(map[AssetID]string),
	}
}

// Set records q for id, replacing any previous value.
func (b QuoteBatch) Set(id AssetID, q Quote, source string) {
	b.Quotes[id] = q
	b.Sources[id] = source
}

// Has reports whether the batch holds a quote for id.
func (b QuoteBatch) Has(id AssetID) bool {
	_, ok := b.Quotes[id]
	return ok
}

// Mid returns the mid price of id if present.
func (b QuoteBatch) Mid(id AssetID) (decimal.Decimal, bool) {
	q, ok := b.Quotes[id]
	return q.Mid, ok
}

// Missing returns the ids from want that have no quote, in want's order.
func (b QuoteBatch) Missing(want []AssetID) []AssetID {
	var missing []AssetID
	for _, id := range want {
		if !b.Has(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// Len returns the number of quoted assets.
func (b QuoteBatch) Len() int { return len(b.Quotes) }
