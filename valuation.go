package kasa

import (
	"github.com/shopspring/decimal"
)

// ValuationRow is the valuation of one asset at current prices.
type ValuationRow struct {
	Asset            AssetID
	Quantity         Quantity
	AverageCost      Money
	CurrentPrice     *decimal.Decimal // nil when no quote is known
	Source           string           // provenance of CurrentPrice
	MarketValue      Money            // zero when CurrentPrice is nil
	CostBasis        Money
	UnrealizedPnL    Money
	UnrealizedPnLPct *decimal.Decimal // nil when CostBasis is zero
	RealizedPnL      Money
}

// Valuation is the portfolio valued at current prices. Rows follow the
// declared asset order and cover every tracked asset.
type Valuation struct {
	Rows            []ValuationRow
	TotalValue      Money
	TotalCost       Money
	TotalUnrealized Money
	TotalRealized   Money
}

var hundred = decimal.NewFromInt(100)

// Valuate values states at the mid prices of batch. Assets without a state
// get a zero row, assets without a quote are valued at zero.
func Valuate(states map[AssetID]InventoryState, batch QuoteBatch) Valuation {
	v := Valuation{
		TotalValue:      TRY(0),
		TotalCost:       TRY(0),
		TotalUnrealized: TRY(0),
		TotalRealized:   TRY(0),
	}
	for _, id := range Assets() {
		st, ok := states[id]
		if !ok {
			st = emptyState()
		}
		row := ValuationRow{
			Asset:       id,
			Quantity:    st.Quantity,
			AverageCost: st.AverageCost,
			MarketValue: TRY(0),
			CostBasis:   st.CostBasis(),
			RealizedPnL: st.RealizedPnL,
		}
		if mid, ok := batch.Mid(id); ok {
			row.CurrentPrice = &mid
			row.Source = batch.Sources[id]
			row.MarketValue = TRY(mid).Mul(st.Quantity)
		}
		row.UnrealizedPnL = row.MarketValue.Sub(row.CostBasis)
		if row.CostBasis.IsPositive() {
			pct := row.UnrealizedPnL.DivMoney(row.CostBasis).Mul(hundred)
			row.UnrealizedPnLPct = &pct
		}

		v.Rows = append(v.Rows, row)
		v.TotalValue = v.TotalValue.Add(row.MarketValue)
		v.TotalCost = v.TotalCost.Add(row.CostBasis)
		v.TotalUnrealized = v.TotalUnrealized.Add(row.UnrealizedPnL)
		v.TotalRealized = v.TotalRealized.Add(row.RealizedPnL)
	}
	return v
}

// Row returns the row of id.
func (v Valuation) Row(id AssetID) (ValuationRow, bool) {
	for _, r := range v.Rows {
		if r.Asset == id {
			return r, true
		}
	}
	return ValuationRow{}, false
}
