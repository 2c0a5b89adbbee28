package kasa

import (
	"fmt"
	"slices"
)

// InventoryState is the position in one asset after replaying the ledger.
type InventoryState struct {
	Quantity    Quantity
	AverageCost Money // weighted average cost of one unit, fees included
	RealizedPnL Money
}

func emptyState() InventoryState {
	return InventoryState{
		AverageCost: TRY(0),
		RealizedPnL: TRY(0),
	}
}

// CostBasis returns quantity times average cost.
func (s InventoryState) CostBasis() Money { return s.AverageCost.Mul(s.Quantity) }

// OversoldError reports a sale larger than the quantity held at that point
// of the ledger.
type OversoldError struct {
	Index     int // position of the offending transaction in replay order
	ID        string
	Asset     AssetID
	Available Quantity
	Requested Quantity
}

func (e *OversoldError) Error() string {
	return fmt.Sprintf("cannot sell %s %s of %s: only %s held", e.Requested, unit(e.Asset), e.Asset.Name(), e.Available)
}

func unit(id AssetID) string {
	a, _ := id.Info()
	return a.Unit
}

// SortTransactions returns a copy of txs ordered by time. Transactions at the
// same time keep their relative order.
func SortTransactions(txs []Transaction) []Transaction {
	sorted := slices.Clone(txs)
	slices.SortStableFunc(sorted, func(a, b Transaction) int {
		return a.Time.Compare(b.Time)
	})
	return sorted
}

// Replay folds the ledger into one InventoryState per asset using the
// weighted average cost method. Transactions are processed in time order.
//
// It fails with *OversoldError at the first sale exceeding the held
// quantity, and with a validation error for malformed transactions. On
// failure no state is returned.
func Replay(txs []Transaction) (map[AssetID]InventoryState, error) {
	state := make(map[AssetID]InventoryState)
	for i, tx := range SortTransactions(txs) {
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("transaction %d (%s): %w", i, tx.ID, err)
		}
		row, ok := state[tx.Asset]
		if !ok {
			row = emptyState()
		}

		switch tx.Side {
		case Buy:
			newQuantity := row.Quantity.Add(tx.Quantity)
			if newQuantity.IsPositive() {
				total := row.AverageCost.Mul(row.Quantity).Add(tx.Gross()).Add(tx.Fee)
				row.AverageCost = total.Div(newQuantity)
			}
			row.Quantity = newQuantity
		case Sell:
			if tx.Quantity.GreaterThan(row.Quantity) {
				return nil, &OversoldError{
					Index:     i,
					ID:        tx.ID,
					Asset:     tx.Asset,
					Available: row.Quantity,
					Requested: tx.Quantity,
				}
			}
			proceeds := tx.Gross().Sub(tx.Fee)
			cost := row.AverageCost.Mul(tx.Quantity)
			row.RealizedPnL = row.RealizedPnL.Add(proceeds.Sub(cost))
			row.Quantity = row.Quantity.Sub(tx.Quantity)
			if row.Quantity.IsZero() {
				row.AverageCost = TRY(0)
			}
		}
		state[tx.Asset] = row
	}
	return state, nil
}

// CheckCandidate reports whether tx can be appended to the ledger: it must
// be valid and the ledger including it must replay without overselling.
func CheckCandidate(ledger []Transaction, tx Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	_, err := Replay(append(slices.Clone(ledger), tx))
	return err
}
