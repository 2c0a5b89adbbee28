package kasa

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the direction of a transaction.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide parses "buy" or "sell", case insensitive.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", fmt.Errorf("unknown side %q, want BUY or SELL", s)
	}
}

// Transaction is an immutable entry of the ledger: a purchase or a sale of
// an asset in the valuation currency.
type Transaction struct {
	ID        string    // unique id, assigned at creation
	Time      time.Time // when it happened, orders the ledger
	Asset     AssetID
	Side      Side
	Quantity  Quantity // always positive
	UnitPrice Money    // price of one unit, always positive
	Fee       Money    // never negative
	Note      string   // optional rationale
}

func newTransaction(on time.Time, side Side, asset AssetID, quantity Quantity, unitPrice, fee Money, note string) Transaction {
	return Transaction{
		ID:        uuid.NewString(),
		Time:      on,
		Asset:     asset,
		Side:      side,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Fee:       fee,
		Note:      note,
	}
}

// NewBuy creates a new purchase of quantity units of asset.
func NewBuy(on time.Time, asset AssetID, quantity Quantity, unitPrice, fee Money, note string) Transaction {
	return newTransaction(on, Buy, asset, quantity, unitPrice, fee, note)
}

// NewSell creates a new sale of quantity units of asset.
func NewSell(on time.Time, asset AssetID, quantity Quantity, unitPrice, fee Money, note string) Transaction {
	return newTransaction(on, Sell, asset, quantity, unitPrice, fee, note)
}

// Gross returns quantity times unit price, fee excluded.
func (t Transaction) Gross() Money { return t.UnitPrice.Mul(t.Quantity) }

// Validate checks the transaction fields on their own. Whether a sale is
// covered by holdings is checked by Replay.
func (t Transaction) Validate() error {
	var errs []error
	if t.Time.IsZero() {
		errs = append(errs, errors.New("time is missing"))
	}
	if !t.Asset.Valid() {
		errs = append(errs, &UnknownAssetError{ID: string(t.Asset)})
	}
	if t.Side != Buy && t.Side != Sell {
		errs = append(errs, fmt.Errorf("unknown side %q", t.Side))
	}
	if !t.Quantity.IsPositive() {
		errs = append(errs, fmt.Errorf("quantity must be positive, got %s", t.Quantity))
	}
	if !t.UnitPrice.IsPositive() {
		errs = append(errs, fmt.Errorf("unit price must be positive, got %s", t.UnitPrice.Decimal()))
	}
	if t.Fee.IsNegative() {
		errs = append(errs, fmt.Errorf("fee cannot be negative, got %s", t.Fee.Decimal()))
	}
	for _, m := range []Money{t.UnitPrice, t.Fee} {
		if m.Currency() != "" && m.Currency() != Currency {
			errs = append(errs, fmt.Errorf("currency %s is not %s", m.Currency(), Currency))
			break
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid %s transaction: %w", strings.ToLower(string(t.Side)), errors.Join(errs...))
	}
	return nil
}

// MarshalJSON writes the transaction as a single flat object.
func (t Transaction) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("id", t.ID)
	w.Append("time", t.Time.Format(time.RFC3339))
	w.Append("asset", t.Asset)
	w.Append("side", t.Side)
	w.Append("quantity", t.Quantity)
	w.Append("unitPrice", t.UnitPrice)
	w.Append("fee", t.Fee)
	w.Append("currency", Currency)
	w.Optional("note", t.Note)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface for Transaction.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var temp struct {
		ID        string          `json:"id"`
		Time      time.Time       `json:"time"`
		Asset     AssetID         `json:"asset"`
		Side      Side            `json:"side"`
		Quantity  Quantity        `json:"quantity"`
		UnitPrice decimal.Decimal `json:"unitPrice"`
		Fee       decimal.Decimal `json:"fee"`
		Currency  string          `json:"currency"`
		Note      string          `json:"note"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	cur := temp.Currency
	if cur == "" {
		cur = Currency
	}
	*t = Transaction{
		ID:        temp.ID,
		Time:      temp.Time,
		Asset:     temp.Asset,
		Side:      temp.Side,
		Quantity:  temp.Quantity,
		UnitPrice: M(temp.UnitPrice, cur),
		Fee:       M(temp.Fee, cur),
		Note:      temp.Note,
	}
	return nil
}
