package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/etnz/kasa"
	"github.com/shopspring/decimal"
)

// NoSource is the source of placeholder rows written before any price was
// ever known.
const NoSource = "none"

// Price is one row of the price history. Stale rows repeat the last known
// price of an asset when no source could price it.
type Price struct {
	Time   time.Time
	Asset  kasa.AssetID
	Mid    decimal.Decimal
	Bid    decimal.NullDecimal
	Ask    decimal.NullDecimal
	Source string
	Stale  bool
	Error  string
}

// NewPrice returns a fresh row for q.
func NewPrice(at time.Time, id kasa.AssetID, q kasa.Quote, source string) Price {
	return Price{
		Time:   at,
		Asset:  id,
		Mid:    q.Mid,
		Bid:    decimal.NewNullDecimal(q.Bid),
		Ask:    decimal.NewNullDecimal(q.Ask),
		Source: source,
	}
}

// Quote returns the row as a quote. Missing bid or ask default to mid.
func (p Price) Quote() kasa.Quote {
	q := kasa.NewQuote(p.Mid)
	if p.Bid.Valid {
		q.Bid = p.Bid.Decimal
	}
	if p.Ask.Valid {
		q.Ask = p.Ask.Decimal
	}
	return q
}

// InsertPrices appends rows to the history in a single transaction.
func (s *Store) InsertPrices(ctx context.Context, prices ...Price) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO prices
		(ts, asset, price, price_buy, price_sell, currency, source, is_stale, error_msg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range prices {
		var errMsg sql.NullString
		if p.Error != "" {
			errMsg = sql.NullString{String: p.Error, Valid: true}
		}
		_, err := stmt.ExecContext(ctx, formatTime(p.Time), string(p.Asset), p.Mid.String(),
			p.Bid, p.Ask, kasa.Currency, p.Source, p.Stale, errMsg)
		if err != nil {
			return fmt.Errorf("cannot insert %s price: %w", p.Asset, err)
		}
	}
	return tx.Commit()
}

const selectPrice = `SELECT ts, asset, price, price_buy, price_sell, source, is_stale, error_msg FROM prices`

func scanPrice(row interface{ Scan(...any) error }) (Price, error) {
	var (
		p      Price
		ts     string
		asset  string
		errMsg sql.NullString
	)
	if err := row.Scan(&ts, &asset, &p.Mid, &p.Bid, &p.Ask, &p.Source, &p.Stale, &errMsg); err != nil {
		return Price{}, err
	}
	t, err := parseTime(ts)
	if err != nil {
		return Price{}, err
	}
	p.Time = t
	p.Asset = kasa.AssetID(asset)
	p.Error = errMsg.String
	return p, nil
}

// LatestPrice returns the last row written for id, stale or not. It returns
// ErrNotFound if there is none.
func (s *Store) LatestPrice(ctx context.Context, id kasa.AssetID) (Price, error) {
	row := s.db.QueryRowContext(ctx, selectPrice+` WHERE asset = ? ORDER BY id DESC LIMIT 1`, string(id))
	p, err := scanPrice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Price{}, ErrNotFound
	}
	return p, err
}

// LatestPrices returns the last row of every asset that has one.
func (s *Store) LatestPrices(ctx context.Context) (map[kasa.AssetID]Price, error) {
	rows, err := s.db.QueryContext(ctx, selectPrice+` WHERE id IN (SELECT MAX(id) FROM prices GROUP BY asset)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[kasa.AssetID]Price)
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out[p.Asset] = p
	}
	return out, rows.Err()
}

// History returns the last limit rows of id, most recent first.
func (s *Store) History(ctx context.Context, id kasa.AssetID, limit int) ([]Price, error) {
	rows, err := s.db.QueryContext(ctx, selectPrice+` WHERE asset = ? ORDER BY id DESC LIMIT ?`, string(id), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Price
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetManualPrice records an operator price for id, replacing any previous
// one. It is used only when no source can price id.
func (s *Store) SetManualPrice(ctx context.Context, id kasa.AssetID, price decimal.Decimal, at time.Time) error {
	if !id.Valid() {
		return &kasa.UnknownAssetError{ID: string(id)}
	}
	if !price.IsPositive() {
		return fmt.Errorf("manual price must be positive, got %s", price)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO manual_prices (asset, price, ts) VALUES (?, ?, ?)
		ON CONFLICT(asset) DO UPDATE SET price = excluded.price, ts = excluded.ts`,
		string(id), price.String(), formatTime(at))
	return err
}

// DeleteManualPrice removes the operator price of id, if any.
func (s *Store) DeleteManualPrice(ctx context.Context, id kasa.AssetID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM manual_prices WHERE asset = ?`, string(id))
	return err
}

// ManualPrices returns the operator prices by asset.
func (s *Store) ManualPrices(ctx context.Context) (map[kasa.AssetID]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT asset, price FROM manual_prices`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[kasa.AssetID]decimal.Decimal)
	for rows.Next() {
		var (
			asset string
			price decimal.Decimal
		)
		if err := rows.Scan(&asset, &price); err != nil {
			return nil, err
		}
		out[kasa.AssetID(asset)] = price
	}
	return out, rows.Err()
}
