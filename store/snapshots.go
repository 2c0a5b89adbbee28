package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/etnz/kasa"
	"github.com/shopspring/decimal"
)

// Snapshot is the portfolio value recorded after a fetch cycle.
type Snapshot struct {
	Time       time.Time
	TotalValue decimal.Decimal
	Prices     map[kasa.AssetID]decimal.Decimal // fresh mid prices of the cycle
}

// InsertSnapshot appends a snapshot.
func (s *Store) InsertSnapshot(ctx context.Context, snap Snapshot) error {
	breakdown, err := json.Marshal(snap.Prices)
	if err != nil {
		return fmt.Errorf("cannot encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO snapshots (ts, total_value_try, breakdown_json) VALUES (?, ?, ?)`,
		formatTime(snap.Time), snap.TotalValue.String(), string(breakdown))
	return err
}

// Snapshots returns the last limit snapshots, most recent first.
func (s *Store) Snapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, total_value_try, breakdown_json FROM snapshots ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		var (
			snap      Snapshot
			ts        string
			breakdown string
		)
		if err := rows.Scan(&ts, &snap.TotalValue, &breakdown); err != nil {
			return nil, err
		}
		if snap.Time, err = parseTime(ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(breakdown), &snap.Prices); err != nil {
			return nil, fmt.Errorf("snapshot %s: malformed breakdown: %w", ts, err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
