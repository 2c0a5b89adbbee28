package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Setting keys. Their defaults are seeded by the migrations.
const (
	KeyUpdateInterval    = "update_interval_min"
	KeyPnLAlertThreshold = "pnl_alert_threshold_try"
	KeyCostMethod        = "cost_method"
	KeyFXPrimary         = "fx_primary"
	KeyFXFallback        = "fx_fallback"
	KeyMetalsPrimary     = "metals_primary"
	KeyMetalsFallback    = "metals_fallback"
	KeyCopperProvider    = "copper_provider"
	KeyBackupDir         = "backup_dir"
	KeyLastSuccess       = "last_success_ts"
	KeyLastError         = "last_error"
)

// Setting returns the value of key, or ErrNotFound.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}

// SetSetting sets key to value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// Settings returns all settings.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// IntSetting returns key as an int, or def when it is missing or invalid.
func (s *Store) IntSetting(ctx context.Context, key string, def int) (int, error) {
	v, err := s.Setting(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("setting %s: invalid integer %q", key, v)
	}
	return n, nil
}

// DecimalSetting returns key as a decimal, or def when it is missing.
func (s *Store) DecimalSetting(ctx context.Context, key string, def decimal.Decimal) (decimal.Decimal, error) {
	v, err := s.Setting(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return def, fmt.Errorf("setting %s: invalid number %q", key, v)
	}
	return d, nil
}
