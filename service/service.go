// Package service runs the periodic price fetch: each cycle asks the router
// for every asset and appends the result to the price history, repeating the
// last known price of assets no source could price.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/etnz/kasa"
	"github.com/etnz/kasa/sources"
	"github.com/etnz/kasa/store"
	"github.com/gofrs/flock"
	"github.com/shopspring/decimal"
)

// Errors written in the history for rows that are not fresh.
const (
	ErrMsgProviderUnavailable = "provider_unavailable"
	ErrMsgNoDataYet           = "no_data_yet"
)

// ErrAlreadyRunning is returned by Run when another instance holds the lock.
var ErrAlreadyRunning = errors.New("service already running (lock busy)")

// errNoPrice is the failure of a cycle try where no asset got a price.
var errNoPrice = errors.New("no source returned any price")

// Quoter is the part of *kasa.Router used by the service.
type Quoter interface {
	Quotes(ctx context.Context, ids []kasa.AssetID, overrides map[kasa.AssetID]decimal.Decimal) (kasa.QuoteBatch, error)
}

// RouterFactory builds the Quoter of a cycle from the current settings.
type RouterFactory func(settings map[string]string) (Quoter, error)

// Config configures a Service. Only Store is required.
type Config struct {
	Store      *store.Store
	NewRouter  RouterFactory   // sources.Router from settings if nil
	Sources    sources.Options // used by the default NewRouter
	Ledger     string          // optional ledger file, to value snapshots
	LockFile   string          // "service.lock" if empty
	BackupDir  string          // backup_dir setting if empty
	Interval   time.Duration   // update_interval_min setting if zero
	MaxTries   int             // 3 if zero
	RetryDelay time.Duration   // first delay between tries, doubled each time. 1s if zero
	Logger     *log.Logger
	Now        func() time.Time
}

// Service fetches prices periodically.
type Service struct {
	cfg    Config
	logger *log.Logger
}

// New returns a Service for cfg.
func New(cfg Config) *Service {
	if cfg.LockFile == "" {
		cfg.LockFile = "service.lock"
	}
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Sources.Client == nil {
		cfg.Sources.Client = kasa.NewHTTPClient(kasa.HTTPOptions{Logger: cfg.Logger, RatePerHost: 2})
	}
	s := &Service{cfg: cfg, logger: cfg.Logger}
	if s.cfg.NewRouter == nil {
		s.cfg.NewRouter = s.defaultRouter
	}
	return s
}

// defaultRouter builds the router named by the settings.
func (s *Service) defaultRouter(settings map[string]string) (Quoter, error) {
	cfg := sources.Config{
		FXPrimary:      settings[store.KeyFXPrimary],
		FXFallback:     settings[store.KeyFXFallback],
		MetalsPrimary:  settings[store.KeyMetalsPrimary],
		MetalsFallback: settings[store.KeyMetalsFallback],
		Copper:         settings[store.KeyCopperProvider],
	}
	return sources.Router(cfg, s.cfg.Sources, s.logger)
}

// Run takes the service lock, runs a cycle immediately and then one every
// interval until ctx is done. Cycle failures are logged, they do not stop
// the service.
func (s *Service) Run(ctx context.Context) error {
	lock := flock.New(s.cfg.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("cannot lock %q: %w", s.cfg.LockFile, err)
	}
	if !locked {
		return ErrAlreadyRunning
	}
	defer lock.Unlock()

	interval, err := s.interval(ctx)
	if err != nil {
		return err
	}
	s.logger.Printf("service started (lock acquired), one cycle every %v", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.Cycle(ctx); err != nil && ctx.Err() == nil {
			s.logger.Printf("cycle failed: %v", err)
		}
		select {
		case <-ctx.Done():
			s.logger.Printf("service stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Service) interval(ctx context.Context) (time.Duration, error) {
	if s.cfg.Interval > 0 {
		return s.cfg.Interval, nil
	}
	n, err := s.cfg.Store.IntSetting(ctx, store.KeyUpdateInterval, 30)
	if err != nil {
		s.logger.Printf("%v, using 30 minutes", err)
		n = 30
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", store.KeyUpdateInterval, n)
	}
	return time.Duration(n) * time.Minute, nil
}

// Cycle fetches every asset once and appends one row per asset to the
// history. It tries up to MaxTries times while no source returns anything.
// When every try failed, the last known prices are written again as stale
// and the error is returned.
func (s *Service) Cycle(ctx context.Context) error {
	st := s.cfg.Store
	ts := s.cfg.Now()
	ids := kasa.Assets()

	var lastErr error
	for i := 0; i < s.cfg.MaxTries; i++ {
		if i > 0 {
			delay := s.cfg.RetryDelay << (i - 1)
			s.logger.Printf("fetch %d/%d failed: %v; retry in %v", i, s.cfg.MaxTries, lastErr, delay)
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
		batch, err := s.Fetch(ctx)
		if err == nil && batch.Len() == 0 {
			err = errNoPrice
		}
		if err != nil {
			lastErr = err
			continue
		}

		prices, err := s.rows(ctx, ts, batch, ErrMsgProviderUnavailable)
		if err != nil {
			return err
		}
		if err := st.InsertPrices(ctx, prices...); err != nil {
			return fmt.Errorf("cannot store prices: %w", err)
		}
		s.snapshot(ctx, ts, batch)
		if err := st.SetSetting(ctx, store.KeyLastSuccess, ts.Format(time.RFC3339)); err != nil {
			return err
		}
		if err := st.SetSetting(ctx, store.KeyLastError, ""); err != nil {
			return err
		}
		cycles.WithLabelValues("ok").Inc()
		lastSuccess.Set(float64(ts.Unix()))
		s.logger.Printf("prices updated: %d/%d fresh", batch.Len(), len(ids))
		s.backup(ctx, ts)
		return nil
	}

	// total failure: repeat the last known prices.
	cycles.WithLabelValues("failed").Inc()
	prices, err := s.rows(ctx, ts, kasa.NewQuoteBatch(), lastErr.Error())
	if err != nil {
		return err
	}
	if err := st.InsertPrices(ctx, prices...); err != nil {
		return fmt.Errorf("cannot store stale prices: %w", err)
	}
	if err := st.SetSetting(ctx, store.KeyLastError, lastErr.Error()); err != nil {
		return err
	}
	return fmt.Errorf("all sources failed, stale prices written: %w", lastErr)
}

// Fetch asks the sources named by the current settings for every asset, with
// the manual prices as overrides. Nothing is stored.
func (s *Service) Fetch(ctx context.Context) (kasa.QuoteBatch, error) {
	settings, err := s.cfg.Store.Settings(ctx)
	if err != nil {
		return kasa.QuoteBatch{}, err
	}
	router, err := s.cfg.NewRouter(settings)
	if err != nil {
		return kasa.QuoteBatch{}, err
	}
	overrides, err := s.cfg.Store.ManualPrices(ctx)
	if err != nil {
		return kasa.QuoteBatch{}, err
	}
	return router.Quotes(ctx, kasa.Assets(), overrides)
}

// rows returns one row per asset: fresh from batch, else a stale copy of
// the last known price with errMsg, else a zero placeholder.
func (s *Service) rows(ctx context.Context, ts time.Time, batch kasa.QuoteBatch, errMsg string) ([]store.Price, error) {
	var prices []store.Price
	for _, id := range kasa.Assets() {
		if q, ok := batch.Quotes[id]; ok {
			prices = append(prices, store.NewPrice(ts, id, q, batch.Sources[id]))
			staleAssets.WithLabelValues(string(id)).Set(0)
			continue
		}
		staleAssets.WithLabelValues(string(id)).Set(1)
		last, err := s.cfg.Store.LatestPrice(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			msg := errMsg
			if msg == ErrMsgProviderUnavailable {
				msg = ErrMsgNoDataYet
			}
			prices = append(prices, store.Price{Time: ts, Asset: id, Mid: decimal.Zero, Source: store.NoSource, Stale: true, Error: msg})
		case err != nil:
			return nil, err
		default:
			prices = append(prices, store.Price{Time: ts, Asset: id, Mid: last.Mid, Bid: last.Bid, Ask: last.Ask, Source: last.Source, Stale: true, Error: errMsg})
		}
	}
	return prices, nil
}

// snapshot records the portfolio value at the fresh prices of the cycle.
// Failures are logged only.
func (s *Service) snapshot(ctx context.Context, ts time.Time, batch kasa.QuoteBatch) {
	total := decimal.Zero
	if s.cfg.Ledger != "" {
		txs, err := kasa.LoadLedger(s.cfg.Ledger)
		if err != nil {
			s.logger.Printf("snapshot: %v", err)
			return
		}
		states, err := kasa.Replay(txs)
		if err != nil {
			s.logger.Printf("snapshot: %v", err)
			return
		}
		total = kasa.Valuate(states, batch).TotalValue.Decimal()
	}
	mids := make(map[kasa.AssetID]decimal.Decimal, batch.Len())
	for id, q := range batch.Quotes {
		mids[id] = q.Mid
	}
	if err := s.cfg.Store.InsertSnapshot(ctx, store.Snapshot{Time: ts, TotalValue: total, Prices: mids}); err != nil {
		s.logger.Printf("snapshot: %v", err)
	}
}

// backup makes the daily copy of the database. Failures are logged only.
func (s *Service) backup(ctx context.Context, ts time.Time) {
	dir := s.cfg.BackupDir
	if dir == "" {
		v, err := s.cfg.Store.Setting(ctx, store.KeyBackupDir)
		if err != nil {
			return
		}
		dir = v
	}
	if dir == "" {
		return
	}
	dst, written, err := s.cfg.Store.Backup(ctx, dir, ts)
	if err != nil {
		s.logger.Printf("backup: %v", err)
		return
	}
	if written {
		s.logger.Printf("database backed up to %s", dst)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
