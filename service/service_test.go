package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/etnz/kasa"
	"github.com/etnz/kasa/store"
	"github.com/gofrs/flock"
	"github.com/shopspring/decimal"
)

// fakeQuoter returns a fixed batch and records the overrides it got.
type fakeQuoter struct {
	prices    map[kasa.AssetID]string
	calls     atomic.Int32
	overrides map[kasa.AssetID]decimal.Decimal
}

func (f *fakeQuoter) Quotes(ctx context.Context, ids []kasa.AssetID, overrides map[kasa.AssetID]decimal.Decimal) (kasa.QuoteBatch, error) {
	f.calls.Add(1)
	f.overrides = overrides
	b := kasa.NewQuoteBatch()
	for _, id := range ids {
		if p, ok := f.prices[id]; ok {
			b.Set(id, kasa.NewQuote(decimal.RequireFromString(p)), "fake")
		}
	}
	return b, nil
}

var t0 = time.Date(2025, time.May, 9, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, q *fakeQuoter) (*Service, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "kasa.sqlite"))
	if err != nil {
		t.Fatalf("store.Open() unexpected error: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	now := t0
	s := New(Config{
		Store:      st,
		NewRouter:  func(map[string]string) (Quoter, error) { return q, nil },
		LockFile:   filepath.Join(dir, "service.lock"),
		BackupDir:  filepath.Join(dir, "backups"),
		RetryDelay: time.Millisecond,
		Logger:     log.New(io.Discard, "", 0),
		Now: func() time.Time {
			now = now.Add(time.Minute)
			return now
		},
	})
	return s, st
}

func TestCycle(t *testing.T) {
	q := &fakeQuoter{prices: map[kasa.AssetID]string{
		kasa.XAU: "4060", kasa.XAG: "41", kasa.USD: "38.7", kasa.EUR: "43.5",
	}}
	s, st := newTestService(t, q)
	ctx := context.Background()

	if err := s.Cycle(ctx); err != nil {
		t.Fatalf("Cycle() unexpected error: %v", err)
	}
	latest, err := st.LatestPrices(ctx)
	if err != nil {
		t.Fatalf("LatestPrices() unexpected error: %v", err)
	}
	if len(latest) != len(kasa.Assets()) {
		t.Fatalf("Cycle() wrote %d assets, want one row per asset", len(latest))
	}
	if p := latest[kasa.XAU]; p.Stale || !p.Mid.Equal(decimal.RequireFromString("4060")) || p.Source != "fake" {
		t.Errorf("XAU_G row = %+v, want fresh 4060 from fake", p)
	}
	if p := latest[kasa.XCU]; !p.Stale || p.Source != store.NoSource || p.Error != ErrMsgNoDataYet || !p.Mid.IsZero() {
		t.Errorf("XCU_G row = %+v, want a no_data_yet placeholder", p)
	}
	if v, _ := st.Setting(ctx, store.KeyLastSuccess); v == "" {
		t.Errorf("last_success_ts not set")
	}
	if snaps, _ := st.Snapshots(ctx, 10); len(snaps) != 1 || len(snaps[0].Prices) != 4 {
		t.Errorf("Snapshots() = %+v, want one snapshot of 4 prices", snaps)
	}
	if entries, _ := os.ReadDir(s.cfg.BackupDir); len(entries) != 1 {
		t.Errorf("backup dir has %d files, want 1", len(entries))
	}

	// gold is down on the next cycle: its last price is repeated as stale.
	delete(q.prices, kasa.XAU)
	if err := s.Cycle(ctx); err != nil {
		t.Fatalf("second Cycle() unexpected error: %v", err)
	}
	p, _ := st.LatestPrice(ctx, kasa.XAU)
	if !p.Stale || p.Error != ErrMsgProviderUnavailable || !p.Mid.Equal(decimal.RequireFromString("4060")) || p.Source != "fake" {
		t.Errorf("XAU_G row = %+v, want a stale copy of 4060", p)
	}
}

func TestCycleUsesManualPrices(t *testing.T) {
	q := &fakeQuoter{prices: map[kasa.AssetID]string{kasa.USD: "38.7"}}
	s, st := newTestService(t, q)
	ctx := context.Background()
	st.SetManualPrice(ctx, kasa.XCU, decimal.RequireFromString("0.45"), t0)

	if err := s.Cycle(ctx); err != nil {
		t.Fatalf("Cycle() unexpected error: %v", err)
	}
	if v, ok := q.overrides[kasa.XCU]; !ok || !v.Equal(decimal.RequireFromString("0.45")) {
		t.Errorf("router overrides = %v, want XCU_G 0.45", q.overrides)
	}
}

func TestCycleTotalFailure(t *testing.T) {
	q := &fakeQuoter{prices: map[kasa.AssetID]string{kasa.USD: "38.7"}}
	s, st := newTestService(t, q)
	ctx := context.Background()
	if err := s.Cycle(ctx); err != nil {
		t.Fatalf("Cycle() unexpected error: %v", err)
	}

	q.prices = nil
	q.calls.Store(0)
	err := s.Cycle(ctx)
	if !errors.Is(err, errNoPrice) {
		t.Fatalf("Cycle() error = %v, want errNoPrice", err)
	}
	if n := q.calls.Load(); n != 3 {
		t.Errorf("router called %d times, want 3", n)
	}
	p, _ := st.LatestPrice(ctx, kasa.USD)
	if !p.Stale || p.Error != errNoPrice.Error() || !p.Mid.Equal(decimal.RequireFromString("38.7")) {
		t.Errorf("USDTRY row = %+v, want a stale copy carrying the error", p)
	}
	p, _ = st.LatestPrice(ctx, kasa.EUR)
	if p.Source != store.NoSource || p.Error != errNoPrice.Error() {
		t.Errorf("EURTRY row = %+v, want a placeholder carrying the error", p)
	}
	if v, _ := st.Setting(ctx, store.KeyLastError); v != errNoPrice.Error() {
		t.Errorf("last_error = %q, want %q", v, errNoPrice)
	}
}

func TestCycleRouterError(t *testing.T) {
	s, st := newTestService(t, &fakeQuoter{})
	s.cfg.NewRouter = func(map[string]string) (Quoter, error) { return nil, errors.New("unknown fx source") }
	if err := s.Cycle(context.Background()); err == nil {
		t.Fatal("Cycle() expected error")
	}
	if v, _ := st.Setting(context.Background(), store.KeyLastError); v != "unknown fx source" {
		t.Errorf("last_error = %q, want the router error", v)
	}
}

func TestRunLocked(t *testing.T) {
	s, _ := newTestService(t, &fakeQuoter{})
	other := flock.New(s.cfg.LockFile)
	if ok, err := other.TryLock(); !ok || err != nil {
		t.Fatalf("TryLock() = %v, %v", ok, err)
	}
	defer other.Unlock()

	if err := s.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Run() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestRun(t *testing.T) {
	q := &fakeQuoter{prices: map[kasa.AssetID]string{kasa.USD: "38.7"}}
	s, _ := newTestService(t, q)
	s.cfg.Interval = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if n := q.calls.Load(); n != 1 {
		t.Errorf("router called %d times, want one immediate cycle", n)
	}
}

func TestInterval(t *testing.T) {
	s, st := newTestService(t, &fakeQuoter{})
	ctx := context.Background()
	if got, err := s.interval(ctx); err != nil || got != 30*time.Minute {
		t.Errorf("interval() = %v, %v, want 30m", got, err)
	}
	st.SetSetting(ctx, store.KeyUpdateInterval, "5")
	if got, _ := s.interval(ctx); got != 5*time.Minute {
		t.Errorf("interval() = %v, want 5m", got)
	}
	st.SetSetting(ctx, store.KeyUpdateInterval, "0")
	if _, err := s.interval(ctx); err == nil {
		t.Errorf("interval() with 0 expected error")
	}
}

func TestHandler(t *testing.T) {
	s, st := newTestService(t, &fakeQuoter{prices: map[kasa.AssetID]string{kasa.USD: "38.7"}})
	srv := httptest.NewServer(Handler(st))
	defer srv.Close()
	if err := s.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle() unexpected error: %v", err)
	}

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return resp.StatusCode, buf.String()
	}

	if code, body := get("/healthz"); code != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("/healthz = %d %s, want 200 ok", code, body)
	}
	if code, body := get("/metrics"); code != http.StatusOK || !strings.Contains(body, "kasa_fetch_cycles_total") {
		t.Errorf("/metrics = %d, want 200 with kasa_fetch_cycles_total", code)
	}

	st.SetSetting(context.Background(), store.KeyLastError, "boom")
	if code, _ := get("/healthz"); code != http.StatusServiceUnavailable {
		t.Errorf("/healthz after failure = %d, want 503", code)
	}
}

func TestFetchStoresNothing(t *testing.T) {
	q := &fakeQuoter{prices: map[kasa.AssetID]string{kasa.USD: "38.7"}}
	s, st := newTestService(t, q)
	ctx := context.Background()
	if err := st.SetManualPrice(ctx, kasa.XCU, decimal.RequireFromString("0.42"), t0); err != nil {
		t.Fatal(err)
	}

	batch, err := s.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if !batch.Has(kasa.USD) {
		t.Errorf("Fetch() = %+v, want USDTRY", batch)
	}
	if !q.overrides[kasa.XCU].Equal(decimal.RequireFromString("0.42")) {
		t.Errorf("Fetch() overrides = %v, want the manual copper price", q.overrides)
	}
	latest, err := st.LatestPrices(ctx)
	if err != nil || len(latest) != 0 {
		t.Errorf("LatestPrices() = %v, %v, want no row written", latest, err)
	}
}
