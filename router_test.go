package kasa

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// fakeSource returns fixed prices for the ids it knows, or fails.
type fakeSource struct {
	name   string
	prices map[AssetID]string
	err    error
	delay  time.Duration
	calls  atomic.Int32
	asked  [][]AssetID
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, ids []AssetID) (map[AssetID]Quote, error) {
	f.calls.Add(1)
	f.asked = append(f.asked, ids)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[AssetID]Quote)
	for _, id := range ids {
		if p, ok := f.prices[id]; ok {
			out[id] = NewQuote(decimal.RequireFromString(p))
		}
	}
	return out, nil
}

// fakeCopper publishes a fixed USD per pound price.
type fakeCopper struct {
	fakeSource
	usdPerPound string
}

func (f *fakeCopper) Fetch(ctx context.Context, ids []AssetID) (map[AssetID]Quote, error) {
	return nil, ErrDerivationRequired
}

func (f *fakeCopper) USDPerPound(ctx context.Context) (decimal.Decimal, error) {
	f.calls.Add(1)
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return decimal.RequireFromString(f.usdPerPound), nil
}

func quietRouter(cfg RouterConfig) *Router {
	cfg.Logger = log.New(&bytes.Buffer{}, "", 0)
	return NewRouter(cfg)
}

func mid(t *testing.T, b QuoteBatch, id AssetID) string {
	t.Helper()
	v, ok := b.Mid(id)
	if !ok {
		return "<missing>"
	}
	return v.String()
}

func TestRouterFallback(t *testing.T) {
	// primary knows A and B, fallback knows B and C: result is A, B from the
	// primary and C from the fallback.
	primary := &fakeSource{name: "p", prices: map[AssetID]string{XAU: "4000", XAG: "40"}}
	fallback := &fakeSource{name: "f", prices: map[AssetID]string{XAG: "41", USD: "38"}}
	fx := &fakeSource{name: "fx", prices: map[AssetID]string{USD: "38.5"}}
	r := quietRouter(RouterConfig{
		FX:     Chain{fx},
		Metals: Chain{primary, fallback},
	})

	got, err := r.Quotes(context.Background(), []AssetID{XAU, XAG, USD}, nil)
	if err != nil {
		t.Fatalf("Quotes() unexpected error: %v", err)
	}
	tests := []struct {
		id         AssetID
		wantMid    string
		wantSource string
	}{
		{XAU, "4000", "p"},
		{XAG, "40", "p"},
		{USD, "38.5", "fx"},
	}
	for _, tt := range tests {
		if got := mid(t, got, tt.id); got != tt.wantMid {
			t.Errorf("Quotes()[%s] = %s, want %s", tt.id, got, tt.wantMid)
		}
		if got := got.Sources[tt.id]; got != tt.wantSource {
			t.Errorf("Quotes() source of %s = %q, want %q", tt.id, got, tt.wantSource)
		}
	}
	if n := fallback.calls.Load(); n != 0 {
		t.Errorf("fallback called %d times, want 0 when primary covers everything", n)
	}
}

func TestRouterFallbackAskedForMissingOnly(t *testing.T) {
	primary := &fakeSource{name: "p", prices: map[AssetID]string{XAU: "4000"}}
	fallback := &fakeSource{name: "f", prices: map[AssetID]string{XAU: "9999", XAG: "41"}}
	r := quietRouter(RouterConfig{Metals: Chain{primary, fallback}})

	got, err := r.Quotes(context.Background(), []AssetID{XAU, XAG}, nil)
	if err != nil {
		t.Fatalf("Quotes() unexpected error: %v", err)
	}
	if len(fallback.asked) != 1 || len(fallback.asked[0]) != 1 || fallback.asked[0][0] != XAG {
		t.Errorf("fallback asked %v, want [[XAG_G]]", fallback.asked)
	}
	if m := mid(t, got, XAU); m != "4000" {
		t.Errorf("XAU_G = %s, want the primary's 4000", m)
	}
	if got.Sources[XAG] != "f" {
		t.Errorf("XAG_G source = %q, want f", got.Sources[XAG])
	}
}

func TestRouterSwallowsFailures(t *testing.T) {
	fxDown := &fakeSource{name: "down", err: errors.New("connection refused")}
	metalsDown := &fakeSource{name: "down", err: errors.New("connection refused")}
	up := &fakeSource{name: "up", prices: map[AssetID]string{EUR: "43"}}
	r := quietRouter(RouterConfig{FX: Chain{fxDown, up}, Metals: Chain{metalsDown}})

	got, err := r.Quotes(context.Background(), []AssetID{EUR, XAU}, nil)
	if err != nil {
		t.Fatalf("Quotes() unexpected error: %v", err)
	}
	if m := mid(t, got, EUR); m != "43" {
		t.Errorf("EURTRY = %s, want 43", m)
	}
	if got.Has(XAU) {
		t.Errorf("XAU_G present, want missing when every metals source is down")
	}
}

func TestRouterIgnoresNonPositive(t *testing.T) {
	bad := &fakeSource{name: "bad", prices: map[AssetID]string{USD: "0"}}
	good := &fakeSource{name: "good", prices: map[AssetID]string{USD: "38"}}
	r := quietRouter(RouterConfig{FX: Chain{bad, good}})

	got, _ := r.Quotes(context.Background(), []AssetID{USD}, nil)
	if got.Sources[USD] != "good" {
		t.Errorf("USDTRY source = %q, want good", got.Sources[USD])
	}
}

func TestRouterTimeout(t *testing.T) {
	slow := &fakeSource{name: "slow", prices: map[AssetID]string{USD: "38"}, delay: time.Second}
	fast := &fakeSource{name: "fast", prices: map[AssetID]string{USD: "39"}}
	r := quietRouter(RouterConfig{FX: Chain{slow, fast}, Timeout: 20 * time.Millisecond})

	got, err := r.Quotes(context.Background(), []AssetID{USD}, nil)
	if err != nil {
		t.Fatalf("Quotes() unexpected error: %v", err)
	}
	if got.Sources[USD] != "fast" {
		t.Errorf("USDTRY source = %q, want fast after the slow source timed out", got.Sources[USD])
	}
}

func TestRouterCopper(t *testing.T) {
	fx := &fakeSource{name: "fx", prices: map[AssetID]string{USD: "40"}}
	copper := &fakeCopper{fakeSource: fakeSource{name: "cu"}, usdPerPound: "4.5359237"}

	t.Run("derived from usdtry", func(t *testing.T) {
		r := quietRouter(RouterConfig{FX: Chain{fx}, Copper: copper})
		got, err := r.Quotes(context.Background(), []AssetID{USD, XCU}, nil)
		if err != nil {
			t.Fatalf("Quotes() unexpected error: %v", err)
		}
		// 4.5359237 USD/lb is 0.01 USD/g, at 40 TRY per USD
		if m := mid(t, got, XCU); m != "0.4" {
			t.Errorf("XCU_G = %s, want 0.4", m)
		}
		if got.Sources[XCU] != "cu" {
			t.Errorf("XCU_G source = %q, want cu", got.Sources[XCU])
		}
	})

	t.Run("omitted without usdtry", func(t *testing.T) {
		down := &fakeSource{name: "down", err: errors.New("timeout")}
		r := quietRouter(RouterConfig{FX: Chain{down}, Copper: copper})
		got, err := r.Quotes(context.Background(), []AssetID{USD, XCU}, nil)
		if err != nil {
			t.Fatalf("Quotes() unexpected error: %v", err)
		}
		if got.Has(XCU) {
			t.Errorf("XCU_G present, want it omitted when USDTRY is missing")
		}
	})

	t.Run("usdtry not requested", func(t *testing.T) {
		r := quietRouter(RouterConfig{FX: Chain{fx}, Copper: copper})
		got, _ := r.Quotes(context.Background(), []AssetID{XCU}, nil)
		if got.Has(XCU) || got.Has(USD) {
			t.Errorf("Quotes(XCU_G) = %v, want empty batch", got.Quotes)
		}
	})

	t.Run("override fills copper", func(t *testing.T) {
		down := &fakeSource{name: "down", err: errors.New("timeout")}
		r := quietRouter(RouterConfig{FX: Chain{down}, Copper: copper})
		overrides := map[AssetID]decimal.Decimal{XCU: decimal.RequireFromString("0.45")}
		got, _ := r.Quotes(context.Background(), []AssetID{USD, XCU}, overrides)
		if m := mid(t, got, XCU); m != "0.45" {
			t.Errorf("XCU_G = %s, want the override 0.45", m)
		}
		if got.Sources[XCU] != ManualSource {
			t.Errorf("XCU_G source = %q, want %q", got.Sources[XCU], ManualSource)
		}
	})
}

func TestRouterOverrides(t *testing.T) {
	fx := &fakeSource{name: "fx", prices: map[AssetID]string{USD: "38"}}
	r := quietRouter(RouterConfig{FX: Chain{fx}})
	overrides := map[AssetID]decimal.Decimal{
		USD: decimal.RequireFromString("50"), // fetched, ignored
		EUR: decimal.RequireFromString("44"), // missing, used
		XAU: decimal.RequireFromString("-1"), // invalid, ignored
		XAG: decimal.RequireFromString("45"), // not requested, ignored
	}
	got, err := r.Quotes(context.Background(), []AssetID{USD, EUR, XAU}, overrides)
	if err != nil {
		t.Fatalf("Quotes() unexpected error: %v", err)
	}
	if m := mid(t, got, USD); m != "38" {
		t.Errorf("USDTRY = %s, want the fetched 38", m)
	}
	if m := mid(t, got, EUR); m != "44" || got.Sources[EUR] != ManualSource {
		t.Errorf("EURTRY = %s from %q, want 44 from manual", m, got.Sources[EUR])
	}
	if got.Has(XAU) || got.Has(XAG) {
		t.Errorf("Quotes() = %v, want no XAU_G nor XAG_G", got.Quotes)
	}
}

func TestRouterInvalidRequest(t *testing.T) {
	r := quietRouter(RouterConfig{})
	if _, err := r.Quotes(context.Background(), nil, nil); !errors.Is(err, ErrNoAssets) {
		t.Errorf("Quotes(nil) error = %v, want ErrNoAssets", err)
	}
	var uerr *UnknownAssetError
	if _, err := r.Quotes(context.Background(), []AssetID{"BTC"}, nil); !errors.As(err, &uerr) {
		t.Errorf("Quotes(BTC) error = %v, want *UnknownAssetError", err)
	}
}

func TestChainAttemptError(t *testing.T) {
	down := &fakeSource{name: "down", err: errors.New("boom")}
	batch, err := Chain{down, nil}.Attempt(context.Background(), []AssetID{USD}, 0)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Attempt() error = %v, want ErrSourceUnavailable", err)
	}
	if batch.Len() != 0 {
		t.Errorf("Attempt() batch = %v, want empty", batch.Quotes)
	}
}
