package kasa

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds every single source call.
const DefaultTimeout = 10 * time.Second

// gramsPerPound is the exact avoirdupois pound.
var gramsPerPound = decimal.RequireFromString("453.59237")

// RouterConfig lists the sources used by a Router.
type RouterConfig struct {
	FX      Chain           // sources for USDTRY and EURTRY, primary first
	Metals  Chain           // sources for gram gold and silver, primary first
	Copper  BaseMetalSource // optional, copper is derived through USDTRY
	Timeout time.Duration   // per source call, DefaultTimeout if zero
	Logger  *log.Logger     // log.Default() if nil
}

// Router merges quotes from several sources per asset class. It never fails
// because of a source: failures are logged and the asset is left out of the
// batch.
type Router struct {
	fx, metals Chain
	copper     BaseMetalSource
	timeout    time.Duration
	logger     *log.Logger
}

// NewRouter creates a Router from cfg.
func NewRouter(cfg RouterConfig) *Router {
	r := &Router{
		fx:      cfg.FX,
		metals:  cfg.Metals,
		copper:  cfg.Copper,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	return r
}

// Quotes returns the quotes for ids. Overrides are operator supplied prices
// used only for ids no source could price.
//
// The batch may miss some of ids: this is the normal outcome when sources
// are down. The only errors are ErrNoAssets and *UnknownAssetError.
func (r *Router) Quotes(ctx context.Context, ids []AssetID, overrides map[AssetID]decimal.Decimal) (QuoteBatch, error) {
	if len(ids) == 0 {
		return QuoteBatch{}, ErrNoAssets
	}
	for _, id := range ids {
		if !id.Valid() {
			return QuoteBatch{}, &UnknownAssetError{ID: string(id)}
		}
	}
	parts := partition(ids)

	// fx and metals are independent, copper needs fx.
	var fx, metals QuoteBatch
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		fx = r.attempt(ctx, ClassFX, r.fx, parts[ClassFX])
	}()
	go func() {
		defer wg.Done()
		metals = r.attempt(ctx, ClassPrecious, r.metals, parts[ClassPrecious])
	}()
	wg.Wait()

	batch := NewQuoteBatch()
	for _, b := range []QuoteBatch{fx, metals} {
		for id, q := range b.Quotes {
			batch.Set(id, q, b.Sources[id])
		}
	}

	if len(parts[ClassBase]) > 0 {
		r.deriveCopper(ctx, batch)
	}

	for _, id := range batch.Missing(ids) {
		v, ok := overrides[id]
		if !ok {
			continue
		}
		if !v.IsPositive() {
			r.logger.Printf("ignoring non positive manual price %s for %s", v, id)
			continue
		}
		batch.Set(id, NewQuote(v), ManualSource)
	}

	if missing := batch.Missing(ids); len(missing) > 0 {
		r.logger.Printf("no price this round for %v", missing)
	}
	return batch, nil
}

func (r *Router) attempt(ctx context.Context, class Class, chain Chain, ids []AssetID) QuoteBatch {
	if len(ids) == 0 {
		return NewQuoteBatch()
	}
	batch, err := chain.Attempt(ctx, ids, r.timeout)
	if err != nil {
		r.logger.Printf("%s sources: %v", class, err)
	}
	return batch
}

// deriveCopper converts the copper reference price (USD/lb) into TRY per
// gram using the USDTRY rate fetched in this same round. Without that rate
// copper is left out.
func (r *Router) deriveCopper(ctx context.Context, batch QuoteBatch) {
	if r.copper == nil {
		return
	}
	usdtry, ok := batch.Mid(USD)
	if !ok {
		derivationsMissed.Inc()
		r.logger.Printf("%s: cannot derive price, %s missing this round", XCU, USD)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	usdPerPound, err := r.copper.USDPerPound(ctx)
	sourceLatency.WithLabelValues(r.copper.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		sourceFailures.WithLabelValues(r.copper.Name()).Inc()
		r.logger.Printf("%s: %v", r.copper.Name(), err)
		return
	}
	if !usdPerPound.IsPositive() {
		sourceFailures.WithLabelValues(r.copper.Name()).Inc()
		r.logger.Printf("%s: non positive price %s ignored", r.copper.Name(), usdPerPound)
		return
	}

	perGram := Div(usdPerPound, gramsPerPound).Mul(usdtry)
	batch.Set(XCU, NewQuote(perGram), r.copper.Name())
}
