package kasa

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrSourceUnavailable wraps every failure of a Source call: network,
	// status, malformed payload or timeout.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrDerivationRequired is returned by sources that cannot price in the
	// valuation currency on their own.
	ErrDerivationRequired = errors.New("price must be derived through the router")
	// ErrNoAssets is returned by the Router when asked for nothing.
	ErrNoAssets = errors.New("no assets requested")
)

// Source is an upstream quote provider. Fetch returns quotes for the subset
// of ids it knows, an empty map if it knows none of them, or an error if the
// upstream call failed. It never returns a partially parsed result.
type Source interface {
	Name() string
	Fetch(ctx context.Context, ids []AssetID) (map[AssetID]Quote, error)
}

// BaseMetalSource publishes a base metal price in a foreign reference unit:
// US dollars per pound.
type BaseMetalSource interface {
	Source
	USDPerPound(ctx context.Context) (decimal.Decimal, error)
}

// Unavailable wraps err as a source failure of the named source.
func Unavailable(name string, err error) error {
	return fmt.Errorf("%s: %w: %w", name, ErrSourceUnavailable, err)
}

// Supported returns the ids from want that are also in known, keeping
// want's order. Sources use it to filter requests.
func Supported(want []AssetID, known ...AssetID) []AssetID {
	var out []AssetID
	for _, id := range want {
		if slices.Contains(known, id) && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Chain is an ordered list of sources: the first is the primary, the next
// ones are fallbacks asked only for what is still missing.
type Chain []Source

// Attempt queries the chain for ids. Each source is called with the ids that
// are still missing, and results never overwrite a previous source's quote.
// Each call is bounded by timeout when it is positive. The returned error
// joins every source failure; it is informational, the batch is always
// usable.
func (c Chain) Attempt(ctx context.Context, ids []AssetID, timeout time.Duration) (QuoteBatch, error) {
	batch := NewQuoteBatch()
	var errs error
	for _, src := range c {
		if src == nil {
			continue
		}
		missing := batch.Missing(ids)
		if len(missing) == 0 {
			break
		}
		quotes, err := fetchOnce(ctx, src, missing, timeout)
		if err != nil {
			sourceFailures.WithLabelValues(src.Name()).Inc()
			errs = errors.Join(errs, err)
			continue
		}
		for _, id := range missing {
			q, ok := quotes[id]
			if !ok {
				continue
			}
			if !q.IsPositive() {
				errs = errors.Join(errs, fmt.Errorf("%s: non positive quote for %s ignored", src.Name(), id))
				continue
			}
			batch.Set(id, q, src.Name())
		}
	}
	return batch, errs
}

// fetchOnce calls src under its own deadline.
func fetchOnce(ctx context.Context, src Source, ids []AssetID, timeout time.Duration) (map[AssetID]Quote, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	quotes, err := src.Fetch(ctx, ids)
	sourceLatency.WithLabelValues(src.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, ErrSourceUnavailable) {
			return nil, err
		}
		return nil, Unavailable(src.Name(), err)
	}
	return quotes, nil
}
