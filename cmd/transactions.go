package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/etnz/kasa"
	"github.com/etnz/kasa/renderer"
	"github.com/etnz/kasa/store"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// timeLayouts are the accepted formats of the -t flag, in local time.
var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", time.DateOnly}

// parseTime parses s with the first matching layout. Empty is now.
func parseTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q, use YYYY-MM-DD [HH:MM[:SS]] or RFC3339", s)
}

// tradeFlags are the flags shared by buy and sell.
type tradeFlags struct {
	when     string
	asset    string
	quantity string
	price    string
	fee      string
	memo     string
}

func (c *tradeFlags) setFlags(f *flag.FlagSet) {
	f.StringVar(&c.when, "t", "", "Transaction time (YYYY-MM-DD [HH:MM]), now if empty")
	f.StringVar(&c.asset, "a", "", "Asset: "+strings.Join(assetIDs(), ", "))
	f.StringVar(&c.quantity, "q", "", "Quantity in the asset unit (grams or currency units)")
	f.StringVar(&c.price, "p", "", "Unit price in TRY, the last recorded price if empty")
	f.StringVar(&c.fee, "fee", "0", "Fee in TRY")
	f.StringVar(&c.memo, "m", "", "An optional rationale or note for the transaction")
}

func assetIDs() []string {
	var ids []string
	for _, id := range kasa.Assets() {
		ids = append(ids, string(id))
	}
	return ids
}

// transaction builds the transaction described by the flags. A missing
// price is looked up with lastPrice.
func (c *tradeFlags) transaction(side kasa.Side, now time.Time, lastPrice func(kasa.AssetID) (decimal.Decimal, error)) (kasa.Transaction, error) {
	on, err := parseTime(c.when, now)
	if err != nil {
		return kasa.Transaction{}, err
	}
	asset, err := kasa.ParseAsset(c.asset)
	if err != nil {
		return kasa.Transaction{}, err
	}
	qty, err := kasa.ParseQuantity(c.quantity)
	if err != nil {
		return kasa.Transaction{}, fmt.Errorf("invalid quantity %q: %w", c.quantity, err)
	}
	fee, err := kasa.ParseDecimal(c.fee)
	if err != nil {
		return kasa.Transaction{}, fmt.Errorf("invalid fee %q: %w", c.fee, err)
	}
	var price decimal.Decimal
	if c.price == "" {
		price, err = lastPrice(asset)
	} else {
		price, err = kasa.ParseDecimal(c.price)
	}
	if err != nil {
		return kasa.Transaction{}, fmt.Errorf("invalid price: %w", err)
	}

	if side == kasa.Sell {
		return kasa.NewSell(on, asset, qty, kasa.TRY(price), kasa.TRY(fee), c.memo), nil
	}
	return kasa.NewBuy(on, asset, qty, kasa.TRY(price), kasa.TRY(fee), c.memo), nil
}

// appendTrade appends the transaction described by c to the ledger.
func appendTrade(ctx context.Context, side kasa.Side, c *tradeFlags) subcommands.ExitStatus {
	lastPrice := func(id kasa.AssetID) (decimal.Decimal, error) {
		st, err := openStore()
		if err != nil {
			return decimal.Zero, err
		}
		defer st.Close()
		p, err := st.LatestPrice(ctx, id)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !p.Mid.IsPositive()) {
			return decimal.Zero, fmt.Errorf("no recorded price for %s, use -p or update prices first", id.Name())
		}
		if err != nil {
			return decimal.Zero, err
		}
		return p.Mid, nil
	}

	tx, err := c.transaction(side, time.Now(), lastPrice)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	filename := ledgerPath()
	if err := kasa.AppendLedger(filename, tx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "%s\nSuccessfully appended transaction %s to %s\n", renderer.Transaction(tx), tx.ID, filename)
	return subcommands.ExitSuccess
}

// --- Buy Command ---

type buyCmd struct{ tradeFlags }

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "record a purchase of an asset" }
func (*buyCmd) Usage() string {
	return `kasa buy -a <asset> -q <quantity> [-p <price>] [-fee <fee>] [-t <time>] [-m <memo>]

  Appends a purchase to the ledger. The average cost of the position
  includes the fee.
`
}

func (c *buyCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *buyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.asset == "" || c.quantity == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return appendTrade(ctx, kasa.Buy, &c.tradeFlags)
}

// --- Sell Command ---

type sellCmd struct{ tradeFlags }

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "record a sale of an asset" }
func (*sellCmd) Usage() string {
	return `kasa sell -a <asset> -q <quantity> [-p <price>] [-fee <fee>] [-t <time>] [-m <memo>]

  Appends a sale to the ledger. A sale larger than the position held at that
  time is refused.
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *sellCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.asset == "" || c.quantity == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return appendTrade(ctx, kasa.Sell, &c.tradeFlags)
}
