package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/etnz/kasa"
	"github.com/etnz/kasa/renderer"
	"github.com/google/subcommands"
)

type priceCmd struct {
	asset  string
	set    string
	delete bool
}

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "set or clear the manual price of an asset" }
func (*priceCmd) Usage() string {
	return `kasa price [-a <asset> (-set <price> | -delete)]

  Manual prices take precedence over every source until they are deleted.
  Without flags, lists the manual prices.
`
}

func (c *priceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asset, "a", "", "Asset to price")
	f.StringVar(&c.set, "set", "", "Unit price in TRY")
	f.BoolVar(&c.delete, "delete", false, "remove the manual price of the asset")
}

func (c *priceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if (c.set != "" && c.delete) || (c.asset == "") != (c.set == "" && !c.delete) {
		f.Usage()
		return subcommands.ExitUsageError
	}

	st, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	if c.asset != "" {
		id, err := kasa.ParseAsset(c.asset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		if c.delete {
			err = st.DeleteManualPrice(ctx, id)
		} else {
			v, perr := kasa.ParseDecimal(c.set)
			if perr != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid price %q: %v\n", c.set, perr)
				return subcommands.ExitUsageError
			}
			err = st.SetManualPrice(ctx, id, v, time.Now())
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	prices, err := st.ManualPrices(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manual prices: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.ManualPrices(prices))
	return subcommands.ExitSuccess
}
