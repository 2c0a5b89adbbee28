package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/kasa"
	"github.com/etnz/kasa/renderer"
	"github.com/google/subcommands"
)

// holdingCmd holds the flags for the 'holding' subcommand.
type holdingCmd struct {
	live bool
}

func (*holdingCmd) Name() string     { return "holding" }
func (*holdingCmd) Synopsis() string { return "display the positions valued at current prices" }
func (*holdingCmd) Usage() string {
	return `kasa holding [-live]

  Displays every position of the ledger with its average cost, market value,
  realized and unrealized PnL. Prices are the last recorded ones, or asked
  to the sources with -live.
`
}

func (c *holdingCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.live, "live", false, "value at prices asked to the sources now")
}

func (c *holdingCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ledger, err := loadLedger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading ledger: %v\n", err)
		return subcommands.ExitFailure
	}
	states, err := kasa.Replay(ledger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing inventory: %v\n", err)
		return subcommands.ExitFailure
	}

	st, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	var batch kasa.QuoteBatch
	if c.live {
		batch, err = newService(st).Fetch(ctx)
	} else {
		_, batch, err = storedQuotes(ctx, st)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading prices: %v\n", err)
		return subcommands.ExitFailure
	}

	v := kasa.Valuate(states, batch)
	printMarkdown(renderer.Valuation(v, renderer.ValuationOptions{AlertThreshold: alertThreshold(ctx, st)}))
	return subcommands.ExitSuccess
}
