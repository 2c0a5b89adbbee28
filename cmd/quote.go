package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/kasa/renderer"
	"github.com/google/subcommands"
)

type quoteCmd struct {
	live   bool
	update bool
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "display the current price of every asset" }
func (*quoteCmd) Usage() string {
	return `kasa quote [-live | -u]

  Displays the last known price of every asset, as recorded by the service.
  With -live the sources are asked directly and nothing is recorded. With -u
  a fetch cycle is run and recorded first.
`
}

func (c *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.live, "live", false, "ask the sources now, without recording the prices")
	f.BoolVar(&c.update, "u", false, "run a fetch cycle and record it before displaying")
}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.live && c.update {
		fmt.Fprintln(os.Stderr, "Error: -live and -u flags cannot be used together.")
		return subcommands.ExitUsageError
	}
	st, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	if c.live {
		batch, err := newService(st).Fetch(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching prices: %v\n", err)
			return subcommands.ExitFailure
		}
		printMarkdown(renderer.Quotes(renderer.LinesFromBatch(batch)))
		return subcommands.ExitSuccess
	}

	if c.update {
		if err := newService(st).Cycle(ctx); err != nil {
			// stale prices were recorded, they are still worth displaying.
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	prices, _, err := storedQuotes(ctx, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading prices: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.Quotes(renderer.LinesFromPrices(prices)))
	return subcommands.ExitSuccess
}
