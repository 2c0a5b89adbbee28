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

type historyCmd struct {
	asset string
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display recorded prices or portfolio values" }
func (*historyCmd) Usage() string {
	return `kasa history [-a <asset>] [-n <limit>]

  Displays the portfolio value recorded after each fetch cycle, most recent
  first. With -a, displays the price history of that asset instead, stale
  rows included.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asset, "a", "", "Asset whose prices to display")
	f.IntVar(&c.limit, "n", 20, "Maximum number of rows")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.limit <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -n must be positive.")
		return subcommands.ExitUsageError
	}
	st, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	if c.asset == "" {
		snaps, err := st.Snapshots(ctx, c.limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading snapshots: %v\n", err)
			return subcommands.ExitFailure
		}
		printMarkdown(renderer.Snapshots(snaps))
		return subcommands.ExitSuccess
	}

	id, err := kasa.ParseAsset(c.asset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	prices, err := st.History(ctx, id, c.limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading prices: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.History(id, prices))
	return subcommands.ExitSuccess
}
