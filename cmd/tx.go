package cmd

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/etnz/kasa"
	"github.com/etnz/kasa/renderer"
	"github.com/google/subcommands"
)

type txCmd struct {
	asset string
	head  int
	tail  int
	csv   bool
}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "list the transactions of the ledger" }
func (*txCmd) Usage() string {
	return `kasa tx [-a <asset>] [-head <n>] [-tail <n>] [-csv]

  Lists transactions from the ledger in time order, with options for
  filtering and limiting the output.
`
}

func (p *txCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.asset, "a", "", "Show only the transactions of this asset.")
	f.IntVar(&p.head, "head", 0, "Show only the first N transactions.")
	f.IntVar(&p.tail, "tail", 0, "Show only the last N transactions.")
	f.BoolVar(&p.csv, "csv", false, "Export as CSV instead of a report.")
}

func (p *txCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.head > 0 && p.tail > 0 {
		fmt.Fprintln(os.Stderr, "Error: -head and -tail flags cannot be used together.")
		return subcommands.ExitUsageError
	}
	var filter kasa.AssetID
	if p.asset != "" {
		id, err := kasa.ParseAsset(p.asset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		filter = id
	}

	ledger, err := loadLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	var transactions []kasa.Transaction
	for _, tx := range kasa.SortTransactions(ledger) {
		if filter == "" || tx.Asset == filter {
			transactions = append(transactions, tx)
		}
	}
	if p.head > 0 && len(transactions) > p.head {
		transactions = transactions[:p.head]
	}
	if p.tail > 0 && len(transactions) > p.tail {
		transactions = transactions[len(transactions)-p.tail:]
	}

	if p.csv {
		if err := writeCSV(stdout, transactions); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(renderer.Transactions(transactions))
	return subcommands.ExitSuccess
}

// writeCSV exports txs with full precision amounts.
func writeCSV(w io.Writer, txs []kasa.Transaction) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "ts", "asset", "side", "qty", "unit_price", "fee", "note"})
	for _, tx := range txs {
		cw.Write([]string{
			tx.ID,
			tx.Time.Format(time.RFC3339),
			string(tx.Asset),
			string(tx.Side),
			tx.Quantity.String(),
			tx.UnitPrice.Decimal().String(),
			tx.Fee.Decimal().String(),
			tx.Note,
		})
	}
	cw.Flush()
	return cw.Error()
}
