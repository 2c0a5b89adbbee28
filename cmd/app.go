// Package cmd implements the CLI application to track the portfolio.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/kasa"
	"github.com/etnz/kasa/service"
	"github.com/etnz/kasa/sources"
	"github.com/etnz/kasa/store"
	"github.com/google/subcommands"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Environment variables read when the matching flag is not set.
const (
	EnvDB                 = "KASA_DB"
	EnvLedger             = "KASA_LEDGER"
	EnvMetalsDevAPIKey    = "METALS_DEV_API_KEY"
	EnvExchangeRateAPIKey = "EXCHANGERATE_API_KEY"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&quoteCmd{}, "prices")
	c.Register(&priceCmd{}, "prices")
	c.Register(&historyCmd{}, "prices")

	c.Register(&holdingCmd{}, "portfolio")
	c.Register(&buyCmd{}, "portfolio")
	c.Register(&sellCmd{}, "portfolio")
	c.Register(&txCmd{}, "portfolio")

	c.Register(&serviceCmd{}, "service")
	c.Register(&settingsCmd{}, "service")
	c.Register(&backupCmd{}, "service")

	c.Register(&topicCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var dbFile = flag.String("db", "", "Path to the SQLite database. Defaults to $"+EnvDB+" or kasa.sqlite")
var ledgerFile = flag.String("ledger", "", "Path to the ledger file (JSONL format). Defaults to $"+EnvLedger+" or transactions.jsonl")
var raw = flag.Bool("raw", false, "print markdown as is, without terminal rendering")

// Verbose enables the log output of the sources.
var Verbose = flag.Bool("v", false, "log upstream requests and fallbacks")

// stdout receives the reports.
var stdout io.Writer = os.Stdout

// LoadEnv loads a .env file from the working directory, if any. Variables
// already set in the environment win.
func LoadEnv() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func env(flagValue, key, def string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func dbPath() string     { return env(*dbFile, EnvDB, "kasa.sqlite") }
func ledgerPath() string { return env(*ledgerFile, EnvLedger, "transactions.jsonl") }

// logger returns the logger of the sources, silent unless verbose.
func logger() *log.Logger {
	if *Verbose {
		return log.Default()
	}
	return log.New(io.Discard, "", 0)
}

// sourceOptions returns the options shared by all sources, api keys from the
// environment.
func sourceOptions() sources.Options {
	return sources.Options{
		Client:             kasa.NewHTTPClient(kasa.HTTPOptions{Logger: logger(), CacheTTL: 30 * time.Second}),
		MetalsDevAPIKey:    os.Getenv(EnvMetalsDevAPIKey),
		ExchangeRateAPIKey: os.Getenv(EnvExchangeRateAPIKey),
	}
}

// openStore opens the application database.
func openStore() (*store.Store, error) {
	st, err := store.Open(dbPath())
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	return st, nil
}

// loadLedger reads the application ledger.
func loadLedger() ([]kasa.Transaction, error) {
	return kasa.LoadLedger(ledgerPath())
}

// newService returns a service on st using the application ledger.
func newService(st *store.Store) *service.Service {
	return service.New(service.Config{
		Store:   st,
		Sources: sourceOptions(),
		Ledger:  ledgerPath(),
		Logger:  logger(),
	})
}

// storedQuotes returns the last known price of every asset. Placeholder rows
// are left out.
func storedQuotes(ctx context.Context, st *store.Store) (map[kasa.AssetID]store.Price, kasa.QuoteBatch, error) {
	prices, err := st.LatestPrices(ctx)
	if err != nil {
		return nil, kasa.QuoteBatch{}, err
	}
	batch := kasa.NewQuoteBatch()
	for id, p := range prices {
		if p.Mid.IsPositive() {
			batch.Set(id, p.Quote(), p.Source)
		}
	}
	return prices, batch, nil
}

// alertThreshold reads the PnL alert setting. An invalid value disables the
// alert.
func alertThreshold(ctx context.Context, st *store.Store) *decimal.Decimal {
	thr, err := st.DecimalSetting(ctx, store.KeyPnLAlertThreshold, decimal.NewFromInt(-5000))
	if err != nil {
		log.Printf("ignoring %s: %v", store.KeyPnLAlertThreshold, err)
		return nil
	}
	return &thr
}

// printMarkdown renders md for the terminal.
func printMarkdown(md string) {
	if *raw {
		fmt.Fprint(stdout, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}
