package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/etnz/kasa"
	"github.com/etnz/kasa/renderer"
	"github.com/etnz/kasa/sources"
	"github.com/etnz/kasa/store"
	"github.com/google/subcommands"
)

// validators check the value of every key the operator can set.
var validators = map[string]func(string) error{
	store.KeyUpdateInterval: func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("want a positive number of minutes, got %q", v)
		}
		return nil
	},
	store.KeyPnLAlertThreshold: func(v string) error {
		_, err := kasa.ParseDecimal(v)
		return err
	},
	store.KeyCostMethod: func(v string) error {
		if v != "WAVG" {
			return fmt.Errorf("only WAVG is supported, got %q", v)
		}
		return nil
	},
	store.KeyFXPrimary:      sourceValidator(kasa.ClassFX),
	store.KeyFXFallback:     sourceValidator(kasa.ClassFX),
	store.KeyMetalsPrimary:  sourceValidator(kasa.ClassPrecious),
	store.KeyMetalsFallback: sourceValidator(kasa.ClassPrecious),
	store.KeyCopperProvider: sourceValidator(kasa.ClassBase),
	store.KeyBackupDir:      func(string) error { return nil },
}

func sourceValidator(class kasa.Class) func(string) error {
	return func(v string) error { return sources.Check(class, v) }
}

type settingsCmd struct{}

func (*settingsCmd) Name() string     { return "settings" }
func (*settingsCmd) Synopsis() string { return "display or change the settings" }
func (*settingsCmd) Usage() string {
	return `kasa settings [<key> [<value>]]

  Without arguments, lists every setting. With a key, prints its value. With
  a key and a value, changes it. Source changes apply from the next fetch
  cycle, an interval change needs a service restart.
`
}

func (*settingsCmd) SetFlags(f *flag.FlagSet) {}

func (*settingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	st, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	switch f.NArg() {
	case 0:
		settings, err := st.Settings(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading settings: %v\n", err)
			return subcommands.ExitFailure
		}
		printMarkdown(renderer.Settings(settings))
	case 1:
		v, err := st.Setting(ctx, f.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: setting %q: %v\n", f.Arg(0), err)
			return subcommands.ExitFailure
		}
		fmt.Fprintln(stdout, v)
	case 2:
		key, value := f.Arg(0), f.Arg(1)
		validate, ok := validators[key]
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: %q is not a setting that can be changed\n", key)
			return subcommands.ExitUsageError
		}
		if err := validate(value); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid %s: %v\n", key, err)
			return subcommands.ExitUsageError
		}
		if err := st.SetSetting(ctx, key, value); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(stdout, "%s = %s\n", key, value)
	}
	return subcommands.ExitSuccess
}
