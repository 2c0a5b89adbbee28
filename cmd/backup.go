package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/etnz/kasa/store"
	"github.com/google/subcommands"
)

type backupCmd struct {
	dir string
}

func (*backupCmd) Name() string     { return "backup" }
func (*backupCmd) Synopsis() string { return "copy the database to the backup directory" }
func (*backupCmd) Usage() string {
	return `kasa backup [-dir <directory>]

  Writes today's copy of the database, portfolio_YYYYMMDD.sqlite, unless it
  already exists. The service does the same after each successful cycle.
`
}

func (c *backupCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dir, "dir", "", "backup directory, the backup_dir setting if empty")
}

func (c *backupCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	st, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	dir := c.dir
	if dir == "" {
		if dir, err = st.Setting(ctx, store.KeyBackupDir); err != nil || dir == "" {
			fmt.Fprintln(os.Stderr, "Error: no backup directory, use -dir or set backup_dir")
			return subcommands.ExitUsageError
		}
	}
	dst, written, err := st.Backup(ctx, dir, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if !written {
		fmt.Fprintf(stdout, "%s already exists\n", dst)
		return subcommands.ExitSuccess
	}
	fmt.Fprintf(stdout, "Database copied to %s\n", dst)
	return subcommands.ExitSuccess
}
