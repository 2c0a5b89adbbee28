package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etnz/kasa/service"
	"github.com/google/subcommands"
)

type serviceCmd struct {
	addr string
	lock string
	once bool
}

func (*serviceCmd) Name() string     { return "service" }
func (*serviceCmd) Synopsis() string { return "fetch and record prices periodically" }
func (*serviceCmd) Usage() string {
	return `kasa service [-addr <host:port>] [-lock <file>] [-once]

  Runs a fetch cycle every update_interval_min minutes until interrupted,
  recording one price per asset each time. Only one service can run at a
  time. With -addr, /healthz and /metrics are served on that address.
`
}

func (c *serviceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "listen address of the /healthz and /metrics endpoints, disabled if empty")
	f.StringVar(&c.lock, "lock", "service.lock", "lock file preventing two services from running")
	f.BoolVar(&c.once, "once", false, "run a single cycle and exit")
}

func (c *serviceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	st, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	// the service always logs, verbose or not.
	svc := service.New(service.Config{
		Store:    st,
		Sources:  sourceOptions(),
		Ledger:   ledgerPath(),
		LockFile: c.lock,
		Logger:   log.Default(),
	})

	if c.once {
		if err := svc.Cycle(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.addr != "" {
		srv := &http.Server{Addr: c.addr, Handler: service.Handler(st), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Printf("serving /healthz and /metrics on %s", c.addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server: %v", err)
			}
		}()
		defer func() {
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdown)
		}()
	}

	if err := svc.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
