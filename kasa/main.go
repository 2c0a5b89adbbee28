// Command kasa tracks a gold, silver, copper and currency portfolio valued
// in Turkish lira.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path"

	"github.com/etnz/kasa/cmd"
	"github.com/google/subcommands"
)

func main() {
	if err := cmd.LoadEnv(); err != nil {
		log.Printf("cannot load .env: %v", err)
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	// exits when invoked by the shell to complete a command line.
	cmd.Completion(commander).Complete("kasa")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
