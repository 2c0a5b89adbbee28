package cmd

import (
	"flag"
	"maps"
	"slices"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// flagPredictors complete flag values by flag name. Other flags take any
// value.
var flagPredictors = map[string]complete.Predictor{
	"a":      predict.Set(assetIDs()),
	"db":     predict.Files("*.sqlite"),
	"ledger": predict.Files("*.jsonl"),
	"lock":   predict.Files("*"),
	"dir":    predict.Dirs("*"),
}

// Completion returns the shell completion of every command registered in c.
func Completion(c *subcommands.Commander) *complete.Command {
	root := &complete.Command{
		Sub:   map[string]*complete.Command{},
		Flags: map[string]complete.Predictor{},
	}
	c.VisitAll(func(f *flag.Flag) { root.Flags[f.Name] = predictor(f) })
	c.VisitCommands(func(_ *subcommands.CommandGroup, cmd subcommands.Command) {
		fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
		cmd.SetFlags(fs)
		sub := &complete.Command{Flags: map[string]complete.Predictor{}}
		fs.VisitAll(func(f *flag.Flag) { sub.Flags[f.Name] = predictor(f) })
		if cmd.Name() == "settings" {
			sub.Args = predict.Set(settingKeys())
		}
		root.Sub[cmd.Name()] = sub
	})
	return root
}

func predictor(f *flag.Flag) complete.Predictor {
	if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
		return predict.Nothing
	}
	if p, ok := flagPredictors[f.Name]; ok {
		return p
	}
	return predict.Something
}

// settingKeys are the keys the settings command can change, sorted.
func settingKeys() []string {
	return slices.Sorted(maps.Keys(validators))
}
