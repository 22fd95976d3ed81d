package cmd

import (
	"flag"
	"io"

	"github.com/etnz/stockjournal/docs"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// args predicts the positional arguments of commands that take some.
var args = map[string]complete.Predictor{
	"import": predict.Files("*"),
	"sign":   predict.Files("*"),
	"export": predict.Set{"pdf", "html", "md", "csv"},
	"theme":  predict.Set{"light", "dark"},
	"topic": complete.PredictFunc(func(prefix string) []string {
		topics, _ := docs.GetAllTopics()
		return topics
	}),
}

// flagPredictors predicts the value of each flag in fs, bool flags take none.
func flagPredictors(fs *flag.FlagSet) map[string]complete.Predictor {
	flags := make(map[string]complete.Predictor)
	fs.VisitAll(func(f *flag.Flag) {
		if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			flags[f.Name] = predict.Nothing
			return
		}
		flags[f.Name] = predict.Something
	})
	return flags
}

// Completion describes the command line for shell completion.
func Completion() *complete.Command {
	root := &complete.Command{
		Sub:   make(map[string]*complete.Command),
		Flags: flagPredictors(flag.CommandLine),
	}
	for _, e := range Commands() {
		fs := flag.NewFlagSet(e.Command.Name(), flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		e.Command.SetFlags(fs)
		root.Sub[e.Command.Name()] = &complete.Command{
			Flags: flagPredictors(fs),
			Args:  args[e.Command.Name()],
		}
	}
	return root
}
