// bcverify - bytecode verifier for register+accumulator programs
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/bcverify/config"
)

// errFailed is returned when verification ran but some method was rejected.
var errFailed = errors.New("verification failed")

type globalFlags struct {
	configDir string
	verbose   int
	logFile   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "bcverify",
		Short:         "Verify register+accumulator bytecode by abstract interpretation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configDir, "config", "", "directory holding bcverify.toml (default: search upwards from the working directory)")
	root.PersistentFlags().CountVarP(&g.verbose, "verbose", "v", "increase log verbosity (repeatable)")
	root.PersistentFlags().StringVar(&g.logFile, "log-file", "", "write logs to this file instead of stderr")

	root.AddCommand(newVerifyCommand(g), newDisasmCommand(g), newServeCommand(g))
	return root
}

// load reads the configuration and configures logging from it.
func (g *globalFlags) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configDir != "" {
		cfg, err = config.Load(g.configDir)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}

	verbosity := cfg.Log.Verbosity + g.verbose
	path := cfg.Log.File
	if g.logFile != "" {
		path = g.logFile
	}
	if path != "" {
		commonlog.Configure(verbosity, &path)
	} else {
		commonlog.Configure(verbosity, nil)
	}
	return cfg, nil
}
