package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/chazu/bcverify/classpath"
	"github.com/chazu/bcverify/config"
	"github.com/chazu/bcverify/diag"
	"github.com/chazu/bcverify/server"
	"github.com/chazu/bcverify/wire"
)

type verifyFlags struct {
	methods  []string
	workers  int
	messages []string
	remote   string
	format   string
	output   string
	quiet    bool

	allowWrongSubclassing bool
	handlerWarnings       bool
}

func newVerifyCommand(g *globalFlags) *cobra.Command {
	f := &verifyFlags{}
	cmd := &cobra.Command{
		Use:   "verify program.yaml...",
		Short: "Verify every method of the given programs",
		Example: `  bcverify verify prog.yaml
  bcverify verify prog.yaml -m Main.run -m Util.sum
  bcverify verify prog.yaml --message DeadCode=hidden --format cbor -o report.cbor
  bcverify verify prog.yaml --remote http://localhost:8787`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			return runVerify(cmd.Context(), cmd, cfg, f, args)
		},
	}
	fl := cmd.Flags()
	fl.StringArrayVarP(&f.methods, "method", "m", nil, "verify only this method (Class.name); repeatable")
	fl.IntVarP(&f.workers, "workers", "j", 0, "number of verification workers (default from config)")
	fl.StringArrayVar(&f.messages, "message", nil, "override a message severity, e.g. DeadCode=hidden; repeatable")
	fl.StringVar(&f.remote, "remote", "", "verify on a bcverify server at this URL")
	fl.StringVar(&f.format, "format", "text", "report format: text or cbor")
	fl.StringVarP(&f.output, "output", "o", "", "write the report to this file")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "print failing methods only")
	fl.BoolVar(&f.allowWrongSubclassing, "allow-wrong-subclassing", false, "downgrade overlapping reference argument mismatches to warnings")
	fl.BoolVar(&f.handlerWarnings, "handler-errors-as-warnings", false, "downgrade errors found in exception handler code to warnings")
	return cmd
}

// options merges command-line overrides into the configuration.
func (f *verifyFlags) options(cfg *config.Config) (wire.Options, error) {
	opts, err := cfg.Options()
	if err != nil {
		return wire.Options{}, err
	}
	opts.AllowWrongSubclassing = opts.AllowWrongSubclassing || f.allowWrongSubclassing
	opts.ExceptionHandlerErrorsAsWarnings = opts.ExceptionHandlerErrorsAsWarnings || f.handlerWarnings

	w := wire.OptionsFrom(opts)
	for _, m := range f.messages {
		kind, sev, ok := strings.Cut(m, "=")
		if !ok {
			return wire.Options{}, fmt.Errorf("--message %q: want Kind=severity", m)
		}
		if w.Messages == nil {
			w.Messages = make(map[string]string)
		}
		w.Messages[kind] = sev
	}
	// Validate the merged table once.
	if _, err := w.Verifier(); err != nil {
		return wire.Options{}, err
	}
	return w, nil
}

func runVerify(ctx context.Context, cmd *cobra.Command, cfg *config.Config, f *verifyFlags, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts, err := f.options(cfg)
	if err != nil {
		return err
	}

	var report *wire.Report
	if f.remote != "" {
		report, err = verifyRemote(ctx, f, opts, paths)
	} else {
		report, err = verifyLocal(ctx, cfg, f, opts, paths)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.output != "" {
		file, err := os.Create(f.output)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	if err := writeReport(out, report, f); err != nil {
		return err
	}
	if report.Status == diag.Error {
		return errFailed
	}
	return nil
}

func verifyLocal(ctx context.Context, cfg *config.Config, f *verifyFlags, opts wire.Options, paths []string) (*wire.Report, error) {
	reg := classpath.NewRegistry()
	for _, p := range paths {
		if _, err := reg.LoadFile(p); err != nil {
			return nil, err
		}
	}
	methods, err := server.SelectMethods(reg, f.methods)
	if err != nil {
		return nil, err
	}
	vopts, err := opts.Verifier()
	if err != nil {
		return nil, err
	}

	workers := cfg.Verifier.Workers
	if f.workers > 0 {
		workers = f.workers
	}
	return server.NewPool(workers).Verify(ctx, server.Batch{
		RunID:    uuid.NewString(),
		Registry: reg,
		Methods:  methods,
		Options:  vopts,
		Sink:     diag.NewLogSink("bcverify.diag"),
	})
}

func verifyRemote(ctx context.Context, f *verifyFlags, opts wire.Options, paths []string) (*wire.Report, error) {
	if len(paths) != 1 {
		return nil, fmt.Errorf("--remote verifies exactly one program file, got %d", len(paths))
	}
	program, err := os.ReadFile(paths[0])
	if err != nil {
		return nil, err
	}
	client := server.NewClient(nil, f.remote)
	return client.Verify(ctx, &wire.VerifyRequest{
		RunID:   uuid.NewString(),
		Bundle:  wire.NewBundle(program, f.methods...),
		Options: opts,
	})
}

func writeReport(w io.Writer, r *wire.Report, f *verifyFlags) error {
	switch f.format {
	case "text":
		p := &printer{w: w, color: isTerminal(w), quiet: f.quiet}
		p.report(r)
		return p.err
	case "cbor":
		data, err := wire.MarshalReport(r)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown report format %q", f.format)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
