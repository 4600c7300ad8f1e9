package main

import (
	"github.com/spf13/cobra"

	"github.com/chazu/bcverify/diag"
	"github.com/chazu/bcverify/server"
)

func newServeCommand(g *globalFlags) *cobra.Command {
	var (
		addr    string
		logDiag bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve verification requests over Connect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Address
			}
			var opts []server.ServerOption
			if logDiag {
				opts = append(opts, server.WithSink(diag.NewLogSink("bcverify.diag")))
			}
			return server.New(cfg, opts...).ListenAndServe(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&logDiag, "log-messages", false, "also log every diagnostic")
	return cmd
}
