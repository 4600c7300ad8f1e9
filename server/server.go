// Package server runs verification batches on a worker pool and serves them
// over Connect with a CBOR codec.
package server

import (
	"fmt"
	"net/http"

	"github.com/chazu/bcverify/config"
	"github.com/chazu/bcverify/diag"
	"github.com/chazu/bcverify/plugin"
)

// VerifierServer serves the verifier service.
type VerifierServer struct {
	pool *Pool
	mux  *http.ServeMux
}

// ServerOption configures a VerifierServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	plugin plugin.Plugin
	sink   diag.Sink
}

// WithPlugin sets the language plugin. The default plugin is used
// otherwise.
func WithPlugin(p plugin.Plugin) ServerOption {
	return func(c *serverConfig) { c.plugin = p }
}

// WithSink sends every diagnostic to sink as well as to the reports.
func WithSink(sink diag.Sink) ServerOption {
	return func(c *serverConfig) { c.sink = sink }
}

// New creates a VerifierServer from a loaded configuration.
func New(cfg *config.Config, opts ...ServerOption) *VerifierServer {
	sc := &serverConfig{plugin: &plugin.Default{}}
	for _, opt := range opts {
		opt(sc)
	}

	s := &VerifierServer{
		pool: NewPool(cfg.Verifier.Workers),
		mux:  http.NewServeMux(),
	}
	svc := NewVerifierService(s.pool, sc.plugin, cfg.Server.BatchLimit, sc.sink)
	path, handler := NewVerifierServiceHandler(svc)
	s.mux.Handle(path, handler)
	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *VerifierServer) Handler() http.Handler { return s.mux }

// ListenAndServe starts the HTTP server on the given address.
func (s *VerifierServer) ListenAndServe(addr string) error {
	log.Noticef("verifier listening on %s with %d workers", addr, s.pool.Workers())
	fmt.Printf("bcverify server listening on %s\n", addr)
	fmt.Printf("  Connect (CBOR): http://%s%s\n", addr, VerifyProcedure)
	return http.ListenAndServe(addr, s.mux)
}
