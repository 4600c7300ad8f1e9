package server

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/bcverify/config"
	"github.com/chazu/bcverify/diag"
	"github.com/chazu/bcverify/wire"
)

func bg() context.Context { return context.Background() }

func startServer(t *testing.T, mutate func(*config.Config)) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.Verifier.Workers = 2
	if mutate != nil {
		mutate(cfg)
	}
	ts := httptest.NewServer(New(cfg).Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.Client(), ts.URL)
}

func TestVerifyOverConnect(t *testing.T) {
	client := startServer(t, nil)
	req := &wire.VerifyRequest{
		RunID:  "run-42",
		Bundle: wire.NewBundle([]byte(batchProgram), "Calc.ok", "Calc.undefined"),
	}
	report, err := client.Verify(bg(), req)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.RunID != "run-42" || report.BundleHash != req.Bundle.Hash {
		t.Errorf("report header = %q %x", report.RunID, report.BundleHash[:4])
	}
	if report.Status != diag.Warning || len(report.Methods) != 2 {
		t.Fatalf("report = %+v", report)
	}
	undefined := report.Methods[1]
	if undefined.Method != "Calc.undefined" || len(undefined.Messages) == 0 || undefined.Messages[0].Kind != "UndefinedRegister" {
		t.Errorf("Calc.undefined report = %+v", undefined)
	}
}

func TestVerifyOptionsOverConnect(t *testing.T) {
	client := startServer(t, nil)
	req := &wire.VerifyRequest{
		Bundle:  wire.NewBundle([]byte(batchProgram), "Calc.undefined"),
		Options: wire.Options{Messages: map[string]string{"UndefinedRegister": "error"}},
	}
	report, err := client.Verify(bg(), req)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != diag.Error {
		t.Errorf("status = %s, want ERROR with the override", report.Status)
	}
}

func TestVerifyRejects(t *testing.T) {
	client := startServer(t, func(c *config.Config) { c.Server.BatchLimit = 2 })

	tampered := wire.NewBundle([]byte(batchProgram))
	tampered.Program = []byte("classes: []")

	tests := []struct {
		name string
		req  *wire.VerifyRequest
		code connect.Code
	}{
		{"empty program", &wire.VerifyRequest{}, connect.CodeInvalidArgument},
		{"hash mismatch", &wire.VerifyRequest{Bundle: tampered}, connect.CodeInvalidArgument},
		{"bad yaml", &wire.VerifyRequest{Bundle: wire.NewBundle([]byte("classes: [{name: A, super: Nope}]"))}, connect.CodeInvalidArgument},
		{"bad options", &wire.VerifyRequest{
			Bundle:  wire.NewBundle([]byte(batchProgram), "Calc.ok"),
			Options: wire.Options{Messages: map[string]string{"Nope": "error"}},
		}, connect.CodeInvalidArgument},
		{"unknown method", &wire.VerifyRequest{Bundle: wire.NewBundle([]byte(batchProgram), "Calc.gone")}, connect.CodeNotFound},
		{"over batch limit", &wire.VerifyRequest{Bundle: wire.NewBundle([]byte(batchProgram))}, connect.CodeResourceExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Verify(bg(), tt.req)
			var cerr *connect.Error
			if !errors.As(err, &cerr) {
				t.Fatalf("err = %v, want a connect error", err)
			}
			if cerr.Code() != tt.code {
				t.Errorf("code = %s, want %s (%v)", cerr.Code(), tt.code, err)
			}
		})
	}
}

func TestCodecName(t *testing.T) {
	if got := (cborCodec{}).Name(); got != "cbor" {
		t.Errorf("Name() = %q", got)
	}
}
