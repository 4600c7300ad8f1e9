package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/bcverify/classpath"
	"github.com/chazu/bcverify/diag"
	"github.com/chazu/bcverify/plugin"
	"github.com/chazu/bcverify/wire"
)

// VerifyProcedure is the Connect procedure of the verifier service.
const VerifyProcedure = "/bcverify.v1.VerifierService/Verify"

// VerifierService implements the Verify RPC.
type VerifierService struct {
	pool       *Pool
	plugin     plugin.Plugin
	batchLimit int
	sink       diag.Sink
}

// NewVerifierService creates a VerifierService. batchLimit < 1 means no
// limit.
func NewVerifierService(pool *Pool, p plugin.Plugin, batchLimit int, sink diag.Sink) *VerifierService {
	if p == nil {
		p = &plugin.Default{}
	}
	return &VerifierService{pool: pool, plugin: p, batchLimit: batchLimit, sink: sink}
}

// Verify loads the bundled program and verifies the requested methods.
func (s *VerifierService) Verify(
	ctx context.Context,
	req *connect.Request[wire.VerifyRequest],
) (*connect.Response[wire.Report], error) {
	msg := req.Msg
	if len(msg.Bundle.Program) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("program is required"))
	}
	if err := msg.Bundle.Check(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	opts, err := msg.Options.Verifier()
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	reg := classpath.NewRegistry()
	if _, err := reg.LoadYAML(msg.Bundle.Program); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	methods, err := SelectMethods(reg, msg.Bundle.Methods)
	if err != nil {
		var unknown *UnknownMethodError
		if errors.As(err, &unknown) {
			return nil, connect.NewError(connect.CodeNotFound, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if s.batchLimit > 0 && len(methods) > s.batchLimit {
		return nil, connect.NewError(connect.CodeResourceExhausted,
			fmt.Errorf("%d methods exceed the batch limit of %d", len(methods), s.batchLimit))
	}

	report, err := s.pool.Verify(ctx, Batch{
		RunID:      msg.RunID,
		Registry:   reg,
		Methods:    methods,
		Plugin:     s.plugin,
		Options:    opts,
		Sink:       s.sink,
		BundleHash: msg.Bundle.Hash,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeCanceled, err)
	}
	return connect.NewResponse(report), nil
}

// NewVerifierServiceHandler returns the mount path and handler of svc.
func NewVerifierServiceHandler(svc *VerifierService, opts ...connect.HandlerOption) (string, *connect.Handler) {
	opts = append([]connect.HandlerOption{WithCBOR()}, opts...)
	return VerifyProcedure, connect.NewUnaryHandler(VerifyProcedure, svc.Verify, opts...)
}
