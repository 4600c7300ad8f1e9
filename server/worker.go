package server

import (
	"fmt"

	"github.com/chazu/bcverify/absint"
	"github.com/chazu/bcverify/classpath"
	"github.com/chazu/bcverify/diag"
	"github.com/chazu/bcverify/wire"
)

// job is one method to verify; the verdict is written to the batch's
// report slot at index.
type job struct {
	index  int
	method *classpath.Method
}

// worker owns a Verifier, and with it a TypeSystem and a RuntimeGuard, for
// the lifetime of one batch. Workers never share verifier state.
type worker struct {
	id       int
	verifier *absint.Verifier
	messages *diag.Collector
}

func newWorker(id int, b *Batch, resolver *classpath.Resolver) *worker {
	w := &worker{id: id, messages: &diag.Collector{}}
	sink := diag.Sink(w.messages)
	if b.Sink != nil {
		sink = diag.Tee{w.messages, b.Sink}
	}
	w.verifier = absint.NewVerifier(b.Plugin, resolver, sink, b.Options)
	return w
}

// execute verifies one method, recovering from panics.
func (w *worker) execute(j job) (report wire.MethodReport) {
	w.messages.Reset()
	defer func() {
		if r := recover(); r != nil {
			report = wire.MethodReport{
				Method: j.method.FullName(),
				Status: diag.Error,
				Errors: 1,
				Err:    fmt.Sprintf("verifier panic: %v", r),
			}
		}
		// Compound types must not leak from one method into the next.
		w.verifier.Reset()
	}()
	res := w.verifier.Verify(j.method)
	return wire.MethodReportFrom(res, w.messages.Messages())
}
