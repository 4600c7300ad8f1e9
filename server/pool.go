package server

import (
	"context"
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/bcverify/absint"
	"github.com/chazu/bcverify/classpath"
	"github.com/chazu/bcverify/diag"
	"github.com/chazu/bcverify/plugin"
	"github.com/chazu/bcverify/wire"
)

var log = commonlog.GetLogger("bcverify.server")

// Batch is a set of methods verified together against one registry.
type Batch struct {
	RunID    string
	Registry *classpath.Registry
	Methods  []*classpath.Method
	Plugin   plugin.Plugin
	Options  absint.Options
	// Sink receives every diagnostic in addition to the report. It must be
	// safe for concurrent use.
	Sink diag.Sink
	// BundleHash is copied into the report.
	BundleHash [32]byte
}

// Pool verifies batches on a fixed number of worker goroutines.
type Pool struct {
	workers int
}

// NewPool creates a pool. n < 1 uses GOMAXPROCS workers.
func NewPool(n int) *Pool {
	if n < 1 {
		n = runtime.GOMAXPROCS(0)
	}
	return &Pool{workers: n}
}

// Workers returns the number of worker goroutines per batch.
func (p *Pool) Workers() int { return p.workers }

// Verify runs every method of b and returns the report. Reports keep the
// order of b.Methods. Cancelling ctx stops the batch between methods.
func (p *Pool) Verify(ctx context.Context, b Batch) (*wire.Report, error) {
	if b.RunID == "" {
		b.RunID = uuid.NewString()
	}
	if b.Plugin == nil {
		b.Plugin = &plugin.Default{}
	}
	report := &wire.Report{
		RunID:      b.RunID,
		BundleHash: b.BundleHash,
		Started:    time.Now().UTC(),
		Methods:    make([]wire.MethodReport, len(b.Methods)),
	}

	resolver := classpath.NewResolver(b.Registry)
	jobs := make(chan job)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i, m := range b.Methods {
			select {
			case jobs <- job{index: i, method: m}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	n := min(p.workers, max(len(b.Methods), 1))
	for id := range n {
		w := newWorker(id, &b, resolver)
		g.Go(func() error {
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					return err
				}
				report.Methods[j.index] = w.execute(j)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warning("batch cancelled", "run", b.RunID, "error", err)
		return nil, err
	}

	for _, mr := range report.Methods {
		report.Status = diag.Max(report.Status, mr.Status)
	}
	report.Elapsed = time.Since(report.Started)
	log.Infof("run %s: %d methods on %d workers: %s in %s", b.RunID, len(b.Methods), n, report.Status, report.Elapsed)
	return report, nil
}

// SelectMethods returns the named methods of reg, or every method with a
// body when names is empty.
func SelectMethods(reg *classpath.Registry, names []string) ([]*classpath.Method, error) {
	if len(names) == 0 {
		return reg.Methods(), nil
	}
	out := make([]*classpath.Method, 0, len(names))
	for _, name := range slices.Compact(slices.Sorted(slices.Values(names))) {
		m, ok := reg.LookupMethod(name)
		if !ok {
			return nil, &UnknownMethodError{Name: name}
		}
		out = append(out, m)
	}
	return out, nil
}

// UnknownMethodError reports a requested method that is not loaded.
type UnknownMethodError struct {
	Name string
}

func (e *UnknownMethodError) Error() string {
	return "unknown method " + e.Name
}
