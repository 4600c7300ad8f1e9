package classpath

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrResolverPanic wraps a panic raised while resolving a reference.
var ErrResolverPanic = errors.New("resolver panic")

// Status is a worker's relationship to the class runtime.
type Status int32

const (
	// StatusVerifying is the default: the worker runs pure analysis code.
	StatusVerifying Status = iota
	// StatusRuntime means the worker may call into class loading.
	StatusRuntime
)

func (s Status) String() string {
	if s == StatusRuntime {
		return "runtime"
	}
	return "verifying"
}

// RuntimeGuard toggles a worker's status around calls into the class
// runtime. Each worker owns one guard.
type RuntimeGuard struct {
	status atomic.Int32
	calls  atomic.Int64
}

// Status returns the current status.
func (g *RuntimeGuard) Status() Status {
	return Status(g.status.Load())
}

// Calls returns how many scoped calls have been made.
func (g *RuntimeGuard) Calls() int64 {
	return g.calls.Load()
}

// Do runs fn with the status raised to StatusRuntime and restores the
// previous status afterwards, also when fn panics. A panic is returned as an
// error wrapping ErrResolverPanic.
func (g *RuntimeGuard) Do(fn func() error) (err error) {
	prev := g.status.Swap(int32(StatusRuntime))
	g.calls.Add(1)
	defer func() {
		g.status.Store(prev)
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrResolverPanic, r)
		}
	}()
	return fn()
}
