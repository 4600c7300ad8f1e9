package absint

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/bcverify/classpath"
	"github.com/chazu/bcverify/diag"
	"github.com/chazu/bcverify/pkg/bytecode"
	"github.com/chazu/bcverify/plugin"
	"github.com/chazu/bcverify/types"
)

var log = commonlog.GetLogger("bcverify.absint")

// ErrCacheMiss is set on a Result when a handler found no pre-resolved
// entry for an instruction that needs one.
var ErrCacheMiss = errors.New("resolution cache miss")

// Options tune how findings are weighed.
type Options struct {
	// AllowWrongSubclassing downgrades incompatible reference arguments to
	// warnings when the argument and the formal type may still overlap.
	AllowWrongSubclassing bool
	// ExceptionHandlerErrorsAsWarnings downgrades errors found while
	// analysing code entered through an exception handler.
	ExceptionHandlerErrorsAsWarnings bool
	// Severities overrides the default severity of message kinds.
	Severities diag.Severities
}

// Result is the verdict for one method.
type Result struct {
	Method   string
	Status   diag.Status
	Warnings int
	Errors   int
	// Err is set when the method was rejected structurally: malformed
	// control flow or a resolution cache miss.
	Err error
}

// ---------------------------------------------------------------------------
// Verifier
// ---------------------------------------------------------------------------

// Verifier checks methods loaded in one registry. It owns a TypeSystem and a
// RuntimeGuard and is therefore not safe for concurrent use; run one
// Verifier per worker.
type Verifier struct {
	ts       *types.TypeSystem
	plugin   plugin.Plugin
	resolver *classpath.Resolver
	guard    *classpath.RuntimeGuard
	sink     diag.Sink
	opts     Options

	throwable   *classpath.Class
	stringClass *classpath.Class
}

// NewVerifier creates a verifier. A nil sink discards diagnostics.
func NewVerifier(p plugin.Plugin, resolver *classpath.Resolver, sink diag.Sink, opts Options) *Verifier {
	if sink == nil {
		sink = diag.Discard
	}
	reg := resolver.Registry()
	v := &Verifier{
		ts:       types.NewTypeSystem(p),
		plugin:   p,
		resolver: resolver,
		guard:    &classpath.RuntimeGuard{},
		sink:     sink,
		opts:     opts,
	}
	v.throwable = p.ThrowableClass(reg)
	v.stringClass, _ = reg.Lookup(classpath.StringClassName)
	return v
}

// TypeSystem returns the verifier's type system.
func (v *Verifier) TypeSystem() *types.TypeSystem { return v.ts }

// Guard returns the guard toggled around resolution calls.
func (v *Verifier) Guard() *classpath.RuntimeGuard { return v.guard }

// Reset drops the compound types and caches built so far. Call it between
// verification tasks.
func (v *Verifier) Reset() { v.ts.Reset() }

// Verify checks m and returns its verdict.
func (v *Verifier) Verify(m *classpath.Method) Result {
	_, res := v.check(m)
	return res
}

func (v *Verifier) check(m *classpath.Method) (*VerificationContext, Result) {
	res := Result{Method: m.FullName()}
	if !m.HasBody() {
		return nil, res
	}

	cflow, err := BuildControlFlowInfo(m.Code, m.TryBlocks)
	if err != nil {
		var fe *FlowError
		if errors.As(err, &fe) {
			v.sink.Report(diag.Message{Method: res.Method, Offset: fe.Offset, Kind: fe.Kind, Severity: diag.SeverityError, Text: fe.Msg})
		}
		res.Status, res.Errors, res.Err = diag.Error, 1, err
		log.Infof("%s: %s: %s", res.Method, res.Status, err)
		return nil, res
	}

	vc := newVerificationContext(v, m, cflow, v.resolver.Cache(v.guard, m))
	vc.run()
	vc.result.Status = vc.status
	log.Infof("%s: %s", res.Method, vc.status)
	return vc, vc.result
}

// ---------------------------------------------------------------------------
// VerificationContext
// ---------------------------------------------------------------------------

// VerificationContext is the state of one method verification.
type VerificationContext struct {
	v      *Verifier
	ts     *types.TypeSystem
	method *classpath.Method
	sig    types.Signature
	cflow  *ControlFlowInfo
	exec   *ExecutionContext
	cache  *classpath.ResolvedCache

	status  diag.Status
	aborted bool
	entry   EntryKind
	visited []bool
	result  Result
}

func newVerificationContext(v *Verifier, m *classpath.Method, cflow *ControlFlowInfo, cache *classpath.ResolvedCache) *VerificationContext {
	vc := &VerificationContext{
		v:       v,
		ts:      v.ts,
		method:  m,
		cflow:   cflow,
		cache:   cache,
		visited: make([]bool, len(m.Code)),
		result:  Result{Method: m.FullName()},
	}
	vc.sig = vc.signature(m)
	return vc
}

// signature returns the normalized argument and return types of m, the
// receiver included.
func (vc *VerificationContext) signature(m *classpath.Method) types.Signature {
	return vc.ts.CachedSignature(m, func() types.Signature {
		args := m.ArgTypes()
		sig := types.Signature{Params: make([]types.Type, len(args))}
		for i, d := range args {
			sig.Params[i] = vc.ts.Normalize(d.Type())
		}
		sig.Return = vc.ts.Normalize(m.Return.Type())
		return sig
	})
}

// Status returns the worst status observed so far.
func (vc *VerificationContext) Status() diag.Status { return vc.status }

// Exec returns the fixpoint driver.
func (vc *VerificationContext) Exec() *ExecutionContext { return vc.exec }

// abort stops the method after a structural failure.
func (vc *VerificationContext) abort(err error) {
	vc.aborted = true
	if vc.result.Err == nil {
		vc.result.Err = err
	}
}

func (vc *VerificationContext) stopped() bool {
	return vc.aborted || vc.status == diag.Error
}

// severity is the configured severity of k after the option downgrades.
func (vc *VerificationContext) severity(k diag.Kind, wrongSubclass bool) diag.Severity {
	return vc.downgrade(vc.v.opts.Severities.Of(k), wrongSubclass)
}

// frameSeverity is the severity of a register access outside the method's
// register file. It is an error unless UndefinedRegister is configured
// explicitly.
func (vc *VerificationContext) frameSeverity() diag.Severity {
	sev, ok := vc.v.opts.Severities[diag.UndefinedRegister]
	if !ok {
		sev = diag.SeverityError
	}
	return vc.downgrade(sev, false)
}

func (vc *VerificationContext) downgrade(sev diag.Severity, wrongSubclass bool) diag.Severity {
	if sev != diag.SeverityError {
		return sev
	}
	if wrongSubclass && vc.v.opts.AllowWrongSubclassing {
		return diag.SeverityWarning
	}
	if vc.entry == EntryExceptionHandler && vc.v.opts.ExceptionHandlerErrorsAsWarnings {
		return diag.SeverityWarning
	}
	return sev
}

func (vc *VerificationContext) emit(offset int, k diag.Kind, sev diag.Severity, format string, args ...any) diag.Severity {
	vc.v.sink.Report(diag.Message{
		Method:   vc.result.Method,
		Offset:   offset,
		Kind:     k,
		Severity: sev,
		Text:     fmt.Sprintf(format, args...),
	})
	switch sev {
	case diag.SeverityError:
		vc.result.Errors++
	case diag.SeverityWarning:
		vc.result.Warnings++
	}
	vc.status = diag.Max(vc.status, sev.Status())
	return sev
}

func (vc *VerificationContext) report(offset int, k diag.Kind, format string, args ...any) diag.Severity {
	return vc.emit(offset, k, vc.severity(k, false), format, args...)
}

// ---------------------------------------------------------------------------
// Driver
// ---------------------------------------------------------------------------

func (vc *VerificationContext) run() {
	m := vc.method
	initial := NewRegisterContext(m.NumVregs + m.NumArgs())
	for i, t := range vc.sig.Params {
		// Arguments always fit: the loader bounds vregs plus args.
		_ = initial.Set(m.NumVregs+i, NewValue(t, ArgumentOrigin(i)))
	}
	vc.exec = NewExecutionContext(vc.ts, initial)

	vc.exec.SetCheckPoint(0)
	for _, addr := range vc.cflow.Instructions() {
		if vc.cflow.Flags(addr)&(FlagJumpTarget|FlagTryBoundary|FlagHandlerStart) != 0 {
			vc.exec.SetCheckPoint(addr)
		}
	}
	for _, tb := range m.TryBlocks {
		for _, addr := range vc.cflow.ExceptionSources(tb) {
			vc.exec.SetSyncPoint(addr)
		}
	}

	vc.exec.StoreCurrentRegContextForAddr(0)
	vc.exec.AddEntryPoint(0, EntryMethodBody)
	vc.drain()

	for changed := true; changed && !vc.stopped(); {
		changed = false
		for _, tb := range m.TryBlocks {
			if vc.enterHandlers(tb) {
				changed = true
			}
			if vc.stopped() {
				return
			}
		}
	}
	if !vc.stopped() {
		vc.reportDeadCode()
	}
}

// drain analyses queued entries until the worklist is empty.
func (vc *VerificationContext) drain() {
	for !vc.stopped() {
		ep, res := vc.exec.GetEntryPointForChecking()
		switch res {
		case AllDone:
			return
		case NoEntryWithContext:
			for _, left := range vc.exec.DropEntries() {
				vc.report(left.Addr, diag.DeadCode, "entry %04X is never reached with a context", left.Addr)
			}
			return
		}
		vc.entry = ep.Kind
		log.Debugf("%s: block %04X (%s)", vc.result.Method, ep.Addr, ep.Kind)
		vc.runBlock(ep.Addr)
	}
}

// runBlock interprets a straight-line block starting at addr.
func (vc *VerificationContext) runBlock(addr int) {
	code := vc.method.Code
	for {
		in, err := bytecode.Decode(code, addr)
		if err != nil {
			vc.report(addr, diag.InvalidOpcode, "%v", err)
			vc.aborted = true
			return
		}
		vc.visited[addr] = true
		vc.sync(addr)
		if !vc.step(in) || vc.stopped() {
			return
		}
		next := in.Next()
		if next >= len(code) {
			vc.report(in.Addr, diag.FallsOffEnd, "%s falls off the end of the method", in.Op)
			return
		}
		if vc.exec.IsBoundary(next) {
			vc.noteConflicts(next, vc.exec.ProcessJump(in.Addr, next, vc.entry))
			return
		}
		addr = next
	}
}

// sync joins the current context into the one kept for an exception source.
func (vc *VerificationContext) sync(addr int) {
	if vc.exec.IsCheckPoint(addr) && !vc.exec.IsBoundary(addr) {
		_, conflicted := vc.exec.StoreCurrentRegContextForAddr(addr)
		vc.noteConflicts(addr, conflicted)
	}
}

func (vc *VerificationContext) noteConflicts(addr int, regs []int) {
	for _, r := range regs {
		vc.report(addr, diag.RegisterConflict, "%s holds incompatible values at %04X and is dropped", regName(r), addr)
	}
}

// enterHandlers seeds the catch blocks of tb with the join of the contexts
// at every throwing instruction of the protected range. It reports whether
// any handler context changed.
func (vc *VerificationContext) enterHandlers(tb classpath.TryBlock) bool {
	var merged *RegisterContext
	for _, addr := range vc.cflow.ExceptionSources(tb) {
		rc, ok := vc.exec.SavedContext(addr)
		if !ok {
			continue
		}
		if merged == nil {
			merged = rc.Clone()
		} else {
			merged.UnionWith(vc.ts, rc)
		}
	}
	if merged == nil {
		for _, cb := range tb.Catches {
			vc.report(cb.HandlerPC, diag.UnreachableCatch, "try block [%04X, %04X) cannot throw", tb.Start, tb.End())
		}
		return false
	}
	merged.RemoveInconsistentRegs()

	changed := false
	for _, cb := range tb.Catches {
		exc := vc.catchType(cb)
		if vc.stopped() {
			return changed
		}
		ctx := merged.Clone()
		// The caught value aliases nothing in the protected range.
		_ = ctx.Set(Acc, AbstractTypedValue{Type: exc, Origin: NoOrigin})
		vc.exec.SetCurrent(ctx)
		vc.entry = EntryExceptionHandler
		if c, conflicted := vc.exec.StoreCurrentRegContextForAddr(cb.HandlerPC); c {
			vc.noteConflicts(cb.HandlerPC, conflicted)
			vc.exec.AddEntryPoint(cb.HandlerPC, EntryExceptionHandler)
			changed = true
		}
		vc.drain()
		if vc.stopped() {
			return changed
		}
	}
	return changed
}

// catchType returns the type of the exception a catch block receives. A
// catch type that cannot be used is reported and replaced by the
// language's Throwable so the handler body is still checked.
func (vc *VerificationContext) catchType(cb classpath.CatchBlock) types.Type {
	throwable := types.Reference.Type()
	if vc.v.throwable != nil {
		throwable = vc.v.throwable.Type()
	}
	if cb.CatchAll {
		return throwable
	}
	r, ok := vc.cache.Catch(cb.HandlerPC)
	if !ok {
		vc.report(cb.HandlerPC, diag.CacheMiss, "no resolved catch type for handler %04X", cb.HandlerPC)
		vc.abort(fmt.Errorf("catch at %04X: %w", cb.HandlerPC, ErrCacheMiss))
		return throwable
	}
	if !r.OK() {
		vc.report(cb.HandlerPC, diag.CannotResolveClassId, "catch type: %v", r.Err)
		return throwable
	}
	t := r.Class.Type()
	if !vc.ts.IsSubtype(t, throwable) {
		vc.report(cb.HandlerPC, diag.ThrowNonThrowable, "catch type %s is not throwable", r.Class.Name())
		return throwable
	}
	return t
}

// reportDeadCode warns once for every run of instructions that follows an
// unconditional transfer and was never analysed. Handler code is exempt;
// unreachable handlers are reported separately. Code skipped because its
// block was abandoned after a finding is not reported again.
func (vc *VerificationContext) reportDeadCode() {
	inRun, prevEnds := false, false
	for _, addr := range vc.cflow.Instructions() {
		dead := !vc.visited[addr] && !vc.cflow.Has(addr, FlagExceptionHandler)
		switch {
		case dead && !inRun && prevEnds:
			vc.report(addr, diag.DeadCode, "unreachable code")
			inRun = true
		case !dead:
			inRun = false
		}
		prevEnds = inRun || bytecode.Opcode(vc.method.Code[addr]).IsTerminator()
	}
}
