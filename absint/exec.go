package absint

import (
	"slices"

	"github.com/hashicorp/go-set/v3"

	"github.com/chazu/bcverify/types"
)

// EntryKind distinguishes ordinary flow from exception handler flow.
type EntryKind uint8

const (
	EntryMethodBody EntryKind = iota
	EntryExceptionHandler
)

func (k EntryKind) String() string {
	if k == EntryExceptionHandler {
		return "exception-handler"
	}
	return "method-body"
}

// EntryPoint is an address queued for analysis.
type EntryPoint struct {
	Addr int
	Kind EntryKind
}

// EntryResult is the outcome of GetEntryPointForChecking.
type EntryResult uint8

const (
	EntryFound EntryResult = iota
	AllDone
	NoEntryWithContext
)

func (r EntryResult) String() string {
	switch r {
	case EntryFound:
		return "found"
	case AllDone:
		return "all-done"
	default:
		return "no-entry-with-context"
	}
}

type edge struct{ from, to int }

// ExecutionContext drives the fixpoint for one method.
type ExecutionContext struct {
	ts *types.TypeSystem

	current     *RegisterContext
	checkpoints *set.Set[int]
	boundaries  *set.Set[int]
	processed   *set.Set[edge]
	entries     *set.Set[EntryPoint]
	saved       map[int]*RegisterContext
}

// NewExecutionContext creates a driver whose current context is initial.
func NewExecutionContext(ts *types.TypeSystem, initial *RegisterContext) *ExecutionContext {
	return &ExecutionContext{
		ts:          ts,
		current:     initial,
		checkpoints: set.New[int](8),
		boundaries:  set.New[int](8),
		processed:   set.New[edge](8),
		entries:     set.New[EntryPoint](8),
		saved:       make(map[int]*RegisterContext),
	}
}

// Current returns the context instructions operate on.
func (ec *ExecutionContext) Current() *RegisterContext { return ec.current }

// SetCurrent replaces the current context.
func (ec *ExecutionContext) SetCurrent(rc *RegisterContext) { ec.current = rc }

// SetCheckPoint marks addr as a block boundary whose context is kept.
func (ec *ExecutionContext) SetCheckPoint(addr int) {
	ec.checkpoints.Insert(addr)
	ec.boundaries.Insert(addr)
}

// SetSyncPoint marks addr as a checkpoint that does not end a block. The
// contexts reaching it are joined but never scheduled.
func (ec *ExecutionContext) SetSyncPoint(addr int) {
	ec.checkpoints.Insert(addr)
}

// IsCheckPoint reports whether a context is kept for addr.
func (ec *ExecutionContext) IsCheckPoint(addr int) bool { return ec.checkpoints.Contains(addr) }

// IsBoundary reports whether a straight-line block must stop before addr.
func (ec *ExecutionContext) IsBoundary(addr int) bool { return ec.boundaries.Contains(addr) }

// AddEntryPoint queues addr for analysis.
func (ec *ExecutionContext) AddEntryPoint(addr int, kind EntryKind) {
	ec.entries.Insert(EntryPoint{Addr: addr, Kind: kind})
}

// PendingEntries returns the queued entries in address order.
func (ec *ExecutionContext) PendingEntries() []EntryPoint {
	out := ec.entries.Slice()
	slices.SortFunc(out, func(a, b EntryPoint) int {
		if a.Addr != b.Addr {
			return a.Addr - b.Addr
		}
		return int(a.Kind) - int(b.Kind)
	})
	return out
}

// SavedContext returns the context kept for addr.
func (ec *ExecutionContext) SavedContext(addr int) (*RegisterContext, bool) {
	rc, ok := ec.saved[addr]
	return rc, ok
}

// StoreCurrentRegContextForAddr joins the current context into the one
// kept for addr, or snapshots it when addr is a checkpoint seen for the
// first time. It reports whether the kept context changed; conflicted
// registers are returned for diagnostics.
func (ec *ExecutionContext) StoreCurrentRegContextForAddr(addr int) (changed bool, conflicted []int) {
	if rc, ok := ec.saved[addr]; ok {
		changed = rc.UnionWith(ec.ts, ec.current)
		conflicted = rc.RemoveInconsistentRegs()
		if changed {
			log.Debugf("join at %04X: %s", addr, rc.Format(ec.ts))
		}
		return changed, conflicted
	}
	if !ec.checkpoints.Contains(addr) {
		return false, nil
	}
	rc := ec.current.Clone()
	conflicted = rc.RemoveInconsistentRegs()
	ec.saved[addr] = rc
	log.Debugf("snapshot at %04X: %s", addr, rc.Format(ec.ts))
	return true, conflicted
}

// ProcessJump records flow along the edge from -> to. The first time an
// edge is taken its target is always queued; afterwards only when the join
// changed the target's kept context.
func (ec *ExecutionContext) ProcessJump(from, to int, kind EntryKind) []int {
	e := edge{from: from, to: to}
	first := ec.processed.Insert(e)
	ec.checkpoints.Insert(to)
	ec.boundaries.Insert(to)
	changed, conflicted := ec.StoreCurrentRegContextForAddr(to)
	if first || changed {
		ec.AddEntryPoint(to, kind)
	}
	return conflicted
}

// GetEntryPointForChecking pops the lowest queued entry that has a kept
// context and installs a copy of that context as current.
func (ec *ExecutionContext) GetEntryPointForChecking() (EntryPoint, EntryResult) {
	if ec.entries.Empty() {
		return EntryPoint{}, AllDone
	}
	for _, ep := range ec.PendingEntries() {
		rc, ok := ec.saved[ep.Addr]
		if !ok {
			continue
		}
		ec.entries.Remove(ep)
		ec.current = rc.Clone()
		return ep, EntryFound
	}
	return EntryPoint{}, NoEntryWithContext
}

// DropEntries clears the worklist and returns what was left in it.
func (ec *ExecutionContext) DropEntries() []EntryPoint {
	left := ec.PendingEntries()
	ec.entries = set.New[EntryPoint](8)
	return left
}
