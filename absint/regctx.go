package absint

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hashicorp/go-set/v3"

	"github.com/chazu/bcverify/types"
)

// Acc is the register index of the accumulator.
const Acc = -1

// ErrRegisterOutOfRange is returned when a register index is outside the
// method's register file.
var ErrRegisterOutOfRange = errors.New("register out of range")

// RegisterContext maps register indices, and the accumulator, to abstract
// values. Registers missing from the map are undefined.
type RegisterContext struct {
	limit      int
	regs       map[int]AbstractTypedValue
	conflicted *set.Set[int]
}

// NewRegisterContext creates an empty context for a method with limit
// registers (vregs plus arguments).
func NewRegisterContext(limit int) *RegisterContext {
	return &RegisterContext{
		limit:      limit,
		regs:       make(map[int]AbstractTypedValue),
		conflicted: set.New[int](0),
	}
}

// Limit returns the number of registers, not counting the accumulator.
func (rc *RegisterContext) Limit() int { return rc.limit }

// Clone returns an independent copy.
func (rc *RegisterContext) Clone() *RegisterContext {
	return &RegisterContext{
		limit:      rc.limit,
		regs:       maps.Clone(rc.regs),
		conflicted: rc.conflicted.Copy(),
	}
}

// InRange reports whether idx names the accumulator or a register of the
// method.
func (rc *RegisterContext) InRange(idx int) bool {
	return idx == Acc || (idx >= 0 && idx < rc.limit)
}

// IsDefined reports whether idx holds a value.
func (rc *RegisterContext) IsDefined(idx int) bool {
	_, ok := rc.regs[idx]
	return ok
}

// Get returns the value of idx. It reports false when idx is undefined.
func (rc *RegisterContext) Get(idx int) (AbstractTypedValue, bool) {
	v, ok := rc.regs[idx]
	return v, ok
}

// IsConflicted reports whether idx was dropped by a join of incompatible
// values and has not been written since.
func (rc *RegisterContext) IsConflicted(idx int) bool {
	return rc.conflicted.Contains(idx)
}

// Set stores v in idx.
func (rc *RegisterContext) Set(idx int, v AbstractTypedValue) error {
	if !rc.InRange(idx) {
		return fmt.Errorf("%s (limit %d): %w", regName(idx), rc.limit, ErrRegisterOutOfRange)
	}
	rc.regs[idx] = v
	rc.conflicted.Remove(idx)
	return nil
}

// Undefine removes idx.
func (rc *RegisterContext) Undefine(idx int) {
	delete(rc.regs, idx)
}

// SetAndPropagateToSameOrigin stores v in idx and retypes every other
// register holding a value of the same origin as the previous content of
// idx. Narrowing a value this way narrows all of its live aliases.
func (rc *RegisterContext) SetAndPropagateToSameOrigin(idx int, v AbstractTypedValue) error {
	prev, had := rc.regs[idx]
	if err := rc.Set(idx, v); err != nil {
		return err
	}
	if !had || prev.Origin.IsNone() {
		return nil
	}
	for r, cur := range rc.regs {
		if r != idx && cur.Origin == prev.Origin {
			rc.regs[r] = cur.WithType(v.Type)
		}
	}
	return nil
}

// UnionWith joins other into rc register by register. Registers defined on
// one side only become undefined. It reports whether rc changed.
func (rc *RegisterContext) UnionWith(ts *types.TypeSystem, other *RegisterContext) bool {
	changed := false
	for idx, v := range rc.regs {
		w, ok := other.regs[idx]
		if !ok {
			delete(rc.regs, idx)
			changed = true
			continue
		}
		j := joinValues(ts, v, w)
		if j != v {
			rc.regs[idx] = j
			changed = true
		}
	}
	rc.conflicted.InsertSet(other.conflicted)
	return changed
}

// RemoveInconsistentRegs undefines every register whose type is Top and
// records it as conflicted. It returns the removed indices in order.
func (rc *RegisterContext) RemoveInconsistentRegs() []int {
	var removed []int
	for idx, v := range rc.regs {
		if !v.IsConsistent() {
			removed = append(removed, idx)
		}
	}
	slices.Sort(removed)
	for _, idx := range removed {
		delete(rc.regs, idx)
		rc.conflicted.Insert(idx)
	}
	return removed
}

// Registers returns the defined register indices in ascending order, the
// accumulator first.
func (rc *RegisterContext) Registers() []int {
	return slices.Sorted(maps.Keys(rc.regs))
}

// Equal reports whether rc and other hold the same values.
func (rc *RegisterContext) Equal(other *RegisterContext) bool {
	return maps.Equal(rc.regs, other.regs)
}

// Format renders the context for debug logs.
func (rc *RegisterContext) Format(ts *types.TypeSystem) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, idx := range rc.Registers() {
		if i > 0 {
			b.WriteString(", ")
		}
		v := rc.regs[idx]
		fmt.Fprintf(&b, "%s: %s %s", regName(idx), ts.String(v.Type), v.Origin)
	}
	b.WriteByte('}')
	return b.String()
}

func regName(idx int) string {
	if idx == Acc {
		return "acc"
	}
	return fmt.Sprintf("v%d", idx)
}
