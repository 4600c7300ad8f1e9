package absint

import (
	"fmt"
	"sync/atomic"

	"github.com/chazu/bcverify/types"
)

// OriginKind tells where a value came from.
type OriginKind uint8

const (
	OriginNone OriginKind = iota
	OriginInstruction
	OriginArgument
)

// Origin identifies the producer of a value: an instruction address, an
// argument slot at method start, or nothing.
type Origin struct {
	Kind OriginKind
	At   int
}

// NoOrigin is the origin of values whose producer is not known, e.g. after
// joining values of different origins.
var NoOrigin = Origin{}

// InstructionOrigin is the origin of a value produced by the instruction at
// addr.
func InstructionOrigin(addr int) Origin { return Origin{Kind: OriginInstruction, At: addr} }

// ArgumentOrigin is the origin of argument n at method start.
func ArgumentOrigin(n int) Origin { return Origin{Kind: OriginArgument, At: n} }

// IsNone reports whether o carries no origin.
func (o Origin) IsNone() bool { return o.Kind == OriginNone }

func (o Origin) String() string {
	switch o.Kind {
	case OriginInstruction:
		return fmt.Sprintf("@%04X", o.At)
	case OriginArgument:
		return fmt.Sprintf("arg%d", o.At)
	default:
		return "-"
	}
}

// AbstractValue is an opaque identity for a value. Two typed values with the
// same non-zero AbstractValue hold the same runtime value.
type AbstractValue struct {
	id uint64
}

var valueIDs atomic.Uint64

// FreshValue returns a value distinct from every other.
func FreshValue() AbstractValue {
	return AbstractValue{id: valueIDs.Add(1)}
}

// IsZero reports whether v carries no identity.
func (v AbstractValue) IsZero() bool { return v.id == 0 }

// AbstractTypedValue is the abstract content of a register.
type AbstractTypedValue struct {
	Type   types.Type
	Value  AbstractValue
	Origin Origin
}

// NewValue returns a fresh value of type t produced at origin.
func NewValue(t types.Type, origin Origin) AbstractTypedValue {
	return AbstractTypedValue{Type: t, Value: FreshValue(), Origin: origin}
}

// IsConsistent reports whether the type is usable. Joining primitive and
// reference values yields Top, which is not.
func (v AbstractTypedValue) IsConsistent() bool {
	return !v.Type.IsTop()
}

// WithType returns v retyped to t, keeping its identity and origin.
func (v AbstractTypedValue) WithType(t types.Type) AbstractTypedValue {
	v.Type = t
	return v
}

// joinValues merges two values reaching the same point. The origin and
// identity survive only when both sides agree.
func joinValues(ts *types.TypeSystem, a, b AbstractTypedValue) AbstractTypedValue {
	out := AbstractTypedValue{Type: ts.Join(a.Type, b.Type)}
	if a.Origin == b.Origin {
		out.Origin = a.Origin
	}
	if a.Value == b.Value {
		out.Value = a.Value
	}
	return out
}
