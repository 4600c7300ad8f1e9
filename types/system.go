package types

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-set/v3"
)

// Normalizer maps a builtin to its representative under a source language's
// primitive widening rules.
type Normalizer interface {
	NormalizeType(b Builtin) Builtin
}

type identityNormalizer struct{}

func (identityNormalizer) NormalizeType(b Builtin) Builtin { return b }

// Signature is the normalized view of a method signature.
type Signature struct {
	Params []Type
	Return Type
}

type compound struct {
	kind    Kind
	members []Type
}

// TypeSystem owns the compound-type arena and the class hierarchy caches for
// one verification run. A TypeSystem is not safe for concurrent use; each
// worker owns its own.
type TypeSystem struct {
	norm Normalizer

	compounds []compound
	interned  map[string]int32

	classIDs   map[Class]int32
	ancestors  map[Class]*set.Set[Class]
	signatures map[any]Signature
}

// NewTypeSystem creates an empty type system. A nil normalizer leaves
// builtins unchanged.
func NewTypeSystem(norm Normalizer) *TypeSystem {
	if norm == nil {
		norm = identityNormalizer{}
	}
	ts := &TypeSystem{norm: norm}
	ts.Reset()
	return ts
}

// Reset discards every interned compound and cached class relation.
// Compound types obtained before Reset must not be used afterwards.
func (ts *TypeSystem) Reset() {
	ts.compounds = ts.compounds[:0]
	ts.interned = make(map[string]int32)
	ts.classIDs = make(map[Class]int32)
	ts.ancestors = make(map[Class]*set.Set[Class])
	ts.signatures = make(map[any]Signature)
}

// NumCompounds returns the number of interned compound types.
func (ts *TypeSystem) NumCompounds() int {
	return len(ts.compounds)
}

// Members returns the members of a compound type, or t itself for an atom.
// The returned slice must not be modified.
func (ts *TypeSystem) Members(t Type) []Type {
	if !t.IsCompound() {
		return []Type{t}
	}
	return ts.compounds[t.idx].members
}

// CachedSignature returns the signature stored under key, building and
// storing it on first use.
func (ts *TypeSystem) CachedSignature(key any, build func() Signature) Signature {
	if sig, ok := ts.signatures[key]; ok {
		return sig
	}
	sig := build()
	ts.signatures[key] = sig
	return sig
}

func (ts *TypeSystem) classID(c Class) int32 {
	if id, ok := ts.classIDs[c]; ok {
		return id
	}
	id := int32(len(ts.classIDs))
	ts.classIDs[c] = id
	return id
}

// compare orders types canonically inside a compound.
func (ts *TypeSystem) compare(a, b Type) int {
	if c := cmp.Compare(a.kind, b.kind); c != 0 {
		return c
	}
	switch a.kind {
	case KindBuiltin:
		return cmp.Compare(a.builtin, b.builtin)
	case KindClass:
		return cmp.Or(
			strings.Compare(a.class.Name(), b.class.Name()),
			cmp.Compare(ts.classID(a.class), ts.classID(b.class)),
		)
	default:
		return cmp.Compare(a.idx, b.idx)
	}
}

// intern returns the canonical compound with the given members. Callers
// guarantee the members are valid for kind; a single member is returned as
// is.
func (ts *TypeSystem) intern(kind Kind, members []Type) Type {
	members = slices.Clone(members)
	slices.SortFunc(members, ts.compare)
	members = slices.Compact(members)
	switch len(members) {
	case 0:
		if kind == KindUnion {
			return Bot.Type()
		}
		return Top.Type()
	case 1:
		return members[0]
	}

	key := make([]byte, 0, 1+4*len(members))
	key = append(key, byte(kind))
	for _, m := range members {
		switch m.kind {
		case KindBuiltin:
			key = append(key, 'b', byte(m.builtin))
		case KindClass:
			key = append(key, 'c')
			key = strconv.AppendInt(key, int64(ts.classID(m.class)), 36)
		default:
			key = append(key, 'x')
			key = strconv.AppendInt(key, int64(m.idx), 36)
		}
		key = append(key, ',')
	}

	if idx, ok := ts.interned[string(key)]; ok {
		return Type{kind: kind, idx: idx}
	}
	idx := int32(len(ts.compounds))
	ts.compounds = append(ts.compounds, compound{kind: kind, members: members})
	ts.interned[string(key)] = idx
	return Type{kind: kind, idx: idx}
}

// String renders t for diagnostics.
func (ts *TypeSystem) String(t Type) string {
	switch t.kind {
	case KindBuiltin:
		return t.builtin.String()
	case KindClass:
		return t.class.Name()
	}
	sep := " & "
	if t.kind == KindUnion {
		sep = " | "
	}
	parts := make([]string, 0, len(ts.Members(t)))
	for _, m := range ts.Members(t) {
		parts = append(parts, ts.String(m))
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// classAncestors returns c together with every superclass and interface it
// inherits from.
func (ts *TypeSystem) classAncestors(c Class) *set.Set[Class] {
	if s, ok := ts.ancestors[c]; ok {
		return s
	}
	s := set.New[Class](4)
	var walk func(k Class)
	walk = func(k Class) {
		if k == nil || s.Contains(k) {
			return
		}
		s.Insert(k)
		walk(k.Super())
		for _, i := range k.Interfaces() {
			walk(i)
		}
	}
	walk(c)
	ts.ancestors[c] = s
	return s
}

// ClassSubtype reports whether class a is a subclass of, implements, or (for
// arrays) is covariantly assignable to b.
func (ts *TypeSystem) ClassSubtype(a, b Class) bool {
	if a == b {
		return true
	}
	if a.IsArray() && b.IsArray() {
		ac, bc := a.ComponentClass(), b.ComponentClass()
		switch {
		case ac != nil && bc != nil:
			return ts.ClassSubtype(ac, bc)
		case ac == nil && bc == nil:
			return a.ComponentBuiltin() == b.ComponentBuiltin()
		default:
			return false
		}
	}
	return ts.classAncestors(a).Contains(b)
}
