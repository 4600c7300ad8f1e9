package types

import (
	"fmt"
	"math/bits"
)

// Builtin is one of the fixed primitive and reference-category types.
type Builtin uint8

const (
	Bot Builtin = iota

	U1
	I8
	U8
	I16
	U16
	I32
	U32
	F32
	F64
	I64
	U64

	Integral8
	Integral16
	Integral32
	Integral64
	Float32
	Float64
	Bits32
	Bits64
	Primitive

	Reference
	NullReference
	Object
	ClassClass
	Array

	Top

	numBuiltins
)

var builtinNames = [numBuiltins]string{
	Bot:           "Bot",
	U1:            "u1",
	I8:            "i8",
	U8:            "u8",
	I16:           "i16",
	U16:           "u16",
	I32:           "i32",
	U32:           "u32",
	F32:           "f32",
	F64:           "f64",
	I64:           "i64",
	U64:           "u64",
	Integral8:     "Integral8",
	Integral16:    "Integral16",
	Integral32:    "Integral32",
	Integral64:    "Integral64",
	Float32:       "Float32",
	Float64:       "Float64",
	Bits32:        "Bits32",
	Bits64:        "Bits64",
	Primitive:     "Primitive",
	Reference:     "Reference",
	NullReference: "NullReference",
	Object:        "Object",
	ClassClass:    "ClassClass",
	Array:         "Array",
	Top:           "Top",
}

// String returns the name of the builtin.
func (b Builtin) String() string {
	if b < numBuiltins {
		return builtinNames[b]
	}
	return fmt.Sprintf("Builtin(%d)", uint8(b))
}

// ParseBuiltin returns the builtin with the given name.
func ParseBuiltin(name string) (Builtin, bool) {
	for b, n := range builtinNames {
		if n == name {
			return Builtin(b), true
		}
	}
	return Bot, false
}

// Type returns b as a Type.
func (b Builtin) Type() Type {
	return Type{kind: KindBuiltin, builtin: b}
}

// ---------------------------------------------------------------------------
// Precomputed tables
// ---------------------------------------------------------------------------

// builtinSet is a bitmask over builtins.
type builtinSet uint32

func bit(b Builtin) builtinSet { return 1 << b }

func (s builtinSet) has(b Builtin) bool { return s&bit(b) != 0 }

func (s builtinSet) each(fn func(Builtin)) {
	for s != 0 {
		b := Builtin(bits.TrailingZeros32(uint32(s)))
		fn(b)
		s &^= bit(b)
	}
}

// directSupers lists the immediate supertypes of each builtin. Bot is handled
// separately; it sits below everything.
var directSupers = map[Builtin][]Builtin{
	U1:            {U8, I8, Integral8},
	I8:            {I16, Integral8},
	U8:            {U16, I16, Integral8},
	Integral8:     {Integral16},
	I16:           {I32, Integral16},
	U16:           {U32, I32, Integral16},
	Integral16:    {Integral32},
	I32:           {Integral32},
	U32:           {Integral32},
	Integral32:    {Bits32},
	F32:           {Float32},
	Float32:       {Bits32},
	Bits32:        {Primitive},
	I64:           {Integral64},
	U64:           {Integral64},
	Integral64:    {Bits64},
	F64:           {Float64},
	Float64:       {Bits64},
	Bits64:        {Primitive},
	Primitive:     {Top},
	NullReference: {Object, ClassClass, Array, Reference},
	ClassClass:    {Object},
	Array:         {Object},
	Object:        {Reference},
	Reference:     {Top},
}

var (
	// supersOf[b] holds every builtin that b is a subtype of, b included.
	supersOf [numBuiltins]builtinSet
	// subsOf[b] holds every builtin that is a subtype of b, b included.
	subsOf [numBuiltins]builtinSet
	// lub[a][b] holds the minimal common supertypes of a and b.
	lub [numBuiltins][numBuiltins]builtinSet
)

const allBuiltins = builtinSet(1<<numBuiltins - 1)

func init() {
	for b := Builtin(0); b < numBuiltins; b++ {
		supersOf[b] = bit(b)
	}
	supersOf[Bot] = allBuiltins

	// Transitive closure; the hierarchy is shallow so a few rounds settle it.
	for changed := true; changed; {
		changed = false
		for b, ups := range directSupers {
			s := supersOf[b]
			for _, u := range ups {
				s |= supersOf[u]
			}
			if s != supersOf[b] {
				supersOf[b] = s
				changed = true
			}
		}
	}

	for b := Builtin(0); b < numBuiltins; b++ {
		supersOf[b].each(func(u Builtin) { subsOf[u] |= bit(b) })
	}

	for a := Builtin(0); a < numBuiltins; a++ {
		for b := Builtin(0); b < numBuiltins; b++ {
			lub[a][b] = minimalOf(supersOf[a] & supersOf[b])
		}
	}
}

// minimalOf drops every member of s that is a strict supertype of another
// member.
func minimalOf(s builtinSet) builtinSet {
	out := s
	s.each(func(b Builtin) {
		out &^= supersOf[b] &^ bit(b)
	})
	return out
}

// BuiltinSubtype reports whether a is a subtype of b.
func BuiltinSubtype(a, b Builtin) bool {
	return supersOf[a].has(b)
}

// BuiltinJoin returns the least upper bounds of a and b. It returns more than
// one builtin when the common supertypes have several minimal elements.
func BuiltinJoin(a, b Builtin) []Builtin {
	var out []Builtin
	lub[a][b].each(func(x Builtin) { out = append(out, x) })
	return out
}
