package classpath

import (
	"strings"

	"github.com/chazu/bcverify/types"
)

// ---------------------------------------------------------------------------
// Flags and access
// ---------------------------------------------------------------------------

// Flags are class modifiers.
type Flags uint8

const (
	FlagFinal Flags = 1 << iota
	FlagInterface
	FlagAbstract
)

// Access is the visibility of a class or member.
type Access uint8

const (
	AccessPublic Access = iota
	AccessProtected
	AccessPackage
	AccessPrivate
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPackage:
		return "package"
	case AccessPrivate:
		return "private"
	default:
		return "?"
	}
}

// ParseAccess parses an access keyword. The empty string is public.
func ParseAccess(s string) (Access, bool) {
	switch s {
	case "", "public":
		return AccessPublic, true
	case "protected":
		return AccessProtected, true
	case "package":
		return AccessPackage, true
	case "private":
		return AccessPrivate, true
	}
	return AccessPublic, false
}

// ---------------------------------------------------------------------------
// Class
// ---------------------------------------------------------------------------

// Class is a loaded class or array class. Classes are immutable once their
// registry has finished loading them.
type Class struct {
	name       string
	super      *Class
	interfaces []*Class
	flags      Flags
	access     Access

	// Array classes only.
	array       bool
	component   *Class
	elemBuiltin types.Builtin

	fields  []*Field
	methods []*Method
}

var _ types.Class = (*Class)(nil)

// Name returns the fully qualified class name, e.g. "util/List".
func (c *Class) Name() string { return c.name }

// Super returns the superclass, or nil for the root class.
func (c *Class) Super() types.Class {
	if c.super == nil {
		return nil
	}
	return c.super
}

// Superclass returns the superclass as a *Class.
func (c *Class) Superclass() *Class { return c.super }

// Interfaces returns the directly implemented interfaces.
func (c *Class) Interfaces() []types.Class {
	out := make([]types.Class, len(c.interfaces))
	for i, k := range c.interfaces {
		out[i] = k
	}
	return out
}

func (c *Class) IsFinal() bool     { return c.flags&FlagFinal != 0 }
func (c *Class) IsInterface() bool { return c.flags&FlagInterface != 0 }
func (c *Class) IsAbstract() bool  { return c.flags&(FlagAbstract|FlagInterface) != 0 }
func (c *Class) IsArray() bool     { return c.array }

// Access returns the class visibility.
func (c *Class) Access() Access { return c.access }

// ComponentClass returns the element class of a reference array, or nil.
func (c *Class) ComponentClass() types.Class {
	if c.component == nil {
		return nil
	}
	return c.component
}

// ComponentBuiltin returns the element type of a primitive array.
func (c *Class) ComponentBuiltin() types.Builtin { return c.elemBuiltin }

// ElementType returns the declared element type of an array class.
func (c *Class) ElementType() TypeDesc {
	if c.component != nil {
		return TypeDesc{Class: c.component}
	}
	return TypeDesc{Builtin: c.elemBuiltin}
}

// Type returns the lattice type of instances of c.
func (c *Class) Type() types.Type { return types.ClassType(c) }

// Package returns the package prefix of the class name ("" for the default
// package).
func (c *Class) Package() string {
	if i := strings.LastIndexByte(c.name, '/'); i >= 0 {
		return c.name[:i]
	}
	return ""
}

// IsSubclassOf returns true if c is other or inherits from it through the
// superclass chain.
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.super {
		if current == other {
			return true
		}
	}
	return false
}

// Fields returns the fields declared by c.
func (c *Class) Fields() []*Field { return c.fields }

// Methods returns the methods declared by c.
func (c *Class) Methods() []*Method { return c.methods }

// LookupField finds a field declared by c or inherited from a superclass.
func (c *Class) LookupField(name string) *Field {
	for k := c; k != nil; k = k.super {
		for _, f := range k.fields {
			if f.Name == name {
				return f
			}
		}
	}
	return nil
}

// LookupMethod finds a method declared by c, a superclass, or an interface.
func (c *Class) LookupMethod(name string) *Method {
	for k := c; k != nil; k = k.super {
		for _, m := range k.methods {
			if m.Name == name {
				return m
			}
		}
	}
	for _, i := range c.interfaces {
		if m := i.LookupMethod(name); m != nil {
			return m
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Type descriptors
// ---------------------------------------------------------------------------

// TypeDesc is a declared type in a signature or field: a primitive builtin,
// a class, or void.
type TypeDesc struct {
	Builtin types.Builtin
	Class   *Class
	Void    bool
}

// Type returns the lattice type of the descriptor. Void maps to Top.
func (d TypeDesc) Type() types.Type {
	switch {
	case d.Void:
		return types.Top.Type()
	case d.Class != nil:
		return types.ClassType(d.Class)
	default:
		return d.Builtin.Type()
	}
}

// IsReference reports whether the descriptor names a class.
func (d TypeDesc) IsReference() bool { return d.Class != nil }

// IsWide reports whether values of the descriptor occupy a 64-bit register.
func (d TypeDesc) IsWide() bool {
	if d.Class != nil || d.Void {
		return false
	}
	return types.BuiltinSubtype(d.Builtin, types.Bits64)
}

func (d TypeDesc) String() string {
	switch {
	case d.Void:
		return "void"
	case d.Class != nil:
		return d.Class.name
	default:
		return d.Builtin.String()
	}
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

// Field is a declared instance or static field.
type Field struct {
	Name   string
	Owner  *Class
	Type   TypeDesc
	Static bool
	Access Access
}

// FullName returns "Owner.name".
func (f *Field) FullName() string { return f.Owner.name + "." + f.Name }

// CatchBlock is one handler of a try block. A zero TypeID with CatchAll set
// catches every Throwable.
type CatchBlock struct {
	HandlerPC int
	Size      int
	TypeID    uint16
	CatchAll  bool
}

// TryBlock is a protected code range [Start, Start+Length).
type TryBlock struct {
	Start   int
	Length  int
	Catches []CatchBlock
}

// End returns the first address past the protected range.
func (t TryBlock) End() int { return t.Start + t.Length }

// Contains reports whether addr is inside the protected range.
func (t TryBlock) Contains(addr int) bool { return addr >= t.Start && addr < t.End() }

// Method is a declared method together with its body.
type Method struct {
	ID       uint64
	Name     string
	Owner    *Class
	Static   bool
	Abstract bool
	Access   Access

	Params []TypeDesc
	Return TypeDesc

	NumVregs  int
	Code      []byte
	TryBlocks []TryBlock
	Pool      *Pool
}

// FullName returns "Owner.name".
func (m *Method) FullName() string { return m.Owner.name + "." + m.Name }

// NumArgs returns the number of argument registers, including the receiver
// of instance methods.
func (m *Method) NumArgs() int {
	if m.Static {
		return len(m.Params)
	}
	return len(m.Params) + 1
}

// ArgTypes returns the declared argument types in register order, including
// the receiver of instance methods.
func (m *Method) ArgTypes() []TypeDesc {
	if m.Static {
		return m.Params
	}
	return append([]TypeDesc{{Class: m.Owner}}, m.Params...)
}

// HasBody reports whether the method carries code to verify.
func (m *Method) HasBody() bool { return !m.Abstract && len(m.Code) > 0 }
