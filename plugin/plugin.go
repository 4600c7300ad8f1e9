// Package plugin holds the per-language policy the verifier consults:
// primitive normalization, access control, constructor naming, call
// exemptions and the primitive coercions allowed at call sites.
package plugin

import (
	"github.com/chazu/bcverify/classpath"
	"github.com/chazu/bcverify/types"
)

// Plugin is the strategy object injected into each verification.
type Plugin interface {
	types.Normalizer

	// Name identifies the language.
	Name() string

	CheckClassAccess(from, target *classpath.Class) bool
	CheckFieldAccess(from *classpath.Class, f *classpath.Field) bool
	CheckMethodAccess(from *classpath.Class, m *classpath.Method) bool

	// IsConstructorName reports whether name denotes an instance initializer.
	IsConstructorName(name string) bool

	// IsCallExempt reports whether calls to m skip argument checking.
	IsCallExempt(m *classpath.Method) bool

	// CoercionAllowed reports whether a primitive of type from may be passed
	// where to is expected without being a subtype.
	CoercionAllowed(from, to types.Builtin) bool

	// ThrowableClass returns the root of all throwable classes.
	ThrowableClass(reg *classpath.Registry) *classpath.Class
}

// Default is a Java-like language: sub-word integers widen to i32, u64 to
// i64, constructors are named <init>.
type Default struct {
	// Exempt lists methods ("Class.name") whose calls are not argument
	// checked.
	Exempt map[string]bool
}

var _ Plugin = (*Default)(nil)

// ConstructorName is the initializer name used by Default.
const ConstructorName = "<init>"

func (*Default) Name() string { return "default" }

func (*Default) NormalizeType(b types.Builtin) types.Builtin {
	switch b {
	case types.U1, types.I8, types.U8, types.I16, types.U16:
		return types.I32
	case types.U64:
		return types.I64
	default:
		return b
	}
}

func (d *Default) CheckClassAccess(from, target *classpath.Class) bool {
	if target.IsArray() {
		if ec := target.ElementType().Class; ec != nil {
			return d.CheckClassAccess(from, ec)
		}
		return true
	}
	switch target.Access() {
	case classpath.AccessPublic:
		return true
	case classpath.AccessPrivate:
		return from == target
	default:
		return from.Package() == target.Package()
	}
}

func (*Default) CheckFieldAccess(from *classpath.Class, f *classpath.Field) bool {
	return memberAccessible(from, f.Owner, f.Access)
}

func (*Default) CheckMethodAccess(from *classpath.Class, m *classpath.Method) bool {
	return memberAccessible(from, m.Owner, m.Access)
}

func memberAccessible(from, owner *classpath.Class, acc classpath.Access) bool {
	switch acc {
	case classpath.AccessPublic:
		return true
	case classpath.AccessPrivate:
		return from == owner
	case classpath.AccessProtected:
		return from.Package() == owner.Package() || from.IsSubclassOf(owner)
	default:
		return from.Package() == owner.Package()
	}
}

func (*Default) IsConstructorName(name string) bool { return name == ConstructorName }

func (d *Default) IsCallExempt(m *classpath.Method) bool {
	return d.Exempt[m.FullName()]
}

func (*Default) CoercionAllowed(from, to types.Builtin) bool {
	sameFamily := func(family types.Builtin) bool {
		return types.BuiltinSubtype(from, family) && types.BuiltinSubtype(to, family)
	}
	return sameFamily(types.Integral32) || sameFamily(types.Integral64)
}

func (*Default) ThrowableClass(reg *classpath.Registry) *classpath.Class {
	c, _ := reg.Lookup(classpath.ThrowableClassName)
	return c
}
