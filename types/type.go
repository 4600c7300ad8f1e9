package types

// Kind tags the variant held by a Type.
type Kind uint8

const (
	KindBuiltin Kind = iota
	KindClass
	KindIntersection
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindBuiltin:
		return "builtin"
	case KindClass:
		return "class"
	case KindIntersection:
		return "intersection"
	case KindUnion:
		return "union"
	default:
		return "?"
	}
}

// Class is the view of a loaded class or array class that subtyping needs.
// Implementations must be comparable (pointer types) and must return a nil
// interface, not a typed nil, when there is no super or component class.
type Class interface {
	Name() string
	Super() Class
	Interfaces() []Class
	IsFinal() bool
	IsInterface() bool
	IsAbstract() bool
	IsArray() bool
	// ComponentClass is the element class of a reference array, or nil.
	ComponentClass() Class
	// ComponentBuiltin is the element type of a primitive array.
	ComponentBuiltin() Builtin
}

// Type is a lattice element: a builtin, a class, or an interned compound.
// Type values are small and comparable; two compounds are equal exactly when
// they were interned to the same slot of the same TypeSystem.
//
// The zero Type is Bot.
type Type struct {
	kind    Kind
	builtin Builtin
	class   Class
	idx     int32
}

// ClassType returns the type of instances of c.
func ClassType(c Class) Type {
	return Type{kind: KindClass, class: c}
}

// Kind returns the variant tag.
func (t Type) Kind() Kind { return t.kind }

// IsBuiltin reports whether t is a builtin.
func (t Type) IsBuiltin() bool { return t.kind == KindBuiltin }

// IsClass reports whether t is a class type.
func (t Type) IsClass() bool { return t.kind == KindClass }

// IsCompound reports whether t is an intersection or a union.
func (t Type) IsCompound() bool { return t.kind == KindIntersection || t.kind == KindUnion }

// Builtin returns the builtin held by t. It is only meaningful when
// IsBuiltin is true.
func (t Type) Builtin() Builtin { return t.builtin }

// Class returns the class held by t, or nil.
func (t Type) Class() Class { return t.class }

// IsBot reports whether t is Bot.
func (t Type) IsBot() bool { return t.kind == KindBuiltin && t.builtin == Bot }

// IsTop reports whether t is Top. A register joined to Top is inconsistent.
func (t Type) IsTop() bool { return t.kind == KindBuiltin && t.builtin == Top }

// Is reports whether t is exactly the builtin b.
func (t Type) Is(b Builtin) bool { return t.kind == KindBuiltin && t.builtin == b }
