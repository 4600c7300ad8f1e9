package classpath

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chazu/bcverify/types"
)

// Core class names every registry starts with.
const (
	RootClassName      = "Object"
	StringClassName    = "String"
	ThrowableClassName = "Throwable"
	ExceptionClassName = "Exception"
)

// ErrUnknownClass is returned when a name does not denote a loaded class.
var ErrUnknownClass = errors.New("unknown class")

// Registry is the class table. It is safe for concurrent use: loading takes
// the write lock, lookups take the read lock, and loaded classes are never
// modified afterwards.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class

	nextMethodID atomic.Uint64
}

// NewRegistry creates a registry holding the core classes.
func NewRegistry() *Registry {
	r := &Registry{classes: make(map[string]*Class)}
	root := &Class{name: RootClassName}
	r.classes[root.name] = root
	r.classes[StringClassName] = &Class{name: StringClassName, super: root, flags: FlagFinal}
	throwable := &Class{name: ThrowableClassName, super: root}
	r.classes[throwable.name] = throwable
	r.classes[ExceptionClassName] = &Class{name: ExceptionClassName, super: throwable}
	return r
}

// Root returns the root class.
func (r *Registry) Root() *Class {
	c, _ := r.Lookup(RootClassName)
	return c
}

// Lookup returns the class with the given name. Array names ("T[]") are
// created on demand.
func (r *Registry) Lookup(name string) (*Class, bool) {
	if c, ok := r.lookupDeclared(name); ok {
		return c, true
	}
	if elem, isArray := strings.CutSuffix(name, "[]"); isArray {
		d, err := r.ParseType(elem)
		if err != nil || d.Void {
			return nil, false
		}
		return r.ArrayOf(d), true
	}
	return nil, false
}

// DefineClass adds a class. The superclass defaults to the root class.
func (r *Registry) DefineClass(name string, super *Class, flags Flags, access Access, interfaces ...*Class) (*Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.classes[name]; dup {
		return nil, fmt.Errorf("class %s already defined", name)
	}
	if super == nil {
		super = r.classes[RootClassName]
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	c := &Class{name: name, super: super, flags: flags, access: access, interfaces: interfaces}
	r.classes[name] = c
	return c, nil
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, ". \t[]") {
		return fmt.Errorf("invalid class name %q", name)
	}
	if _, ok := primitiveNames[name]; ok || name == "void" {
		return fmt.Errorf("class name %q is reserved", name)
	}
	return nil
}

// AddField declares a field on c.
func (r *Registry) AddField(c *Class, f Field) *Field {
	r.mu.Lock()
	defer r.mu.Unlock()
	nf := f
	nf.Owner = c
	c.fields = append(c.fields, &nf)
	return &nf
}

// AddMethod declares a method on c and assigns it a unique id.
func (r *Registry) AddMethod(c *Class, m Method) *Method {
	r.mu.Lock()
	defer r.mu.Unlock()
	nm := m
	nm.Owner = c
	nm.ID = r.nextMethodID.Add(1)
	if nm.Pool == nil {
		nm.Pool = NewPool()
	}
	c.methods = append(c.methods, &nm)
	return &nm
}

// ArrayOf returns the array class with the given element type.
func (r *Registry) ArrayOf(elem TypeDesc) *Class {
	name := elem.String() + "[]"
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.classes[name]; ok {
		return c
	}
	c := &Class{
		name:        name,
		super:       r.classes[RootClassName],
		flags:       FlagFinal,
		array:       true,
		component:   elem.Class,
		elemBuiltin: elem.Builtin,
	}
	r.classes[name] = c
	return c
}

var primitiveNames = map[string]types.Builtin{
	"u1":  types.U1,
	"i8":  types.I8,
	"u8":  types.U8,
	"i16": types.I16,
	"u16": types.U16,
	"i32": types.I32,
	"u32": types.U32,
	"f32": types.F32,
	"f64": types.F64,
	"i64": types.I64,
	"u64": types.U64,
}

// ParseType parses a type descriptor: a primitive name, "void", a class
// name, or any of those followed by one or more "[]".
func (r *Registry) ParseType(s string) (TypeDesc, error) {
	return r.parseTypeWith(s, r.lookupDeclared)
}

func (r *Registry) lookupDeclared(name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

func (r *Registry) parseTypeWith(s string, lookup func(string) (*Class, bool)) (TypeDesc, error) {
	if elem, isArray := strings.CutSuffix(s, "[]"); isArray {
		d, err := r.parseTypeWith(elem, lookup)
		if err != nil {
			return TypeDesc{}, err
		}
		if d.Void {
			return TypeDesc{}, fmt.Errorf("array of void in %q", s)
		}
		return TypeDesc{Class: r.ArrayOf(d)}, nil
	}
	if s == "void" {
		return TypeDesc{Void: true}, nil
	}
	if b, ok := primitiveNames[s]; ok {
		return TypeDesc{Builtin: b}, nil
	}
	c, ok := lookup(s)
	if !ok {
		return TypeDesc{}, fmt.Errorf("%w %s", ErrUnknownClass, s)
	}
	return TypeDesc{Class: c}, nil
}

// Classes returns every loaded class sorted by name.
func (r *Registry) Classes() []*Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Methods returns every method with a body, ordered by class then
// declaration order.
func (r *Registry) Methods() []*Method {
	var out []*Method
	for _, c := range r.Classes() {
		for _, m := range c.methods {
			if m.HasBody() {
				out = append(out, m)
			}
		}
	}
	return out
}

// LookupMethod finds a method by "Class.name".
func (r *Registry) LookupMethod(full string) (*Method, bool) {
	cls, name, ok := splitMember(full)
	if !ok {
		return nil, false
	}
	c, ok := r.Lookup(cls)
	if !ok {
		return nil, false
	}
	m := c.LookupMethod(name)
	return m, m != nil
}

// splitMember splits "Class.member" at the last dot.
func splitMember(full string) (string, string, bool) {
	i := strings.LastIndexByte(full, '.')
	if i <= 0 || i == len(full)-1 {
		return "", "", false
	}
	return full[:i], full[i+1:], true
}
