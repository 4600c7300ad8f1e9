package classpath

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/bcverify/pkg/bytecode"
)

var (
	// ErrBadPoolID is returned for an id outside the method's pool.
	ErrBadPoolID = errors.New("bad constant pool id")
	// ErrKindMismatch is returned when a pool entry is not of the kind the
	// instruction needs.
	ErrKindMismatch = errors.New("constant pool kind mismatch")
	// ErrUnknownField is returned when a field reference does not resolve.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnknownMethod is returned when a method reference does not resolve.
	ErrUnknownMethod = errors.New("unknown method")
)

// Resolved is the outcome of resolving one pool reference. Exactly one of
// Class, Field, Method or String is meaningful when Err is nil.
type Resolved struct {
	Kind   bytecode.IDKind
	Entry  PoolEntry
	Class  *Class
	Field  *Field
	Method *Method
	String string
	Err    error
}

// OK reports whether the reference resolved.
func (r Resolved) OK() bool { return r.Err == nil }

// ResolvedCache holds a method's resolved references keyed by instruction
// address, plus its catch types keyed by handler address. It is written
// once by Preresolve and read-only afterwards.
type ResolvedCache struct {
	byAddr  map[int]Resolved
	catches map[int]Resolved
}

// At returns the resolution recorded for the instruction at addr.
func (c *ResolvedCache) At(addr int) (Resolved, bool) {
	if c == nil {
		return Resolved{}, false
	}
	r, ok := c.byAddr[addr]
	return r, ok
}

// Catch returns the resolved exception class of the handler at pc.
func (c *ResolvedCache) Catch(handlerPC int) (Resolved, bool) {
	if c == nil {
		return Resolved{}, false
	}
	r, ok := c.catches[handlerPC]
	return r, ok
}

// Len returns the number of cached instruction entries.
func (c *ResolvedCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byAddr)
}

// Resolver resolves pool references against a registry and keeps one
// ResolvedCache per method. It is safe for concurrent use.
type Resolver struct {
	reg *Registry

	mu     sync.RWMutex
	caches map[uint64]*ResolvedCache
}

// NewResolver creates a resolver over reg.
func NewResolver(reg *Registry) *Resolver {
	return &Resolver{reg: reg, caches: make(map[uint64]*ResolvedCache)}
}

// Registry returns the underlying registry.
func (r *Resolver) Registry() *Registry { return r.reg }

// Resolve resolves pool id of m as kind, inside g.
func (r *Resolver) Resolve(g *RuntimeGuard, m *Method, id uint16, kind bytecode.IDKind) Resolved {
	res := Resolved{Kind: kind}
	err := g.Do(func() error {
		e, ok := m.Pool.Entry(id)
		if !ok {
			return fmt.Errorf("%s: id %d: %w", m.FullName(), id, ErrBadPoolID)
		}
		res.Entry = e
		if e.Kind != kind {
			return fmt.Errorf("%s: id %d is %s, want %s: %w", m.FullName(), id, e.Kind, kind, ErrKindMismatch)
		}
		return r.resolveEntry(&res, e)
	})
	res.Err = err
	return res
}

func (r *Resolver) resolveEntry(res *Resolved, e PoolEntry) error {
	switch e.Kind {
	case bytecode.IDString:
		res.String = e.Name
		return nil
	case bytecode.IDClass:
		c, ok := r.reg.Lookup(e.Name)
		if !ok {
			return fmt.Errorf("%w %s", ErrUnknownClass, e.Name)
		}
		res.Class = c
		return nil
	}

	cls, name, ok := splitMember(e.Name)
	if !ok {
		return fmt.Errorf("malformed member reference %q: %w", e.Name, ErrBadPoolID)
	}
	c, ok := r.reg.Lookup(cls)
	if !ok {
		return fmt.Errorf("%w %s", ErrUnknownClass, cls)
	}
	switch e.Kind {
	case bytecode.IDField:
		if res.Field = c.LookupField(name); res.Field == nil {
			return fmt.Errorf("%w %s", ErrUnknownField, e.Name)
		}
	case bytecode.IDMethod:
		if res.Method = c.LookupMethod(name); res.Method == nil {
			return fmt.Errorf("%w %s", ErrUnknownMethod, e.Name)
		}
	default:
		return fmt.Errorf("%s: %w", e, ErrKindMismatch)
	}
	return nil
}

// Preresolve walks m once and resolves every id operand and catch type.
// Walking stops at the first undecodable instruction; control flow analysis
// reports that separately.
func (r *Resolver) Preresolve(g *RuntimeGuard, m *Method) *ResolvedCache {
	cache := &ResolvedCache{
		byAddr:  make(map[int]Resolved),
		catches: make(map[int]Resolved),
	}
	cur := bytecode.NewCursor(m.Code, 0, len(m.Code))
	for !cur.Done() {
		in, err := cur.Next()
		if err != nil {
			break
		}
		if kind := in.Op.IDKind(); kind != bytecode.IDNone {
			cache.byAddr[in.Addr] = r.Resolve(g, m, in.ID, kind)
		}
	}
	for _, tb := range m.TryBlocks {
		for _, cb := range tb.Catches {
			if cb.CatchAll {
				continue
			}
			cache.catches[cb.HandlerPC] = r.Resolve(g, m, cb.TypeID, bytecode.IDClass)
		}
	}
	return cache
}

// Cache returns m's resolution cache, building it on first use.
func (r *Resolver) Cache(g *RuntimeGuard, m *Method) *ResolvedCache {
	r.mu.RLock()
	c, ok := r.caches[m.ID]
	r.mu.RUnlock()
	if ok {
		return c
	}

	c = r.Preresolve(g, m)
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.caches[m.ID]; ok {
		return prev
	}
	r.caches[m.ID] = c
	return c
}
