package classpath

import (
	"fmt"

	"github.com/chazu/bcverify/pkg/bytecode"
)

// PoolEntry is a symbolic constant pool reference. Names are "Class" for
// classes, "Class.member" for fields and methods, and the literal text for
// strings.
type PoolEntry struct {
	Kind bytecode.IDKind
	Name string
}

func (e PoolEntry) String() string {
	if e.Kind == bytecode.IDString {
		return fmt.Sprintf("%s %q", e.Kind, e.Name)
	}
	return e.Kind.String() + " " + e.Name
}

// Pool is a method's constant pool. Entries are interned so equal references
// share an id.
type Pool struct {
	entries []PoolEntry
	index   map[PoolEntry]uint16
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{index: make(map[PoolEntry]uint16)}
}

// Add interns an entry and returns its id.
func (p *Pool) Add(kind bytecode.IDKind, name string) (uint16, error) {
	e := PoolEntry{Kind: kind, Name: name}
	if id, ok := p.index[e]; ok {
		return id, nil
	}
	if len(p.entries) > 0xFFFF {
		return 0, fmt.Errorf("constant pool full adding %s", e)
	}
	id := uint16(len(p.entries))
	p.entries = append(p.entries, e)
	p.index[e] = id
	return id, nil
}

// Entry returns the entry with the given id.
func (p *Pool) Entry(id uint16) (PoolEntry, bool) {
	if p == nil || int(id) >= len(p.entries) {
		return PoolEntry{}, false
	}
	return p.entries[id], true
}

// Len returns the number of entries.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Entries returns the entries in id order.
func (p *Pool) Entries() []PoolEntry {
	if p == nil {
		return nil
	}
	return p.entries
}

// NameOf returns the name of entry id, for disassembly.
func (p *Pool) NameOf(_ bytecode.IDKind, id uint16) string {
	e, ok := p.Entry(id)
	if !ok {
		return ""
	}
	return e.Name
}
