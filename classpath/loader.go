package classpath

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chazu/bcverify/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Program file format
// ---------------------------------------------------------------------------

// ProgramFile is the YAML form of a set of classes. Method bodies are
// assembler text; symbolic operands (@Name) become pool entries, and field
// or method names without a class prefix refer to the declaring class.
//
//	classes:
//	  - name: Point
//	    flags: [final]
//	    fields:
//	      - {name: x, type: i32}
//	    methods:
//	      - name: getX
//	        returns: i32
//	        vregs: 0
//	        code: |
//	          ldobj v0, @x
//	          return
type ProgramFile struct {
	Classes []ClassSpec `yaml:"classes"`
}

// ClassSpec declares one class.
type ClassSpec struct {
	Name       string       `yaml:"name"`
	Super      string       `yaml:"super,omitempty"`
	Interfaces []string     `yaml:"interfaces,omitempty"`
	Flags      []string     `yaml:"flags,omitempty"`
	Access     string       `yaml:"access,omitempty"`
	Fields     []FieldSpec  `yaml:"fields,omitempty"`
	Methods    []MethodSpec `yaml:"methods,omitempty"`
}

// FieldSpec declares one field.
type FieldSpec struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Static bool   `yaml:"static,omitempty"`
	Access string `yaml:"access,omitempty"`
}

// MethodSpec declares one method.
type MethodSpec struct {
	Name     string    `yaml:"name"`
	Static   bool      `yaml:"static,omitempty"`
	Abstract bool      `yaml:"abstract,omitempty"`
	Access   string    `yaml:"access,omitempty"`
	Params   []string  `yaml:"params,omitempty"`
	Returns  string    `yaml:"returns,omitempty"`
	Vregs    int       `yaml:"vregs"`
	Code     string    `yaml:"code,omitempty"`
	Try      []TrySpec `yaml:"try,omitempty"`
}

// TrySpec declares a try block by label names.
type TrySpec struct {
	Start   string      `yaml:"start"`
	End     string      `yaml:"end"`
	Catches []CatchSpec `yaml:"catches"`
}

// CatchSpec declares one handler. An empty Type catches everything.
type CatchSpec struct {
	Type    string `yaml:"type,omitempty"`
	Handler string `yaml:"handler"`
	End     string `yaml:"end,omitempty"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// LoadFile loads the classes of a YAML program file.
func (r *Registry) LoadFile(path string) ([]*Class, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	classes, err := r.LoadYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return classes, nil
}

// LoadYAML loads the classes of a YAML program. Nothing is added to the
// registry unless every class loads.
func (r *Registry) LoadYAML(data []byte) ([]*Class, error) {
	var pf ProgramFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse program: %w", err)
	}
	return r.Load(&pf)
}

type loader struct {
	reg     *Registry
	pending map[string]*Class
}

func (l *loader) lookup(name string) (*Class, bool) {
	if c, ok := l.pending[name]; ok {
		return c, true
	}
	return l.reg.lookupDeclared(name)
}

// Load adds the classes of pf to the registry.
func (r *Registry) Load(pf *ProgramFile) ([]*Class, error) {
	l := &loader{reg: r, pending: make(map[string]*Class)}
	out := make([]*Class, 0, len(pf.Classes))

	// Declare every class first so specs may refer to each other in any
	// order.
	for _, cs := range pf.Classes {
		if err := checkName(cs.Name); err != nil {
			return nil, err
		}
		if _, dup := l.lookup(cs.Name); dup {
			return nil, fmt.Errorf("class %s already defined", cs.Name)
		}
		c := &Class{name: cs.Name}
		for _, f := range cs.Flags {
			switch f {
			case "final":
				c.flags |= FlagFinal
			case "interface":
				c.flags |= FlagInterface
			case "abstract":
				c.flags |= FlagAbstract
			default:
				return nil, fmt.Errorf("class %s: unknown flag %q", cs.Name, f)
			}
		}
		acc, ok := ParseAccess(cs.Access)
		if !ok {
			return nil, fmt.Errorf("class %s: unknown access %q", cs.Name, cs.Access)
		}
		c.access = acc
		l.pending[c.name] = c
		out = append(out, c)
	}

	for i, cs := range pf.Classes {
		if err := l.link(out[i], cs); err != nil {
			return nil, fmt.Errorf("class %s: %w", cs.Name, err)
		}
	}
	if err := l.checkCycles(out); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range out {
		if _, dup := r.classes[c.name]; dup {
			return nil, fmt.Errorf("class %s already defined", c.name)
		}
	}
	for _, c := range out {
		r.classes[c.name] = c
		for _, m := range c.methods {
			m.ID = r.nextMethodID.Add(1)
		}
	}
	return out, nil
}

func (l *loader) link(c *Class, cs ClassSpec) error {
	super := cs.Super
	if super == "" && c.name != RootClassName {
		super = RootClassName
	}
	sc, ok := l.lookup(super)
	if !ok {
		return fmt.Errorf("superclass: %w %s", ErrUnknownClass, super)
	}
	if sc.IsFinal() {
		return fmt.Errorf("superclass %s is final", sc.name)
	}
	c.super = sc

	for _, name := range cs.Interfaces {
		ic, ok := l.lookup(name)
		if !ok {
			return fmt.Errorf("interface: %w %s", ErrUnknownClass, name)
		}
		if !ic.IsInterface() {
			return fmt.Errorf("%s is not an interface", name)
		}
		c.interfaces = append(c.interfaces, ic)
	}

	for _, fs := range cs.Fields {
		d, err := l.reg.parseTypeWith(fs.Type, l.lookup)
		if err != nil {
			return fmt.Errorf("field %s: %w", fs.Name, err)
		}
		if d.Void {
			return fmt.Errorf("field %s: void type", fs.Name)
		}
		acc, ok := ParseAccess(fs.Access)
		if !ok {
			return fmt.Errorf("field %s: unknown access %q", fs.Name, fs.Access)
		}
		c.fields = append(c.fields, &Field{Name: fs.Name, Owner: c, Type: d, Static: fs.Static, Access: acc})
	}

	for _, ms := range cs.Methods {
		m, err := l.method(c, ms)
		if err != nil {
			return fmt.Errorf("method %s: %w", ms.Name, err)
		}
		c.methods = append(c.methods, m)
	}
	return nil
}

func (l *loader) method(c *Class, ms MethodSpec) (*Method, error) {
	acc, ok := ParseAccess(ms.Access)
	if !ok {
		return nil, fmt.Errorf("unknown access %q", ms.Access)
	}
	m := &Method{
		Name:     ms.Name,
		Owner:    c,
		Static:   ms.Static,
		Abstract: ms.Abstract || (c.IsInterface() && strings.TrimSpace(ms.Code) == ""),
		Access:   acc,
		NumVregs: ms.Vregs,
		Pool:     NewPool(),
	}
	for _, p := range ms.Params {
		d, err := l.reg.parseTypeWith(p, l.lookup)
		if err != nil {
			return nil, fmt.Errorf("param: %w", err)
		}
		if d.Void {
			return nil, fmt.Errorf("void parameter")
		}
		m.Params = append(m.Params, d)
	}
	ret := ms.Returns
	if ret == "" {
		ret = "void"
	}
	d, err := l.reg.parseTypeWith(ret, l.lookup)
	if err != nil {
		return nil, fmt.Errorf("return: %w", err)
	}
	m.Return = d

	if m.NumVregs < 0 || m.NumVregs+m.NumArgs() > 256 {
		return nil, fmt.Errorf("register count %d out of range", m.NumVregs)
	}
	if strings.TrimSpace(ms.Code) == "" {
		if len(ms.Try) > 0 {
			return nil, fmt.Errorf("try blocks without code")
		}
		return m, nil
	}

	asm := &bytecode.Assembler{Symbols: func(kind bytecode.IDKind, name string) (uint16, error) {
		if (kind == bytecode.IDField || kind == bytecode.IDMethod) && !strings.Contains(name, ".") {
			name = c.name + "." + name
		}
		return m.Pool.Add(kind, name)
	}}
	chunk, err := asm.AssembleChunk(ms.Code)
	if err != nil {
		return nil, err
	}
	m.Code = chunk.Code

	for _, ts := range ms.Try {
		tb, err := l.tryBlock(m, chunk, ts)
		if err != nil {
			return nil, err
		}
		m.TryBlocks = append(m.TryBlocks, tb)
	}
	fillHandlerSizes(m)
	return m, nil
}

func (l *loader) tryBlock(m *Method, chunk *bytecode.Chunk, ts TrySpec) (TryBlock, error) {
	label := func(name string) (int, error) {
		off, ok := chunk.LabelOffset(name)
		if !ok {
			return 0, fmt.Errorf("try: undefined label %q", name)
		}
		return off, nil
	}
	start, err := label(ts.Start)
	if err != nil {
		return TryBlock{}, err
	}
	end, err := label(ts.End)
	if err != nil {
		return TryBlock{}, err
	}
	if end < start {
		return TryBlock{}, fmt.Errorf("try: end %q before start %q", ts.End, ts.Start)
	}
	tb := TryBlock{Start: start, Length: end - start}

	for _, cs := range ts.Catches {
		h, err := label(cs.Handler)
		if err != nil {
			return TryBlock{}, err
		}
		cb := CatchBlock{HandlerPC: h, CatchAll: cs.Type == ""}
		if cs.End != "" {
			e, err := label(cs.End)
			if err != nil {
				return TryBlock{}, err
			}
			cb.Size = e - h
		}
		if !cb.CatchAll {
			id, err := m.Pool.Add(bytecode.IDClass, cs.Type)
			if err != nil {
				return TryBlock{}, err
			}
			cb.TypeID = id
		}
		tb.Catches = append(tb.Catches, cb)
	}
	return tb, nil
}

// fillHandlerSizes extends every handler without an explicit end up to the
// next handler or try block start, or the end of the code.
func fillHandlerSizes(m *Method) {
	var starts []int
	for _, tb := range m.TryBlocks {
		starts = append(starts, tb.Start)
		for _, cb := range tb.Catches {
			starts = append(starts, cb.HandlerPC)
		}
	}
	slices.Sort(starts)

	for i := range m.TryBlocks {
		for j := range m.TryBlocks[i].Catches {
			cb := &m.TryBlocks[i].Catches[j]
			if cb.Size > 0 {
				continue
			}
			end := len(m.Code)
			for _, s := range starts {
				if s > cb.HandlerPC {
					end = s
					break
				}
			}
			cb.Size = end - cb.HandlerPC
		}
	}
}

func (l *loader) checkCycles(classes []*Class) error {
	for _, c := range classes {
		seen := map[*Class]bool{}
		for k := c; k != nil; k = k.super {
			if seen[k] {
				return fmt.Errorf("class %s: inheritance cycle", c.name)
			}
			seen[k] = true
		}
	}
	return nil
}
