package classpath

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/bcverify/pkg/bytecode"
	"github.com/chazu/bcverify/types"
)

const shapesYAML = `
classes:
  - name: geo/Shape
    flags: [abstract]
    methods:
      - name: area
        abstract: true
        returns: f64
  - name: geo/Square
    super: geo/Shape
    fields:
      - {name: side, type: f64}
      - {name: made, type: i32, static: true, access: private}
    methods:
      - name: area
        returns: f64
        vregs: 1
        code: |
          ldobj.64 v1, @side
          sta.64 v0
          fmul2.64 v0
          return.64
      - name: safeDiv
        static: true
        params: [i32, i32]
        returns: i32
        vregs: 0
        try:
          - start: begin
            end: done
            catches:
              - {type: Exception, handler: caught}
        code: |
          begin:
            lda v0
            div2 v1
          done:
            return
          caught:
            ldai 0
            return
`

func TestLoadYAML(t *testing.T) {
	reg := NewRegistry()
	classes, err := reg.LoadYAML([]byte(shapesYAML))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if len(classes) != 2 {
		t.Fatalf("loaded %d classes, want 2", len(classes))
	}

	shape, _ := reg.Lookup("geo/Shape")
	square, _ := reg.Lookup("geo/Square")
	if !shape.IsAbstract() || square.IsAbstract() {
		t.Error("abstract flags not applied")
	}
	if square.Superclass() != shape || shape.Superclass() != reg.Root() {
		t.Error("superclass chain not linked")
	}
	if got := square.Package(); got != "geo" {
		t.Errorf("Package() = %q, want geo", got)
	}

	if m := shape.LookupMethod("area"); m == nil || m.HasBody() {
		t.Error("abstract method should have no body")
	}
	area := square.LookupMethod("area")
	if area.NumArgs() != 1 || area.ArgTypes()[0].Class != square {
		t.Errorf("area args = %v, want the receiver only", area.ArgTypes())
	}
	if got := area.Pool.Entries(); !cmp.Equal(got, []PoolEntry{{Kind: bytecode.IDField, Name: "geo/Square.side"}}) {
		t.Errorf("area pool = %v", got)
	}

	div := square.LookupMethod("safeDiv")
	want := []TryBlock{{Start: 0, Length: 4, Catches: []CatchBlock{{HandlerPC: 5, Size: 6, TypeID: 0}}}}
	if diff := cmp.Diff(want, div.TryBlocks); diff != "" {
		t.Errorf("try blocks (-want +got):\n%s", diff)
	}
	if e, _ := div.Pool.Entry(0); e.Name != ExceptionClassName {
		t.Errorf("catch type entry = %v", e)
	}

	if a, b := area.ID, div.ID; a == 0 || b == 0 || a == b {
		t.Errorf("method ids %d and %d are not unique", a, b)
	}
	if got := len(reg.Methods()); got != 2 {
		t.Errorf("Methods() returned %d bodies, want 2", got)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown super", "classes: [{name: A, super: Nope}]", "unknown class"},
		{"final super", "classes: [{name: A, super: String}]", "final"},
		{"duplicate", "classes: [{name: A}, {name: A}]", "already defined"},
		{"core clash", "classes: [{name: Object}]", "already defined"},
		{"reserved name", "classes: [{name: i32}]", "reserved"},
		{"bad flag", "classes: [{name: A, flags: [sealed]}]", "unknown flag"},
		{"cycle", "classes: [{name: A, super: B}, {name: B, super: A}]", "cycle"},
		{"void field", "classes: [{name: A, fields: [{name: f, type: void}]}]", "void"},
		{"bad mnemonic", "classes: [{name: A, methods: [{name: m, vregs: 0, code: frob}]}]", "unknown mnemonic"},
		{"try label", "classes: [{name: A, methods: [{name: m, vregs: 0, code: return.void, try: [{start: x, end: y, catches: []}]}]}]", "undefined label"},
		{"too many registers", "classes: [{name: A, methods: [{name: m, static: true, vregs: 256, params: [i32], code: return.void}]}]", "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			before := len(reg.Classes())
			_, err := reg.LoadYAML([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want it to mention %q", err, tt.want)
			}
			if len(reg.Classes()) != before {
				t.Error("failed load left classes behind")
			}
		})
	}
}

func TestParseType(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		in   string
		want types.Type
	}{
		{"i32", types.I32.Type()},
		{"u64", types.U64.Type()},
		{"void", types.Top.Type()},
		{"String", mustLookup(t, reg, StringClassName).Type()},
	}
	for _, tt := range tests {
		d, err := reg.ParseType(tt.in)
		if err != nil {
			t.Fatalf("ParseType(%q): %v", tt.in, err)
		}
		if d.Type() != tt.want {
			t.Errorf("ParseType(%q).Type() = %v, want %v", tt.in, d.Type(), tt.want)
		}
	}

	d, err := reg.ParseType("i32[][]")
	if err != nil {
		t.Fatal(err)
	}
	outer := d.Class
	if !outer.IsArray() || outer.Name() != "i32[][]" {
		t.Fatalf("outer = %v", outer.Name())
	}
	inner, ok := outer.ComponentClass().(*Class)
	if !ok || inner.ComponentBuiltin() != types.I32 {
		t.Error("inner array does not hold i32")
	}
	if again, _ := reg.Lookup("i32[][]"); again != outer {
		t.Error("array classes are not interned")
	}

	if _, err := reg.ParseType("Missing"); !errors.Is(err, ErrUnknownClass) {
		t.Errorf("err = %v, want ErrUnknownClass", err)
	}
	if _, err := reg.ParseType("void[]"); err == nil {
		t.Error("void[] accepted")
	}
}

func TestLookupMethod(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.LoadYAML([]byte(shapesYAML)); err != nil {
		t.Fatal(err)
	}
	if m, ok := reg.LookupMethod("geo/Square.area"); !ok || m.Name != "area" {
		t.Errorf("LookupMethod(geo/Square.area) = %v, %v", m, ok)
	}
	for _, bad := range []string{"area", "geo/Square.", "geo/Nope.area", "geo/Square.perimeter"} {
		if _, ok := reg.LookupMethod(bad); ok {
			t.Errorf("LookupMethod(%q) succeeded", bad)
		}
	}
}

func mustLookup(t *testing.T, reg *Registry, name string) *Class {
	t.Helper()
	c, ok := reg.Lookup(name)
	if !ok {
		t.Fatalf("class %s not found", name)
	}
	return c
}
