package plugin

import (
	"testing"

	"github.com/chazu/bcverify/classpath"
	"github.com/chazu/bcverify/types"
)

func TestNormalizeType(t *testing.T) {
	p := &Default{}
	tests := []struct {
		in, want types.Builtin
	}{
		{types.U1, types.I32},
		{types.U16, types.I32},
		{types.I32, types.I32},
		{types.U32, types.U32},
		{types.U64, types.I64},
		{types.F64, types.F64},
		{types.Reference, types.Reference},
	}
	for _, tt := range tests {
		if got := p.NormalizeType(tt.in); got != tt.want {
			t.Errorf("NormalizeType(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestCoercionAllowed(t *testing.T) {
	p := &Default{}
	tests := []struct {
		from, to types.Builtin
		want     bool
	}{
		{types.I32, types.U32, true},
		{types.U32, types.I32, true},
		{types.I32, types.U8, true},
		{types.U64, types.I64, true},
		{types.I32, types.I64, false},
		{types.F64, types.I64, false},
		{types.F32, types.I32, false},
	}
	for _, tt := range tests {
		if got := p.CoercionAllowed(tt.from, tt.to); got != tt.want {
			t.Errorf("CoercionAllowed(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

const accessProgram = `
classes:
  - name: geo/Shape
    access: package
    fields:
      - {name: id, type: i32, access: private}
      - {name: area, type: f64, access: protected}
      - {name: name, type: String}
  - name: geo/Circle
    super: geo/Shape
  - name: app/Square
    super: geo/Shape
  - name: app/Main
`

func TestAccessChecks(t *testing.T) {
	reg := classpath.NewRegistry()
	if _, err := reg.LoadYAML([]byte(accessProgram)); err != nil {
		t.Fatal(err)
	}
	lookup := func(name string) *classpath.Class {
		c, ok := reg.Lookup(name)
		if !ok {
			t.Fatalf("class %s not loaded", name)
		}
		return c
	}
	shape, circle, square, app := lookup("geo/Shape"), lookup("geo/Circle"), lookup("app/Square"), lookup("app/Main")
	p := &Default{}

	if !p.CheckClassAccess(circle, shape) {
		t.Error("same package should see package class")
	}
	if p.CheckClassAccess(app, shape) {
		t.Error("other package should not see package class")
	}

	id, area, name := shape.LookupField("id"), shape.LookupField("area"), shape.LookupField("name")
	tests := []struct {
		from  *classpath.Class
		field *classpath.Field
		want  bool
	}{
		{shape, id, true},
		{circle, id, false},
		{circle, area, true},
		{square, area, true},
		{app, area, false},
		{app, name, true},
	}
	for _, tt := range tests {
		if got := p.CheckFieldAccess(tt.from, tt.field); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from.Name(), tt.field.FullName(), got, tt.want)
		}
	}
}

func TestExemptAndConstructor(t *testing.T) {
	reg := classpath.NewRegistry()
	c, err := reg.DefineClass("Util", nil, 0, classpath.AccessPublic)
	if err != nil {
		t.Fatal(err)
	}
	m := reg.AddMethod(c, classpath.Method{Name: "native", Static: true})

	p := &Default{Exempt: map[string]bool{"Util.native": true}}
	if !p.IsCallExempt(m) {
		t.Error("Util.native should be exempt")
	}
	if (&Default{}).IsCallExempt(m) {
		t.Error("nothing is exempt by default")
	}
	if !p.IsConstructorName("<init>") || p.IsConstructorName("init") {
		t.Error("constructor naming mismatch")
	}
	if p.ThrowableClass(reg).Name() != classpath.ThrowableClassName {
		t.Error("Throwable class not found")
	}
}
