package bytecode

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestAssembleBasic(t *testing.T) {
	src := `
; counts down from 3
    movi v0, 3
loop:
    lda v0
    jeqz done
    inc v0, -1
    jmp loop
done: return.void
`
	code, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	c := NewChunk()
	c.Emit(OpMovi, 0, 3)
	_ = c.Label("loop")
	c.Emit(OpLda, 0)
	c.EmitJumpTo(OpJeqz, "done")
	c.Emit(OpInc, 0, -1)
	c.EmitJumpTo(OpJmp, "loop")
	_ = c.Label("done")
	c.Emit(OpReturnVoid)
	if err := c.ResolveLabels(); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(code, c.Code) {
		t.Errorf("code = % X\nwant   % X", code, c.Code)
	}
}

func TestAssembleSymbols(t *testing.T) {
	var seen []string
	a := &Assembler{Symbols: func(kind IDKind, name string) (uint16, error) {
		seen = append(seen, kind.String()+":"+name)
		switch name {
		case "Point":
			return 1, nil
		case "Point.x":
			return 2, nil
		case "hi; there":
			return 3, nil
		case "Point.<init>":
			return 4, nil
		}
		return 0, fmt.Errorf("unknown symbol %q", name)
	}}

	src := `
newobj v0, @Point
ldobj v0, @Point.x
lda.str "hi; there" ; trailing comment
call @Point.<init>, v0, v1
ldstatic #9
`
	code, err := a.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []string{"class:Point", "field:Point.x", "string:hi; there", "method:Point.<init>"}
	if strings.Join(seen, ",") != strings.Join(want, ",") {
		t.Errorf("symbols = %v, want %v", seen, want)
	}

	in, err := Decode(code, len(code)-3)
	if err != nil || in.Op != OpLdstatic || in.ID != 9 {
		t.Errorf("last instruction = %+v, %v", in, err)
	}
}

func TestAssembleFloat(t *testing.T) {
	code, err := Assemble("fldai.64 2.25")
	if err != nil {
		t.Fatal(err)
	}
	in, _ := Decode(code, 0)
	if in.Float() != 2.25 {
		t.Errorf("float immediate = %v, want 2.25", in.Float())
	}
}

func TestAssembleNumericJump(t *testing.T) {
	code, err := Assemble("jmp 1\nnop")
	if err != nil {
		t.Fatal(err)
	}
	in, _ := Decode(code, 0)
	if in.Off != 1 {
		t.Errorf("offset = %d, want 1", in.Off)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown mnemonic", "frobnicate v0", "unknown mnemonic"},
		{"bad register", "lda x0", "expected register"},
		{"arity", "mov v0", "takes 2 operands"},
		{"undefined label", "jmp nowhere", "undefined label"},
		{"symbol without table", "newobj v0, @Foo", "without a symbol table"},
		{"duplicate label", "a:\na:", "defined twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.src)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}
