package bytecode

import (
	"strings"
	"testing"
)

func TestDisassemble(t *testing.T) {
	c := NewChunk()
	c.Emit(OpMovi, 0, 42)
	c.Emit(OpLda, 0)
	c.Emit(OpJeqz, 4)
	c.Emit(OpNop)
	c.Emit(OpReturn)

	got := Disassemble(c.Code)
	want := strings.Join([]string{
		"0000  movi v0, 42",
		"0006  lda v0",
		"0008  jeqz +4 ; -> 000C",
		"000B  nop",
		"000C  return",
		"",
	}, "\n")
	if got != want {
		t.Errorf("Disassemble =\n%s\nwant\n%s", got, want)
	}
}

func TestDisassembleWithNames(t *testing.T) {
	c := NewChunk()
	c.Emit(OpNewobj, 1, 5)
	c.Emit(OpCallRange, 6, 2, 1)

	names := func(kind IDKind, id uint16) string {
		if kind == IDClass && id == 5 {
			return "Point"
		}
		return ""
	}
	got := DisassembleWithNames(c.Code, names)
	if !strings.Contains(got, "newobj v1, #5 (Point)") {
		t.Errorf("missing class annotation:\n%s", got)
	}
	if !strings.Contains(got, "call.range #6, 2, v1") {
		t.Errorf("missing range call:\n%s", got)
	}
}

func TestDisassembleMalformed(t *testing.T) {
	got := Disassemble([]byte{byte(OpNop), 0xEE, byte(OpNop)})
	if !strings.Contains(got, "0001  .byte 0xEE") {
		t.Errorf("malformed byte not shown:\n%s", got)
	}
	if strings.Contains(got, "0002") {
		t.Errorf("listing continued past malformed byte:\n%s", got)
	}
}

func TestDisassembleRoundTrip(t *testing.T) {
	src := "movi v0, 7\nlda v0\nadd2 v0\nsta v1\nreturn.void\n"
	code, err := Assemble(src)
	if err != nil {
		t.Fatal(err)
	}
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(Disassemble(code)), "\n") {
		lines = append(lines, strings.TrimSpace(l[6:]))
	}
	again, err := Assemble(strings.Join(lines, "\n"))
	if err != nil {
		t.Fatalf("reassemble: %v", err)
	}
	if string(again) != string(code) {
		t.Errorf("round trip changed code: % X vs % X", again, code)
	}
}
