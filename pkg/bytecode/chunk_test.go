package bytecode

import (
	"bytes"
	"testing"
)

func TestChunkEmit(t *testing.T) {
	c := NewChunk()

	if off := c.Emit(OpNop); off != 0 {
		t.Errorf("first offset = %d, want 0", off)
	}
	if off := c.Emit(OpMov, 1, 2); off != 1 {
		t.Errorf("second offset = %d, want 1", off)
	}
	c.Emit(OpMovi, 0, -1)
	c.Emit(OpNewobj, 3, 0x0102)

	want := []byte{
		byte(OpNop),
		byte(OpMov), 1, 2,
		byte(OpMovi), 0, 0xFF, 0xFF, 0xFF, 0xFF,
		byte(OpNewobj), 3, 0x01, 0x02,
	}
	if !bytes.Equal(c.Code, want) {
		t.Errorf("Code = % X, want % X", c.Code, want)
	}
	if c.CodeLen() != len(want) || c.CurrentOffset() != len(want) {
		t.Errorf("CodeLen = %d, want %d", c.CodeLen(), len(want))
	}
}

func TestChunkEmitCall(t *testing.T) {
	c := NewChunk()
	c.Emit(OpCall, 7, 4, 5, 6)
	c.Emit(OpCallRange, 8, 2, 9)

	want := []byte{
		byte(OpCall), 0x00, 0x07, 3, 4, 5, 6,
		byte(OpCallRange), 0x00, 0x08, 2, 9,
	}
	if !bytes.Equal(c.Code, want) {
		t.Errorf("Code = % X, want % X", c.Code, want)
	}
}

func TestChunkEmitPanicsOnWrongArity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for wrong operand count")
		}
	}()
	NewChunk().Emit(OpMov, 1)
}

func TestChunkEmitFloat(t *testing.T) {
	c := NewChunk()
	c.EmitFloat(OpFmovi64, 2, 1.5)

	in, err := Decode(c.Code, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Reg(0) != 2 || in.Float() != 1.5 {
		t.Errorf("got v%d = %v, want v2 = 1.5", in.Reg(0), in.Float())
	}
}

func TestChunkPatchJump(t *testing.T) {
	c := NewChunk()
	jmp := c.EmitJump(OpJeq, 4)
	c.Emit(OpNop)
	c.Emit(OpNop)
	c.PatchJump(jmp)

	in, err := Decode(c.Code, jmp)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Target() != 6 {
		t.Errorf("target = %d, want 6", in.Target())
	}
	if in.Reg(0) != 4 {
		t.Errorf("register = v%d, want v4", in.Reg(0))
	}
}

func TestChunkBackwardLabel(t *testing.T) {
	c := NewChunk()
	if err := c.Label("top"); err != nil {
		t.Fatal(err)
	}
	c.Emit(OpNop)
	jmp := c.EmitJumpTo(OpJmp, "top")
	if err := c.ResolveLabels(); err != nil {
		t.Fatal(err)
	}
	in, _ := Decode(c.Code, jmp)
	if in.Off != -1 || in.Target() != 0 {
		t.Errorf("offset = %d target = %d, want -1 and 0", in.Off, in.Target())
	}
}

func TestChunkLabelErrors(t *testing.T) {
	c := NewChunk()
	if err := c.Label("x"); err != nil {
		t.Fatal(err)
	}
	if err := c.Label("x"); err == nil {
		t.Error("duplicate label accepted")
	}

	c.EmitJumpTo(OpJmp, "missing")
	if err := c.ResolveLabels(); err == nil {
		t.Error("undefined label accepted")
	}
}

func TestChunkLabelOffset(t *testing.T) {
	c := NewChunk()
	c.Emit(OpNop)
	_ = c.Label("here")
	off, ok := c.LabelOffset("here")
	if !ok || off != 1 {
		t.Errorf("LabelOffset = %d, %v; want 1, true", off, ok)
	}
}
