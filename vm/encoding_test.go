package vm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMarshalChunk_RoundTrip(t *testing.T) {
	inner := NewChunkBuilder("double")
	inner.SetLine(2)
	inner.EmitByte(OpPushLocal, 0)
	inner.EmitByte(OpPushLocal, 0)
	inner.Emit(OpAdd)
	inner.Emit(OpReturn)

	b := NewChunkBuilder("main")
	b.SetLine(1)
	fidx, _ := b.AddConstant(FunctionValue(&Function{Name: "double", Arity: 1, Chunk: inner.Build()}))
	b.EmitUint16(OpPushConstant, fidx)
	b.EmitGlobal(OpDefineGlobal, 3, "double")
	b.SetLine(4)
	b.EmitGlobal(OpPushGlobal, 3, "double")
	nidx, _ := b.AddConstant(NumberValue(21))
	b.EmitUint16(OpPushConstant, nidx)
	b.EmitByte(OpCall, 1)
	b.EmitGlobal(OpDefineGlobal, 4, "answer")
	sidx, _ := b.AddConstant(StringValue("done"))
	b.EmitUint16(OpPushConstant, sidx)
	b.Emit(OpPOP)
	original := b.Build()

	data, err := MarshalChunk(original)
	if err != nil {
		t.Fatalf("MarshalChunk: %v", err)
	}
	decoded, err := UnmarshalChunk(data)
	if err != nil {
		t.Fatalf("UnmarshalChunk: %v", err)
	}

	if diff := cmp.Diff(Disassemble(original), Disassemble(decoded)); diff != "" {
		t.Errorf("disassembly differs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(original.Lines, decoded.Lines); diff != "" {
		t.Errorf("line table differs (-want +got):\n%s", diff)
	}

	// The decoded chunk still runs.
	m := New()
	if out := m.Interpret(decoded); !out.Ok() {
		t.Fatalf("interpret decoded: %v", out.Err)
	}
	if v, _ := m.Global(4); v.AsNumber() != 42 {
		t.Errorf("answer = %v, want 42", v)
	}
}

func TestMarshalChunk_Deterministic(t *testing.T) {
	b := NewChunkBuilder("c")
	b.EmitGlobal(OpPushGlobal, 1, "a")
	b.EmitGlobal(OpPushGlobal, 2, "b")
	b.EmitGlobal(OpPushGlobal, 3, "c")
	c := b.Build()

	first, err := MarshalChunk(c)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, _ := MarshalChunk(c)
		if string(again) != string(first) {
			t.Fatal("canonical encoding is not stable")
		}
	}
}

func TestMarshalChunk_RejectsNatives(t *testing.T) {
	b := NewChunkBuilder("boot")
	idx, _ := b.AddConstant(NativeValue(&Native{Name: "clock"}))
	b.EmitUint16(OpPushConstant, idx)

	_, err := MarshalChunk(b.Build())
	if !errors.Is(err, ErrNativeConstant) {
		t.Errorf("err = %v, want ErrNativeConstant", err)
	}
}

func TestUnmarshalChunk_Garbage(t *testing.T) {
	if _, err := UnmarshalChunk([]byte{0xff, 0x00, 0x13}); err == nil {
		t.Error("expected error for garbage input")
	}
}
