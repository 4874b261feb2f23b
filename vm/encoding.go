package vm

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrNativeConstant is returned when encoding a chunk that embeds a native
// function; natives are bound at bootstrap and have no portable form.
var ErrNativeConstant = errors.New("vm: cannot encode native function constant")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireChunk struct {
	Name        string            `cbor:"1,keyasint"`
	Code        []byte            `cbor:"2,keyasint"`
	Constants   []wireConstant    `cbor:"3,keyasint,omitempty"`
	Lines       []LineInfo        `cbor:"4,keyasint,omitempty"`
	GlobalNames map[uint16]string `cbor:"5,keyasint,omitempty"`
}

type wireConstant struct {
	Kind  ValueKind  `cbor:"1,keyasint"`
	Num   float64    `cbor:"2,keyasint,omitempty"`
	Str   string     `cbor:"3,keyasint,omitempty"`
	Arity int        `cbor:"4,keyasint,omitempty"`
	Chunk *wireChunk `cbor:"5,keyasint,omitempty"`
}

// MarshalChunk serializes a Chunk, including nested function chunks, to
// canonical CBOR.
func MarshalChunk(c *Chunk) ([]byte, error) {
	w, err := toWire(c)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(w)
}

// UnmarshalChunk deserializes a Chunk from CBOR bytes.
func UnmarshalChunk(data []byte) (*Chunk, error) {
	var w wireChunk
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("vm: unmarshal chunk: %w", err)
	}
	return fromWire(&w), nil
}

func toWire(c *Chunk) (*wireChunk, error) {
	w := &wireChunk{
		Name:        c.Name,
		Code:        c.Code,
		Lines:       c.Lines,
		GlobalNames: c.GlobalNames,
	}
	for _, k := range c.Constants {
		wc := wireConstant{Kind: k.kind}
		switch k.kind {
		case KindNumber, KindBool:
			wc.Num = k.num
		case KindString:
			wc.Str = k.str
		case KindFunction:
			fn := k.AsFunction()
			inner, err := toWire(fn.Chunk)
			if err != nil {
				return nil, err
			}
			wc.Str = fn.Name
			wc.Arity = fn.Arity
			wc.Chunk = inner
		case KindNative:
			return nil, ErrNativeConstant
		}
		w.Constants = append(w.Constants, wc)
	}
	return w, nil
}

func fromWire(w *wireChunk) *Chunk {
	c := &Chunk{
		Name:        w.Name,
		Code:        w.Code,
		Lines:       w.Lines,
		GlobalNames: w.GlobalNames,
	}
	if c.GlobalNames == nil {
		c.GlobalNames = make(map[uint16]string)
	}
	for _, wc := range w.Constants {
		var v Value
		switch wc.Kind {
		case KindNumber:
			v = NumberValue(wc.Num)
		case KindBool:
			v = BoolValue(wc.Num != 0)
		case KindString:
			v = StringValue(wc.Str)
		case KindFunction:
			v = FunctionValue(&Function{Name: wc.Str, Arity: wc.Arity, Chunk: fromWire(wc.Chunk)})
		default:
			v = Nil
		}
		c.Constants = append(c.Constants, v)
	}
	return c
}
