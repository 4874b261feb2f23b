package compiler

import "strings"

// Type is a static ella type.
type Type interface {
	String() string
	typ() // marker method
}

// BasicKind enumerates the non-function types.
type BasicKind int

const (
	KindAny BasicKind = iota
	KindNumber
	KindBool
	KindString
	KindNil
)

// BasicType is one of Any, Number, Bool, String or Nil.
type BasicType struct {
	Kind BasicKind
}

func (t *BasicType) typ() {}

func (t *BasicType) String() string {
	switch t.Kind {
	case KindNumber:
		return "Number"
	case KindBool:
		return "Bool"
	case KindString:
		return "String"
	case KindNil:
		return "Nil"
	}
	return "Any"
}

// Shared basic type instances.
var (
	TypeAny    Type = &BasicType{Kind: KindAny}
	TypeNumber Type = &BasicType{Kind: KindNumber}
	TypeBool   Type = &BasicType{Kind: KindBool}
	TypeString Type = &BasicType{Kind: KindString}
	TypeNil    Type = &BasicType{Kind: KindNil}
)

// FnType is the type of a callable.
type FnType struct {
	Params []Type
	Ret    Type
}

func (t *FnType) typ() {}

func (t *FnType) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	return "Fn(" + strings.Join(parts, ", ") + ") -> " + t.Ret.String()
}

// NewFnType is a convenience constructor.
func NewFnType(ret Type, params ...Type) *FnType {
	return &FnType{Params: params, Ret: ret}
}

// IsAny reports whether t is the dynamic type.
func IsAny(t Type) bool {
	b, ok := t.(*BasicType)
	return ok && b.Kind == KindAny
}

// Compatible reports whether a value of type src may flow into dst.
// Any is compatible in both directions.
func Compatible(dst, src Type) bool {
	if IsAny(dst) || IsAny(src) {
		return true
	}
	switch d := dst.(type) {
	case *BasicType:
		s, ok := src.(*BasicType)
		return ok && s.Kind == d.Kind
	case *FnType:
		s, ok := src.(*FnType)
		if !ok || len(s.Params) != len(d.Params) {
			return false
		}
		for i := range d.Params {
			if !Compatible(s.Params[i], d.Params[i]) {
				return false
			}
		}
		return Compatible(d.Ret, s.Ret)
	}
	return false
}

// typeByName maps annotation names to types.
var typeByName = map[string]Type{
	"Any":    TypeAny,
	"Number": TypeNumber,
	"Bool":   TypeBool,
	"String": TypeString,
	"Nil":    TypeNil,
}

// LookupType returns the type named by an annotation.
func LookupType(name string) (Type, bool) {
	t, ok := typeByName[name]
	return t, ok
}
