package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// --------------------------------------------------------------------------
// Primitive Types
// --------------------------------------------------------------------------

// PrimitiveType identifies the storable representation of a Primitive.
type PrimitiveType uint8

const (
	PInvalid PrimitiveType = iota
	PBool
	PInt32
	PInt64
	PFloat32
	PFloat64
	PString
)

func (t PrimitiveType) String() string {
	switch t {
	case PBool:
		return "bool"
	case PInt32:
		return "int32"
	case PInt64:
		return "int64"
	case PFloat32:
		return "float32"
	case PFloat64:
		return "float64"
	case PString:
		return "string"
	default:
		return "invalid"
	}
}

// ParsePrimitiveType is the inverse of PrimitiveType.String.
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	switch s {
	case "bool":
		return PBool, nil
	case "int32":
		return PInt32, nil
	case "int64":
		return PInt64, nil
	case "float32":
		return PFloat32, nil
	case "float64":
		return PFloat64, nil
	case "string":
		return PString, nil
	default:
		return PInvalid, fmt.Errorf("unknown primitive type %q", s)
	}
}

// MarshalJSON serializes the type by name.
func (t PrimitiveType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the type from its name.
func (t *PrimitiveType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePrimitiveType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// NativeFunc reports whether a store can persist a primitive type natively.
// Kinds whose natural primitive is not supported are encoded as strings.
type NativeFunc func(PrimitiveType) bool

// AllNative is a NativeFunc for stores that support every primitive type.
func AllNative(PrimitiveType) bool { return true }

// StringsOnly is a NativeFunc for stores that can only persist strings.
func StringsOnly(t PrimitiveType) bool { return t == PString }

// --------------------------------------------------------------------------
// Primitive
// --------------------------------------------------------------------------

// Primitive is the raw value an engine persists. Exactly one payload field
// is meaningful, selected by Type: Bool for PBool, Int for PInt32 and PInt64,
// Float for PFloat32 and PFloat64, Str for PString.
type Primitive struct {
	Type  PrimitiveType `json:"type"`
	Bool  bool          `json:"bool,omitempty"`
	Int   int64         `json:"int,omitempty"`
	Float float64       `json:"float,omitempty"`
	Str   string        `json:"str,omitempty"`
}

func BoolPrimitive(b bool) Primitive       { return Primitive{Type: PBool, Bool: b} }
func Int32Primitive(i int32) Primitive     { return Primitive{Type: PInt32, Int: int64(i)} }
func Int64Primitive(i int64) Primitive     { return Primitive{Type: PInt64, Int: i} }
func Float32Primitive(f float32) Primitive { return Primitive{Type: PFloat32, Float: float64(f)} }
func Float64Primitive(f float64) Primitive { return Primitive{Type: PFloat64, Float: f} }
func StringPrimitive(s string) Primitive   { return Primitive{Type: PString, Str: s} }

// Valid reports whether p carries a known type.
func (p Primitive) Valid() bool {
	return p.Type >= PBool && p.Type <= PString
}

// Equal reports whether both primitives have the same type and payload.
// Floats compare by bit pattern so that NaN equals NaN and 0 differs from -0.
func (p Primitive) Equal(o Primitive) bool {
	if p.Type != o.Type {
		return false
	}
	switch p.Type {
	case PBool:
		return p.Bool == o.Bool
	case PInt32, PInt64:
		return p.Int == o.Int
	case PFloat32, PFloat64:
		return math.Float64bits(p.Float) == math.Float64bits(o.Float)
	case PString:
		return p.Str == o.Str
	default:
		return true
	}
}

// Text renders the payload in a culture independent textual form.
// This is the form used when a primitive must be re-encoded for a store
// that only supports strings.
func (p Primitive) Text() string {
	switch p.Type {
	case PBool:
		return strconv.FormatBool(p.Bool)
	case PInt32, PInt64:
		return strconv.FormatInt(p.Int, 10)
	case PFloat32:
		return strconv.FormatFloat(p.Float, 'g', -1, 32)
	case PFloat64:
		return strconv.FormatFloat(p.Float, 'g', -1, 64)
	case PString:
		return p.Str
	default:
		return ""
	}
}

// ParsePrimitive is the inverse of Text: it reads a payload of type t from
// its culture independent textual form.
func ParsePrimitive(t PrimitiveType, text string) (Primitive, error) {
	var err error
	switch t {
	case PBool:
		var b bool
		if b, err = strconv.ParseBool(text); err == nil {
			return BoolPrimitive(b), nil
		}
	case PInt32:
		var i int64
		if i, err = strconv.ParseInt(text, 10, 32); err == nil {
			return Int32Primitive(int32(i)), nil
		}
	case PInt64:
		var i int64
		if i, err = strconv.ParseInt(text, 10, 64); err == nil {
			return Int64Primitive(i), nil
		}
	case PFloat32:
		var f float64
		if f, err = strconv.ParseFloat(text, 32); err == nil {
			return Float32Primitive(float32(f)), nil
		}
	case PFloat64:
		var f float64
		if f, err = strconv.ParseFloat(text, 64); err == nil {
			return Float64Primitive(f), nil
		}
	case PString:
		return StringPrimitive(text), nil
	default:
		return Primitive{}, fmt.Errorf("invalid primitive type %d", t)
	}
	return Primitive{}, fmt.Errorf("can not parse %q as %s: %w", text, t, err)
}

func (p Primitive) String() string {
	return fmt.Sprintf("%s(%s)", p.Type, p.Text())
}

// Size returns the approximate payload size in bytes.
func (p Primitive) Size() int {
	switch p.Type {
	case PBool:
		return 1
	case PInt32, PFloat32:
		return 4
	case PInt64, PFloat64:
		return 8
	case PString:
		return len(p.Str)
	default:
		return 0
	}
}

// Coerce converts p into a representation the store described by native can hold.
// Natively supported primitives are returned unchanged, anything else becomes
// its textual form.
func Coerce(p Primitive, native NativeFunc) Primitive {
	if native == nil || native(p.Type) {
		return p
	}
	return StringPrimitive(p.Text())
}
