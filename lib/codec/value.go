package codec

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --------------------------------------------------------------------------
// Value (closed sum type over all supported kinds)
// --------------------------------------------------------------------------

// Value is a typed setting value. The set of implementations is closed:
// only the types declared in this file satisfy the interface.
type Value interface {
	// Kind returns the kind of the value.
	Kind() Kind
	sealed()
}

type (
	Bool    bool
	Int32   int32
	Int64   int64
	Float32 float32
	Float64 float64
	String  string
	UUID    uuid.UUID
)

// Decimal is an arbitrary-precision fixed-point value.
type Decimal struct{ decimal.Decimal }

// Time is an instant. Only 100ns precision survives a round-trip through a store.
type Time struct{ time.Time }

// Null is the typed absence of a value. Writing a Null of a nullable kind
// (string, uuid) removes the key, any other Null is rejected.
type Null struct{ Of Kind }

func (Bool) Kind() Kind    { return KindBool }
func (Int32) Kind() Kind   { return KindInt32 }
func (Int64) Kind() Kind   { return KindInt64 }
func (Float32) Kind() Kind { return KindFloat32 }
func (Float64) Kind() Kind { return KindFloat64 }
func (Decimal) Kind() Kind { return KindDecimal }
func (String) Kind() Kind  { return KindString }
func (Time) Kind() Kind    { return KindTime }
func (UUID) Kind() Kind    { return KindUUID }
func (n Null) Kind() Kind  { return n.Of }

func (Bool) sealed()    {}
func (Int32) sealed()   {}
func (Int64) sealed()   {}
func (Float32) sealed() {}
func (Float64) sealed() {}
func (Decimal) sealed() {}
func (String) sealed()  {}
func (Time) sealed()    {}
func (UUID) sealed()    {}
func (Null) sealed()    {}

// NewDecimal wraps d as a Value.
func NewDecimal(d decimal.Decimal) Decimal { return Decimal{d} }

// NewTime wraps t as a Value.
func NewTime(t time.Time) Time { return Time{t} }

func (u UUID) String() string { return uuid.UUID(u).String() }

// Zero returns the zero value of kind k, or nil if k is not valid.
func Zero(k Kind) Value {
	switch k {
	case KindBool:
		return Bool(false)
	case KindInt32:
		return Int32(0)
	case KindInt64:
		return Int64(0)
	case KindFloat32:
		return Float32(0)
	case KindFloat64:
		return Float64(0)
	case KindDecimal:
		return Decimal{decimal.Zero}
	case KindString:
		return String("")
	case KindTime:
		return Time{}
	case KindUUID:
		return UUID(uuid.Nil)
	default:
		return nil
	}
}

// Equal reports whether a and b hold the same kind and the same value.
// Decimals compare numerically, times compare as instants.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Decimal:
		bv, ok := b.(Decimal)
		return ok && av.Decimal.Equal(bv.Decimal)
	case Time:
		bv, ok := b.(Time)
		return ok && av.Time.Equal(bv.Time)
	default:
		return a == b
	}
}
