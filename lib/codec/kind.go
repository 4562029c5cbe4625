package codec

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Kind
// --------------------------------------------------------------------------

// Kind identifies one of the typed value kinds that can be stored as a setting.
type Kind uint8

const (
	KindInvalid Kind = iota // Not a storable kind
	KindBool                // bool
	KindInt32               // int32
	KindInt64               // int64
	KindFloat32             // float32
	KindFloat64             // float64
	KindDecimal             // arbitrary-precision fixed-point decimal
	KindString              // string
	KindTime                // instant in time
	KindUUID                // UUID
)

// Kinds lists every valid kind in declaration order.
var Kinds = []Kind{
	KindBool, KindInt32, KindInt64, KindFloat32, KindFloat64,
	KindDecimal, KindString, KindTime, KindUUID,
}

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindUUID:
		return "uuid"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	return k >= KindBool && k <= KindUUID
}

// Nullable reports whether a null value of this kind is meaningful.
// Writing a null of a nullable kind removes the key instead of failing.
func (k Kind) Nullable() bool {
	return k == KindString || k == KindUUID
}

// ParseKind converts a kind name (as returned by Kind.String) back to a Kind.
// A few common aliases are accepted (int, long, float, double, guid, datetime).
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bool", "boolean":
		return KindBool, nil
	case "int32", "int":
		return KindInt32, nil
	case "int64", "long":
		return KindInt64, nil
	case "float32", "float", "single":
		return KindFloat32, nil
	case "float64", "double":
		return KindFloat64, nil
	case "decimal":
		return KindDecimal, nil
	case "string", "str":
		return KindString, nil
	case "time", "datetime":
		return KindTime, nil
	case "uuid", "guid":
		return KindUUID, nil
	default:
		return KindInvalid, newError(ErrCUnsupportedType, KindInvalid, fmt.Sprintf("unknown kind %q", name), nil)
	}
}
