package codec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Canonical string forms of the float64 sentinels. Besides the shortest
// round-trip form, the 15 significant digit form written by older stores is
// recognized, since it does not parse back into a finite float64.
var (
	maxFloat64Strings = []string{
		strconv.FormatFloat(math.MaxFloat64, 'g', -1, 64),
		"1.79769313486232E+308",
	}
	minFloat64Strings = []string{
		strconv.FormatFloat(-math.MaxFloat64, 'g', -1, 64),
		"-1.79769313486232E+308",
	}
)

// --------------------------------------------------------------------------
// Codec
// --------------------------------------------------------------------------

// Options configures the codec
type Options struct {
	// LegacyLocation is the location legacy (non-negative) tick counts are
	// interpreted in. nil means time.Local.
	LegacyLocation *time.Location
}

// DefaultOptions returns the default codec options
func DefaultOptions() *Options {
	return &Options{LegacyLocation: time.Local}
}

// Codec converts typed values to storable primitives and back.
// A Codec holds no mutable state and is safe for concurrent use.
type Codec struct {
	legacyLoc *time.Location
}

// NewCodec creates a codec with the given options (nil = defaults).
func NewCodec(opts *Options) *Codec {
	if opts == nil {
		opts = DefaultOptions()
	}
	loc := opts.LegacyLocation
	if loc == nil {
		loc = time.Local
	}
	return &Codec{legacyLoc: loc}
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Encode converts v into the primitive stored for it. native tells which
// primitive types the target store supports, unsupported ones are written as
// strings. A nil native is treated as AllNative.
func (c *Codec) Encode(v Value, native NativeFunc) (Primitive, error) {
	if native == nil {
		native = AllNative
	}

	switch tv := v.(type) {
	case nil:
		return Primitive{}, newError(ErrCNullValue, KindInvalid, "value is nil", nil)
	case Null:
		return Primitive{}, newError(ErrCNullValue, tv.Of, "null can not be encoded", nil)
	case Bool:
		return Coerce(BoolPrimitive(bool(tv)), native), nil
	case Int32:
		return Coerce(Int32Primitive(int32(tv)), native), nil
	case Int64:
		return Coerce(Int64Primitive(int64(tv)), native), nil
	case Float32:
		return Coerce(Float32Primitive(float32(tv)), native), nil
	case Float64:
		return StringPrimitive(formatFloat64(float64(tv))), nil
	case Decimal:
		return StringPrimitive(tv.Decimal.String()), nil
	case String:
		return StringPrimitive(string(tv)), nil
	case UUID:
		return StringPrimitive(uuid.UUID(tv).String()), nil
	case Time:
		raw, err := EncodeTicks(tv.Time)
		if err != nil {
			return Primitive{}, err
		}
		return Coerce(Int64Primitive(raw), native), nil
	default:
		return Primitive{}, newError(ErrCUnsupportedType, v.Kind(), fmt.Sprintf("can not encode %T", v), nil)
	}
}

func formatFloat64(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// Decode converts a stored primitive back into a value of the requested kind.
//
// stale is true when the primitive was readable but is not in the form Encode
// produces today (e.g. a double that an older store kept as a native integer).
// Callers may write the decoded value back to upgrade the stored representation.
func (c *Codec) Decode(kind Kind, p Primitive) (v Value, stale bool, err error) {
	switch kind {
	case KindBool:
		return decodeBool(p)
	case KindInt32:
		return decodeInt32(p)
	case KindInt64:
		return decodeInt64(p)
	case KindFloat32:
		return decodeFloat32(p)
	case KindFloat64:
		return decodeFloat64(p)
	case KindDecimal:
		return decodeDecimal(p)
	case KindString:
		if p.Type != PString {
			return nil, false, mismatch(kind, p)
		}
		return String(p.Str), false, nil
	case KindUUID:
		if p.Type != PString {
			return nil, false, mismatch(kind, p)
		}
		// unparsable ids decode to the all-zero UUID
		id, perr := uuid.Parse(strings.TrimSpace(p.Str))
		if perr != nil {
			return UUID(uuid.Nil), false, nil
		}
		return UUID(id), false, nil
	case KindTime:
		return c.decodeTime(p)
	default:
		return nil, false, newError(ErrCUnsupportedType, kind, "can not decode", nil)
	}
}

func mismatch(kind Kind, p Primitive) error {
	return newError(ErrCTypeMismatch, kind, fmt.Sprintf("stored primitive is %s", p.Type), nil)
}

func malformed(kind Kind, p Primitive, cause error) error {
	return newError(ErrCMalformed, kind, fmt.Sprintf("can not parse %q", p.Text()), cause)
}

func decodeBool(p Primitive) (Value, bool, error) {
	switch p.Type {
	case PBool:
		return Bool(p.Bool), false, nil
	case PString:
		b, err := strconv.ParseBool(strings.TrimSpace(p.Str))
		if err != nil {
			return nil, false, malformed(KindBool, p, err)
		}
		return Bool(b), false, nil
	default:
		return nil, false, mismatch(KindBool, p)
	}
}

func decodeInt32(p Primitive) (Value, bool, error) {
	switch p.Type {
	case PInt32:
		return Int32(p.Int), false, nil
	case PString:
		i, err := strconv.ParseInt(strings.TrimSpace(p.Str), 10, 32)
		if err != nil {
			return nil, false, malformed(KindInt32, p, err)
		}
		return Int32(i), false, nil
	default:
		return nil, false, mismatch(KindInt32, p)
	}
}

func decodeInt64(p Primitive) (Value, bool, error) {
	switch p.Type {
	case PInt64, PInt32:
		return Int64(p.Int), false, nil
	case PString:
		i, err := strconv.ParseInt(strings.TrimSpace(p.Str), 10, 64)
		if err != nil {
			return nil, false, malformed(KindInt64, p, err)
		}
		return Int64(i), false, nil
	default:
		return nil, false, mismatch(KindInt64, p)
	}
}

func decodeFloat32(p Primitive) (Value, bool, error) {
	switch p.Type {
	case PFloat32:
		return Float32(p.Float), false, nil
	case PString:
		f, err := strconv.ParseFloat(strings.TrimSpace(p.Str), 32)
		if err != nil {
			return nil, false, malformed(KindFloat32, p, err)
		}
		return Float32(f), false, nil
	default:
		return nil, false, mismatch(KindFloat32, p)
	}
}

func decodeFloat64(p Primitive) (Value, bool, error) {
	switch p.Type {
	case PString:
		f, err := parseFloat64(p.Str)
		if err != nil {
			return nil, false, malformed(KindFloat64, p, err)
		}
		return Float64(f), false, nil
	case PFloat64, PFloat32:
		return Float64(p.Float), p.Type == PFloat32, nil
	case PInt64, PInt32:
		// written by stores that kept doubles as integers
		return Float64(p.Int), true, nil
	default:
		return nil, false, mismatch(KindFloat64, p)
	}
}

// parseFloat64 parses s culture independently. Out of range input snaps to
// the float64 sentinel of the same sign and the canonical sentinel strings
// are recognized even when they do not parse.
func parseFloat64(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty string")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err == nil {
		return f, nil
	}
	if errors.Is(err, strconv.ErrRange) && math.IsInf(f, 0) {
		if f > 0 {
			return math.MaxFloat64, nil
		}
		return -math.MaxFloat64, nil
	}
	for _, max := range maxFloat64Strings {
		if strings.EqualFold(s, max) {
			return math.MaxFloat64, nil
		}
	}
	for _, min := range minFloat64Strings {
		if strings.EqualFold(s, min) {
			return -math.MaxFloat64, nil
		}
	}
	return 0, err
}

func decodeDecimal(p Primitive) (Value, bool, error) {
	switch p.Type {
	case PString:
		s := strings.TrimSpace(p.Str)
		if s == "" {
			return nil, false, malformed(KindDecimal, p, errors.New("empty string"))
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, false, malformed(KindDecimal, p, err)
		}
		return Decimal{d}, false, nil
	case PInt64, PInt32:
		// written by stores that kept decimals as integers
		return Decimal{decimal.NewFromInt(p.Int)}, true, nil
	case PFloat64, PFloat32:
		return Decimal{decimal.NewFromFloat(p.Float)}, true, nil
	default:
		return nil, false, mismatch(KindDecimal, p)
	}
}

func (c *Codec) decodeTime(p Primitive) (Value, bool, error) {
	var raw int64
	switch p.Type {
	case PInt64:
		raw = p.Int
	case PString:
		i, err := strconv.ParseInt(strings.TrimSpace(p.Str), 10, 64)
		if err != nil {
			return nil, false, malformed(KindTime, p, err)
		}
		raw = i
	default:
		return nil, false, mismatch(KindTime, p)
	}

	t, err := DecodeTicks(raw, c.legacyLoc)
	if err != nil {
		return nil, false, err
	}
	return Time{t}, false, nil
}
