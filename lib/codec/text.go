package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --------------------------------------------------------------------------
// Textual form (used by the CLI and by human readable dumps)
// --------------------------------------------------------------------------

// ParseValue parses text with a codec using the default options.
// See Codec.ParseValue.
func ParseValue(kind Kind, text string) (Value, error) {
	return NewCodec(nil).ParseValue(kind, text)
}

// ParseValue parses the textual form of a value of the given kind.
// Times are accepted as RFC 3339 or as a raw stored tick count, legacy tick
// counts are placed in the codec's legacy location like Decode does.
// Unlike Decode, ParseValue is strict: an invalid UUID is an error.
func (c *Codec) ParseValue(kind Kind, text string) (Value, error) {
	s := strings.TrimSpace(text)

	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, newError(ErrCMalformed, kind, fmt.Sprintf("can not parse %q", text), err)
		}
		return Bool(b), nil
	case KindInt32:
		i, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, newError(ErrCMalformed, kind, fmt.Sprintf("can not parse %q", text), err)
		}
		return Int32(i), nil
	case KindInt64:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, newError(ErrCMalformed, kind, fmt.Sprintf("can not parse %q", text), err)
		}
		return Int64(i), nil
	case KindFloat32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, newError(ErrCMalformed, kind, fmt.Sprintf("can not parse %q", text), err)
		}
		return Float32(f), nil
	case KindFloat64:
		f, err := parseFloat64(s)
		if err != nil {
			return nil, newError(ErrCMalformed, kind, fmt.Sprintf("can not parse %q", text), err)
		}
		return Float64(f), nil
	case KindDecimal:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, newError(ErrCMalformed, kind, fmt.Sprintf("can not parse %q", text), err)
		}
		return Decimal{d}, nil
	case KindString:
		// strings are taken verbatim
		return String(text), nil
	case KindUUID:
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, newError(ErrCMalformed, kind, fmt.Sprintf("can not parse %q", text), err)
		}
		return UUID(id), nil
	case KindTime:
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return Time{t}, nil
		}
		raw, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, newError(ErrCMalformed, kind, fmt.Sprintf("%q is neither RFC 3339 nor a tick count", text), err)
		}
		t, err := DecodeTicks(raw, c.legacyLoc)
		if err != nil {
			return nil, err
		}
		return Time{t}, nil
	default:
		return nil, newError(ErrCUnsupportedType, kind, "can not parse", nil)
	}
}

// FormatValue renders v in the textual form accepted by ParseValue.
func FormatValue(v Value) string {
	switch tv := v.(type) {
	case nil:
		return "<nil>"
	case Null:
		return "null"
	case Bool:
		return strconv.FormatBool(bool(tv))
	case Int32:
		return strconv.FormatInt(int64(tv), 10)
	case Int64:
		return strconv.FormatInt(int64(tv), 10)
	case Float32:
		return strconv.FormatFloat(float64(tv), 'g', -1, 32)
	case Float64:
		return formatFloat64(float64(tv))
	case Decimal:
		return tv.Decimal.String()
	case String:
		return string(tv)
	case UUID:
		return tv.String()
	case Time:
		return tv.Time.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}
