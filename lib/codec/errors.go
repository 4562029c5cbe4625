package codec

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

type ErrCode uint8

const (
	ErrCUnsupportedType ErrCode = iota + 1 // 1: Kind is not one of the supported kinds.
	ErrCNullValue                          // 2: A null value was given where a concrete value is required.
	ErrCTypeMismatch                       // 3: The stored primitive can not represent the requested kind.
	ErrCMalformed                          // 4: The stored primitive could not be parsed.
	ErrCOutOfRange                         // 5: The value is outside the representable range.
)

func (c ErrCode) String() string {
	switch c {
	case ErrCUnsupportedType:
		return "UnsupportedType"
	case ErrCNullValue:
		return "NullValue"
	case ErrCTypeMismatch:
		return "TypeMismatch"
	case ErrCMalformed:
		return "Malformed"
	case ErrCOutOfRange:
		return "OutOfRange"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is returned by every codec operation that fails.
// Kind is the kind that was requested (or KindInvalid if unknown).
type Error struct {
	Code ErrCode
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("CodecError (code %s, kind %s): %s", e.Code, e.Kind, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrCode, kind Kind, msg string, cause error) *Error {
	return &Error{Code: code, Kind: kind, Msg: msg, Err: cause}
}

// --------------------------------------------------------------------------
// Predicates
// --------------------------------------------------------------------------

func hasCode(err error, code ErrCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsUnsupportedType reports whether err (or any error it wraps) is an UnsupportedType codec error.
func IsUnsupportedType(err error) bool { return hasCode(err, ErrCUnsupportedType) }

// IsNullValue reports whether err (or any error it wraps) is a NullValue codec error.
func IsNullValue(err error) bool { return hasCode(err, ErrCNullValue) }

// IsTypeMismatch reports whether err (or any error it wraps) is a TypeMismatch codec error.
func IsTypeMismatch(err error) bool { return hasCode(err, ErrCTypeMismatch) }

// IsMalformed reports whether err (or any error it wraps) is a Malformed codec error.
func IsMalformed(err error) bool { return hasCode(err, ErrCMalformed) }

// IsOutOfRange reports whether err (or any error it wraps) is an OutOfRange codec error.
func IsOutOfRange(err error) bool { return hasCode(err, ErrCOutOfRange) }
