package store

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/db"
	"github.com/ValentinKolb/dPrefs/lib/serializer"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ISettings is the typed settings facade over one db.PrefDB.
// All methods are serialized by one lock per instance. Errors are always
// of type *Error.
type ISettings interface {
	// GetValueOrDefault returns the value stored for key, decoded as the kind of defaultValue.
	// An absent key returns defaultValue. On a failure defaultValue is returned together with the error,
	// so callers ignoring the error still get a safe value.
	GetValueOrDefault(key string, defaultValue codec.Value, scope string) (codec.Value, error)
	// AddOrUpdateValue stores value under key and reports whether the stored primitive changed.
	// A codec.Null of a nullable kind (string, uuid) removes the key instead.
	AddOrUpdateValue(key string, value codec.Value, scope string) (changed bool, err error)
	// Remove deletes key from scope. Removing a missing key is not an error.
	Remove(key, scope string) error
	// Clear deletes every key of exactly this scope.
	Clear(scope string) error
	// Contains returns whether key exists in scope.
	Contains(key, scope string) (bool, error)
	// Export dumps all settings of all scopes. The engine must support listing.
	Export() (serializer.Snapshot, error)
	// Import writes every record of snapshot and returns the number of records written.
	Import(snapshot serializer.Snapshot) (imported int, err error)
	// GetDBInfo returns metadata about the database underlying the settings.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
	// Close closes the underlying database.
	Close() error
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and the cause.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("SettingsError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("SettingsError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the cause, so errors.Is and the codec predicates see through *Error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given code, message and cause.
func NewError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// CodeOf returns the RetCode of err, RetCSuccess for nil and
// RetCInternalError for errors not created by this package.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                       // 1: Operation failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCUnsupportedType                     // 3: The value kind can not be stored.
	RetCNullValue                           // 4: A null value was given where a concrete value is required.
	RetCNativeStoreFailure                  // 5: The underlying database failed.
	RetCInvalidValue                        // 6: The stored value can not be decoded or the value can not be encoded.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCUnsupportedType:
		return "UnsupportedType"
	case RetCNullValue:
		return "NullValue"
	case RetCNativeStoreFailure:
		return "NativeStoreFailure"
	case RetCInvalidValue:
		return "InvalidValue"
	default:
		return "Unknown"
	}
}

// codecError classifies an error returned by the codec
func codecError(msg string, err error) *Error {
	switch {
	case codec.IsUnsupportedType(err):
		return NewError(RetCUnsupportedType, msg, err)
	case codec.IsNullValue(err):
		return NewError(RetCNullValue, msg, err)
	default:
		return NewError(RetCInvalidValue, msg, err)
	}
}

// storeError classifies an error returned by the database
func storeError(msg string, err error) *Error {
	if errors.Is(err, db.ErrUnsupported) {
		return NewError(RetCUnsupportedOperation, msg, err)
	}
	return NewError(RetCNativeStoreFailure, msg, err)
}
