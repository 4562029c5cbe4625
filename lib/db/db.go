package db

import (
	"errors"
	"io"
	"strings"

	"github.com/ValentinKolb/dPrefs/lib/codec"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple   Implementation = "maple"
	ImplSQLite  Implementation = "sqlite"
	ImplFile    Implementation = "file"
	ImplKeyring Implementation = "keyring"
)

// ErrUnsupported is returned by operations an engine does not implement.
// Check SupportsFeature before calling optional operations.
var ErrUnsupported = errors.New("operation not supported by this engine")

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet           Feature = 1 << iota // Support for Set operations
	FeatureGet                               // Support for Get operations
	FeatureDelete                            // Support for Delete operations
	FeatureHas                               // Support for Has operations
	FeatureClear                             // Support for Clear operations
	FeatureList                              // Support for Keys and Scopes
	FeatureSave                              // Support for Save operations
	FeatureLoad                              // Support for Load operations
	FeatureNativeBool                        // bool primitives are stored natively
	FeatureNativeInt32                       // int32 primitives are stored natively
	FeatureNativeInt64                       // int64 primitives are stored natively
	FeatureNativeFloat32                     // float32 primitives are stored natively
	FeatureNativeFloat64                     // float64 primitives are stored natively
)

// AllFeatures lists every feature flag in declaration order.
var AllFeatures = []Feature{
	FeatureSet, FeatureGet, FeatureDelete, FeatureHas, FeatureClear, FeatureList,
	FeatureSave, FeatureLoad, FeatureNativeBool, FeatureNativeInt32,
	FeatureNativeInt64, FeatureNativeFloat32, FeatureNativeFloat64,
}

// FeatureNativeAll is the set of all native primitive features.
const FeatureNativeAll = FeatureNativeBool | FeatureNativeInt32 | FeatureNativeInt64 | FeatureNativeFloat32 | FeatureNativeFloat64

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureHas:
		return "Has"
	case FeatureClear:
		return "Clear"
	case FeatureList:
		return "List"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeatureNativeBool:
		return "NativeBool"
	case FeatureNativeInt32:
		return "NativeInt32"
	case FeatureNativeInt64:
		return "NativeInt64"
	case FeatureNativeFloat32:
		return "NativeFloat32"
	case FeatureNativeFloat64:
		return "NativeFloat64"
	default:
		return "Unknown"
	}
}

// NativeFeature returns the feature flag that signals native support of the
// primitive type t. Strings are always native, so PString maps to 0.
func NativeFeature(t codec.PrimitiveType) Feature {
	switch t {
	case codec.PBool:
		return FeatureNativeBool
	case codec.PInt32:
		return FeatureNativeInt32
	case codec.PInt64:
		return FeatureNativeInt64
	case codec.PFloat32:
		return FeatureNativeFloat32
	case codec.PFloat64:
		return FeatureNativeFloat64
	default:
		return 0
	}
}

// NativeFunc returns a codec.NativeFunc describing which primitives database
// stores natively.
func NativeFunc(database PrefDB) codec.NativeFunc {
	return func(t codec.PrimitiveType) bool {
		if t == codec.PString {
			return true
		}
		f := NativeFeature(t)
		return f != 0 && database.SupportsFeature(f)
	}
}

// FeatureNames returns the names of all features in set, joined by sep.
func FeatureNames(set []Feature, sep string) string {
	names := make([]string, len(set))
	for i, f := range set {
		names[i] = f.String()
	}
	return strings.Join(names, sep)
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// PrefDB defines an interface for preference store implementations.
// Values are addressed by a scope and a key. The scope "" is the default store.
// Every operation is atomic on its own, there is no atomicity across keys.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type PrefDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates the primitive stored for scope and key.
	// changed is false if the stored primitive was already equal to value.
	// value must be a primitive the engine stores natively (see NativeFunc).
	Set(scope, key string, value codec.Primitive) (changed bool, err error)

	// Delete removes the entry for scope and key. Deleting a missing key is not an error.
	Delete(scope, key string) (err error)

	// Clear removes every entry of exactly one scope. Other scopes are not touched.
	Clear(scope string) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the primitive stored for scope and key.
	// The boolean return value indicates whether a value was found.
	Get(scope, key string) (value codec.Primitive, loaded bool, err error)

	// Has checks whether a value is stored for scope and key.
	Has(scope, key string) (loaded bool, err error)

	// Keys returns the keys of one scope in ascending order.
	Keys(scope string) (keys []string, err error)

	// Scopes returns every scope that holds at least one entry, in ascending order.
	Scopes() (scopes []string, err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	// Existing entries are replaced.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Returns true if the feature is supported, false otherwise.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}
