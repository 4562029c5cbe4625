package store

import (
	"time"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --------------------------------------------------------------------------
// Generic accessors
// --------------------------------------------------------------------------

// Get returns the value stored for key as T, or def if the key is absent or
// can not be read. The kind is taken from T.
func Get[T codec.Value](s ISettings, key string, def T, scope string) T {
	v, err := s.GetValueOrDefault(key, def, scope)
	if err != nil {
		Logger.Debugf("falling back to default for %q in scope %q: %v", key, scope, err)
		return def
	}
	tv, ok := v.(T)
	if !ok {
		return def
	}
	return tv
}

// Set stores v under key and reports whether the stored value changed.
func Set[T codec.Value](s ISettings, key string, v T, scope string) (bool, error) {
	return s.AddOrUpdateValue(key, v, scope)
}

// --------------------------------------------------------------------------
// Wrappers for plain Go types
// --------------------------------------------------------------------------

func GetBool(s ISettings, key string, def bool, scope string) bool {
	return bool(Get(s, key, codec.Bool(def), scope))
}

func GetInt32(s ISettings, key string, def int32, scope string) int32 {
	return int32(Get(s, key, codec.Int32(def), scope))
}

func GetInt64(s ISettings, key string, def int64, scope string) int64 {
	return int64(Get(s, key, codec.Int64(def), scope))
}

func GetFloat32(s ISettings, key string, def float32, scope string) float32 {
	return float32(Get(s, key, codec.Float32(def), scope))
}

func GetFloat64(s ISettings, key string, def float64, scope string) float64 {
	return float64(Get(s, key, codec.Float64(def), scope))
}

func GetDecimal(s ISettings, key string, def decimal.Decimal, scope string) decimal.Decimal {
	return Get(s, key, codec.NewDecimal(def), scope).Decimal
}

func GetString(s ISettings, key string, def string, scope string) string {
	return string(Get(s, key, codec.String(def), scope))
}

// GetTime returns the stored instant. Values written by this package are in UTC.
func GetTime(s ISettings, key string, def time.Time, scope string) time.Time {
	return Get(s, key, codec.NewTime(def), scope).Time
}

func GetUUID(s ISettings, key string, def uuid.UUID, scope string) uuid.UUID {
	return uuid.UUID(Get(s, key, codec.UUID(def), scope))
}

func SetBool(s ISettings, key string, v bool, scope string) (bool, error) {
	return Set(s, key, codec.Bool(v), scope)
}

func SetInt32(s ISettings, key string, v int32, scope string) (bool, error) {
	return Set(s, key, codec.Int32(v), scope)
}

func SetInt64(s ISettings, key string, v int64, scope string) (bool, error) {
	return Set(s, key, codec.Int64(v), scope)
}

func SetFloat32(s ISettings, key string, v float32, scope string) (bool, error) {
	return Set(s, key, codec.Float32(v), scope)
}

func SetFloat64(s ISettings, key string, v float64, scope string) (bool, error) {
	return Set(s, key, codec.Float64(v), scope)
}

func SetDecimal(s ISettings, key string, v decimal.Decimal, scope string) (bool, error) {
	return Set(s, key, codec.NewDecimal(v), scope)
}

func SetString(s ISettings, key string, v string, scope string) (bool, error) {
	return Set(s, key, codec.String(v), scope)
}

func SetTime(s ISettings, key string, v time.Time, scope string) (bool, error) {
	return Set(s, key, codec.NewTime(v), scope)
}

func SetUUID(s ISettings, key string, v uuid.UUID, scope string) (bool, error) {
	return Set(s, key, codec.UUID(v), scope)
}

// --------------------------------------------------------------------------
// Nullable setters
// --------------------------------------------------------------------------

// SetStringPtr stores *v, a nil v removes the key.
func SetStringPtr(s ISettings, key string, v *string, scope string) (bool, error) {
	if v == nil {
		return s.AddOrUpdateValue(key, codec.Null{Of: codec.KindString}, scope)
	}
	return SetString(s, key, *v, scope)
}

// SetUUIDPtr stores *v, a nil v removes the key.
func SetUUIDPtr(s ISettings, key string, v *uuid.UUID, scope string) (bool, error) {
	if v == nil {
		return s.AddOrUpdateValue(key, codec.Null{Of: codec.KindUUID}, scope)
	}
	return SetUUID(s, key, *v, scope)
}
