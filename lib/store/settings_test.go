package store

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/db"
	"github.com/ValentinKolb/dPrefs/lib/db/engines/keyring"
	"github.com/ValentinKolb/dPrefs/lib/db/engines/maple"
	"github.com/ValentinKolb/dPrefs/lib/serializer"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	zkr "github.com/zalando/go-keyring"
)

// engines returns one engine storing every primitive natively and one storing strings only
func engines() map[string]func() db.PrefDB {
	return map[string]func() db.PrefDB{
		"maple": func() db.PrefDB { return maple.NewMapleDB(nil) },
		"keyring": func() db.PrefDB {
			zkr.MockInit()
			return keyring.NewKeyringDB(&keyring.Options{Service: "dprefs-store-test"})
		},
	}
}

func forEachEngine(t *testing.T, fn func(t *testing.T, s ISettings)) {
	for name, factory := range engines() {
		t.Run(name, func(t *testing.T) {
			s := NewSettings(factory(), nil)
			defer s.Close()
			fn(t, s)
		})
	}
}

// --------------------------------------------------------------------------
// Round trips and defaults
// --------------------------------------------------------------------------

func TestTypedRoundTrip(t *testing.T) {
	decMax := decimal.RequireFromString("79228162514264337593543950335")
	when := time.Date(2024, 3, 1, 12, 30, 45, 123456700, time.UTC)
	id := uuid.MustParse("3f2504e0-4f89-11d3-9a0c-0305e82c3301")

	forEachEngine(t, func(t *testing.T, s ISettings) {
		_, err := SetBool(s, "bool", true, "")
		require.NoError(t, err)
		_, err = SetInt32(s, "int32", math.MinInt32, "")
		require.NoError(t, err)
		_, err = SetInt64(s, "int64", math.MaxInt64, "")
		require.NoError(t, err)
		_, err = SetFloat32(s, "float32", 0.1, "")
		require.NoError(t, err)
		_, err = SetFloat64(s, "float64", -math.MaxFloat64, "")
		require.NoError(t, err)
		_, err = SetDecimal(s, "decimal", decMax, "")
		require.NoError(t, err)
		_, err = SetString(s, "string", "wert ✓", "")
		require.NoError(t, err)
		_, err = SetTime(s, "time", when, "")
		require.NoError(t, err)
		_, err = SetUUID(s, "uuid", id, "")
		require.NoError(t, err)

		assert.True(t, GetBool(s, "bool", false, ""))
		assert.Equal(t, int32(math.MinInt32), GetInt32(s, "int32", 0, ""))
		assert.Equal(t, int64(math.MaxInt64), GetInt64(s, "int64", 0, ""))
		assert.Equal(t, float32(0.1), GetFloat32(s, "float32", 0, ""))
		assert.Equal(t, -math.MaxFloat64, GetFloat64(s, "float64", 0, ""))
		assert.True(t, decMax.Equal(GetDecimal(s, "decimal", decimal.Zero, "")))
		assert.Equal(t, "wert ✓", GetString(s, "string", "", ""))
		assert.True(t, when.Equal(GetTime(s, "time", time.Time{}, "")))
		assert.Equal(t, id, GetUUID(s, "uuid", uuid.Nil, ""))
	})
}

func TestAbsentKeyReturnsDefault(t *testing.T) {
	when := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	defaults := []codec.Value{
		codec.Bool(true), codec.Int32(-7), codec.Int64(7), codec.Float32(1.5), codec.Float64(2.5),
		codec.NewDecimal(decimal.RequireFromString("3.25")), codec.String("fallback"),
		codec.NewTime(when), codec.UUID(uuid.New()), codec.Null{Of: codec.KindString},
	}

	forEachEngine(t, func(t *testing.T, s ISettings) {
		for _, def := range defaults {
			v, err := s.GetValueOrDefault("missing", def, "")
			require.NoError(t, err, def.Kind().String())
			assert.True(t, codec.Equal(def, v), "kind %s: want %v, got %v", def.Kind(), def, v)
		}
	})
}

func TestNilDefault(t *testing.T) {
	s := NewSettings(maple.NewMapleDB(nil), nil)
	defer s.Close()

	v, err := s.GetValueOrDefault("k", nil, "")
	assert.Nil(t, v)
	assert.Equal(t, RetCNullValue, CodeOf(err))

	_, err = s.GetValueOrDefault("k", codec.Null{Of: codec.KindInt32}, "")
	assert.Equal(t, RetCNullValue, CodeOf(err))

	_, err = s.GetValueOrDefault("k", codec.Null{Of: codec.KindInvalid}, "")
	assert.Equal(t, RetCUnsupportedType, CodeOf(err))
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func TestChangeDetection(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s ISettings) {
		changed, err := SetInt64(s, "counter", 10, "")
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = SetInt64(s, "counter", 10, "")
		require.NoError(t, err)
		assert.False(t, changed)

		changed, err = SetInt64(s, "counter", 11, "")
		require.NoError(t, err)
		assert.True(t, changed)
	})
}

func TestIdempotentRemove(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s ISettings) {
		_, err := SetString(s, "k", "v", "")
		require.NoError(t, err)

		require.NoError(t, s.Remove("k", ""))
		require.NoError(t, s.Remove("k", ""))

		ok, err := s.Contains("k", "")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestClearScoping(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s ISettings) {
		_, err := SetBool(s, "k", true, "a")
		require.NoError(t, err)
		_, err = SetBool(s, "k", true, "b")
		require.NoError(t, err)

		require.NoError(t, s.Clear("a"))

		ok, err := s.Contains("k", "a")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.Contains("k", "b")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestCounterSurvivesUntilClear(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s ISettings) {
		_, err := SetInt64(s, "counter", 10, "")
		require.NoError(t, err)
		assert.Equal(t, int64(10), GetInt64(s, "counter", 0, ""))

		require.NoError(t, s.Clear(""))
		assert.Equal(t, int64(0), GetInt64(s, "counter", 0, ""))
	})
}

func TestNullRedirectsToRemove(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s ISettings) {
		name := "alice"
		_, err := SetStringPtr(s, "name", &name, "")
		require.NoError(t, err)
		assert.Equal(t, "alice", GetString(s, "name", "", ""))

		changed, err := SetStringPtr(s, "name", nil, "")
		require.NoError(t, err)
		assert.True(t, changed)

		ok, err := s.Contains("name", "")
		require.NoError(t, err)
		assert.False(t, ok)

		id := uuid.New()
		_, err = SetUUIDPtr(s, "id", &id, "")
		require.NoError(t, err)
		_, err = SetUUIDPtr(s, "id", nil, "")
		require.NoError(t, err)
		assert.Equal(t, uuid.Nil, GetUUID(s, "id", uuid.Nil, ""))
	})
}

func TestNullOfValueKindIsRejected(t *testing.T) {
	s := NewSettings(maple.NewMapleDB(nil), nil)
	defer s.Close()

	_, err := SetInt32(s, "n", 3, "")
	require.NoError(t, err)

	_, err = s.AddOrUpdateValue("n", codec.Null{Of: codec.KindInt32}, "")
	assert.Equal(t, RetCNullValue, CodeOf(err))

	_, err = s.AddOrUpdateValue("n", nil, "")
	assert.Equal(t, RetCNullValue, CodeOf(err))

	// the stored value is untouched
	assert.Equal(t, int32(3), GetInt32(s, "n", 0, ""))
}

func TestOutOfRangeTime(t *testing.T) {
	s := NewSettings(maple.NewMapleDB(nil), nil)
	defer s.Close()

	_, err := SetTime(s, "t", time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), "")
	assert.Equal(t, RetCInvalidValue, CodeOf(err))
	assert.True(t, codec.IsOutOfRange(err))
}

// --------------------------------------------------------------------------
// Decoding failures and legacy values
// --------------------------------------------------------------------------

func TestDecodeFailureReturnsDefaultAndError(t *testing.T) {
	database := maple.NewMapleDB(nil)
	s := NewSettings(database, nil)
	defer s.Close()

	_, err := database.Set("", "n", codec.StringPrimitive("not a number"))
	require.NoError(t, err)

	v, err := s.GetValueOrDefault("n", codec.Int32(5), "")
	assert.Equal(t, codec.Int32(5), v)
	assert.Equal(t, RetCInvalidValue, CodeOf(err))
	assert.True(t, codec.IsMalformed(err))

	// the typed accessor degrades silently
	assert.Equal(t, int32(5), GetInt32(s, "n", 5, ""))
}

func TestLegacyValueIsResaved(t *testing.T) {
	database := maple.NewMapleDB(nil)
	defer database.Close()

	_, err := database.Set("", "ratio", codec.Int64Primitive(42))
	require.NoError(t, err)

	s := NewSettings(database, nil)
	assert.Equal(t, 42.0, GetFloat64(s, "ratio", 0, ""))

	p, ok, err := database.Get("", "ratio")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, codec.StringPrimitive("42"), p)
}

func TestLegacyValueKeptWithoutResave(t *testing.T) {
	database := maple.NewMapleDB(nil)
	defer database.Close()

	_, err := database.Set("", "ratio", codec.Int64Primitive(42))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.ResaveLegacyValues = false
	s := NewSettings(database, opts)
	assert.Equal(t, 42.0, GetFloat64(s, "ratio", 0, ""))

	p, _, err := database.Get("", "ratio")
	require.NoError(t, err)
	assert.Equal(t, codec.Int64Primitive(42), p)
}

// --------------------------------------------------------------------------
// Store failures
// --------------------------------------------------------------------------

var errBoom = errors.New("boom")

// failingDB wraps a working database and fails every call in failing
type failingDB struct {
	db.PrefDB
	failing map[string]bool
}

func (f *failingDB) Get(scope, key string) (codec.Primitive, bool, error) {
	if f.failing["get"] {
		return codec.Primitive{}, false, errBoom
	}
	return f.PrefDB.Get(scope, key)
}

func (f *failingDB) Set(scope, key string, p codec.Primitive) (bool, error) {
	if f.failing["set"] {
		return false, errBoom
	}
	return f.PrefDB.Set(scope, key, p)
}

func (f *failingDB) Delete(scope, key string) error {
	if f.failing["delete"] {
		return errBoom
	}
	return f.PrefDB.Delete(scope, key)
}

func (f *failingDB) Clear(scope string) error {
	if f.failing["clear"] {
		return errBoom
	}
	return f.PrefDB.Clear(scope)
}

func newFailing(propagate bool, ops ...string) ISettings {
	failing := make(map[string]bool)
	for _, op := range ops {
		failing[op] = true
	}
	opts := DefaultOptions()
	opts.PropagateStoreErrors = propagate
	return NewSettings(&failingDB{PrefDB: maple.NewMapleDB(nil), failing: failing}, opts)
}

func TestRemoveAndClearErrorPolicy(t *testing.T) {
	t.Run("propagate", func(t *testing.T) {
		s := newFailing(true, "delete", "clear")
		defer s.Close()

		err := s.Remove("k", "")
		assert.Equal(t, RetCNativeStoreFailure, CodeOf(err))
		assert.ErrorIs(t, err, errBoom)

		err = s.Clear("")
		assert.ErrorIs(t, err, errBoom)

		// null redirect follows the same policy
		_, err = SetStringPtr(s, "k", nil, "")
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("swallow", func(t *testing.T) {
		s := newFailing(false, "delete", "clear")
		defer s.Close()

		assert.NoError(t, s.Remove("k", ""))
		assert.NoError(t, s.Clear(""))
	})
}

func TestReadAndWriteFailures(t *testing.T) {
	// writes and reads report failures regardless of the remove/clear policy
	s := newFailing(false, "get", "set")
	defer s.Close()

	_, err := SetBool(s, "k", true, "")
	assert.Equal(t, RetCNativeStoreFailure, CodeOf(err))

	v, err := s.GetValueOrDefault("k", codec.Bool(true), "")
	assert.Equal(t, codec.Bool(true), v)
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, GetBool(s, "k", true, ""))
}

// --------------------------------------------------------------------------
// Export / Import
// --------------------------------------------------------------------------

func TestExportImport(t *testing.T) {
	src := NewSettings(maple.NewMapleDB(nil), nil)
	defer src.Close()

	_, err := SetInt32(src, "volume", 7, "")
	require.NoError(t, err)
	_, err = SetBool(src, "dark", true, "ui")
	require.NoError(t, err)
	_, err = SetTime(src, "seen", time.Date(2020, 5, 6, 7, 8, 9, 0, time.UTC), "ui")
	require.NoError(t, err)

	snapshot, err := src.Export()
	require.NoError(t, err)
	assert.Equal(t, serializer.SnapshotVersion, snapshot.Version)
	require.Len(t, snapshot.Records, 3)
	assert.Equal(t, "", snapshot.Records[0].Scope)
	assert.Equal(t, "ui", snapshot.Records[1].Scope)

	// the keyring only stores strings
	zkr.MockInit()
	dst := NewSettings(keyring.NewKeyringDB(nil), nil)
	defer dst.Close()

	n, err := dst.Import(snapshot)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, int32(7), GetInt32(dst, "volume", 0, ""))
	assert.True(t, GetBool(dst, "dark", false, "ui"))
	assert.Equal(t, 2020, GetTime(dst, "seen", time.Time{}, "ui").Year())

	// listing is not available on the keyring
	_, err = dst.Export()
	assert.Equal(t, RetCUnsupportedOperation, CodeOf(err))
	assert.ErrorIs(t, err, db.ErrUnsupported)
}

func TestExportImportKeepsNegativeZero(t *testing.T) {
	src := NewSettings(maple.NewMapleDB(nil), nil)
	defer src.Close()
	_, err := SetFloat32(src, "f", float32(math.Copysign(0, -1)), "")
	require.NoError(t, err)

	snapshot, err := src.Export()
	require.NoError(t, err)

	for _, name := range serializer.Names {
		t.Run(name, func(t *testing.T) {
			format, err := serializer.ByName(name)
			require.NoError(t, err)
			data, err := format.Serialize(snapshot)
			require.NoError(t, err)
			var read serializer.Snapshot
			require.NoError(t, format.Deserialize(data, &read))

			dst := NewSettings(maple.NewMapleDB(nil), nil)
			defer dst.Close()
			_, err = dst.Import(read)
			require.NoError(t, err)

			assert.True(t, math.Signbit(float64(GetFloat32(dst, "f", 1, ""))))
		})
	}
}

func TestImportRejectsNewerVersion(t *testing.T) {
	s := NewSettings(maple.NewMapleDB(nil), nil)
	defer s.Close()

	_, err := s.Import(serializer.Snapshot{Version: serializer.SnapshotVersion + 1})
	assert.Equal(t, RetCInvalidValue, CodeOf(err))
}

// --------------------------------------------------------------------------
// Concurrency and metrics
// --------------------------------------------------------------------------

func TestConcurrentAccess(t *testing.T) {
	s := NewSettings(maple.NewMapleDB(nil), nil)
	defer s.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("k-%d-%d", g, i)
				_, err := SetInt64(s, key, int64(i), "")
				assert.NoError(t, err)
				assert.Equal(t, int64(i), GetInt64(s, key, -1, ""))
			}
		}(g)
	}
	wg.Wait()

	snapshot, err := s.Export()
	require.NoError(t, err)
	assert.Len(t, snapshot.Records, 8*50)
}

func TestMetricsAreRecorded(t *testing.T) {
	s := NewSettings(maple.NewMapleDB(nil), nil)
	defer s.Close()

	ops := metrics.GetOrCreateCounter(`dprefs_operations_total{op="contains"}`)
	errs := metrics.GetOrCreateCounter(`dprefs_operation_errors_total{op="get"}`)
	opsBefore, errsBefore := ops.Get(), errs.Get()

	_, err := s.Contains("k", "")
	require.NoError(t, err)
	_, _ = s.GetValueOrDefault("k", nil, "")

	assert.Equal(t, opsBefore+1, ops.Get())
	assert.Equal(t, errsBefore+1, errs.Get())
}

func TestErrorFormatting(t *testing.T) {
	err := NewError(RetCNativeStoreFailure, "writing \"k\"", errBoom)
	assert.Equal(t, `SettingsError (code NativeStoreFailure): writing "k": boom`, err.Error())
	assert.Equal(t, RetCSuccess, CodeOf(nil))
	assert.Equal(t, RetCInternalError, CodeOf(errBoom))
	assert.Equal(t, "Unknown", RetCode(99).String())
}
