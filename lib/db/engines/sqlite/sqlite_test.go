package sqlite

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/db"
	dbtesting "github.com/ValentinKolb/dPrefs/lib/db/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryDB(t testing.TB) db.PrefDB {
	database, err := NewSQLiteDB(nil)
	if err != nil {
		t.Fatalf("opening in-memory database failed: %v", err)
	}
	return database
}

func Test(t *testing.T) {
	dbtesting.RunPrefDBTests(t, "SQLiteDB", func() db.PrefDB {
		return newMemoryDB(t)
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunPrefDBBenchmarks(b, "SQLiteDB", func() db.PrefDB {
		return newMemoryDB(b)
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.db")

	first, err := NewSQLiteDB(&Options{Path: path})
	require.NoError(t, err)
	_, err = first.Set("app", "ratio", codec.Float64Primitive(0.1))
	require.NoError(t, err)
	_, err = first.Set("", "enabled", codec.BoolPrimitive(true))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// reopening runs the migrations again, which must be a no-op
	second, err := NewSQLiteDB(&Options{Path: path})
	require.NoError(t, err)
	defer second.Close()

	v, ok, err := second.Get("app", "ratio")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, codec.Float64Primitive(0.1), v)

	v, ok, err = second.Get("", "enabled")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, codec.BoolPrimitive(true), v)
}

func TestFloatSpecialValues(t *testing.T) {
	database := newMemoryDB(t)
	defer database.Close()

	values := []codec.Primitive{
		codec.Float64Primitive(math.NaN()),
		codec.Float64Primitive(math.Copysign(0, -1)),
		codec.Float64Primitive(math.Inf(1)),
		codec.Float32Primitive(float32(math.Inf(-1))),
	}

	for i, p := range values {
		key := string(rune('a' + i))
		_, err := database.Set("", key, p)
		require.NoError(t, err)

		got, ok, err := database.Get("", key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, p.Equal(got), "want %v, got %v", p, got)

		// the exact representation makes rewriting a no-op
		changed, err := database.Set("", key, p)
		require.NoError(t, err)
		assert.False(t, changed)
	}
}

func TestSaveLoadUnsupported(t *testing.T) {
	database := newMemoryDB(t)
	defer database.Close()

	assert.False(t, database.SupportsFeature(db.FeatureSave))
	assert.ErrorIs(t, database.Save(&bytes.Buffer{}), db.ErrUnsupported)
	assert.ErrorIs(t, database.Load(&bytes.Buffer{}), db.ErrUnsupported)
}

func TestGetInfo(t *testing.T) {
	database := newMemoryDB(t)
	defer database.Close()

	_, err := database.Set("s", "k", codec.StringPrimitive("v"))
	require.NoError(t, err)

	info := database.GetInfo()
	assert.Equal(t, db.ImplSQLite, info.DbType)
	assert.Positive(t, info.SizeBytes)
	assert.NotContains(t, info.SupportedFeatures, db.FeatureSave)
	assert.Contains(t, info.SupportedFeatures, db.FeatureNativeInt64)
}
