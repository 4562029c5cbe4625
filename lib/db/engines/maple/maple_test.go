package maple

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.maple")
	opts := &DBOptions{NumShards: 4, SnapshotPath: path, FlushInterval: time.Hour}

	first, err := OpenMapleDB(opts)
	require.NoError(t, err)

	_, err = first.Set("", "theme", codec.StringPrimitive("dark"))
	require.NoError(t, err)
	_, err = first.Set("app", "launches", codec.Int64Primitive(7))
	require.NoError(t, err)

	// the flush interval is far away, Close must write pending changes
	require.NoError(t, first.Close())
	require.FileExists(t, path)

	second, err := OpenMapleDB(opts)
	require.NoError(t, err)
	defer second.Close()

	v, ok, err := second.Get("", "theme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, codec.StringPrimitive("dark"), v)

	v, ok, err = second.Get("app", "launches")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, codec.Int64Primitive(7), v)
}

func TestAutosaveFlushesAfterInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.maple")

	database, err := OpenMapleDB(&DBOptions{SnapshotPath: path, FlushInterval: 20 * time.Millisecond})
	require.NoError(t, err)
	defer database.Close()

	_, err = database.Set("", "volume", codec.Float32Primitive(0.5))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	// the autosaved file is a valid snapshot
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	restored := NewMapleDB(nil)
	defer restored.Close()
	require.NoError(t, restored.Load(bytes.NewReader(data)))

	v, ok, err := restored.Get("", "volume")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, codec.Float32Primitive(0.5), v)
}

func TestOpenMissingSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.maple")

	database, err := OpenMapleDB(&DBOptions{SnapshotPath: path})
	require.NoError(t, err)

	keys, err := database.Keys("")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// nothing changed, nothing is written
	require.NoError(t, database.Close())
	assert.NoFileExists(t, path)
}

func TestCorruptSnapshotIsNotOverwritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.maple")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	_, err := OpenMapleDB(&DBOptions{SnapshotPath: path})
	require.Error(t, err)

	// NewMapleDB falls back to memory only
	database := NewMapleDB(&DBOptions{SnapshotPath: path, FlushInterval: time.Millisecond})
	_, err = database.Set("", "k", codec.StringPrimitive("v"))
	require.NoError(t, err)
	require.NoError(t, database.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "garbage", string(data))
}

func TestCloseIsIdempotent(t *testing.T) {
	database := NewMapleDB(&DBOptions{SnapshotPath: filepath.Join(t.TempDir(), "p.maple")})
	require.NoError(t, database.Close())
	require.NoError(t, database.Close())
}

func TestGetInfo(t *testing.T) {
	database := NewMapleDB(&DBOptions{NumShards: 2})
	defer database.Close()

	_, err := database.Set("", "a", codec.StringPrimitive("1234"))
	require.NoError(t, err)
	_, err = database.Set("s", "b", codec.BoolPrimitive(true))
	require.NoError(t, err)

	info := database.GetInfo()
	assert.Equal(t, db.ImplMaple, info.DbType)
	assert.Positive(t, info.SizeBytes)
	assert.Contains(t, info.SupportedFeatures, db.FeatureNativeFloat64)
	assert.Contains(t, info.SupportedFeatures, db.FeatureList)
	assert.True(t, database.SupportsFeature(db.FeatureNativeAll|db.FeatureSave|db.FeatureLoad))
}

func TestSetRejectsInvalidPrimitive(t *testing.T) {
	database := NewMapleDB(nil)
	defer database.Close()

	_, err := database.Set("", "k", codec.Primitive{})
	assert.Error(t, err)
}
