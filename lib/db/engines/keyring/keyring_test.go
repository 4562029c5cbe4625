package keyring

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/db"
	dbtesting "github.com/ValentinKolb/dPrefs/lib/db/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	zkr "github.com/zalando/go-keyring"
)

func newMockDB() db.PrefDB {
	zkr.MockInit()
	return NewKeyringDB(&Options{Service: "dprefs-test"})
}

func Test(t *testing.T) {
	dbtesting.RunPrefDBTests(t, "KeyringDB", newMockDB)
}

func TestServiceMapping(t *testing.T) {
	database := newMockDB()
	defer database.Close()

	_, err := database.Set("", "token", codec.StringPrimitive("default"))
	require.NoError(t, err)
	_, err = database.Set("work", "token", codec.StringPrimitive("work"))
	require.NoError(t, err)

	v, err := zkr.Get("dprefs-test", "token")
	require.NoError(t, err)
	assert.Equal(t, "default", v)

	v, err = zkr.Get("dprefs-test/work", "token")
	require.NoError(t, err)
	assert.Equal(t, "work", v)
}

func TestStoresText(t *testing.T) {
	database := newMockDB()
	defer database.Close()

	assert.False(t, database.SupportsFeature(db.FeatureNativeInt64))

	changed, err := database.Set("", "count", codec.Int64Primitive(42))
	require.NoError(t, err)
	assert.True(t, changed)

	got, ok, err := database.Get("", "count")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, codec.StringPrimitive("42"), got)

	changed, err = database.Set("", "count", codec.StringPrimitive("42"))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDeleteMissing(t *testing.T) {
	database := newMockDB()
	defer database.Close()

	assert.NoError(t, database.Delete("", "missing"))
	assert.NoError(t, database.Clear("never-written"))
}

func TestUnsupported(t *testing.T) {
	database := newMockDB()
	defer database.Close()

	_, err := database.Keys("")
	assert.ErrorIs(t, err, db.ErrUnsupported)
	_, err = database.Scopes()
	assert.ErrorIs(t, err, db.ErrUnsupported)
	assert.ErrorIs(t, database.Save(&bytes.Buffer{}), db.ErrUnsupported)
	assert.ErrorIs(t, database.Load(&bytes.Buffer{}), db.ErrUnsupported)

	info := database.GetInfo()
	assert.Equal(t, db.ImplKeyring, info.DbType)
	assert.NotContains(t, info.SupportedFeatures, db.FeatureList)
}

func TestAvailableDisabled(t *testing.T) {
	t.Setenv(DisableEnv, "1")
	assert.False(t, Available())
}
