package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/common"
	"github.com/ValentinKolb/dPrefs/lib/db"
	"github.com/ValentinKolb/dPrefs/lib/db/engines/keyring"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(engine db.Implementation, dir string) *common.Config {
	return &common.Config{
		Engine:               engine,
		DataDir:              dir,
		FlushInterval:        time.Second,
		FileFormat:           "yaml",
		Service:              keyring.DefaultService,
		PropagateStoreErrors: true,
		ResaveLegacyValues:   true,
		LogLevel:             "warn",
	}
}

func TestWrapString(t *testing.T) {
	wrapped := WrapString(strings.Repeat("word ", 30))
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestGetConfigFromFlags(t *testing.T) {
	defer viper.Reset()

	cmd := &cobra.Command{Use: "test"}
	SetupSettingsFlags(cmd)
	require.NoError(t, cmd.PersistentFlags().Parse([]string{"--engine", "SQLite", "--scope", "ui", "--shards", "4"}))
	require.NoError(t, viper.BindPFlags(cmd.PersistentFlags()))

	conf := GetConfig()
	assert.Equal(t, db.ImplSQLite, conf.Engine)
	assert.Equal(t, "ui", conf.Scope)
	assert.Equal(t, 4, conf.Shards)
	assert.Equal(t, "warn", conf.LogLevel)
	assert.True(t, conf.PropagateStoreErrors)
	assert.NoError(t, conf.Validate())
}

func TestOpenDatabasePersists(t *testing.T) {
	for _, engine := range []db.Implementation{db.ImplMaple, db.ImplSQLite, db.ImplFile} {
		t.Run(string(engine), func(t *testing.T) {
			conf := testConfig(engine, t.TempDir())

			s, err := OpenSettings(conf)
			require.NoError(t, err)
			_, err = s.AddOrUpdateValue("retries", codec.Int32(5), "")
			require.NoError(t, err)
			require.NoError(t, s.Close())

			s, err = OpenSettings(conf)
			require.NoError(t, err)
			defer s.Close()
			v, err := s.GetValueOrDefault("retries", codec.Int32(0), "")
			require.NoError(t, err)
			assert.Equal(t, codec.Int32(5), v)

			info, err := s.GetDBInfo()
			require.NoError(t, err)
			assert.Equal(t, engine, info.DbType)
		})
	}
}

func TestOpenDatabaseFileLayout(t *testing.T) {
	dir := t.TempDir()

	database, err := OpenDatabase(testConfig(db.ImplSQLite, dir))
	require.NoError(t, err)
	require.NoError(t, database.Close())

	_, err = os.Stat(filepath.Join(dir, sqliteFile))
	assert.NoError(t, err)
}

func TestOpenDatabaseInMemory(t *testing.T) {
	for _, engine := range []db.Implementation{db.ImplMaple, db.ImplSQLite} {
		database, err := OpenDatabase(testConfig(engine, ""))
		require.NoError(t, err, engine)
		assert.NoError(t, database.Close())
	}

	_, err := OpenDatabase(testConfig(db.ImplFile, ""))
	assert.Error(t, err)
}

func TestOpenDatabaseErrors(t *testing.T) {
	_, err := OpenDatabase(testConfig("redis", t.TempDir()))
	assert.Error(t, err)

	conf := testConfig(db.ImplFile, t.TempDir())
	conf.FileFormat = "ini"
	_, err = OpenDatabase(conf)
	assert.Error(t, err)

	t.Setenv(keyring.DisableEnv, "1")
	_, err = OpenDatabase(testConfig(db.ImplKeyring, ""))
	assert.Error(t, err)
}
