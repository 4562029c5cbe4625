package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dPrefs/cmd/util"
	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/common"
	"github.com/ValentinKolb/dPrefs/lib/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the prefs command group with args and closes the store afterwards
func execute(t *testing.T, args ...string) error {
	t.Helper()
	PrefsCommands.SetArgs(args)
	err := PrefsCommands.Execute()
	require.NoError(t, Close())
	return err
}

func checkConfig(engine db.Implementation, dir string) *common.Config {
	return &common.Config{
		Engine:               engine,
		DataDir:              dir,
		FileFormat:           "yaml",
		PropagateStoreErrors: true,
		LogLevel:             "warn",
	}
}

func TestSetThenExportImportAcrossEngines(t *testing.T) {
	sqliteDir, fileDir := t.TempDir(), t.TempDir()
	backup := filepath.Join(t.TempDir(), "backup.bin")

	require.NoError(t, execute(t, "set", "--engine", "sqlite", "--data-dir", sqliteDir, "--scope", "ui", "--kind", "int32", "retries", "5"))
	require.NoError(t, execute(t, "set", "--engine", "sqlite", "--data-dir", sqliteDir, "--scope", "ui", "--kind", "uuid", "id", "1b4e28ba-2fa1-11d2-883f-0016d3cca427"))
	require.NoError(t, execute(t, "export", "--engine", "sqlite", "--data-dir", sqliteDir, "--format", "binary", backup))
	require.NoError(t, execute(t, "import", "--engine", "file", "--data-dir", fileDir, "--format", "binary", backup))

	s, err := util.OpenSettings(checkConfig(db.ImplFile, fileDir))
	require.NoError(t, err)
	defer s.Close()

	v, err := s.GetValueOrDefault("retries", codec.Int32(0), "ui")
	require.NoError(t, err)
	assert.Equal(t, codec.Int32(5), v)

	ok, err := s.Contains("id", "ui")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetRejectsInvalidInput(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, execute(t, "set", "--engine", "sqlite", "--data-dir", dir, "--kind", "int32", "retries", "many"))
	assert.Error(t, execute(t, "set", "--engine", "sqlite", "--data-dir", dir, "--kind", "color", "retries", "5"))
	assert.Error(t, execute(t, "set", "--engine", "redis", "--data-dir", dir, "--kind", "int32", "retries", "5"))
}

func TestImportRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(t.TempDir(), "garbage.json")
	require.NoError(t, os.WriteFile(file, []byte("not json"), 0o600))

	assert.Error(t, execute(t, "import", "--engine", "sqlite", "--data-dir", dir, "--format", "json", file))
	assert.Error(t, execute(t, "import", "--engine", "sqlite", "--data-dir", dir, "--format", "xml", file))
}
