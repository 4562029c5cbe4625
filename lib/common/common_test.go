package common

import (
	"testing"
	"time"

	"github.com/ValentinKolb/dPrefs/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Engine:               db.ImplMaple,
		DataDir:              "/tmp/prefs",
		FlushInterval:        time.Second,
		Scope:                "app",
		PropagateStoreErrors: true,
		LogLevel:             "info",
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	c := validConfig()
	c.Engine = "redis"
	assert.ErrorContains(t, c.Validate(), "maple, sqlite, file, keyring")

	c = validConfig()
	c.Shards = -1
	assert.Error(t, c.Validate())

	c = validConfig()
	c.FlushInterval = -time.Second
	assert.Error(t, c.Validate())

	c = validConfig()
	c.LogLevel = "verbose"
	assert.Error(t, c.Validate())
}

func TestConfigString(t *testing.T) {
	out := validConfig().String()
	assert.Contains(t, out, "ENGINE")
	assert.Contains(t, out, "SETTINGS")
	assert.Contains(t, out, "/tmp/prefs")
	assert.Contains(t, out, "Flush Interval")
	assert.NotContains(t, out, "File Format")

	c := validConfig()
	c.Engine = db.ImplKeyring
	c.Service = "my-app"
	c.Scope = ""
	out = c.String()
	assert.Contains(t, out, "my-app")
	assert.Contains(t, out, "(default)")
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		" error ": logger.ERROR,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("loud")
	assert.Error(t, err)
}

func TestInitLoggers(t *testing.T) {
	require.NoError(t, InitLoggers("warn"))
	assert.Error(t, InitLoggers("nope"))
}

func TestInitLoggersRepeatedly(t *testing.T) {
	require.NoError(t, InitLoggers("warn"))
	assert.NotPanics(t, func() {
		require.NoError(t, InitLoggers("debug"))
		require.NoError(t, InitLoggers("error"))
	})
}
