package util

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/common"
	"github.com/ValentinKolb/dPrefs/lib/db"
	"github.com/ValentinKolb/dPrefs/lib/db/engines/filestore"
	"github.com/ValentinKolb/dPrefs/lib/db/engines/keyring"
	"github.com/ValentinKolb/dPrefs/lib/db/engines/maple"
	"github.com/ValentinKolb/dPrefs/lib/db/engines/sqlite"
	"github.com/ValentinKolb/dPrefs/lib/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (DPREFS_<flag>)
	EnvPrefix = "dprefs"

	// file names inside the data directory
	mapleSnapshotFile = "prefs.maple"
	sqliteFile        = "prefs.db"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupSettingsFlags adds the flags selecting and configuring the settings store to a command
func SetupSettingsFlags(cmd *cobra.Command) {
	key := "engine"
	cmd.PersistentFlags().String(key, string(db.ImplMaple), WrapString("Storage engine (maple, sqlite, file, keyring)"))

	key = "data-dir"
	cmd.PersistentFlags().String(key, common.DefaultDataDir(), WrapString("Directory holding the settings. Empty keeps maple and sqlite in memory"))

	key = "file-format"
	cmd.PersistentFlags().String(key, string(filestore.FormatYAML), WrapString("Document format of the file engine (yaml, toml)"))

	key = "watch"
	cmd.PersistentFlags().Bool(key, false, WrapString("Reload settings files changed by other processes (file engine only)"))

	key = "service"
	cmd.PersistentFlags().String(key, keyring.DefaultService, WrapString("Service name of the keyring engine"))

	key = "scope"
	cmd.PersistentFlags().String(key, "", WrapString("Scope of the settings. Empty is the default scope"))

	key = "propagate-store-errors"
	cmd.PersistentFlags().Bool(key, true, WrapString("Return database failures of remove and clear instead of logging them"))

	key = "resave-legacy"
	cmd.PersistentFlags().Bool(key, true, WrapString("Rewrite values stored in a legacy encoding when they are read"))

	key = "flush-interval"
	cmd.PersistentFlags().Duration(key, maple.DefaultOptions().FlushInterval, WrapString("Debounce interval of the maple autosave"))

	key = "shards"
	cmd.PersistentFlags().Int(key, 0, WrapString("Number of shards per scope of the maple engine (0 = number of CPUs)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetConfig reads the settings configuration from viper
func GetConfig() *common.Config {
	return &common.Config{
		Engine:               db.Implementation(strings.ToLower(viper.GetString("engine"))),
		DataDir:              viper.GetString("data-dir"),
		Shards:               viper.GetInt("shards"),
		FlushInterval:        viper.GetDuration("flush-interval"),
		FileFormat:           viper.GetString("file-format"),
		Watch:                viper.GetBool("watch"),
		Service:              viper.GetString("service"),
		Scope:                viper.GetString("scope"),
		PropagateStoreErrors: viper.GetBool("propagate-store-errors"),
		ResaveLegacyValues:   viper.GetBool("resave-legacy"),
		LogLevel:             viper.GetString("log-level"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Opening the settings store
// --------------------------------------------------------------------------

// OpenDatabase creates the engine described by conf
func OpenDatabase(conf *common.Config) (db.PrefDB, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	switch conf.Engine {
	case db.ImplMaple:
		opts := &maple.DBOptions{
			NumShards:     conf.Shards,
			FlushInterval: conf.FlushInterval,
		}
		if conf.DataDir != "" {
			opts.SnapshotPath = filepath.Join(conf.DataDir, mapleSnapshotFile)
		}
		return maple.OpenMapleDB(opts)
	case db.ImplSQLite:
		path := sqlite.MemoryPath
		if conf.DataDir != "" {
			path = filepath.Join(conf.DataDir, sqliteFile)
		}
		return sqlite.NewSQLiteDB(&sqlite.Options{Path: path})
	case db.ImplFile:
		if conf.DataDir == "" {
			return nil, fmt.Errorf("the file engine needs a data directory")
		}
		format, err := filestore.ParseFormat(conf.FileFormat)
		if err != nil {
			return nil, err
		}
		return filestore.NewFileDB(&filestore.Options{Dir: conf.DataDir, Format: format, Watch: conf.Watch})
	case db.ImplKeyring:
		if !keyring.Available() {
			return nil, fmt.Errorf("no usable OS keyring found (or %s=1 is set)", keyring.DisableEnv)
		}
		return keyring.NewKeyringDB(&keyring.Options{Service: conf.Service}), nil
	default:
		return nil, fmt.Errorf("invalid engine %q", conf.Engine)
	}
}

// CodecOptions returns the value codec options for conf. The CLI parses
// values with the same options the facade decodes them with.
func CodecOptions(_ *common.Config) *codec.Options {
	return codec.DefaultOptions()
}

// OpenSettings creates the engine described by conf and wraps it in the settings facade
func OpenSettings(conf *common.Config) (store.ISettings, error) {
	database, err := OpenDatabase(conf)
	if err != nil {
		return nil, err
	}
	return store.NewSettings(database, &store.Options{
		PropagateStoreErrors: conf.PropagateStoreErrors,
		ResaveLegacyValues:   conf.ResaveLegacyValues,
		Codec:                CodecOptions(conf),
	}), nil
}
