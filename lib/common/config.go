package common

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dPrefs/lib/db"
)

// --------------------------------------------------------------------------
// Settings configuration struct
// --------------------------------------------------------------------------

// Engines lists the engine names accepted in Config.Engine
var Engines = []db.Implementation{db.ImplMaple, db.ImplSQLite, db.ImplFile, db.ImplKeyring}

// Config holds all parameters needed to open a settings store.
type Config struct {
	// which engine to use and where it keeps its data
	Engine  db.Implementation
	DataDir string

	// maple parameters
	Shards        int
	FlushInterval time.Duration

	// file store parameters
	FileFormat string
	Watch      bool

	// keyring parameters
	Service string

	// facade parameters
	Scope                string
	PropagateStoreErrors bool
	ResaveLegacyValues   bool

	// Logging configuration
	LogLevel string
}

// DefaultDataDir returns <user config dir>/dprefs, or ./dprefs if the user
// config dir is unknown
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "dprefs"
	}
	return filepath.Join(dir, "dprefs")
}

// Validate checks the configuration for values no engine can work with
func (c *Config) Validate() error {
	if !slices.Contains(Engines, c.Engine) {
		return fmt.Errorf("invalid engine %q, must be one of %s", c.Engine, engineNames())
	}
	if c.Shards < 0 {
		return fmt.Errorf("shards must not be negative (got %d)", c.Shards)
	}
	if c.FlushInterval < 0 {
		return fmt.Errorf("flush interval must not be negative (got %s)", c.FlushInterval)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func engineNames() string {
	names := make([]string, len(Engines))
	for i, e := range Engines {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Engine
	addSection("Engine")
	addField("Engine", string(c.Engine))
	switch c.Engine {
	case db.ImplMaple:
		addField("Data Directory", valueOr(c.DataDir, "(memory only)"))
		addField("Shards", valueOr(strconv.Itoa(c.Shards), "0"))
		addField("Flush Interval", c.FlushInterval.String())
	case db.ImplSQLite:
		addField("Data Directory", valueOr(c.DataDir, "(memory only)"))
	case db.ImplFile:
		addField("Data Directory", c.DataDir)
		addField("File Format", c.FileFormat)
		addField("Watch", strconv.FormatBool(c.Watch))
	case db.ImplKeyring:
		addField("Service", c.Service)
	}

	// Facade
	addSection("Settings")
	addField("Scope", valueOr(c.Scope, "(default)"))
	addField("Propagate Store Errors", strconv.FormatBool(c.PropagateStoreErrors))
	addField("Resave Legacy Values", strconv.FormatBool(c.ResaveLegacyValues))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
