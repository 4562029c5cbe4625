package common

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboat's logger.ILogger)
// --------------------------------------------------------------------------

// prefsLogger implements the ILogger interface with custom formatting
type prefsLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *prefsLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *prefsLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *prefsLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *prefsLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *prefsLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *prefsLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *prefsLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger implements dragonboat's logger.Factory
func CreateLogger(pkgName string) logger.ILogger {
	// Log to stderr so command output on stdout stays machine readable
	stdLogger := log.New(os.Stderr, "", log.Ldate|log.Ltime)

	return &prefsLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: stdLogger,
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// LogLevels lists the accepted log level names
var LogLevels = []string{"debug", "info", "warn", "error"}

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of %s", level, strings.Join(LogLevels, ", "))
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// loggerNames are the loggers created by the packages of this module
var loggerNames = []string{"store", "maple", "sqlite", "filestore", "keyring", "cmd"}

// dragonboat panics when the factory is set twice
var installFactory sync.Once

// InitLoggers installs the custom logger factory and sets the level of all loggers.
// It may be called repeatedly, later calls only change the level.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	installFactory.Do(func() { logger.SetLoggerFactory(CreateLogger) })

	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
