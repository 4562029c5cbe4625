// Package common holds the configuration struct and the logging setup shared
// by the command line tool and applications embedding the settings store.
//
// Key Components:
//
//   - Config: Everything needed to open a settings store: the engine, its
//     data location and engine specific parameters, the facade's error and
//     legacy policies and the log level. String renders it in sections for
//     startup output.
//
//   - Logger: Custom logger factory for dragonboat's logger package, which all
//     packages of this module use. Lines are formatted as
//     "LEVEL | package | message". InitLoggers installs the factory and sets
//     the level of every logger.
package common
