// Package cmd implements the command-line interface of dPrefs. It exposes the
// settings facade of lib/store for scripting and for inspecting the stores
// written by applications.
//
// The package is organized into subpackages:
//
//   - prefs: Commands reading and writing settings (get, set, rm, keys, export, import, perf, ...)
//   - util: Shared utilities for flag handling, configuration and opening engines (internal use)
//
// All flags can be given as environment variables with the DPREFS_ prefix,
// .env and .env.local files in the working directory are loaded as well.
//
// Example:
//
//	dprefs prefs set --engine sqlite --kind int32 retries 5
//	dprefs prefs get --engine sqlite --kind int32 retries
//	dprefs prefs export --engine sqlite backup.json
//
// See dprefs -help for a list of all commands.
package cmd
