// Package filestore implements db.PrefDB on top of human editable files.
//
// Every scope lives in its own document inside one directory: settings.yaml
// holds the default scope and settings.<scope>.yaml a named scope (the scope
// is query escaped, upper case letters included, so "Team" and "team" stay
// apart on case insensitive file systems). TOML documents are used instead
// with FormatTOML, they only accept keys and strings in valid UTF-8. A
// document lists each value with its primitive type name and its exact
// textual form:
//
//	version: 1
//	values:
//	  theme:
//	    type: string
//	    value: dark
//	  volume:
//	    type: float32
//	    value: "0.5"
//
// Parsed scopes are cached in memory. A change rewrites the complete scope
// file through a temporary file that is renamed over the original, and a
// scope that becomes empty removes its file. With Options.Watch the directory
// is observed with fsnotify and the cached copy of a scope is dropped whenever
// its file changes on disk, so edits by other processes become visible.
//
// Save and Load are not supported: the files already are the persistent form.
package filestore
