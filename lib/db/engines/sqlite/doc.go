// Package sqlite implements db.PrefDB on top of a SQLite database using the
// pure Go modernc.org/sqlite driver.
//
// All preferences live in one table keyed by (scope, key). The schema is
// created and upgraded by goose migrations embedded in the binary. A row
// stores the primitive type name and the payload in the column matching the
// type (int_value for bools and integers, text_value for strings). Floats are
// written to real_value and additionally to text_value in their exact textual
// form, which is the one read back.
//
// The database is opened with a single connection, WAL journaling and a busy
// timeout. Set runs its read, compare and upsert in one transaction, so
// change detection is atomic. Save and Load are not supported: the database
// file already is the persistent form.
package sqlite
