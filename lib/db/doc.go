// Package db provides a standardized interface for preference store implementations.
// It defines the PrefDB interface that allows for consistent interaction
// with various persistence backends while abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for scoped key-value operations on primitives
//   - Feature discovery through capability flags
//   - Standardized persistence operations
//   - Comprehensive metadata reporting
//
// Key Components:
//
//   - PrefDB Interface: The core interface that all engines must satisfy.
//     It provides methods for basic operations (Set, Get, Has, Delete),
//     scope operations (Clear, Keys, Scopes), metadata retrieval (GetInfo),
//     and persistence operations (Save, Load).
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method. Besides optional
//     operations, the flags describe which primitive types an engine stores
//     natively. NativeFunc turns these flags into a codec.NativeFunc so the
//     codec can stringify whatever the engine can not hold.
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for the engines (maple, sqlite, file, keyring).
//
//   - Database Information: The DatabaseInfo structure provides standardized
//     reporting on database state, including size statistics, implementation type,
//     and implementation-specific metadata. Note: For most implementations all
//     size statistics will be estimated since a precise calculation can be
//     expensive.
//
// Note on Scopes:
//   - A scope partitions the key space of one engine instance. The scope ""
//     is the default store. How a scope is persisted is up to the engine
//     (a column, a file, a keyring service).
//   - Clear must only remove entries of the given scope.
//
// Note on Unsupported Operations:
//   - Operations that an engine does not implement return ErrUnsupported.
//     Set, Get, Delete, Has and Clear are supported by every engine.
//
// Related Packages:
//
// The engines/maple package provides a sharded in-memory engine with binary
// snapshots and an optional autosave file. The engines/sqlite, engines/filestore
// and engines/keyring packages persist to a SQLite database, to YAML or TOML
// documents, and to the OS credential store.
//
// The testing package (github.com/ValentinKolb/dPrefs/lib/db/testing) provides
// standardized tests and benchmarks for engines that satisfy db.PrefDB.
//   - RunPrefDBTests: Runs a standardized test suite to validate implementations
//   - RunPrefDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
