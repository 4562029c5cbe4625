// Package maple implements an in-memory preference database (PrefDB) with
// sharded concurrent maps and optional file persistence. It provides a complete
// implementation of the db.PrefDB interface with a focus on thread safety
// and low latency.
//
// The package focuses on:
//   - Lock-free concurrent access through sharding and xsync maps
//   - Atomic compare-and-store change detection for Set
//   - Persistent storage with fuzzy snapshots and efficient binary encoding
//   - Debounced autosave to a snapshot file
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.PrefDB. It
//     owns one internal.Scope per scope name, the hash seed and a
//     monotonically increasing write index that counts changes.
//
//   - Scope: The key space of one scope, partitioned into shards. Scopes are
//     created on first write and never removed, so a concurrent Set can not
//     lose its write to a Clear that drops the scope. Clear empties the shards
//     in place.
//
//   - Shard: A partition of a scope holding an xsync.MapOf from key to Entry.
//     Keys are distributed across shards by a seeded FNV-1a hash. The map is
//     keyed by the key string itself, so hash collisions never merge entries.
//
//   - Entry: The stored codec.Primitive and the write index of its last change.
//
// Internal Mechanisms:
//
//   - Change Detection: Set runs inside xsync's Compute, compares the stored
//     primitive with the new one and only replaces (and counts) it if they differ.
//
//   - Snapshot Format: "MAPLEPRF", a version byte, the seed, the write index
//     and the entry count, followed by scope, key, write index, primitive type
//     and payload per entry. All integers are little endian, strings are
//     length prefixed.
//
//   - Autosave: With DBOptions.SnapshotPath set, the snapshot is loaded on
//     open. Every change marks the database dirty and signals the autosave
//     goroutine through a channel of capacity one, so bursts of writes
//     coalesce into one wake up. The goroutine waits FlushInterval after the
//     first change and writes one snapshot to a temporary file that is renamed
//     over the target. Close stops the goroutine and flushes pending changes.
//
//   - Load: Load parses the complete snapshot before it takes the exclusive
//     lock and replaces the content, so a corrupt snapshot leaves the
//     database untouched.
//
// Usage Example:
//
//	database, err := maple.OpenMapleDB(&maple.DBOptions{
//		SnapshotPath:  "/var/lib/app/prefs.maple",
//		FlushInterval: time.Second,
//	})
//	if err != nil {
//		return err
//	}
//	defer database.Close()
//
//	changed, err := database.Set("", "theme", codec.StringPrimitive("dark"))
package maple
