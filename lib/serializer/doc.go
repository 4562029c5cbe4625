// Package serializer converts settings snapshots to bytes and back. A
// Snapshot is the engine independent dump produced by store.ISettings.Export,
// so settings can be moved between engines or backed up by the CLI.
//
// Key Components:
//
//   - ISnapshotSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format optimized for speed and size.
//     Each record carries a flags byte naming the present fields, so empty
//     scopes, empty keys and zero payloads cost nothing.
//
//   - gobSerializerImpl: Implementation using Go's gob encoding.
//
//   - jsonSerializerImpl: Implementation using JSON encoding. Values are
//     written as their type name and textual form, which keeps NaN and
//     infinities intact and makes the output easy to read and edit.
//
// All implementations reject snapshots written by a newer format version.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s, err := serializer.ByName("json")
//	if err != nil {
//		return err
//	}
//	data, err := s.Serialize(snapshot)
package serializer
