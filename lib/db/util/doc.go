// Package util provides utility components for engines that satisfy the
// db.PrefDB interface.
//
// The package contains:
//   - statistics: Stats and DistributionStats for analyzing how entries spread
//     over shards or scopes, and a SizeHistogram tracking value sizes
//   - functions: Seeded FNV-1a hashing, shard selection, seed generation and
//     atomic (temp file + rename) file writes
//
// The engines use these helpers to fill db.DatabaseInfo and to persist
// snapshots and scope documents without exposing partially written files.
package util
