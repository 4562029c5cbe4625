// Package testing provides standardised tests and benchmarks for
// engines that satisfy the db.PrefDB interface.
//
// The package contains:
//   - testing: A conformance suite for the PrefDB contract (change detection,
//     idempotent deletes, scope isolation, Clear scoping, sorted listings,
//     Save/Load round trips, concurrent use)
//   - benchmark: Performance tests for measuring throughput of common database operations
//
// Tests for optional operations are skipped when the engine does not
// advertise the matching db.Feature.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() db.PrefDB {
//		return NewMyDatabase()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunPrefDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunPrefDBBenchmarks(b, "MyDatabase", factory)
package testing
