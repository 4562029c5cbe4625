package testing

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/db"
)

// number of keys written before read benchmarks start
const benchmarkKeyCount = 1000

// RunPrefDBBenchmarks runs all benchmarks for a preference database implementation
func RunPrefDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory())
	})

	b.Run("SetUnchanged", func(b *testing.B) {
		benchmarkSetUnchanged(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Get(miss)", func(b *testing.B) {
		benchmarkGetMiss(b, factory())
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory())
	})

	b.Run("Has", func(b *testing.B) {
		benchmarkHas(b, factory())
	})

	b.Run("Keys", func(b *testing.B) {
		benchmarkKeys(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark helpers
// --------------------------------------------------------------------------

// populate writes n string values into the default scope and returns their keys
func populate(b *testing.B, database db.PrefDB, n int) []string {
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		if _, err := database.Set("", keys[i], codec.StringPrimitive(fmt.Sprintf("test-value-%d", i))); err != nil {
			b.Fatalf("populating database failed: %v", err)
		}
	}
	return keys
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Set operation with new keys
func benchmarkSet(b *testing.B, database db.PrefDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := atomic.AddInt64(&counter, 1)
			database.Set("", fmt.Sprintf("test-key-%d", i), codec.StringPrimitive(fmt.Sprintf("test-value-%d", i)))
		}
	})
}

// Benchmark for Set operation that writes the value already stored
func benchmarkSetUnchanged(b *testing.B, database db.PrefDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	keys := populate(b, database, benchmarkKeyCount)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			idx := counter % len(keys)
			database.Set("", keys[idx], codec.StringPrimitive(fmt.Sprintf("test-value-%d", idx)))
			counter++
		}
	})
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.PrefDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)
	requireFeature(b, database, db.FeatureGet)

	keys := populate(b, database, benchmarkKeyCount)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Get("", keys[counter%len(keys)])
			counter++
		}
	})
}

// Parallel benchmarking for Get operation (with key miss)
func benchmarkGetMiss(b *testing.B, database db.PrefDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGet)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			database.Get("", "test-key")
		}
	})
}

// Parallel benchmarking for Delete operation
func benchmarkDelete(b *testing.B, database db.PrefDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)
	requireFeature(b, database, db.FeatureDelete)

	keys := populate(b, database, min(b.N, benchmarkKeyCount))

	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			idx := int(atomic.AddInt64(&counter, 1)-1) % len(keys)
			database.Delete("", keys[idx])
		}
	})
}

// Parallel benchmarking for Has operation
func benchmarkHas(b *testing.B, database db.PrefDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)
	requireFeature(b, database, db.FeatureHas)

	keys := populate(b, database, benchmarkKeyCount)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Has("", keys[counter%len(keys)])
			counter++
		}
	})
}

// Benchmark for listing the keys of a scope
func benchmarkKeys(b *testing.B, database db.PrefDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)
	requireFeature(b, database, db.FeatureList)

	populate(b, database, benchmarkKeyCount)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Keys("")
	}
}

// Benchmark for Save and Load operations
// For these operations, parallelization is not meaningful as they typically
// touch the entire database
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {

	database := factory()

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)
	requireFeature(b, database, db.FeatureSave)
	requireFeature(b, database, db.FeatureLoad)

	populate(b, database, benchmarkKeyCount)

	b.Run("Save", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			database.Save(&buf)
		}
	})

	// Prepare a data buffer for Load benchmark
	var loadBuf bytes.Buffer
	database.Save(&loadBuf)
	data := loadBuf.Bytes()

	b.Run("Load", func(b *testing.B) {
		loadDB := factory()
		defer loadDB.Close()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			loadDB.Load(bytes.NewReader(data))
		}
	})
}

// Benchmark for mixed usage patterns
func benchmarkMixedUsage(b *testing.B, database db.PrefDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)
	requireFeature(b, database, db.FeatureGet)
	requireFeature(b, database, db.FeatureDelete)
	requireFeature(b, database, db.FeatureHas)

	keys := populate(b, database, benchmarkKeyCount)

	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		localCounter := 0

		for pb.Next() {
			idx := int(atomic.AddInt64(&counter, 1)-1) % len(keys)

			// For every 10th operation, use a completely new key
			key := keys[idx]
			if localCounter%10 == 0 {
				key = fmt.Sprintf("new-key-%d", localCounter)
			}

			// mostly reads, like a real application
			switch localCounter % 8 {
			case 0:
				database.Set("", key, codec.StringPrimitive(fmt.Sprintf("mixed-value-%d", localCounter)))
			case 1:
				database.Delete("", key)
			case 2:
				database.Has("", key)
			default:
				database.Get("", key)
			}

			localCounter++
		}
	})
}
