package serializer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ValentinKolb/dPrefs/lib/codec"
)

// benchmarkSnapshots returns a set of snapshots for targeted benchmarking
func benchmarkSnapshots() map[string]Snapshot {
	many := func(n int) Snapshot {
		s := Snapshot{Version: SnapshotVersion, Records: make([]Record, n)}
		for i := range s.Records {
			s.Records[i] = Record{
				Scope: fmt.Sprintf("scope-%d", i%4),
				Key:   fmt.Sprintf("key-%d", i),
				Value: codec.Int64Primitive(int64(i)),
			}
		}
		return s
	}

	return map[string]Snapshot{
		"Empty": {Version: SnapshotVersion},
		"SingleBool": {
			Version: SnapshotVersion,
			Records: []Record{{Key: "enabled", Value: codec.BoolPrimitive(true)}},
		},
		"LargeString": {
			Version: SnapshotVersion,
			Records: []Record{{Key: "blob", Value: codec.StringPrimitive(strings.Repeat("x", 16*1024))}},
		},
		"HundredInts":     many(100),
		"TenThousandInts": many(10_000),
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various snapshots
func BenchmarkSerialize(b *testing.B) {
	snapshots := benchmarkSnapshots()

	for name, factory := range testSerializers {
		for snapName, snapshot := range snapshots {
			b.Run(name+"_"+snapName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if _, err := serializer.Serialize(snapshot); err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various snapshots
func BenchmarkDeserialize(b *testing.B) {
	snapshots := benchmarkSnapshots()

	for name, factory := range testSerializers {
		for snapName, snapshot := range snapshots {
			b.Run(name+"_"+snapName, func(b *testing.B) {
				serializer := factory()
				data, err := serializer.Serialize(snapshot)
				if err != nil {
					b.Fatalf("Failed to serialize %s with %s: %v", snapName, name, err)
				}
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var result Snapshot
					if err := serializer.Deserialize(data, &result); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSize measures and reports the serialized size for each snapshot
func BenchmarkSize(b *testing.B) {
	snapshots := benchmarkSnapshots()

	for name, factory := range testSerializers {
		serializer := factory()

		for snapName, snapshot := range snapshots {
			b.Run(name+"_"+snapName, func(b *testing.B) {
				data, err := serializer.Serialize(snapshot)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}

				// Report the size as a custom metric
				b.ReportMetric(float64(len(data)), "bytes")

				for i := 0; i < b.N; i++ {
					_ = data
				}
			})
		}
	}
}
