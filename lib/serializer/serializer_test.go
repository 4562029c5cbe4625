package serializer

import (
	"math"
	"strings"
	"testing"

	"github.com/ValentinKolb/dPrefs/lib/codec"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() ISnapshotSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testSnapshots creates a set of snapshots with different fields filled
func testSnapshots() []Snapshot {
	return []Snapshot{
		// No records at all
		{Version: SnapshotVersion},

		// One record per primitive type
		{
			Version: SnapshotVersion,
			Records: []Record{
				{Scope: "", Key: "flag", Value: codec.BoolPrimitive(true)},
				{Scope: "app", Key: "small", Value: codec.Int32Primitive(math.MinInt32)},
				{Scope: "app", Key: "big", Value: codec.Int64Primitive(math.MaxInt64)},
				{Scope: "app", Key: "ratio", Value: codec.Float32Primitive(0.25)},
				{Scope: "app", Key: "max", Value: codec.Float64Primitive(math.MaxFloat64)},
				{Scope: "com.example/app", Key: "name", Value: codec.StringPrimitive("wert-значение-値 ✓")},
			},
		},

		// Zero payloads and empty addresses
		{
			Version: SnapshotVersion,
			Records: []Record{
				{Value: codec.BoolPrimitive(false)},
				{Value: codec.Int64Primitive(0)},
				{Value: codec.Float64Primitive(0)},
				{Value: codec.StringPrimitive("")},
			},
		},

		// Special floats
		{
			Version: SnapshotVersion,
			Records: []Record{
				{Key: "nan", Value: codec.Float64Primitive(math.NaN())},
				{Key: "-inf", Value: codec.Float64Primitive(math.Inf(-1))},
				{Key: "-0", Value: codec.Float64Primitive(math.Copysign(0, -1))},
				{Key: "+inf32", Value: codec.Float32Primitive(float32(math.Inf(1)))},
				{Key: "-0f32", Value: codec.Float32Primitive(float32(math.Copysign(0, -1)))},
			},
		},
	}
}

// equalSnapshots compares two snapshots, treating nil and empty record lists as equal
func equalSnapshots(a, b Snapshot) bool {
	if a.Version != b.Version || len(a.Records) != len(b.Records) {
		return false
	}
	for i := range a.Records {
		ra, rb := a.Records[i], b.Records[i]
		if ra.Scope != rb.Scope || ra.Key != rb.Key || !ra.Value.Equal(rb.Value) {
			return false
		}
	}
	return true
}

// TestSerializerRoundTrip tests that snapshots can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	snapshots := testSnapshots()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, snapshot := range snapshots {
				// Serialize
				data, err := serializer.Serialize(snapshot)
				if err != nil {
					t.Errorf("Failed to serialize snapshot %d: %v", i, err)
					continue
				}

				// Deserialize
				var result Snapshot
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize snapshot %d: %v", i, err)
					continue
				}

				// Compare
				if !equalSnapshots(snapshot, result) {
					t.Errorf("Snapshot %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, snapshot, result)
				}
			}
		})
	}
}

// TestKeepsNegativeZero tests that the sign of a zero float survives every format
func TestKeepsNegativeZero(t *testing.T) {
	snapshot := Snapshot{
		Version: SnapshotVersion,
		Records: []Record{
			{Key: "f32", Value: codec.Float32Primitive(float32(math.Copysign(0, -1)))},
			{Key: "f64", Value: codec.Float64Primitive(math.Copysign(0, -1))},
		},
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()
			data, err := serializer.Serialize(snapshot)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			var result Snapshot
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			for _, r := range result.Records {
				if !math.Signbit(r.Value.Float) {
					t.Errorf("%s lost the sign of zero: %v", r.Key, r.Value)
				}
			}
		})
	}
}

// TestRejectsNewerVersion tests that snapshots written by a newer format version are refused
func TestRejectsNewerVersion(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(Snapshot{Version: SnapshotVersion + 1})
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result Snapshot
			if err := serializer.Deserialize(data, &result); err == nil {
				t.Errorf("Expected an error for version %d", SnapshotVersion+1)
			}
		})
	}
}

// TestJSONIsReadable tests that the json form carries values as text
func TestJSONIsReadable(t *testing.T) {
	data, err := NewJSONSerializer().Serialize(Snapshot{
		Version: SnapshotVersion,
		Records: []Record{{Key: "ratio", Value: codec.Float64Primitive(math.Inf(1))}},
	})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	for _, want := range []string{`"type": "float64"`, `"value": "+Inf"`, `"key": "ratio"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected %s in %s", want, data)
		}
	}
}

// TestByName tests the serializer lookup
func TestByName(t *testing.T) {
	for _, name := range append(Names, "JSON", " bin ") {
		if _, err := ByName(name); err != nil {
			t.Errorf("ByName(%q) failed: %v", name, err)
		}
	}
	if _, err := ByName("xml"); err == nil {
		t.Errorf("Expected ByName(xml) to fail")
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0, 0}, // Version and part of the count
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0, 0, 0}, // Version 1, no records
			expectError: false,
		},
		{
			name:        "Zero string record",
			data:        []byte{1, 0, 0, 0, 1, byte(codec.PString), 0},
			expectError: false,
		},
		{
			name:        "Count larger than data",
			data:        []byte{1, 0xff, 0xff, 0xff, 0xff},
			expectError: true,
		},
		{
			name:        "Invalid primitive type",
			data:        []byte{1, 0, 0, 0, 1, 0, 0},
			expectError: true,
		},
		{
			name:        "Invalid length for key",
			data:        []byte{1, 0, 0, 0, 1, byte(codec.PBool), hasKey, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims key length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Missing int payload",
			data:        []byte{1, 0, 0, 0, 1, byte(codec.PInt64), hasPayload, 0, 0},
			expectError: true,
		},
		{
			name:        "Trailing bytes",
			data:        []byte{1, 0, 0, 0, 0, 42},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var snapshot Snapshot
			err := serializer.Deserialize(tc.data, &snapshot)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestBinaryRejectsInvalidPrimitive tests that records without a valid type are not written
func TestBinaryRejectsInvalidPrimitive(t *testing.T) {
	_, err := NewBinarySerializer().Serialize(Snapshot{
		Version: SnapshotVersion,
		Records: []Record{{Key: "broken"}},
	})
	if err == nil {
		t.Errorf("Expected an error for a record without primitive type")
	}
}
