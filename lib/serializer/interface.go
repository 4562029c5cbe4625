package serializer

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dPrefs/lib/codec"
)

// SnapshotVersion is the version written into every new Snapshot
const SnapshotVersion uint8 = 1

// Snapshot is an engine independent dump of settings. It is produced by
// store.ISettings.Export and consumed by store.ISettings.Import.
type Snapshot struct {
	Version uint8
	Records []Record
}

// Record is one stored primitive with its address
type Record struct {
	Scope string
	Key   string
	Value codec.Primitive
}

// ISnapshotSerializer is the interface for all snapshot serializers
type ISnapshotSerializer interface {
	// Serialize serializes a Snapshot into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(snapshot Snapshot) ([]byte, error)
	// Deserialize deserializes a byte array into a Snapshot
	// It takes a byte array and a pointer to a Snapshot as parameters
	// It returns an error if any
	Deserialize(b []byte, snapshot *Snapshot) error
}

// Names lists the serializer names accepted by ByName
var Names = []string{"json", "gob", "binary"}

// ByName returns the serializer registered under name (case insensitive).
func ByName(name string) (ISnapshotSerializer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	case "binary", "bin":
		return NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q, must be one of %s", name, strings.Join(Names, ", "))
	}
}

func checkVersion(version uint8) error {
	if version > SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d (expected <= %d)", version, SnapshotVersion)
	}
	return nil
}
