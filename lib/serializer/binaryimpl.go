package serializer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ValentinKolb/dPrefs/lib/codec"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and size
func NewBinarySerializer() ISnapshotSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements ISnapshotSerializer using a custom binary format.
//
// Layout: version (1 byte), record count (uint32), then per record the
// primitive type (1 byte), a flags byte and the fields named by the flags.
// Strings are prefixed with their uint32 length, numbers are big endian.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasScope   byte = 1 << 0
	hasKey     byte = 1 << 1
	hasPayload byte = 1 << 2 // payload differs from the zero value of its type
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ISnapshotSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(snapshot Snapshot) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, b.sizeBytes(snapshot))

	result[0] = snapshot.Version
	binary.BigEndian.PutUint32(result[1:5], uint32(len(snapshot.Records)))
	pos := 5

	for i, r := range snapshot.Records {
		if !r.Value.Valid() {
			return nil, fmt.Errorf("record %d (%q/%q): invalid primitive type %d", i, r.Scope, r.Key, r.Value.Type)
		}

		result[pos] = byte(r.Value.Type)
		flagsPos := pos + 1
		pos += 2

		var flags byte = 0

		// Handle Scope
		if r.Scope != "" {
			flags |= hasScope
			pos = putString(result, pos, r.Scope)
		}

		// Handle Key
		if r.Key != "" {
			flags |= hasKey
			pos = putString(result, pos, r.Key)
		}

		// Handle Payload
		if payloadSize(r.Value) > 0 {
			flags |= hasPayload
			switch r.Value.Type {
			case codec.PBool:
				result[pos] = 1
				pos += 1
			case codec.PInt32, codec.PInt64:
				binary.BigEndian.PutUint64(result[pos:pos+8], uint64(r.Value.Int))
				pos += 8
			case codec.PFloat32, codec.PFloat64:
				binary.BigEndian.PutUint64(result[pos:pos+8], math.Float64bits(r.Value.Float))
				pos += 8
			case codec.PString:
				pos = putString(result, pos, r.Value.Str)
			}
		}

		// Set flags byte after knowing which fields are present
		result[flagsPos] = flags
	}

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, snapshot *Snapshot) error {
	// Check minimum size (version + count)
	if len(data) < 5 {
		return fmt.Errorf("data too short for snapshot header")
	}

	version := data[0]
	if err := checkVersion(version); err != nil {
		return err
	}
	count := binary.BigEndian.Uint32(data[1:5])
	pos := 5

	// every record needs at least its type and flags byte
	if uint64(count)*2 > uint64(len(data)-pos) {
		return fmt.Errorf("data too short for %d records", count)
	}

	records := make([]Record, count)
	for i := range records {
		if pos+2 > len(data) {
			return fmt.Errorf("data too short for record %d header", i)
		}
		t := codec.PrimitiveType(data[pos])
		flags := data[pos+1]
		pos += 2

		r := &records[i]
		r.Value.Type = t
		if !r.Value.Valid() {
			return fmt.Errorf("record %d: invalid primitive type %d", i, t)
		}

		var err error

		// Read Scope if present
		if flags&hasScope != 0 {
			if r.Scope, pos, err = readString(data, pos); err != nil {
				return fmt.Errorf("record %d scope: %w", i, err)
			}
		}

		// Read Key if present
		if flags&hasKey != 0 {
			if r.Key, pos, err = readString(data, pos); err != nil {
				return fmt.Errorf("record %d key: %w", i, err)
			}
		}

		// Read Payload if present
		if flags&hasPayload == 0 {
			continue
		}
		switch t {
		case codec.PBool:
			if pos+1 > len(data) {
				return fmt.Errorf("data too short for record %d bool", i)
			}
			r.Value.Bool = data[pos] != 0
			pos += 1
		case codec.PInt32, codec.PInt64:
			if pos+8 > len(data) {
				return fmt.Errorf("data too short for record %d int", i)
			}
			r.Value.Int = int64(binary.BigEndian.Uint64(data[pos : pos+8]))
			pos += 8
		case codec.PFloat32, codec.PFloat64:
			if pos+8 > len(data) {
				return fmt.Errorf("data too short for record %d float", i)
			}
			r.Value.Float = math.Float64frombits(binary.BigEndian.Uint64(data[pos : pos+8]))
			pos += 8
		case codec.PString:
			if r.Value.Str, pos, err = readString(data, pos); err != nil {
				return fmt.Errorf("record %d value: %w", i, err)
			}
		}
	}

	if pos != len(data) {
		return fmt.Errorf("%d trailing bytes after last record", len(data)-pos)
	}

	snapshot.Version = version
	snapshot.Records = records
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(snapshot Snapshot) int {
	// 1 byte for version + 4 bytes for record count
	size := 5

	for _, r := range snapshot.Records {
		size += 2 // type + flags
		if r.Scope != "" {
			size += 4 + len(r.Scope)
		}
		if r.Key != "" {
			size += 4 + len(r.Key)
		}
		size += payloadSize(r.Value)
	}
	return size
}

// payloadSize returns the encoded payload size, 0 for zero payloads
func payloadSize(p codec.Primitive) int {
	switch p.Type {
	case codec.PBool:
		if p.Bool {
			return 1
		}
	case codec.PInt32, codec.PInt64:
		if p.Int != 0 {
			return 8
		}
	case codec.PFloat32, codec.PFloat64:
		// compare bits so -0 is kept
		if math.Float64bits(p.Float) != 0 {
			return 8
		}
	case codec.PString:
		if p.Str != "" {
			return 4 + len(p.Str)
		}
	}
	return 0
}

func putString(buf []byte, pos int, s string) int {
	binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(s)))
	pos += 4
	copy(buf[pos:pos+len(s)], s)
	return pos + len(s)
}

func readString(data []byte, pos int) (string, int, error) {
	if pos+4 > len(data) {
		return "", pos, fmt.Errorf("data too short for string length")
	}
	n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if n > len(data)-pos {
		return "", pos, fmt.Errorf("data too short for string data")
	}
	return string(data[pos : pos+n]), pos + n, nil
}
