package serializer

import (
	"bytes"
	"encoding/gob"
	"math"

	"github.com/ValentinKolb/dPrefs/lib/codec"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format
func NewGOBSerializer() ISnapshotSerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the ISnapshotSerializer interface using gob encoding.
// gob omits zero fields and -0 == 0, so floats travel as their IEEE bits.
type gobSerializerImpl struct {
}

type gobSnapshot struct {
	Version uint8
	Records []gobRecord
}

type gobRecord struct {
	Scope     string
	Key       string
	Type      codec.PrimitiveType
	Bool      bool
	Int       int64
	FloatBits uint64
	Str       string
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ISnapshotSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Serialize(snapshot Snapshot) ([]byte, error) {
	out := gobSnapshot{
		Version: snapshot.Version,
		Records: make([]gobRecord, len(snapshot.Records)),
	}
	for i, r := range snapshot.Records {
		out.Records[i] = gobRecord{
			Scope:     r.Scope,
			Key:       r.Key,
			Type:      r.Value.Type,
			Bool:      r.Value.Bool,
			Int:       r.Value.Int,
			FloatBits: math.Float64bits(r.Value.Float),
			Str:       r.Value.Str,
		}
	}

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) Deserialize(b []byte, snapshot *Snapshot) error {
	buf := bytes.NewBuffer(b)
	dec := gob.NewDecoder(buf)
	var in gobSnapshot
	if err := dec.Decode(&in); err != nil {
		return err
	}
	if err := checkVersion(in.Version); err != nil {
		return err
	}

	records := make([]Record, len(in.Records))
	for i, r := range in.Records {
		records[i] = Record{
			Scope: r.Scope,
			Key:   r.Key,
			Value: codec.Primitive{
				Type:  r.Type,
				Bool:  r.Bool,
				Int:   r.Int,
				Float: math.Float64frombits(r.FloatBits),
				Str:   r.Str,
			},
		}
	}
	*snapshot = Snapshot{Version: in.Version, Records: records}
	return nil
}
