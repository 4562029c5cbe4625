package serializer

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dPrefs/lib/codec"
)

// NewJSONSerializer creates a new serializer using json encoding
func NewJSONSerializer() ISnapshotSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the ISnapshotSerializer interface using json encoding.
// Primitives are written as type name and textual form, since json can not
// represent NaN or infinities.
type jsonSerializerImpl struct {
}

type jsonSnapshot struct {
	Version uint8        `json:"version"`
	Records []jsonRecord `json:"records"`
}

type jsonRecord struct {
	Scope string              `json:"scope"`
	Key   string              `json:"key"`
	Type  codec.PrimitiveType `json:"type"`
	Value string              `json:"value"`
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ISnapshotSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(snapshot Snapshot) ([]byte, error) {
	out := jsonSnapshot{
		Version: snapshot.Version,
		Records: make([]jsonRecord, len(snapshot.Records)),
	}
	for i, r := range snapshot.Records {
		out.Records[i] = jsonRecord{Scope: r.Scope, Key: r.Key, Type: r.Value.Type, Value: r.Value.Text()}
	}
	return json.MarshalIndent(out, "", "  ")
}

func (j jsonSerializerImpl) Deserialize(b []byte, snapshot *Snapshot) error {
	var in jsonSnapshot
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if err := checkVersion(in.Version); err != nil {
		return err
	}

	records := make([]Record, len(in.Records))
	for i, r := range in.Records {
		p, err := codec.ParsePrimitive(r.Type, r.Value)
		if err != nil {
			return fmt.Errorf("record %d (%q/%q): %w", i, r.Scope, r.Key, err)
		}
		records[i] = Record{Scope: r.Scope, Key: r.Key, Value: p}
	}

	snapshot.Version = in.Version
	snapshot.Records = records
	return nil
}
