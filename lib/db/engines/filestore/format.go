package filestore

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"github.com/ValentinKolb/dPrefs/lib/codec"
	"gopkg.in/yaml.v3"
)

// --------------------------------------------------------------------------
// Formats
// --------------------------------------------------------------------------

// Format selects the document syntax of the scope files
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat accepts "yaml", "yml" and "toml" (case insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml", "":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unknown file format %q (expected yaml or toml)", s)
	}
}

// ext returns the file extension without the dot
func (f Format) ext() string {
	return string(f)
}

// ErrInvalidUTF8 is returned for keys or string values a TOML document can not hold
var ErrInvalidUTF8 = errors.New("toml documents can only hold valid UTF-8")

// check rejects entries the format can not write in a way it can read back.
// TOML writes invalid UTF-8 verbatim and then fails to parse the whole file,
// YAML stores such strings as !!binary.
func (f Format) check(key string, p codec.Primitive) error {
	if f != FormatTOML {
		return nil
	}
	if !utf8.ValidString(key) {
		return fmt.Errorf("key %q: %w", key, ErrInvalidUTF8)
	}
	if p.Type == codec.PString && !utf8.ValidString(p.Str) {
		return fmt.Errorf("value of %q: %w", key, ErrInvalidUTF8)
	}
	return nil
}

func (f Format) marshal(doc *document) ([]byte, error) {
	switch f {
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return yaml.Marshal(doc)
	}
}

func (f Format) unmarshal(data []byte, doc *document) error {
	switch f {
	case FormatTOML:
		return toml.Unmarshal(data, doc)
	default:
		return yaml.Unmarshal(data, doc)
	}
}

// --------------------------------------------------------------------------
// Document
// --------------------------------------------------------------------------

const documentVersion = 1

// document is the on-disk layout of one scope file
type document struct {
	Version int                 `yaml:"version" toml:"version"`
	Values  map[string]docEntry `yaml:"values" toml:"values"`
}

// docEntry holds a primitive as its type name and exact textual form
type docEntry struct {
	Type  string `yaml:"type" toml:"type"`
	Value string `yaml:"value" toml:"value"`
}

func newDocument(values map[string]codec.Primitive) *document {
	doc := &document{
		Version: documentVersion,
		Values:  make(map[string]docEntry, len(values)),
	}
	for key, p := range values {
		doc.Values[key] = docEntry{Type: p.Type.String(), Value: p.Text()}
	}
	return doc
}

// primitives converts the document back into primitives
func (doc *document) primitives() (map[string]codec.Primitive, error) {
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("unsupported document version %d (expected <= %d)", doc.Version, documentVersion)
	}

	values := make(map[string]codec.Primitive, len(doc.Values))
	for key, entry := range doc.Values {
		p, err := parseEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", key, err)
		}
		values[key] = p
	}
	return values, nil
}

func parseEntry(entry docEntry) (codec.Primitive, error) {
	t, err := codec.ParsePrimitiveType(entry.Type)
	if err != nil {
		return codec.Primitive{}, err
	}
	return codec.ParsePrimitive(t, entry.Value)
}

// --------------------------------------------------------------------------
// File names
// --------------------------------------------------------------------------

const filePrefix = "settings"

// fileName returns the file holding scope: settings.<ext> for the default
// scope and settings.<escaped scope>.<ext> otherwise.
func (f Format) fileName(scope string) string {
	if scope == "" {
		return filePrefix + "." + f.ext()
	}
	return filePrefix + "." + escapeScope(scope) + "." + f.ext()
}

// escapeScope query-escapes scope and additionally escapes upper case
// letters, so two scopes differing only in case get different names on case
// insensitive file systems. Escapes use upper case hex digits only.
func escapeScope(scope string) string {
	escaped := url.QueryEscape(scope)
	var b strings.Builder
	for i := 0; i < len(escaped); i++ {
		c := escaped[i]
		switch {
		case c == '%':
			// keep the escape and its two hex digits
			b.WriteString(escaped[i : i+3])
			i += 2
		case c >= 'A' && c <= 'Z':
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// scopeOf is the inverse of fileName. ok is false for unrelated files.
func (f Format) scopeOf(name string) (scope string, ok bool) {
	base, found := strings.CutSuffix(name, "."+f.ext())
	if !found {
		return "", false
	}
	if base == filePrefix {
		return "", true
	}
	escaped, found := strings.CutPrefix(base, filePrefix+".")
	if !found || escaped == "" {
		return "", false
	}
	scope, err := url.QueryUnescape(escaped)
	if err != nil {
		return "", false
	}
	return scope, true
}
