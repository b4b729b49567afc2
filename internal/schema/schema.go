// Package schema loads the PET BIDS field classification (mandatory,
// recommended, optional and blood recording fields) used by the converters.
// A Schema is immutable once built and safe to share between conversions.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/nconklindev/pet2bids/internal/types"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
)

//go:embed resources/*.json
var resources embed.FS

const (
	defaultResource = "resources/pet_metadata.json"
	metaResource    = "resources/field_schema.schema.json"
	metaURL         = "https://pet2bids.local/schemas/field_schema.schema.json"
)

type Class int

const (
	Mandatory Class = iota + 1
	Recommended
	Optional
	BloodRecording
)

func (c Class) String() string {
	switch c {
	case Mandatory:
		return "mandatory"
	case Recommended:
		return "recommended"
	case Optional:
		return "optional"
	case BloodRecording:
		return "blood_recording"
	}
	return "unknown"
}

type Field struct {
	Name  string
	Class Class
}

type Schema struct {
	mandatory   []string
	recommended []string
	optional    []string
	blood       []string
	index       map[string]Field
}

type document struct {
	Mandatory            []string `json:"mandatory"`
	Recommended          []string `json:"recommended"`
	Optional             []string `json:"optional"`
	BloodRecordingFields []string `json:"blood_recording_fields"`
}

// Fold normalises a field name for case-insensitive comparison.
func Fold(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// New builds a schema from explicit field lists.
func New(mandatory, recommended, optional []string) (*Schema, error) {
	return build(document{Mandatory: mandatory, Recommended: recommended, Optional: optional})
}

// Load reads and validates a schema resource from disk.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.FieldError{Err: types.ErrSchemaMissing, Path: path, Detail: err.Error()}
	}
	return Parse(data, path)
}

// Parse validates a schema resource document and builds the Schema. source
// is only used in error messages.
func Parse(data []byte, source string) (*Schema, error) {
	validator, err := metaSchema()
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &types.FieldError{Err: types.ErrSchemaMissing, Path: source, Detail: err.Error()}
	}
	if err := validator.Validate(raw); err != nil {
		return nil, &types.FieldError{Err: types.ErrSchemaMissing, Path: source, Detail: err.Error()}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &types.FieldError{Err: types.ErrSchemaMissing, Path: source, Detail: err.Error()}
	}

	s, err := build(doc)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", source, err)
	}
	return s, nil
}

var defaultSchema = sync.OnceValues(func() (*Schema, error) {
	data, err := resources.ReadFile(defaultResource)
	if err != nil {
		return nil, &types.FieldError{Err: types.ErrSchemaMissing, Path: defaultResource, Detail: err.Error()}
	}
	return Parse(data, defaultResource)
})

// Default returns the schema embedded in the binary.
func Default() (*Schema, error) {
	return defaultSchema()
}

// LoadOrDefault loads path when set, else the embedded schema.
func LoadOrDefault(path string) (*Schema, error) {
	if path == "" {
		return Default()
	}
	return Load(path)
}

var metaSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	data, err := resources.ReadFile(metaResource)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(metaURL, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("field schema load failed: %w", err)
	}
	compiled, err := c.Compile(metaURL)
	if err != nil {
		return nil, fmt.Errorf("field schema compile failed: %w", err)
	}
	return compiled, nil
})

func build(doc document) (*Schema, error) {
	s := &Schema{
		mandatory:   clone(doc.Mandatory),
		recommended: clone(doc.Recommended),
		optional:    clone(doc.Optional),
		blood:       clone(doc.BloodRecordingFields),
		index:       make(map[string]Field),
	}

	lists := []struct {
		class Class
		names []string
	}{
		{Mandatory, s.mandatory},
		{Recommended, s.recommended},
		{Optional, s.optional},
		{BloodRecording, s.blood},
	}

	var errs []error
	for _, l := range lists {
		for _, name := range l.names {
			key := Fold(name)
			if key == "" {
				errs = append(errs, fmt.Errorf("empty %s field name", l.class))
				continue
			}
			if prev, ok := s.index[key]; ok {
				errs = append(errs, fmt.Errorf("field %q listed as %s and %s", name, prev.Class, l.class))
				continue
			}
			s.index[key] = Field{Name: name, Class: l.class}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

// Lookup matches name against the schema ignoring case and surrounding space.
func (s *Schema) Lookup(name string) (Field, bool) {
	f, ok := s.index[Fold(name)]
	return f, ok
}

func (s *Schema) Mandatory() []string   { return clone(s.mandatory) }
func (s *Schema) Recommended() []string { return clone(s.recommended) }
func (s *Schema) Optional() []string    { return clone(s.optional) }

// Fields lists the PET sidecar fields in classification order. Blood
// recording fields are not part of the sidecar and are left out.
func (s *Schema) Fields() []Field {
	out := make([]Field, 0, len(s.mandatory)+len(s.recommended)+len(s.optional))
	for _, n := range s.mandatory {
		out = append(out, Field{Name: n, Class: Mandatory})
	}
	for _, n := range s.recommended {
		out = append(out, Field{Name: n, Class: Recommended})
	}
	for _, n := range s.optional {
		out = append(out, Field{Name: n, Class: Optional})
	}
	return out
}

func clone(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
