// Package metadata holds sidecar records: an insertion-ordered map of BIDS
// field names to JSON values.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type Metadata struct {
	keys   []string
	values map[string]any
}

func New() *Metadata {
	return &Metadata{values: make(map[string]any)}
}

// Set stores value under key. A key keeps the position of its first Set.
func (m *Metadata) Set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *Metadata) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *Metadata) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *Metadata) Len() int {
	return len(m.keys)
}

func (m *Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encode returns the pretty-printed JSON document with a trailing newline.
func (m *Metadata) Encode() ([]byte, error) {
	out, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// WriteFile writes m as pretty-printed JSON. The document is written to a
// temporary file in the target directory and renamed into place, so readers
// never see a partial sidecar. It returns the number of bytes written.
func WriteFile(path string, m *Metadata) (int64, error) {
	data, err := m.Encode()
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", path, err)
	}
	if err := writeAtomic(path, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
