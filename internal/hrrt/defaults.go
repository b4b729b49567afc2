package hrrt

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nconklindev/pet2bids/internal/schema"
	"github.com/nconklindev/pet2bids/internal/typecast"
	"github.com/nconklindev/pet2bids/internal/types"
)

// Defaults holds the raw values of a per-installation defaults file, one
// `Name = value;` line per field. Lines starting with % or # are comments.
type Defaults struct {
	path   string
	values map[string]string
}

// ReadDefaults parses the defaults file at path. A missing file fails with
// ErrDefaultsFileMissing.
func ReadDefaults(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &types.FieldError{Err: types.ErrDefaultsFileMissing, Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("read defaults %s: %w", path, err)
	}

	d := &Defaults{path: path, values: make(map[string]string)}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '%' || line[0] == '#' {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, &types.FieldError{
				Err:    types.ErrDefaultsFieldEmpty,
				Path:   path,
				Detail: fmt.Sprintf("line %d: expected Name = value;", n),
			}
		}
		d.values[schema.Fold(name)] = statement(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read defaults %s: %w", path, err)
	}
	return d, nil
}

// statement returns value up to its first unquoted semicolon, dropping any
// trailing comment.
func statement(value string) string {
	var quote rune
	for i, r := range value {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			return strings.TrimSpace(value[:i])
		}
	}
	return strings.TrimSpace(value)
}

func (d *Defaults) Path() string {
	return d.path
}

// Value returns the parsed value of field. A field that is absent, left
// empty or not a valid literal fails with ErrDefaultsFieldEmpty.
func (d *Defaults) Value(field string) (any, error) {
	raw, ok := d.values[schema.Fold(field)]
	if !ok || raw == "" {
		return nil, &types.FieldError{Err: types.ErrDefaultsFieldEmpty, Fields: []string{field}, Path: d.path}
	}
	v, err := typecast.Literal(raw)
	if err != nil {
		return nil, &types.FieldError{Err: types.ErrDefaultsFieldEmpty, Fields: []string{field}, Path: d.path, Detail: err.Error()}
	}
	return v, nil
}

// WriteDefaultsTemplate creates a defaults file listing every field with an
// empty value. An existing file is never overwritten.
func WriteDefaultsTemplate(path string, p *Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create defaults directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%% %s defaults used when a field is not passed on the command line.\n", p.Name)
	b.WriteString("% Fill in every value and keep the trailing semicolon. Quote text,\n")
	b.WriteString("% leave numbers and true/false bare, write lists as [a, b].\n")
	for _, name := range p.Optional {
		fmt.Fprintf(&b, "%s = ;\n", name)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create defaults template: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return fmt.Errorf("write defaults template: %w", err)
	}
	return f.Close()
}
