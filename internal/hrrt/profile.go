package hrrt

import (
	"embed"
	"fmt"
	"os"
	"sync"

	"github.com/nconklindev/pet2bids/internal/schema"

	"gopkg.in/yaml.v3"
)

//go:embed resources/hrrt.yaml
var resources embed.FS

// Profile describes a scanner installation: the constant identity fields
// written into every record and the fields a defaults file may supply.
type Profile struct {
	Name         string          `yaml:"name"`
	DefaultsFile string          `yaml:"defaults_file"`
	Identity     []IdentityField `yaml:"identity"`
	Optional     []string        `yaml:"optional"`
	Extra        []string        `yaml:"extra"`
}

// IdentityField is a fixed field/value pair for the scanner model.
type IdentityField struct {
	Field string `yaml:"field"`
	Value any    `yaml:"value"`
}

var defaultProfile = sync.OnceValues(func() (*Profile, error) {
	data, err := resources.ReadFile("resources/hrrt.yaml")
	if err != nil {
		return nil, err
	}
	return ParseProfile(data, "hrrt.yaml")
})

// DefaultProfile returns the built-in Siemens HRRT profile.
func DefaultProfile() (*Profile, error) {
	return defaultProfile()
}

// LoadProfile reads a profile YAML file. An empty path yields the built-in
// profile.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}
	return ParseProfile(data, path)
}

func ParseProfile(data []byte, source string) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", source, err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", source, err)
	}
	return &p, nil
}

func (p *Profile) validate() error {
	if p.DefaultsFile == "" {
		return fmt.Errorf("defaults_file is empty")
	}

	reserved := newVocabulary(&Profile{})
	seen := make(map[string]string)
	claim := func(name, where string) error {
		if name == "" {
			return fmt.Errorf("empty field name in %s", where)
		}
		key := schema.Fold(name)
		if _, core := reserved[key]; core {
			return fmt.Errorf("field %q in %s is a scan parameter", name, where)
		}
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("field %q listed in %s and %s", name, prev, where)
		}
		seen[key] = where
		return nil
	}

	for _, id := range p.Identity {
		if err := claim(id.Field, "identity"); err != nil {
			return err
		}
	}
	for _, name := range p.Optional {
		if err := claim(name, "optional"); err != nil {
			return err
		}
	}
	for _, name := range p.Extra {
		if err := claim(name, "extra"); err != nil {
			return err
		}
	}
	return nil
}
