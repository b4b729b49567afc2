// Package hrrt builds PET sidecar metadata for the Siemens HRRT from a flat
// set of scan parameters, a per-installation defaults file and the scanner
// profile.
package hrrt

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nconklindev/pet2bids/internal/metadata"
	"github.com/nconklindev/pet2bids/internal/radio"
	"github.com/nconklindev/pet2bids/internal/typecast"
	"github.com/nconklindev/pet2bids/internal/types"

	"github.com/sirupsen/logrus"
)

// output field names of the radioactivity quantities
var radioFields = map[radio.Quantity]string{
	radio.InjectedRadioactivity: "InjectedRadioactivity",
	radio.InjectedMass:          "InjectedMass",
	radio.SpecificRadioactivity: "SpecificRadioactivity",
	radio.MolarActivity:         "MolarActivity",
	radio.MolecularWeight:       "TracerMolecularWeight",
}

type Builder struct {
	profile      *Profile
	defaultsPath string
	vocab        vocabulary
	log          logrus.FieldLogger
}

func NewBuilder(profile *Profile, defaultsPath string, log logrus.FieldLogger) *Builder {
	return &Builder{
		profile:      profile,
		defaultsPath: defaultsPath,
		vocab:        newVocabulary(profile),
		log:          log,
	}
}

// Build assembles the sidecar record for one scan. Argument names match
// parameters case-insensitively or through the alias table.
func (b *Builder) Build(args map[string]any) (*metadata.Metadata, error) {
	params, err := b.vocab.normalize(args)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range Mandatory {
		if _, ok := radioParameters[name]; ok {
			continue
		}
		v, ok := params[name]
		if !ok || (name != TimeZero && isEmpty(v)) {
			missing = append(missing, name)
		}
	}

	// report missing scan fields together with a radioactivity failure
	res, err := resolveRadio(params)
	if err != nil {
		if len(missing) > 0 {
			return nil, errors.Join(&types.FieldError{Err: types.ErrMissingMandatoryFields, Fields: missing}, err)
		}
		return nil, err
	}
	for _, name := range Mandatory {
		if q, ok := radioParameters[name]; ok {
			if _, known := res.Get(q); !known {
				missing = append(missing, name)
			}
		}
	}
	if len(missing) > 0 {
		return nil, &types.FieldError{Err: types.ErrMissingMandatoryFields, Fields: missing}
	}

	optional, err := b.optionalValues(params)
	if err != nil {
		return nil, err
	}

	m := metadata.New()
	for _, id := range b.profile.Identity {
		m.Set(id.Field, id.Value)
	}
	m.Set("TimeZero", normalizeTimeZero(params[TimeZero]))
	m.Set("TracerName", params[Tracer])
	m.Set("TracerRadionuclide", params[Radionuclide])
	m.Set("ModeOfAdministration", params[ModeOfAdministration])
	for _, q := range radio.Quantities() {
		v, ok := res.Get(q)
		if !ok {
			continue
		}
		m.Set(radioFields[q], v)
		m.Set(radioFields[q]+"Units", q.Unit())
	}
	for _, name := range b.profile.Optional {
		m.Set(name, optional[name])
	}
	for _, name := range b.profile.Extra {
		if v, ok := params[name]; ok {
			m.Set(name, v)
		}
	}
	return m, nil
}

func resolveRadio(params map[string]any) (*radio.Result, error) {
	in := make(map[radio.Quantity]float64)
	var invalid []string
	for name, q := range radioParameters {
		v, ok := params[name]
		if !ok {
			continue
		}
		f, ok := typecast.Float(v)
		if !ok {
			invalid = append(invalid, name)
			continue
		}
		in[q] = f
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, &types.FieldError{Err: types.ErrInvalidParameter, Fields: invalid, Detail: "not a number"}
	}
	return radio.Resolve(in)
}

// optionalValues takes the profile's optional fields from the arguments and
// falls back to the defaults file for the rest.
func (b *Builder) optionalValues(params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(b.profile.Optional))
	var unset []string
	for _, name := range b.profile.Optional {
		if v, ok := params[name]; ok {
			out[name] = v
			continue
		}
		unset = append(unset, name)
	}
	if len(unset) == 0 {
		return out, nil
	}

	defaults, err := ReadDefaults(b.defaultsPath)
	if errors.Is(err, types.ErrDefaultsFileMissing) {
		if werr := WriteDefaultsTemplate(b.defaultsPath, b.profile); werr != nil {
			return nil, fmt.Errorf("%w: %w", err, werr)
		}
		b.log.WithField("path", b.defaultsPath).Warn("wrote defaults template")
		return nil, &types.FieldError{
			Err:    types.ErrDefaultsFileMissing,
			Path:   b.defaultsPath,
			Detail: "a template was written there, fill in its values and run again",
		}
	}
	if err != nil {
		return nil, err
	}

	var empty []string
	for _, name := range unset {
		v, err := defaults.Value(name)
		if err != nil {
			empty = append(empty, name)
			continue
		}
		out[name] = v
	}
	if len(empty) > 0 {
		return nil, &types.FieldError{Err: types.ErrDefaultsFieldEmpty, Fields: empty, Path: defaults.Path()}
	}

	b.log.WithFields(logrus.Fields{
		"path":   defaults.Path(),
		"fields": unset,
	}).Debug("optional fields taken from defaults file")
	return out, nil
}

func normalizeTimeZero(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if s = strings.TrimSpace(s); s == "" || strings.EqualFold(s, ScanStart) {
		return ScanStart
	}
	return s
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	}
	return false
}

// SubstituteScanStart replaces a ScanStart TimeZero marker with the
// acquisition start clock time (hh:mm:ss). It reports whether m changed.
func SubstituteScanStart(m *metadata.Metadata, start string) (bool, error) {
	if _, err := time.Parse(time.TimeOnly, start); err != nil {
		return false, &types.FieldError{Err: types.ErrInvalidParameter, Fields: []string{"ScanStart"}, Detail: "expected hh:mm:ss"}
	}
	if v, _ := m.Get("TimeZero"); v != any(ScanStart) {
		return false, nil
	}
	m.Set("TimeZero", start)
	return true, nil
}
