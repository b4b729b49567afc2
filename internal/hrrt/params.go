package hrrt

import (
	"sort"

	"github.com/nconklindev/pet2bids/internal/radio"
	"github.com/nconklindev/pet2bids/internal/schema"
	"github.com/nconklindev/pet2bids/internal/types"
)

// Scan parameters every HRRT record is built from.
const (
	TimeZero              = "TimeZero"
	Tracer                = "Tracer"
	Radionuclide          = "Radionuclide"
	ModeOfAdministration  = "ModeOfAdministration"
	InjectedRadioactivity = "InjectedRadioactivity"
	InjectedMass          = "InjectedMass"
	SpecificRadioactivity = "SpecificRadioactivity"
	MolarActivity         = "MolarActivity"
	MolecularWeight       = "MolecularWeight"
)

// ScanStart marks a TimeZero to be replaced by the acquisition start time.
const ScanStart = "ScanStart"

// Mandatory lists the parameters a record cannot be built without.
var Mandatory = []string{TimeZero, Tracer, ModeOfAdministration, Radionuclide, InjectedRadioactivity, InjectedMass}

var radioParameters = map[string]radio.Quantity{
	InjectedRadioactivity: radio.InjectedRadioactivity,
	InjectedMass:          radio.InjectedMass,
	SpecificRadioactivity: radio.SpecificRadioactivity,
	MolarActivity:         radio.MolarActivity,
	MolecularWeight:       radio.MolecularWeight,
}

var coreParameters = foldAll(
	TimeZero, Tracer, Radionuclide, ModeOfAdministration,
	InjectedRadioactivity, InjectedMass, SpecificRadioactivity, MolarActivity, MolecularWeight,
)

var aliases = map[string]string{
	"Mass":                  InjectedMass,
	"Weight":                MolecularWeight,
	"MW":                    MolecularWeight,
	"TracerMolecularWeight": MolecularWeight,
	"TracerName":            Tracer,
	"TracerRadionuclide":    Radionuclide,
	"Dose":                  InjectedRadioactivity,
	"InjectedDose":          InjectedRadioactivity,
	"SpecificActivity":      SpecificRadioactivity,
	"Administration":        ModeOfAdministration,
}

func foldAll(names ...string) map[string]string {
	out := make(map[string]string, len(names))
	for _, n := range names {
		out[schema.Fold(n)] = n
	}
	return out
}

// vocabulary maps folded argument names to canonical parameter names.
type vocabulary map[string]string

func newVocabulary(p *Profile) vocabulary {
	v := make(vocabulary, len(coreParameters)+len(aliases)+len(p.Optional)+len(p.Extra))
	for k, n := range coreParameters {
		v[k] = n
	}
	for alias, n := range aliases {
		v[schema.Fold(alias)] = n
	}
	for _, n := range p.Optional {
		v[schema.Fold(n)] = n
	}
	for _, n := range p.Extra {
		v[schema.Fold(n)] = n
	}
	return v
}

// normalize renames every argument to its canonical parameter name.
func (v vocabulary) normalize(args map[string]any) (map[string]any, error) {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(args))
	given := make(map[string]string, len(args))
	var unknown []string
	for _, name := range names {
		canonical, ok := v[schema.Fold(name)]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if prev, dup := given[canonical]; dup {
			return nil, &types.FieldError{
				Err:    types.ErrInvalidParameter,
				Fields: []string{prev, name},
				Detail: "both name " + canonical,
			}
		}
		given[canonical] = name
		out[canonical] = args[name]
	}
	if len(unknown) > 0 {
		return nil, &types.FieldError{Err: types.ErrUnknownParameter, Fields: unknown}
	}
	return out, nil
}
