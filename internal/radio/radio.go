// Package radio resolves the radioactivity quantities of an injection:
// injected radioactivity and mass, specific radioactivity, molar activity and
// molecular weight. Any two determine what the identities below allow and
// every fully known identity is checked for agreement.
//
//	InjectedRadioactivity [MBq]  = SpecificRadioactivity [Bq/g] * InjectedMass [ug] * 1e-12
//	MolarActivity [GBq/umol]     = SpecificRadioactivity [Bq/g] * MolecularWeight [g/mol] * 1e-15
package radio

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nconklindev/pet2bids/internal/types"

	"gonum.org/v1/gonum/floats/scalar"
)

type Quantity int

const (
	InjectedRadioactivity Quantity = iota
	InjectedMass
	SpecificRadioactivity
	MolarActivity
	MolecularWeight
	numQuantities
)

// Tolerance is the relative disagreement allowed between supplied values.
const Tolerance = 0.01

var quantityNames = [numQuantities]string{
	"InjectedRadioactivity",
	"InjectedMass",
	"SpecificRadioactivity",
	"MolarActivity",
	"MolecularWeight",
}

var quantityUnits = [numQuantities]string{"MBq", "ug", "Bq/g", "GBq/umol", "g/mol"}

func (q Quantity) String() string {
	if q < 0 || q >= numQuantities {
		return "Quantity(" + strconv.Itoa(int(q)) + ")"
	}
	return quantityNames[q]
}

func (q Quantity) Unit() string {
	if q < 0 || q >= numQuantities {
		return ""
	}
	return quantityUnits[q]
}

// Quantities lists every quantity in output order.
func Quantities() []Quantity {
	return []Quantity{InjectedRadioactivity, InjectedMass, SpecificRadioactivity, MolarActivity, MolecularWeight}
}

// relation is product = left * right * factor.
type relation struct {
	product, left, right Quantity
	factor               float64
}

var relations = []relation{
	{InjectedRadioactivity, SpecificRadioactivity, InjectedMass, 1e-12},
	{MolarActivity, SpecificRadioactivity, MolecularWeight, 1e-15},
}

type Result struct {
	values   [numQuantities]float64
	known    [numQuantities]bool
	supplied [numQuantities]bool
}

// Get returns a supplied or derived value.
func (r *Result) Get(q Quantity) (float64, bool) {
	return r.values[q], r.known[q]
}

// Supplied reports whether q was given rather than derived.
func (r *Result) Supplied(q Quantity) bool {
	return r.supplied[q]
}

// Resolve derives the missing quantities from the supplied ones. Fewer than
// two inputs fail with ErrInsufficientRadioInputs; inputs that contradict an
// identity beyond Tolerance fail with ErrInconsistentRadioInputs.
func Resolve(in map[Quantity]float64) (*Result, error) {
	r := &Result{}
	for q := range in {
		if q < 0 || q >= numQuantities {
			return nil, fmt.Errorf("%w: %s", types.ErrInvalidParameter, q)
		}
	}

	var invalid []string
	for _, q := range Quantities() {
		v, ok := in[q]
		if !ok {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			invalid = append(invalid, q.String())
			continue
		}
		r.values[q], r.known[q], r.supplied[q] = v, true, true
	}
	if len(invalid) > 0 {
		return nil, &types.FieldError{Err: types.ErrInvalidParameter, Fields: invalid, Detail: "must be a positive number"}
	}

	var supplied []string
	for _, q := range Quantities() {
		if r.supplied[q] {
			supplied = append(supplied, q.String())
		}
	}
	if len(supplied) < 2 {
		return nil, &types.FieldError{
			Err:    types.ErrInsufficientRadioInputs,
			Fields: supplied,
			Detail: "at least two of " + strings.Join(quantityNames[:], ", ") + " are required",
		}
	}

	for changed := true; changed; {
		changed = false
		for _, rel := range relations {
			if r.derive(rel) {
				changed = true
			}
		}
	}

	for _, rel := range relations {
		if err := r.check(rel); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Result) derive(rel relation) bool {
	p, a, b := rel.product, rel.left, rel.right
	switch {
	case !r.known[p] && r.known[a] && r.known[b]:
		r.set(p, r.values[a]*r.values[b]*rel.factor)
	case r.known[p] && !r.known[a] && r.known[b]:
		r.set(a, r.values[p]/(r.values[b]*rel.factor))
	case r.known[p] && r.known[a] && !r.known[b]:
		r.set(b, r.values[p]/(r.values[a]*rel.factor))
	default:
		return false
	}
	return true
}

func (r *Result) set(q Quantity, v float64) {
	r.values[q], r.known[q] = v, true
}

func (r *Result) check(rel relation) error {
	p, a, b := rel.product, rel.left, rel.right
	if !r.known[p] || !r.known[a] || !r.known[b] {
		return nil
	}
	expected := r.values[a] * r.values[b] * rel.factor
	if scalar.EqualWithinRel(r.values[p], expected, Tolerance) {
		return nil
	}

	var fields, parts []string
	for _, q := range []Quantity{a, b, p} {
		fields = append(fields, q.String())
		origin := "derived"
		if r.supplied[q] {
			origin = "supplied"
		}
		parts = append(parts, fmt.Sprintf("%s=%g %s (%s)", q, r.values[q], q.Unit(), origin))
	}
	return &types.FieldError{
		Err:    types.ErrInconsistentRadioInputs,
		Fields: fields,
		Detail: fmt.Sprintf("%s; expected %s=%g %s", strings.Join(parts, ", "), p, expected, p.Unit()),
	}
}
