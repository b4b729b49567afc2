package converter

import (
	"errors"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nconklindev/pet2bids/internal/metadata"
	"github.com/nconklindev/pet2bids/internal/schema"
	"github.com/nconklindev/pet2bids/internal/typecast"
	"github.com/nconklindev/pet2bids/internal/types"

	"github.com/sirupsen/logrus"
)

// clockFields hold a time of day; a day fraction in them is written as hh:mm:ss.
var clockFields = map[string]bool{
	"TimeZero":                      true,
	"ScanStart":                     true,
	"InjectionStart":                true,
	"InjectionEnd":                  true,
	"InfusionStart":                 true,
	"MolarActivityMeasTime":         true,
	"SpecificRadioactivityMeasTime": true,
	"PharmaceuticalDoseTime":        true,
}

// Classify matches spreadsheet headers against the schema, ignoring case.
// When two headers name the same field the first one wins.
func Classify(headers []string, sch *schema.Schema, log logrus.FieldLogger) *types.Classification {
	cls := &types.Classification{Column: make(map[string]int)}

	for i, h := range headers {
		if h == "" {
			continue
		}
		field, ok := sch.Lookup(h)
		if !ok || field.Class == schema.BloodRecording {
			cls.Unrecognized = append(cls.Unrecognized, h)
			continue
		}
		if prev, dup := cls.Column[field.Name]; dup {
			log.WithFields(logrus.Fields{
				"field":  field.Name,
				"column": h,
				"kept":   headers[prev],
			}).Warn("duplicate column ignored")
			continue
		}
		cls.Column[field.Name] = i
	}

	collect := func(names []string) (present, missing []string) {
		for _, n := range names {
			if _, ok := cls.Column[n]; ok {
				present = append(present, n)
			} else {
				missing = append(missing, n)
			}
		}
		return present, missing
	}
	cls.Mandatory, cls.MissingMandatory = collect(sch.Mandatory())
	cls.Recommended, cls.MissingRecommended = collect(sch.Recommended())
	cls.Optional, _ = collect(sch.Optional())

	if len(cls.Unrecognized) > 0 {
		log.WithField("columns", cls.Unrecognized).Debug("columns not in field schema")
	}
	return cls
}

// ColumnValues returns the non-empty values of column col in row order.
// NaN and infinite cells of numeric columns are dropped; in clock columns a
// day fraction becomes hh:mm:ss.
func ColumnValues(data *types.FileData, col int, numeric, clock bool) []any {
	var out []any
	for _, row := range data.Rows {
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		if numeric {
			f, _ := strconv.ParseFloat(cell, 64)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				continue
			}
			if clock && IsDayFraction(cell) {
				out = append(out, DayFractionToClock(f))
				continue
			}
		}
		v, err := typecast.Literal(cell)
		if err != nil {
			v = cell
		}
		out = append(out, v)
	}
	return out
}

// single values are stored as a scalar, several as a sequence
func collapse(values []any) any {
	if len(values) == 1 {
		return values[0]
	}
	return values
}

// BuildMetadata builds the sidecar record from a classified spreadsheet.
// A mandatory field with no column, or only empty cells, fails the build.
func BuildMetadata(data *types.FileData, cls *types.Classification, progressChan chan<- float64) (*metadata.Metadata, error) {
	numeric := make(map[int]bool)
	for _, i := range NumericColumns(data) {
		numeric[i] = true
	}

	present := cls.Present()
	values := make(map[string][]any, len(present))
	for i, field := range present {
		reportProgress(progressChan, i, len(present))
		col := cls.Column[field]
		values[field] = ColumnValues(data, col, numeric[col], clockFields[field])
	}

	missing := make(map[string]bool)
	for _, f := range cls.MissingMandatory {
		missing[f] = true
	}
	for _, f := range cls.Mandatory {
		if len(values[f]) == 0 {
			missing[f] = true
		}
	}
	if len(missing) > 0 {
		var fields []string
		for _, f := range cls.Mandatory {
			if missing[f] {
				fields = append(fields, f)
			}
		}
		fields = append(fields, cls.MissingMandatory...)
		return nil, &types.FieldError{Err: types.ErrMissingMandatoryFields, Fields: fields}
	}

	m := metadata.New()
	for _, field := range present {
		if len(values[field]) == 0 {
			continue
		}
		m.Set(field, collapse(values[field]))
	}
	reportProgress(progressChan, 1, 1)
	return m, nil
}

// ConvertSpreadsheet converts one PET metadata spreadsheet to a
// <basename>_pet.json sidecar
func ConvertSpreadsheet(inputFile, outputName string, sch *schema.Schema, log logrus.FieldLogger, progressChan chan<- float64) (*types.ConversionResult, error) {
	if sch == nil {
		return nil, &types.FieldError{Err: types.ErrSchemaMissing, Path: inputFile}
	}

	data, err := ReadFileData(inputFile)
	if err != nil {
		return nil, err
	}

	cls := Classify(data.Headers, sch, log)
	m, err := BuildMetadata(data, cls, progressChan)
	if err != nil {
		var fe *types.FieldError
		if errors.As(err, &fe) {
			fe.Path = inputFile
		}
		return nil, err
	}

	if len(cls.MissingRecommended) > 0 {
		log.WithFields(logrus.Fields{
			"file":    inputFile,
			"missing": cls.MissingRecommended,
		}).Warn("recommended fields missing")
	}

	outputFile := OutputPath(inputFile, outputName)
	n, err := metadata.WriteFile(outputFile, m)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"file":   outputFile,
		"fields": m.Len(),
	}).Info("wrote sidecar")

	return &types.ConversionResult{
		InputFile:          inputFile,
		OutputFile:         outputFile,
		FieldsWritten:      m.Keys(),
		MissingRecommended: cls.MissingRecommended,
		BytesWritten:       n,
	}, nil
}

// OutputPath names the sidecar <basename>_pet.json. The basename comes from
// outputName when given, else from the input file. Without a directory in
// outputName the sidecar goes next to the input.
func OutputPath(inputFile, outputName string) string {
	dir := filepath.Dir(inputFile)
	base := strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))

	if outputName != "" {
		if d := filepath.Dir(outputName); d != "." {
			dir = d
		}
		base = filepath.Base(outputName)
		if strings.EqualFold(filepath.Ext(base), ".json") {
			base = base[:len(base)-len(".json")]
		}
	}

	base = strings.TrimSuffix(base, "_pet")
	return filepath.Join(dir, base+"_pet.json")
}

func reportProgress(progressChan chan<- float64, current, total int) {
	if progressChan == nil || total <= 0 {
		return
	}
	select {
	case progressChan <- float64(current) / float64(total):
	default:
	}
}
