// Package blood converts PMOD blood sampling files (.bld) into BIDS
// recording-<method>_blood.tsv tables and their JSON data dictionaries.
package blood

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nconklindev/pet2bids/internal/bids"
	"github.com/nconklindev/pet2bids/internal/metadata"
	"github.com/nconklindev/pet2bids/internal/types"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats/scalar"
)

type Kind string

const (
	WholeBlood     Kind = "whole_blood_activity"
	ParentFraction Kind = "parent_fraction"
	Plasma         Kind = "plasma_activity"
)

// kinds in output column order
var kinds = []Kind{WholeBlood, Plasma, ParentFraction}

type Method string

const (
	Manual    Method = "manual"
	Automatic Method = "automatic"
)

// TimeTolerance is the absolute difference in seconds under which two
// sample times are the same.
const TimeTolerance = 0.02

// Sidecar fields copied from the extra key=value arguments when given.
var sidecarFields = []string{"MetaboliteMethod", "MetaboliteRecoveryCorrectionApplied", "DispersionCorrected"}

// Input names the PMOD files of one scan. WholeBlood is required.
type Input struct {
	WholeBlood     string
	ParentFraction string
	Plasma         string
}

type Options struct {
	// OutputDir defaults to the folder of the whole blood file.
	OutputDir string
	JSON      bool
	// Extra holds key=value arguments: subject_id, session_id,
	// <kind>_collection_method and the sidecar fields.
	Extra map[string]any
}

type Result struct {
	Files []string
}

// Convert loads the PMOD files, checks them against each other and writes
// one table (and optionally one data dictionary) per collection method.
func Convert(in Input, opts Options, log logrus.FieldLogger) (*Result, error) {
	if in.WholeBlood == "" {
		return nil, &types.FieldError{Err: types.ErrInvalidParameter, Fields: []string{"whole blood"}, Detail: "a whole blood file is required"}
	}

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(in.WholeBlood)
	}
	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		return nil, &types.FieldError{Err: types.ErrFileNotFound, Path: outDir, Detail: "output path must be an existing directory"}
	}

	subject := bids.CollectPart("sub", outDir)
	if subject == "" {
		subject = bids.Label("sub", extraString(opts.Extra, "subject_id"))
	}
	session := bids.CollectPart("ses", outDir)
	if session == "" {
		session = bids.Label("ses", extraString(opts.Extra, "session_id"))
	}

	paths := map[Kind]string{WholeBlood: in.WholeBlood, ParentFraction: in.ParentFraction, Plasma: in.Plasma}
	var series []*Series
	for _, kind := range kinds {
		if paths[kind] == "" {
			continue
		}
		s, err := LoadPMOD(paths[kind], kind, log)
		if err != nil {
			return nil, err
		}
		method, err := collectionMethod(kind, opts.Extra, log)
		if err != nil {
			return nil, err
		}
		s.Method = method
		series = append(series, s)
	}

	if in.Plasma != "" && isRatioFile(in.Plasma) {
		if err := multiplyRatio(find(series, Plasma), find(series, WholeBlood)); err != nil {
			return nil, err
		}
	}

	if err := checkSeries(series, log); err != nil {
		return nil, err
	}
	warnMissingSidecarFields(series, opts.Extra, log)

	res := &Result{}
	prefix := bids.FilePrefix(subject, session)
	for _, method := range []Method{Manual, Automatic} {
		group := byMethod(series, method)
		if len(group) == 0 {
			continue
		}
		base := filepath.Join(outDir, prefix+"recording-"+string(method)+"_blood")

		if err := writeTable(base+".tsv", group); err != nil {
			return nil, err
		}
		res.Files = append(res.Files, base+".tsv")

		if opts.JSON {
			if _, err := metadata.WriteFile(base+".json", dataDictionary(group, series, opts.Extra)); err != nil {
				return nil, err
			}
			res.Files = append(res.Files, base+".json")
		}
	}

	log.WithFields(logrus.Fields{
		"subject": subject,
		"session": session,
		"files":   res.Files,
	}).Info("wrote blood recordings")
	return res, nil
}

func extraString(extra map[string]any, key string) string {
	v, ok := extra[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func collectionMethod(kind Kind, extra map[string]any, log logrus.FieldLogger) (Method, error) {
	key := string(kind) + "_collection_method"
	switch v := strings.ToLower(extraString(extra, key)); v {
	case "":
		log.WithField("series", kind).Info("collection method not given, assuming manual")
		return Manual, nil
	case "manual", "m":
		return Manual, nil
	case "automatic", "auto", "a":
		return Automatic, nil
	default:
		return "", &types.FieldError{Err: types.ErrInvalidParameter, Fields: []string{key}, Detail: "expected manual or automatic, got " + v}
	}
}

func isRatioFile(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	return strings.Contains(name, "whole") && strings.Contains(name, "ratio")
}

func find(series []*Series, kind Kind) *Series {
	for _, s := range series {
		if s.Kind == kind {
			return s
		}
	}
	return nil
}

func byMethod(series []*Series, method Method) []*Series {
	var out []*Series
	for _, s := range series {
		if s.Method == method {
			out = append(out, s)
		}
	}
	return out
}

// multiplyRatio turns a plasma to whole blood ratio into plasma
// radioactivity, pairing samples by time.
func multiplyRatio(plasma, whole *Series) error {
	pc, wc := plasma.column(ColumnPlasma), whole.column(ColumnWholeBlood)
	if pc < 0 || wc < 0 {
		return bloodErr(plasma.Path, "plasma ratio needs a whole blood radioactivity column")
	}
	for _, row := range plasma.Rows {
		matched := false
		for _, w := range whole.Rows {
			if scalar.EqualWithinAbs(row[0], w[0], TimeTolerance) {
				row[pc] *= w[wc]
				matched = true
				break
			}
		}
		if !matched {
			return bloodErr(plasma.Path, "no whole blood sample at %gs to scale the plasma ratio", row[0])
		}
	}
	plasma.Units = whole.Units
	return nil
}

func checkSeries(series []*Series, log logrus.FieldLogger) error {
	for _, method := range []Method{Manual, Automatic} {
		group := byMethod(series, method)
		if len(group) < 2 {
			continue
		}
		first := group[0]
		for _, s := range group[1:] {
			if s.Len() != first.Len() {
				var counts []string
				for _, g := range group {
					counts = append(counts, fmt.Sprintf("%s has %d rows", g.Kind, g.Len()))
				}
				return &types.FieldError{
					Err:    types.ErrBloodData,
					Path:   s.Path,
					Detail: fmt.Sprintf("%s samples must have the same number of rows: %s", method, strings.Join(counts, ", ")),
				}
			}
			ft, st := first.Times(), s.Times()
			for i := range ft {
				if !scalar.EqualWithinAbs(ft[i], st[i], TimeTolerance) {
					return bloodErr(s.Path, "time %gs at row %d does not match %gs in %s", st[i], i+1, ft[i], first.Path)
				}
			}
		}
	}

	for _, auto := range byMethod(series, Automatic) {
		for _, manual := range byMethod(series, Manual) {
			if auto.Len() < manual.Len() {
				log.WithFields(logrus.Fields{
					"automatic": auto.Kind,
					"manual":    manual.Kind,
				}).Warnf("automatic samples (%d rows) should outnumber manual samples (%d rows)", auto.Len(), manual.Len())
			}
		}
	}

	plasma := columnOwner(series, ColumnPlasma)
	parent := columnOwner(series, ColumnParentFraction)
	if plasma != nil && parent != nil && plasma.Len() == parent.Len() {
		log.WithField("rows", plasma.Len()).Warn("plasma and parent fraction have the same length, plasma data may be interpolated")
	}
	if parent != nil {
		for _, v := range parent.Values(ColumnParentFraction) {
			if v > 1 {
				log.WithFields(logrus.Fields{"file": parent.Path, "value": v}).Warn("parent fraction must not exceed 1")
				break
			}
		}
	}
	return nil
}

func columnOwner(series []*Series, column string) *Series {
	for _, s := range series {
		if s.column(column) >= 0 {
			return s
		}
	}
	return nil
}

func warnMissingSidecarFields(series []*Series, extra map[string]any, log logrus.FieldLogger) {
	if columnOwner(series, ColumnParentFraction) == nil {
		return
	}
	for _, field := range []string{"MetaboliteMethod", "DispersionCorrected"} {
		if _, ok := extra[field]; !ok {
			log.WithField("field", field).Warn("parent fraction available without " + field)
		}
	}
}

// writeTable joins the series of one collection method row by row.
func writeTable(path string, group []*Series) error {
	header := []string{ColumnTime}
	for _, s := range group {
		header = append(header, s.Columns[1:]...)
	}
	records := [][]string{header}
	for r := range group[0].Rows {
		record := []string{formatFloat(group[0].Rows[r][0])}
		for _, s := range group {
			for _, v := range s.Rows[r][1:] {
				record = append(record, formatFloat(v))
			}
		}
		records = append(records, record)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var descriptions = map[string]string{
	ColumnTime:           "Time in relation to time zero defined by the _pet.json",
	ColumnWholeBlood:     "Radioactivity in whole blood samples",
	ColumnPlasma:         "Radioactivity in plasma samples",
	ColumnParentFraction: "Parent fraction of the radiotracer",
}

type column struct {
	Description string `json:"Description"`
	Units       string `json:"Units"`
}

func dataDictionary(group, all []*Series, extra map[string]any) *metadata.Metadata {
	m := metadata.New()
	m.Set("PlasmaAvail", columnOwner(all, ColumnPlasma) != nil)
	m.Set("WholeBloodAvail", columnOwner(all, ColumnWholeBlood) != nil)
	m.Set("MetaboliteAvail", columnOwner(all, ColumnParentFraction) != nil)
	for _, field := range sidecarFields {
		if v, ok := extra[field]; ok {
			m.Set(field, v)
		}
	}

	m.Set(ColumnTime, column{Description: descriptions[ColumnTime], Units: "s"})
	for _, s := range group {
		for _, c := range s.Columns[1:] {
			units := s.Units
			if c == ColumnParentFraction {
				units = "arbitrary"
			}
			m.Set(c, column{Description: descriptions[c], Units: units})
		}
	}
	return m
}
