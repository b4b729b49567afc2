package blood

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/nconklindev/pet2bids/internal/converter"
	"github.com/nconklindev/pet2bids/internal/types"

	"github.com/sirupsen/logrus"
)

// Output column names.
const (
	ColumnTime           = "time"
	ColumnWholeBlood     = "whole_blood_radioactivity"
	ColumnPlasma         = "plasma_radioactivity"
	ColumnParentFraction = "metabolite_parent_fraction"
)

var unitsPattern = regexp.MustCompile(`\[(.*?)\]`)

// Series is one PMOD .bld file after its columns were renamed and its time
// scaled to seconds.
type Series struct {
	Kind    Kind
	Path    string
	Method  Method
	Columns []string
	Rows    [][]float64
	Units   string
}

func (s *Series) Len() int {
	return len(s.Rows)
}

func (s *Series) column(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Values returns the column called name, or nil.
func (s *Series) Values(name string) []float64 {
	i := s.column(name)
	if i < 0 {
		return nil
	}
	out := make([]float64, len(s.Rows))
	for r, row := range s.Rows {
		out[r] = row[i]
	}
	return out
}

func (s *Series) Times() []float64 {
	return s.Values(ColumnTime)
}

func bloodErr(path, format string, args ...any) error {
	return &types.FieldError{Err: types.ErrBloodData, Path: path, Detail: fmt.Sprintf(format, args...)}
}

// LoadPMOD reads a tab separated PMOD blood file. The time column is the one
// whose header mentions sec, or else min (scaled by 60). The radioactivity
// column is renamed for its kind and its units taken from the [..] suffix of
// the header, with cc written as mL.
func LoadPMOD(path string, kind Kind, log logrus.FieldLogger) (*Series, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, &types.FieldError{Err: types.ErrFileNotFound, Path: path}
	}
	data, err := converter.ReadDelimited(path, '\t')
	if err != nil {
		return nil, err
	}

	timeCol, scale := -1, 1.0
	for _, unit := range []struct {
		word  string
		scale float64
	}{{"sec", 1}, {"min", 60}} {
		var matches []int
		for i, h := range data.Headers {
			if strings.Contains(strings.ToLower(h), unit.word) {
				matches = append(matches, i)
			}
		}
		if len(matches) > 1 {
			return nil, bloodErr(path, "more than one time column in %s", unit.word)
		}
		if len(matches) == 1 {
			timeCol, scale = matches[0], unit.scale
			break
		}
	}
	if timeCol < 0 {
		return nil, bloodErr(path, "no time column in seconds or minutes")
	}

	parentCol, suspicious := -1, false
	for i, h := range data.Headers {
		if i != timeCol && strings.Contains(strings.ToLower(h), "parent") {
			parentCol = i
			lower := strings.ToLower(h)
			if strings.Contains(lower, "bq") || strings.Contains(lower, "ml") {
				log.WithFields(logrus.Fields{"file": path, "column": h}).Warn("parent fraction column must be unitless")
				suspicious = true
			}
			break
		}
	}

	s := &Series{Kind: kind, Path: path, Columns: []string{ColumnTime}}
	cols := []int{timeCol}

	if parentCol < 0 || suspicious {
		radioCol := -1
		for i, h := range data.Headers {
			lower := strings.ToLower(h)
			if i != timeCol && (strings.Contains(lower, "bq") || strings.Contains(lower, "cc")) {
				radioCol = i
				break
			}
		}
		// a plasma to whole blood ratio carries no units
		unitless := false
		if radioCol < 0 && kind == Plasma {
			for i := range data.Headers {
				if i != timeCol && data.Headers[i] != "" {
					radioCol, unitless = i, true
					break
				}
			}
		}
		if radioCol >= 0 {
			header := strings.ReplaceAll(data.Headers[radioCol], "cc", "mL")
			if m := unitsPattern.FindStringSubmatch(header); m != nil {
				s.Units = m[1]
			} else if !unitless {
				return nil, bloodErr(path, "no units in column %q, expected Bq/cc or Bq/mL in brackets", data.Headers[radioCol])
			}

			name := ColumnWholeBlood
			if kind == Plasma || strings.Contains(strings.ToLower(header), "plasma") {
				name = ColumnPlasma
			}
			s.Columns = append(s.Columns, name)
			cols = append(cols, radioCol)
		}
	}
	if parentCol >= 0 && !suspicious && kind != Plasma {
		s.Columns = append(s.Columns, ColumnParentFraction)
		cols = append(cols, parentCol)
	}
	if len(cols) == 1 {
		return nil, bloodErr(path, "no radioactivity or parent fraction column")
	}

	for r, row := range data.Rows {
		if isBlank(row) {
			continue
		}
		values := make([]float64, len(cols))
		for j, c := range cols {
			if c >= len(row) {
				return nil, bloodErr(path, "row %d is missing column %q", r+2, data.Headers[c])
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(row[c]), 64)
			if err != nil {
				return nil, bloodErr(path, "row %d column %q: %q is not a number", r+2, data.Headers[c], row[c])
			}
			values[j] = f
		}
		values[0] *= scale
		s.Rows = append(s.Rows, values)
	}
	return s, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
