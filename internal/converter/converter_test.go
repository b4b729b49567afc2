package converter

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/nconklindev/pet2bids/internal/schema"
	"github.com/nconklindev/pet2bids/internal/types"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// 10:15:14 as a fraction of a day
var timeZeroFraction = strconv.FormatFloat(36914.0/86400, 'g', -1, 64)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.New(
		[]string{"TracerName", "TimeZero", "InjectedRadioactivity"},
		[]string{"InjectedMass", "FrameDuration"},
		[]string{"ReconMethodParameterValues"},
	)
	require.NoError(t, err)
	return sch
}

func writeCSV(t *testing.T, path string, comma rune, records [][]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	w.Comma = comma
	require.NoError(t, w.WriteAll(records))
	require.NoError(t, f.Close())
}

func TestDayFractionToClock(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{"Midnight", 0, "00:00:00"},
		{"Noon", 0.5, "12:00:00"},
		{"Quarter day", 0.25, "06:00:00"},
		{"Seconds", 36914.0 / 86400, "10:15:14"},
		{"Rounds to nearest second", 1.4 / 86400, "00:00:01"},
		{"Wraps at midnight", 0.9999999, "00:00:00"},
		{"Negative number", -0.5, "00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DayFractionToClock(tt.input)
			if got != tt.expected {
				t.Errorf("DayFractionToClock(%f) = %s; want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsDayFraction(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"Fraction", "0.4272", true},
		{"Zero", "0", true},
		{"Empty string", "", false},
		{"Whitespace", "   ", false},
		{"Clock text", "10:15:14", false},
		{"One day", "1", false},
		{"Negative", "-0.2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsDayFraction(tt.input)
			if got != tt.expected {
				t.Errorf("IsDayFraction(%q) = %v; want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNumericColumns(t *testing.T) {
	tests := []struct {
		name     string
		data     *types.FileData
		expected []int
	}{
		{
			name: "Detects single column",
			data: &types.FileData{
				Headers: []string{"TracerName", "InjectedMass"},
				Rows: [][]string{
					{"[11C]DASB", "5.3"},
					{"", "4.1"},
				},
			},
			expected: []int{1},
		},
		{
			name: "NaN counts as a number",
			data: &types.FileData{
				Headers: []string{"FrameDuration", "ScaleFactor"},
				Rows: [][]string{
					{"30", "NaN"},
					{"60", "1.2e-3"},
				},
			},
			expected: []int{0, 1},
		},
		{
			name: "Ignores text columns",
			data: &types.FileData{
				Headers: []string{"TimeZero", "Units"},
				Rows: [][]string{
					{"10:15:14", "Bq/mL"},
				},
			},
			expected: nil,
		},
		{
			name: "Ignores empty columns and short rows",
			data: &types.FileData{
				Headers: []string{"InjectedMass", "Empty"},
				Rows: [][]string{
					{"5.3"},
					{"", ""},
				},
			},
			expected: []int{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NumericColumns(tt.data))
		})
	}
}

func TestFindHeaderRow(t *testing.T) {
	tests := []struct {
		name     string
		rows     [][]string
		expected int
	}{
		{"First row", [][]string{{"TracerName", "TimeZero"}, {"[11C]DASB", "10:15:14"}}, 0},
		{"After title", [][]string{{"Scan sheet"}, {}, {"TracerName", "TimeZero", "InjectedMass"}, {"x", "y", "1"}}, 2},
		{"Numbers only", [][]string{{"1", "2"}, {"3", "4"}}, -1},
		{"Empty", nil, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, findHeaderRow(tt.rows))
		})
	}
}

func TestClassify(t *testing.T) {
	sch, err := schema.Default()
	require.NoError(t, err)
	logger, hook := test.NewNullLogger()

	cls := Classify([]string{"TRACERNAME", "tracername", "TimeZero", "plasma_radioactivity", "Comment", ""}, sch, logger)

	assert.Equal(t, 0, cls.Column["TracerName"])
	assert.Contains(t, cls.Mandatory, "TracerName")
	assert.Contains(t, cls.Mandatory, "TimeZero")
	assert.NotContains(t, cls.MissingMandatory, "TracerName")
	assert.Contains(t, cls.MissingMandatory, "Manufacturer")
	assert.Contains(t, cls.MissingRecommended, "InjectedVolume")
	assert.Equal(t, []string{"plasma_radioactivity", "Comment"}, cls.Unrecognized)

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.AllEntries()[0]
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "tracername", entry.Data["column"])
	assert.Equal(t, "TRACERNAME", entry.Data["kept"])
}

func TestConvertSpreadsheet_CSV(t *testing.T) {
	tmpDir := t.TempDir()
	inputFile := filepath.Join(tmpDir, "sub-01_scan.csv")
	writeCSV(t, inputFile, ',', [][]string{
		{"TRACERNAME", "TimeZero", "InjectedRadioactivity", "FrameDuration", "ReconMethodParameterValues", "Comment"},
		{"[11C]DASB", timeZeroFraction, "714.84", "30", "[16, 10]", "first"},
		{"", "", "NaN", "60", "", ""},
		{"", "", "", "120", "", ""},
	})

	logger, hook := test.NewNullLogger()
	progress := make(chan float64, 16)

	result, err := ConvertSpreadsheet(inputFile, "", testSchema(t), logger, progress)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmpDir, "sub-01_scan_pet.json"), result.OutputFile)
	assert.Equal(t, []string{"TracerName", "TimeZero", "InjectedRadioactivity", "FrameDuration", "ReconMethodParameterValues"}, result.FieldsWritten)
	assert.Equal(t, []string{"InjectedMass"}, result.MissingRecommended)
	assert.Positive(t, result.BytesWritten)
	assert.NotEmpty(t, progress)

	data, err := os.ReadFile(result.OutputFile)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "[11C]DASB", got["TracerName"])
	assert.Equal(t, "10:15:14", got["TimeZero"])
	assert.Equal(t, 714.84, got["InjectedRadioactivity"], "NaN cells are dropped")
	assert.Equal(t, []any{30.0, 60.0, 120.0}, got["FrameDuration"], "row order is kept")
	assert.Equal(t, []any{16.0, 10.0}, got["ReconMethodParameterValues"])
	assert.NotContains(t, got, "Comment")

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
			assert.Equal(t, []string{"InjectedMass"}, e.Data["missing"])
		}
	}
	assert.True(t, warned, "missing recommended fields should be logged")
}

func TestConvertSpreadsheet_TSV(t *testing.T) {
	tmpDir := t.TempDir()
	inputFile := filepath.Join(tmpDir, "scan.tsv")
	writeCSV(t, inputFile, '\t', [][]string{
		{"tracername", "timezero", "injectedradioactivity", "InjectedMass", "FrameDuration"},
		{"[18F]FDG", "09:00:00", "185", "1.5", "300"},
	})

	logger, _ := test.NewNullLogger()
	result, err := ConvertSpreadsheet(inputFile, "sub-02_ses-01", testSchema(t), logger, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "sub-02_ses-01_pet.json"), result.OutputFile)
	assert.Empty(t, result.MissingRecommended)

	data, err := os.ReadFile(result.OutputFile)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "09:00:00", got["TimeZero"])
	assert.Equal(t, 185.0, got["InjectedRadioactivity"])
	assert.Equal(t, 300.0, got["FrameDuration"], "a single value is a scalar")
}

func TestConvertSpreadsheet_BracketedLabels(t *testing.T) {
	sch, err := schema.New([]string{"TracerName", "TracerRadionuclide"}, nil, []string{"ReconMethodParameterLabels"})
	require.NoError(t, err)

	tmpDir := t.TempDir()
	inputFile := filepath.Join(tmpDir, "labels.csv")
	writeCSV(t, inputFile, ',', [][]string{
		{"TracerName", "TracerRadionuclide", "ReconMethodParameterLabels"},
		{"DASB", "[11C]", "['subsets', 'iterations']"},
		{"[18F]FDG", "[18F]", ""},
	})

	logger, _ := test.NewNullLogger()
	result, err := ConvertSpreadsheet(inputFile, "", sch, logger, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(result.OutputFile)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, []any{"DASB", "[18F]FDG"}, got["TracerName"])
	assert.Equal(t, []any{"[11C]", "[18F]"}, got["TracerRadionuclide"])
	assert.Equal(t, []any{"subsets", "iterations"}, got["ReconMethodParameterLabels"])
}

func TestConvertSpreadsheet_XLSX(t *testing.T) {
	tmpDir := t.TempDir()
	inputFile := filepath.Join(tmpDir, "scan.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"HRRT scan export"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"TracerName", "TimeZero", "InjectedRadioactivity", "FrameDuration"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"[11C]PS13", "10:15:14", 714.84, 30}))
	require.NoError(t, f.SetSheetRow(sheet, "A5", &[]any{nil, nil, nil, 60}))
	require.NoError(t, f.SaveAs(inputFile))
	require.NoError(t, f.Close())

	fileData, err := ReadFileData(inputFile)
	require.NoError(t, err)
	assert.Equal(t, 2, fileData.HeaderRow)

	logger, _ := test.NewNullLogger()
	result, err := ConvertSpreadsheet(inputFile, filepath.Join(tmpDir, "out", "sub-03_pet.json"), testSchema(t), logger, nil)
	require.Error(t, err, "output directory does not exist")
	assert.Nil(t, result)

	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "out"), 0o755))
	result, err = ConvertSpreadsheet(inputFile, filepath.Join(tmpDir, "out", "sub-03_pet.json"), testSchema(t), logger, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "out", "sub-03_pet.json"), result.OutputFile)

	data, err := os.ReadFile(result.OutputFile)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "[11C]PS13", got["TracerName"])
	assert.Equal(t, 714.84, got["InjectedRadioactivity"])
	assert.Equal(t, []any{30.0, 60.0}, got["FrameDuration"])
}

func TestConvertSpreadsheet_MissingMandatory(t *testing.T) {
	tests := []struct {
		name    string
		records [][]string
		missing []string
	}{
		{
			name:    "Absent column",
			records: [][]string{{"TracerName", "TimeZero"}, {"[11C]DASB", "10:15:14"}},
			missing: []string{"InjectedRadioactivity"},
		},
		{
			name:    "Empty column",
			records: [][]string{{"TracerName", "TimeZero", "InjectedRadioactivity"}, {"[11C]DASB", "", "NaN"}},
			missing: []string{"TimeZero", "InjectedRadioactivity"},
		},
		{
			name:    "Nothing matched",
			records: [][]string{{"Subject", "Weight"}, {"01", "70"}},
			missing: []string{"TracerName", "TimeZero", "InjectedRadioactivity"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			inputFile := filepath.Join(tmpDir, "scan.csv")
			writeCSV(t, inputFile, ',', tt.records)

			logger, _ := test.NewNullLogger()
			_, err := ConvertSpreadsheet(inputFile, "", testSchema(t), logger, nil)
			require.ErrorIs(t, err, types.ErrMissingMandatoryFields)
			assert.Equal(t, tt.missing, types.FieldsOf(err))
			assert.Contains(t, err.Error(), inputFile)

			_, statErr := os.Stat(filepath.Join(tmpDir, "scan_pet.json"))
			assert.True(t, os.IsNotExist(statErr), "no sidecar on failure")
		})
	}
}

func TestConvertSpreadsheet_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	logger, _ := test.NewNullLogger()

	_, err := ConvertSpreadsheet(filepath.Join(tmpDir, "missing.csv"), "", testSchema(t), logger, nil)
	require.ErrorIs(t, err, types.ErrFileNotFound)
	assert.Contains(t, err.Error(), "missing.csv")

	txt := filepath.Join(tmpDir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("TracerName"), 0o644))
	_, err = ConvertSpreadsheet(txt, "", testSchema(t), logger, nil)
	require.ErrorIs(t, err, types.ErrUnsupportedFile)

	_, err = ConvertSpreadsheet(txt, "", nil, logger, nil)
	require.ErrorIs(t, err, types.ErrSchemaMissing)
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		outputName string
		expected   string
	}{
		{"From input", "/data/scan.xlsx", "", "/data/scan_pet.json"},
		{"Input already named", "/data/sub-01_pet.csv", "", "/data/sub-01_pet.json"},
		{"Bare output name", "/data/scan.xlsx", "sub-01", "/data/sub-01_pet.json"},
		{"Output with json", "/data/scan.xlsx", "sub-01_pet.json", "/data/sub-01_pet.json"},
		{"Output with directory", "/data/scan.xlsx", "/bids/sub-01/pet/sub-01", "/bids/sub-01/pet/sub-01_pet.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.expected), OutputPath(filepath.FromSlash(tt.input), filepath.FromSlash(tt.outputName)))
		})
	}
}
