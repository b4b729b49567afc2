package converter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nconklindev/pet2bids/internal/schema"
	"github.com/nconklindev/pet2bids/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestIsPETSpreadsheet(t *testing.T) {
	sch, err := schema.Default()
	require.NoError(t, err)
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		records  [][]string
		expected bool
	}{
		{"Sidecar field", [][]string{{"subject", "InjectedMass"}, {"01", "5"}}, true},
		{"Blood field", [][]string{{"time", "whole_blood_radioactivity"}, {"0", "12"}}, true},
		{"Unrelated", [][]string{{"subject", "age"}, {"01", "33"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.name+".csv")
			writeCSV(t, path, ',', tt.records)

			got, err := IsPETSpreadsheet(path, sch)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err = IsPETSpreadsheet(filepath.Join(tmpDir, "nope.csv"), sch)
	assert.ErrorIs(t, err, types.ErrFileNotFound)
}

func TestPETFolders(t *testing.T) {
	sch, err := schema.Default()
	require.NoError(t, err)
	root := t.TempDir()

	petDir := filepath.Join(root, "sub-01", "pet")
	otherDir := filepath.Join(root, "sub-01", "anat")
	require.NoError(t, os.MkdirAll(petDir, 0o755))
	require.NoError(t, os.MkdirAll(otherDir, 0o755))

	writeCSV(t, filepath.Join(petDir, "scan.csv"), ',', [][]string{{"TracerName", "TimeZero"}, {"x", "y"}})
	writeCSV(t, filepath.Join(petDir, "blood.tsv"), '\t', [][]string{{"time", "plasma_radioactivity"}, {"0", "1"}})
	writeCSV(t, filepath.Join(otherDir, "demographics.csv"), ',', [][]string{{"subject", "age"}, {"01", "33"}})
	require.NoError(t, os.WriteFile(filepath.Join(otherDir, "broken.xlsx"), []byte("not a workbook"), 0o644))

	files, err := PETFiles(root, sch)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(petDir, "scan.csv"), filepath.Join(petDir, "blood.tsv")}, files)

	folders, err := PETFolders(root, sch)
	require.NoError(t, err)
	assert.Equal(t, []string{petDir}, folders)

	_, err = PETFolders(filepath.Join(root, "missing"), sch)
	assert.ErrorIs(t, err, types.ErrFileNotFound)
}

func TestWriteTemplate(t *testing.T) {
	sch, err := schema.Default()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "template.xlsx")

	require.NoError(t, WriteTemplate(path, sch))

	data, err := ReadFileData(path)
	require.NoError(t, err)
	require.Len(t, data.Headers, len(sch.Fields()))
	assert.Equal(t, sch.Mandatory()[0], data.Headers[0])
	assert.Empty(t, data.Rows)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(fieldsSheet)
	require.NoError(t, err)
	require.Len(t, rows, len(sch.Fields())+1)
	assert.Equal(t, []string{"field", "classification"}, rows[0])
	assert.Equal(t, []string{sch.Mandatory()[0], "mandatory"}, rows[1])
	assert.Equal(t, "optional", rows[len(rows)-1][1])

	ok, err := IsPETSpreadsheet(path, sch)
	require.NoError(t, err)
	assert.True(t, ok)
}
