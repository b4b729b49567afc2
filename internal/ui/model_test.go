package ui

import (
	"errors"
	"testing"

	"github.com/nconklindev/pet2bids/internal/schema"
	"github.com/nconklindev/pet2bids/internal/types"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel(t *testing.T) Model {
	t.Helper()
	sch, err := schema.New(
		[]string{"TracerName", "TimeZero"},
		[]string{"InjectedMass"},
		[]string{"BodyPart"},
	)
	require.NoError(t, err)
	return InitialModel(sch)
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestReview(t *testing.T) {
	m := testModel(t)
	m.selectedFile = "/data/scan.csv"

	m = update(t, m, fileLoadedMsg{data: &types.FileData{
		Headers: []string{"tracername", "TimeZero", "Comment", "TracerName"},
		Rows:    [][]string{{"[11C]DASB", "0.5", "x", "[11C]DASB"}},
	}})
	require.Equal(t, stateReview, m.state)

	view := m.View()
	assert.Contains(t, view, "scan.csv")
	assert.Contains(t, view, "All 2 mandatory fields present")
	assert.Contains(t, view, "Missing recommended: InjectedMass")
	assert.Contains(t, view, "not in schema")
	assert.Contains(t, view, "duplicate of tracername")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.cursor)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, stateFilePicker, m.state)
	assert.Nil(t, m.fileData)
}

func TestReview_MissingMandatoryBlocksConversion(t *testing.T) {
	m := testModel(t)
	m = update(t, m, fileLoadedMsg{data: &types.FileData{Headers: []string{"TracerName", "InjectedMass"}}})

	assert.Contains(t, m.View(), "Missing mandatory: TimeZero")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, stateReview, m.state)
}

func TestResultStates(t *testing.T) {
	m := testModel(t)

	failed := update(t, m, fileLoadedMsg{err: errors.New("file not found: /data/x.csv")})
	assert.Equal(t, stateError, failed.state)
	assert.Contains(t, failed.View(), "file not found")

	done := update(t, m, conversionCompleteMsg{result: &types.ConversionResult{
		InputFile:          "/data/scan.csv",
		OutputFile:         "/data/scan_pet.json",
		FieldsWritten:      []string{"TracerName", "TimeZero"},
		MissingRecommended: []string{"InjectedMass"},
		BytesWritten:       2048,
	}})
	require.Equal(t, stateComplete, done.state)
	view := done.View()
	assert.Contains(t, view, "scan_pet.json")
	assert.Contains(t, view, "Fields written: 2")
	assert.Contains(t, view, "2.0 kB")
}
