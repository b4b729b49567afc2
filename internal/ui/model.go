package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nconklindev/pet2bids/internal/converter"
	"github.com/nconklindev/pet2bids/internal/logging"
	"github.com/nconklindev/pet2bids/internal/schema"
	"github.com/nconklindev/pet2bids/internal/types"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

type state int

const (
	stateFilePicker state = iota
	stateReview
	stateProcessing
	stateComplete
	stateError
)

type Model struct {
	state          state
	schema         *schema.Schema
	log            logrus.FieldLogger
	filepicker     filepicker.Model
	selectedFile   string
	fileData       *types.FileData
	classification *types.Classification
	cursor         int
	result         *types.ConversionResult
	err            error
	width          int
	height         int
	progress       progress.Model
	progressChan   chan float64
	resultChan     chan conversionResultMsg
}

type conversionResultMsg struct {
	result *types.ConversionResult
	err    error
}

type fileLoadedMsg struct {
	data *types.FileData
	err  error
}

type conversionCompleteMsg struct {
	result *types.ConversionResult
	err    error
}

type progressMsg float64

type waitForProgressMsg struct{}

// InitialModel starts at the file picker. Conversion logs are discarded
// since the alt screen owns the terminal; warnings are shown on the
// result screen instead.
func InitialModel(sch *schema.Schema) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".csv", ".tsv", ".xlsx"}
	fp.CurrentDirectory, _ = os.Getwd()

	// Set filepicker colors to match theme
	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(accent)
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(highlight)
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(highlight)
	fp.Styles.File = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	fp.Styles.Permission = lipgloss.NewStyle().Foreground(muted)
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(accent).Bold(true)
	fp.Styles.FileSize = lipgloss.NewStyle().Foreground(muted)

	prog := progress.New(progress.WithGradient("#2E86AB", "#5FB3D9"))

	return Model{
		state:      stateFilePicker,
		schema:     sch,
		log:        logging.Discard(),
		filepicker: fp,
		progress:   prog,
	}
}

func (m Model) Init() tea.Cmd {
	return m.filepicker.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Subtract space for title, subtitle, help text, and padding
		m.filepicker.Height = max(msg.Height-14, 5)

		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateFilePicker:
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			}

		case stateReview:
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "up", "k":
				if m.cursor > 0 {
					m.cursor--
				}
			case "down", "j":
				if m.cursor < len(m.fileData.Headers)-1 {
					m.cursor++
				}
			case "esc":
				m.state = stateFilePicker
				m.fileData, m.classification, m.cursor = nil, nil, 0
				return m, nil
			case "enter":
				if len(m.classification.MissingMandatory) == 0 {
					m.state = stateProcessing
					return m.convertFile()
				}
			}

		case stateComplete, stateError:
			switch msg.String() {
			case "ctrl+c", "q", "enter", "esc":
				return m, tea.Quit
			}
		}

	case fileLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.fileData = msg.data
		m.classification = converter.Classify(msg.data.Headers, m.schema, m.log)
		m.state = stateReview
		return m, nil

	case conversionCompleteMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.result = msg.result
		m.state = stateComplete
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case progressMsg:
		if m.state == stateProcessing {
			cmd := m.progress.SetPercent(float64(msg))
			return m, tea.Batch(cmd, waitForProgress(m.progressChan, m.resultChan))
		}
		return m, nil

	case waitForProgressMsg:
		return m, waitForProgress(m.progressChan, m.resultChan)
	}

	if m.state == stateFilePicker {
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)

		if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			return m, m.loadFile(path)
		}

		return m, cmd
	}

	return m, nil
}

func (m Model) loadFile(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := converter.ReadFileData(path)
		return fileLoadedMsg{data: data, err: err}
	}
}

func (m Model) convertFile() (Model, tea.Cmd) {
	m.progressChan = make(chan float64, 100)
	m.resultChan = make(chan conversionResultMsg, 1)

	progressChan := m.progressChan
	resultChan := m.resultChan
	selectedFile := m.selectedFile
	sch := m.schema
	log := m.log

	cmd := tea.Batch(
		func() tea.Msg {
			go func() {
				result, err := converter.ConvertSpreadsheet(selectedFile, "", sch, log, progressChan)

				resultChan <- conversionResultMsg{result: result, err: err}

				close(progressChan)
				close(resultChan)
			}()

			return waitForProgressMsg{}
		},
		m.progress.Init(),
	)

	return m, cmd
}

func waitForProgress(progressChan chan float64, resultChan chan conversionResultMsg) tea.Cmd {
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}

		p, ok := <-progressChan
		if !ok {
			// Progress channel closed, check result
			res, ok := <-resultChan
			if ok {
				return conversionCompleteMsg(res)
			}
			return nil
		}

		return progressMsg(p)
	}
}

func (m Model) View() string {
	switch m.state {
	case stateFilePicker:
		return m.viewFilePicker()
	case stateReview:
		return m.viewReview()
	case stateProcessing:
		return m.viewProcessing()
	case stateComplete:
		return m.viewComplete()
	case stateError:
		return m.viewError()
	}
	return ""
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	title := TitleStyle.Render("PET2BIDS - Spreadsheet to PET Sidecar")
	byLine := SubtitleStyle.Render("Writes <name>_pet.json next to the spreadsheet")

	s.WriteString(lipgloss.JoinVertical(lipgloss.Left, title, byLine))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Select a CSV, TSV or XLSX metadata spreadsheet"))
	s.WriteString("\n\n")
	s.WriteString(m.filepicker.View())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("Press q to quit"))

	return s.String()
}

// columnLabel names the class a header was matched to.
func (m Model) columnLabel(i int) (string, lipgloss.Style) {
	header := m.fileData.Headers[i]
	for _, group := range []struct {
		label  string
		fields []string
		style  lipgloss.Style
	}{
		{"mandatory", m.classification.Mandatory, CheckedStyle},
		{"recommended", m.classification.Recommended, UnselectedStyle},
		{"optional", m.classification.Optional, UnselectedStyle},
	} {
		for _, f := range group.fields {
			if col, ok := m.classification.Column[f]; ok && col == i {
				return group.label, group.style
			}
		}
	}
	if header == "" {
		return "empty", MutedStyle
	}
	if field, ok := m.schema.Lookup(header); ok {
		if field.Class == schema.BloodRecording {
			return "blood recording, skipped", MutedStyle
		}
		return "duplicate of " + m.fileData.Headers[m.classification.Column[field.Name]], WarningStyle
	}
	return "not in schema", MutedStyle
}

func (m Model) viewReview() string {
	var s strings.Builder
	cls := m.classification

	s.WriteString(TitleStyle.Render("Review Columns"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("File: %s", filepath.Base(m.selectedFile))))
	s.WriteString("\n\n")

	if len(cls.MissingMandatory) == 0 {
		s.WriteString(SuccessStyle.Render(fmt.Sprintf("✓ All %d mandatory fields present", len(cls.Mandatory))))
	} else {
		s.WriteString(ErrorStyle.Render("✗ Missing mandatory: " + strings.Join(cls.MissingMandatory, ", ")))
	}
	s.WriteString("\n")
	if len(cls.MissingRecommended) > 0 {
		s.WriteString(WarningStyle.Render("! Missing recommended: " + strings.Join(cls.MissingRecommended, ", ")))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	for i, header := range m.fileData.Headers {
		cursor := " "
		if m.cursor == i {
			cursor = ">"
		}

		label, style := m.columnLabel(i)
		line := fmt.Sprintf("%s %-40s %s", cursor, header, label)

		if m.cursor == i {
			line = SelectedStyle.Render(line)
		} else {
			line = style.Render(line)
		}

		s.WriteString(line)
		s.WriteString("\n")
	}

	s.WriteString("\n")
	help := "↑/↓: navigate • enter: convert • esc: pick another file • q: quit"
	if len(cls.MissingMandatory) > 0 {
		help = "↑/↓: navigate • esc: pick another file • q: quit"
	}
	s.WriteString(HelpStyle.Render(help))

	return BoxStyle.Render(s.String())
}

func (m Model) viewProcessing() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("Processing..."))
	s.WriteString("\n\n")
	s.WriteString("Collecting field values...")
	s.WriteString("\n\n")
	s.WriteString(m.progress.View())

	return BoxStyle.Render(s.String())
}

func (m Model) truncate(path string) string {
	// Leave room for padding and borders
	maxPathLen := max(m.width-20, 30)
	if len(path) > maxPathLen {
		return "..." + path[len(path)-maxPathLen+3:]
	}
	return path
}

func (m Model) viewComplete() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("✓ Conversion Complete!"))
	s.WriteString("\n\n")

	s.WriteString(fmt.Sprintf("Input:  %s\n", m.truncate(m.result.InputFile)))
	s.WriteString(SuccessStyle.Render(fmt.Sprintf("Output: %s\n", m.truncate(m.result.OutputFile))))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Fields written: %d\n", len(m.result.FieldsWritten)))
	s.WriteString(fmt.Sprintf("Size: %s\n", humanize.Bytes(uint64(m.result.BytesWritten))))
	if len(m.result.MissingRecommended) > 0 {
		s.WriteString("\n")
		s.WriteString(WarningStyle.Render("Missing recommended: " + strings.Join(m.result.MissingRecommended, ", ")))
		s.WriteString("\n")
	}
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("Press any key to exit"))

	return BoxStyle.Render(s.String())
}

func (m Model) viewError() string {
	var s strings.Builder

	s.WriteString(ErrorStyle.Render("✗ Error"))
	s.WriteString("\n\n")
	s.WriteString(m.err.Error())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("Press any key to exit"))

	return BoxStyle.Render(s.String())
}
