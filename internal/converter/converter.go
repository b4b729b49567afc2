package converter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/nconklindev/pet2bids/internal/types"

	"github.com/xuri/excelize/v2"
)

const RowDetectionLimit = 10

const secondsPerDay = 24 * 60 * 60

// DayFractionToClock converts a spreadsheet time (fraction of a day) to hh:mm:ss
func DayFractionToClock(fraction float64) string {
	if fraction < 0 || math.IsNaN(fraction) {
		return "00:00:00"
	}

	seconds := int(math.Round(fraction*secondsPerDay)) % secondsPerDay
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}

// IsDayFraction checks if a string looks like a spreadsheet time of day
func IsDayFraction(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}

	return val >= 0 && val < 1
}

// isNumber reports whether s parses as a float, NaN and Inf included.
func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// NumericColumns identifies columns whose non-empty cells are all numbers.
func NumericColumns(data *types.FileData) []int {
	var detectedIndices []int

	for i := range data.Headers {
		numeric := true
		checkedRows := 0

		for _, row := range data.Rows {
			if i >= len(row) {
				continue
			}
			val := strings.TrimSpace(row[i])
			if val == "" {
				continue
			}
			if !isNumber(val) {
				numeric = false
				break
			}
			checkedRows++
		}

		if numeric && checkedRows > 0 {
			detectedIndices = append(detectedIndices, i)
		}
	}

	return detectedIndices
}

// ReadFileData reads the header row and the data rows of a spreadsheet
func ReadFileData(filePath string) (*types.FileData, error) {
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &types.FieldError{Err: types.ErrFileNotFound, Path: filePath}
		}
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".csv":
		return ReadDelimited(filePath, ',')
	case ".tsv":
		return ReadDelimited(filePath, '\t')
	case ".xlsx":
		return readXLSXData(filePath)
	default:
		return nil, &types.FieldError{Err: types.ErrUnsupportedFile, Path: filePath, Detail: "expected .csv, .tsv or .xlsx"}
	}
}

// ReadDelimited reads a separated text file whose first row is the header.
func ReadDelimited(filePath string, comma rune) (*types.FileData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("empty file: %s", filePath)
	}

	return &types.FileData{
		Headers: trimAll(records[0]),
		Rows:    records[1:],
	}, nil
}

func readXLSXData(filePath string) (*types.FileData, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheetName, filePath, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("empty file: %s", filePath)
	}

	headerRowIdx := findHeaderRow(rows)
	if headerRowIdx == -1 {
		return nil, fmt.Errorf("could not find header row in %s", filePath)
	}

	return &types.FileData{
		Headers:   trimAll(rows[headerRowIdx]),
		Rows:      rows[headerRowIdx+1:],
		HeaderRow: headerRowIdx,
	}, nil
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

// findHeaderRow locates the first row that appears to be a header
// by finding the row with the most non-empty text cells
func findHeaderRow(rows [][]string) int {
	maxNonEmpty := 0
	headerIdx := -1

	// Look at first 20 rows max
	searchLimit := min(len(rows), RowDetectionLimit*2)

	for i := 0; i < searchLimit; i++ {
		nonEmptyCount := 0
		hasText := false

		for _, cell := range rows[i] {
			trimmed := strings.TrimSpace(cell)
			if trimmed != "" {
				nonEmptyCount++
				if containsLetters(trimmed) {
					hasText = true
				}
			}
		}

		// Header should have multiple columns AND contain text
		if nonEmptyCount >= 2 && hasText && nonEmptyCount > maxNonEmpty {
			maxNonEmpty = nonEmptyCount
			headerIdx = i
		}
	}

	return headerIdx
}

func containsLetters(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
