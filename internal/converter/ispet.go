package converter

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nconklindev/pet2bids/internal/schema"
	"github.com/nconklindev/pet2bids/internal/types"
)

var spreadsheetExts = map[string]bool{".csv": true, ".tsv": true, ".xlsx": true}

// IsSpreadsheet reports whether the file extension is one ReadFileData reads.
func IsSpreadsheet(path string) bool {
	return spreadsheetExts[strings.ToLower(filepath.Ext(path))]
}

// IsPETSpreadsheet reports whether any header of the spreadsheet names a
// field of the schema, blood recording fields included.
func IsPETSpreadsheet(path string, sch *schema.Schema) (bool, error) {
	data, err := ReadFileData(path)
	if err != nil {
		return false, err
	}
	for _, h := range data.Headers {
		if _, ok := sch.Lookup(h); ok {
			return true, nil
		}
	}
	return false, nil
}

// PETFiles walks root and returns every PET spreadsheet below it. Files
// that cannot be read as spreadsheets are skipped.
func PETFiles(root string, sch *schema.Schema) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return &types.FieldError{Err: types.ErrFileNotFound, Path: root}
			}
			return err
		}
		if d.IsDir() || !IsSpreadsheet(path) {
			return nil
		}
		ok, err := IsPETSpreadsheet(path, sch)
		if err == nil && ok {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// PETFolders returns the distinct folders holding PET spreadsheets, sorted.
func PETFolders(root string, sch *schema.Schema) ([]string, error) {
	files, err := PETFiles(root, sch)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var folders []string
	for _, f := range files {
		dir := filepath.Dir(f)
		if !seen[dir] {
			seen[dir] = true
			folders = append(folders, dir)
		}
	}
	sort.Strings(folders)
	return folders, nil
}
