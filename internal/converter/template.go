package converter

import (
	"fmt"

	"github.com/nconklindev/pet2bids/internal/schema"

	"github.com/xuri/excelize/v2"
)

const fieldsSheet = "fields"

// WriteTemplate writes an empty PET metadata workbook: the first sheet has
// one header column per schema field, the fields sheet lists each field with
// its classification.
func WriteTemplate(outputFile string, sch *schema.Schema) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := f.GetSheetName(0)
	fields := sch.Fields()

	header := make([]any, len(fields))
	for i, field := range fields {
		header[i] = field.Name
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write template header: %w", err)
	}

	if _, err := f.NewSheet(fieldsSheet); err != nil {
		return fmt.Errorf("add %s sheet: %w", fieldsSheet, err)
	}
	if err := f.SetSheetRow(fieldsSheet, "A1", &[]any{"field", "classification"}); err != nil {
		return fmt.Errorf("write %s sheet: %w", fieldsSheet, err)
	}
	for i, field := range fields {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(fieldsSheet, cell, &[]any{field.Name, field.Class.String()}); err != nil {
			return fmt.Errorf("write %s sheet: %w", fieldsSheet, err)
		}
	}

	if err := f.SaveAs(outputFile); err != nil {
		return fmt.Errorf("save template %s: %w", outputFile, err)
	}
	return nil
}
