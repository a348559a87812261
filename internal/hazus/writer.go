package hazus

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet to write: the first row is the header.
type Sheet struct {
	Name string
	Rows [][]any
}

// WriteWorkbook writes sheets to a new .xlsx file at path, in order.
func WriteWorkbook(path string, sheets []Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("write workbook %s: no sheets", path)
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		idx, err := f.NewSheet(s.Name)
		if err != nil {
			return fmt.Errorf("create sheet %q: %w", s.Name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		for r, row := range s.Rows {
			axis, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(s.Name, axis, &row); err != nil {
				return fmt.Errorf("write sheet %q row %d: %w", s.Name, r+1, err)
			}
		}
	}

	// NewFile always starts with a default sheet.
	if !hasSheet(sheets, "Sheet1") {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("remove default sheet: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func hasSheet(sheets []Sheet, name string) bool {
	for _, s := range sheets {
		if s.Name == name {
			return true
		}
	}
	return false
}
