package services

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"categorybot/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	ExportFileName    = "categories.xlsx"
	ExportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ExportSheetName   = "Categories"
	HeaderName        = "Category Name"
	HeaderParentName  = "Parent Name"
)

// EncodeCategoryWorkbook writes the header row followed by one row per
// export row, in order, to a single "Categories" sheet.
func EncodeCategoryWorkbook(rows []models.ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ExportSheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	if err := f.SetSheetRow(ExportSheetName, "A1", &[]interface{}{HeaderName, HeaderParentName}); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	nameWidth, parentWidth := utf8.RuneCountInString(HeaderName), utf8.RuneCountInString(HeaderParentName)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		parent := row.ParentColumn()
		if err := f.SetSheetRow(ExportSheetName, cell, &[]interface{}{row.Name, parent}); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
		nameWidth = max(nameWidth, utf8.RuneCountInString(row.Name))
		parentWidth = max(parentWidth, utf8.RuneCountInString(parent))
	}

	if err := f.SetColWidth(ExportSheetName, "A", "A", columnWidth(nameWidth)); err != nil {
		return nil, fmt.Errorf("size name column: %w", err)
	}
	if err := f.SetColWidth(ExportSheetName, "B", "B", columnWidth(parentWidth)); err != nil {
		return nil, fmt.Errorf("size parent column: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCategoryWorkbook reads (name, parent) rows from the first sheet.
// The fixed header row and rows with an empty name are skipped; a parent of
// "Root" or an empty cell marks a root.
func DecodeCategoryWorkbook(r io.Reader) ([]models.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	var rows []models.ImportRow
	for i, cells := range raw {
		if len(cells) == 0 {
			continue
		}
		name := strings.TrimSpace(cells[0])
		parent := ""
		if len(cells) > 1 {
			parent = strings.TrimSpace(cells[1])
		}
		if name == "" {
			continue
		}
		if i == 0 && name == HeaderName && parent == HeaderParentName {
			continue
		}
		if parent == models.RootMarker {
			parent = ""
		}
		rows = append(rows, models.ImportRow{Line: i + 1, Name: name, Parent: parent})
	}
	return rows, nil
}

func columnWidth(chars int) float64 {
	return float64(min(chars, 80)) + 2
}
