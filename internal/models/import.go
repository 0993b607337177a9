package models

// ImportRow is one (name, parent) row read from an uploaded spreadsheet.
// Parent is empty for roots.
type ImportRow struct {
	Line   int    `json:"line"`
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

// ImportResult summarises an upload
type ImportResult struct {
	TotalItems     int           `json:"total_items"`     // Data rows read from the sheet
	ProcessedItems int           `json:"processed_items"` // Categories created
	FailedItems    int           `json:"failed_items"`    // Rows skipped
	Errors         []ImportError `json:"errors,omitempty"`
}

// ImportError describes a skipped row
type ImportError struct {
	Line  int    `json:"line"`
	Name  string `json:"name"`
	Error string `json:"error"`
}
