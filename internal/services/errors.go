package services

import "errors"

var (
	// ErrCategoryNotFound is returned by lookups that require the category to exist
	ErrCategoryNotFound = errors.New("category not found")
	// ErrInvalidName rejects empty category names
	ErrInvalidName = errors.New("category name is required")
	// ErrStorageUnavailable wraps every failure of the backing store
	ErrStorageUnavailable = errors.New("category storage unavailable")
	// ErrExportFailed wraps failures while building or reading a spreadsheet
	ErrExportFailed = errors.New("category export failed")
	// ErrTreeTooLarge is returned when a traversal would exceed the node limit
	ErrTreeTooLarge = errors.New("category tree exceeds node limit")
	// ErrTreeCorrupt is returned when a traversal visits more nodes than exist
	ErrTreeCorrupt = errors.New("category tree is inconsistent")
)
