package models

import (
	"time"

	"github.com/google/uuid"
)

// RootMarker is written in the parent column for categories without a parent
const RootMarker = "Root"

// Category is a single node of the global category tree.
// Children are never stored; they are derived from ParentID by Forest.
type Category struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// IsRoot reports whether the category has no parent
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// CategoryTree is the nested JSON view of a category and its subtree
type CategoryTree struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Depth    int             `json:"depth"`
	Children []*CategoryTree `json:"children,omitempty"`
}

// ExportRow is one flattened (name, parent name) pair of the export table.
// ParentName is nil for roots.
type ExportRow struct {
	Name       string  `json:"name"`
	ParentName *string `json:"parent_name"`
}

// ParentColumn returns the value written to the "Parent Name" column
func (r ExportRow) ParentColumn() string {
	if r.ParentName == nil {
		return RootMarker
	}
	return *r.ParentName
}
