package services

import (
	"fmt"
	"strings"

	"categorybot/internal/models"

	"github.com/google/uuid"
)

// DefaultMaxTreeNodes bounds every traversal when no limit is configured
const DefaultMaxTreeNodes = 10000

// TreeRenderer turns a forest into text, export rows or nested JSON.
// All walks are depth-first pre-order over an explicit stack, roots and
// siblings in storage order.
type TreeRenderer struct {
	maxNodes int
}

func NewTreeRenderer(maxNodes int) *TreeRenderer {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxTreeNodes
	}
	return &TreeRenderer{maxNodes: maxNodes}
}

type visit struct {
	node   *models.Category
	depth  int
	parent *models.Category
}

// walk calls fn for every node reachable from a root
func (r *TreeRenderer) walk(forest *models.Forest, fn func(v visit)) error {
	if forest == nil {
		return nil
	}
	if forest.Len() > r.maxNodes {
		return fmt.Errorf("%w: %d nodes, limit %d", ErrTreeTooLarge, forest.Len(), r.maxNodes)
	}

	roots := forest.Roots()
	stack := make([]visit, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, visit{node: roots[i]})
	}

	seen := make(map[uuid.UUID]struct{}, forest.Len())
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, dup := seen[v.node.ID]; dup || len(seen) >= forest.Len() {
			return fmt.Errorf("%w: node %s visited twice", ErrTreeCorrupt, v.node.ID)
		}
		seen[v.node.ID] = struct{}{}
		fn(v)

		children := forest.Children(v.node.ID)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, visit{node: children[i], depth: v.depth + 1, parent: v.node})
		}
	}
	return nil
}

// RenderIndentedText writes one line per node: two spaces per depth level,
// then "- " and the name.
func (r *TreeRenderer) RenderIndentedText(forest *models.Forest) (string, error) {
	var sb strings.Builder
	err := r.walk(forest, func(v visit) {
		sb.WriteString(strings.Repeat("  ", v.depth))
		sb.WriteString("- ")
		sb.WriteString(v.node.Name)
		sb.WriteString("\n")
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// FlattenForExport returns one row per node carrying its immediate parent's name
func (r *TreeRenderer) FlattenForExport(forest *models.Forest) ([]models.ExportRow, error) {
	rows := make([]models.ExportRow, 0)
	err := r.walk(forest, func(v visit) {
		row := models.ExportRow{Name: v.node.Name}
		if v.parent != nil {
			name := v.parent.Name
			row.ParentName = &name
		}
		rows = append(rows, row)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Nested builds the JSON view of the forest
func (r *TreeRenderer) Nested(forest *models.Forest) ([]*models.CategoryTree, error) {
	roots := make([]*models.CategoryTree, 0)
	built := make(map[uuid.UUID]*models.CategoryTree)
	err := r.walk(forest, func(v visit) {
		node := &models.CategoryTree{ID: v.node.ID, Name: v.node.Name, Depth: v.depth}
		built[v.node.ID] = node
		if v.parent == nil {
			roots = append(roots, node)
			return
		}
		parent := built[v.parent.ID]
		parent.Children = append(parent.Children, node)
	})
	if err != nil {
		return nil, err
	}
	return roots, nil
}
