package models

import (
	"github.com/google/uuid"
)

// Forest is an arena of categories keyed by id. Child lists are indexed from
// the parent links when the forest is built and keep insertion order.
type Forest struct {
	nodes    map[uuid.UUID]*Category
	order    []uuid.UUID
	roots    []uuid.UUID
	children map[uuid.UUID][]uuid.UUID
}

// NewForest indexes the given categories. The slice order is the storage
// order and decides the order of roots and of siblings. A category whose
// parent is not in the slice is treated as unreachable and is left out of
// every traversal.
func NewForest(categories []*Category) *Forest {
	f := &Forest{
		nodes:    make(map[uuid.UUID]*Category, len(categories)),
		order:    make([]uuid.UUID, 0, len(categories)),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
	for _, c := range categories {
		if c == nil {
			continue
		}
		if _, dup := f.nodes[c.ID]; dup {
			continue
		}
		f.nodes[c.ID] = c
		f.order = append(f.order, c.ID)
	}
	for _, id := range f.order {
		c := f.nodes[id]
		if c.ParentID == nil {
			f.roots = append(f.roots, id)
			continue
		}
		if _, ok := f.nodes[*c.ParentID]; ok {
			f.children[*c.ParentID] = append(f.children[*c.ParentID], id)
		}
	}
	return f
}

// Len returns the number of categories held by the forest
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Get returns the category with the given id
func (f *Forest) Get(id uuid.UUID) (*Category, bool) {
	c, ok := f.nodes[id]
	return c, ok
}

// Roots returns the root categories in storage order
func (f *Forest) Roots() []*Category {
	return f.collect(f.roots)
}

// Children returns the direct children of id in storage order
func (f *Forest) Children(id uuid.UUID) []*Category {
	return f.collect(f.children[id])
}

// All returns every category in storage order
func (f *Forest) All() []*Category {
	return f.collect(f.order)
}

// Descendants returns the ids of every category below id, breadth first.
// The walk stops after Len steps so a corrupted parent chain cannot loop.
func (f *Forest) Descendants(id uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	queue := append([]uuid.UUID(nil), f.children[id]...)
	seen := map[uuid.UUID]bool{id: true}
	for len(queue) > 0 && len(out) < len(f.nodes) {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		queue = append(queue, f.children[next]...)
	}
	return out
}

func (f *Forest) collect(ids []uuid.UUID) []*Category {
	out := make([]*Category, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.nodes[id])
	}
	return out
}
