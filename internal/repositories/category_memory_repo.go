package repositories

import (
	"context"
	"sync"
	"time"

	"categorybot/internal/models"

	"github.com/google/uuid"
)

// memoryCategoryRepo keeps the tree in process. It is the arena form of the
// store: nodes keyed by id, parent as an optional id, children derived on read.
type memoryCategoryRepo struct {
	mu    sync.RWMutex
	nodes map[uuid.UUID]*models.Category
	order []uuid.UUID
}

func NewMemoryCategoryRepo() CategoryRepository {
	return &memoryCategoryRepo{
		nodes: make(map[uuid.UUID]*models.Category),
	}
}

func (r *memoryCategoryRepo) FindByName(_ context.Context, name string) (*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if c := r.nodes[id]; c.Name == name {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memoryCategoryRepo) Save(_ context.Context, category *models.Category) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	category.CreatedAt = time.Now().UTC()

	stored := *category
	if _, exists := r.nodes[stored.ID]; !exists {
		r.order = append(r.order, stored.ID)
	}
	r.nodes[stored.ID] = &stored
	return category, nil
}

func (r *memoryCategoryRepo) DeleteSubtree(_ context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[id]; !ok {
		return 0, nil
	}

	forest := models.NewForest(r.snapshot())
	doomed := append([]uuid.UUID{id}, forest.Descendants(id)...)
	for _, d := range doomed {
		delete(r.nodes, d)
	}

	kept := r.order[:0]
	for _, o := range r.order {
		if _, ok := r.nodes[o]; ok {
			kept = append(kept, o)
		}
	}
	r.order = kept
	return int64(len(doomed)), nil
}

func (r *memoryCategoryRepo) AllRoots(_ context.Context) (*models.Forest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return models.NewForest(r.snapshot()), nil
}

func (r *memoryCategoryRepo) Ping(context.Context) error {
	return nil
}

// snapshot copies the nodes in insertion order. Callers hold the lock.
func (r *memoryCategoryRepo) snapshot() []*models.Category {
	out := make([]*models.Category, 0, len(r.order))
	for _, id := range r.order {
		copied := *r.nodes[id]
		out = append(out, &copied)
	}
	return out
}
