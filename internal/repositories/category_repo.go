package repositories

import (
	"context"
	"errors"
	"fmt"

	"categorybot/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// CategoryRepository is the durable backing of the category tree.
//
// FindByName returns (nil, nil) when no category has the name. Names are not
// unique; when several categories share one, the first created wins.
type CategoryRepository interface {
	FindByName(ctx context.Context, name string) (*models.Category, error)
	Save(ctx context.Context, category *models.Category) (*models.Category, error)
	DeleteSubtree(ctx context.Context, id uuid.UUID) (int64, error)
	AllRoots(ctx context.Context) (*models.Forest, error)
	Ping(ctx context.Context) error
}

// PgxPool is the subset of *pgxpool.Pool used by the repository
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type categoryRepo struct {
	db PgxPool
}

func NewCategoryRepo(db PgxPool) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) FindByName(ctx context.Context, name string) (*models.Category, error) {
	category := &models.Category{}
	query := `
		SELECT id, name, parent_id, created_at
		FROM categories
		WHERE name = $1
		ORDER BY seq ASC
		LIMIT 1
	`
	err := r.db.QueryRow(ctx, query, name).Scan(&category.ID, &category.Name, &category.ParentID, &category.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by name: %w", err)
	}
	return category, nil
}

func (r *categoryRepo) Save(ctx context.Context, category *models.Category) (*models.Category, error) {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}

	query := `
		INSERT INTO categories (id, name, parent_id, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, query, category.ID, category.Name, category.ParentID).Scan(&category.CreatedAt); err != nil {
		return nil, fmt.Errorf("save category: %w", err)
	}
	return category, nil
}

// DeleteSubtree removes the category and everything below it. The recursive
// UNION stops on repeated ids, so a corrupted cycle cannot spin forever.
func (r *categoryRepo) DeleteSubtree(ctx context.Context, id uuid.UUID) (int64, error) {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id FROM categories WHERE id = $1
			UNION
			SELECT c.id FROM categories c JOIN subtree s ON c.parent_id = s.id
		)
		DELETE FROM categories WHERE id IN (SELECT id FROM subtree)
	`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete category subtree: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *categoryRepo) AllRoots(ctx context.Context) (*models.Forest, error) {
	query := `
		SELECT id, name, parent_id, created_at
		FROM categories
		ORDER BY seq ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		category := &models.Category{}
		if err := rows.Scan(&category.ID, &category.Name, &category.ParentID, &category.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return models.NewForest(categories), nil
}

func (r *categoryRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
