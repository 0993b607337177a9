package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"categorybot/internal/models"

	"github.com/google/uuid"
)

type sqliteCategoryRepo struct {
	db *sql.DB
}

// NewSQLiteCategoryRepo stores categories in an embedded SQLite database
// migrated with the sqlite3 goose dialect.
func NewSQLiteCategoryRepo(db *sql.DB) CategoryRepository {
	return &sqliteCategoryRepo{db: db}
}

const sqliteCategoryColumns = `id, name, parent_id, created_at`

func scanSQLiteCategory(scanner interface{ Scan(...any) error }) (*models.Category, error) {
	var (
		c      models.Category
		parent uuid.NullUUID
	)
	if err := scanner.Scan(&c.ID, &c.Name, &parent, &c.CreatedAt); err != nil {
		return nil, err
	}
	if parent.Valid {
		id := parent.UUID
		c.ParentID = &id
	}
	return &c, nil
}

func (r *sqliteCategoryRepo) FindByName(ctx context.Context, name string) (*models.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sqliteCategoryColumns+` FROM categories WHERE name = ? ORDER BY seq ASC LIMIT 1`, name)
	c, err := scanSQLiteCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by name: %w", err)
	}
	return c, nil
}

func (r *sqliteCategoryRepo) Save(ctx context.Context, category *models.Category) (*models.Category, error) {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	category.CreatedAt = time.Now().UTC()

	var parent uuid.NullUUID
	if category.ParentID != nil {
		parent = uuid.NullUUID{UUID: *category.ParentID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, parent_id, created_at) VALUES (?, ?, ?, ?)`,
		category.ID.String(), category.Name, parent, category.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("save category: %w", err)
	}
	return category, nil
}

func (r *sqliteCategoryRepo) DeleteSubtree(ctx context.Context, id uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM categories WHERE id = ?
			UNION
			SELECT c.id FROM categories c JOIN subtree s ON c.parent_id = s.id
		)
		DELETE FROM categories WHERE id IN (SELECT id FROM subtree)`, id.String())
	if err != nil {
		return 0, fmt.Errorf("delete category subtree: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete category subtree: %w", err)
	}
	return n, nil
}

func (r *sqliteCategoryRepo) AllRoots(ctx context.Context) (*models.Forest, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sqliteCategoryColumns+` FROM categories ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		c, err := scanSQLiteCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return models.NewForest(categories), nil
}

func (r *sqliteCategoryRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
