package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"categorybot/internal/models"
	"categorybot/pkg/database"
)

// runStoreContract exercises the behaviour every CategoryRepository backend shares
func runStoreContract(t *testing.T, newRepo func(t *testing.T) CategoryRepository) {
	ctx := context.Background()

	t.Run("find missing returns nil", func(t *testing.T) {
		repo := newRepo(t)
		got, err := repo.FindByName(ctx, "Ghost")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("save then find", func(t *testing.T) {
		repo := newRepo(t)
		root, err := repo.Save(ctx, &models.Category{Name: "Electronics"})
		require.NoError(t, err)

		got, err := repo.FindByName(ctx, "Electronics")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, root.ID, got.ID)
		assert.Nil(t, got.ParentID)
	})

	t.Run("find is case sensitive", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Save(ctx, &models.Category{Name: "Books"})
		require.NoError(t, err)

		got, err := repo.FindByName(ctx, "books")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("duplicate names resolve to first created", func(t *testing.T) {
		repo := newRepo(t)
		first, err := repo.Save(ctx, &models.Category{Name: "Misc"})
		require.NoError(t, err)
		_, err = repo.Save(ctx, &models.Category{Name: "Misc"})
		require.NoError(t, err)

		got, err := repo.FindByName(ctx, "Misc")
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
	})

	t.Run("delete subtree cascades", func(t *testing.T) {
		repo := newRepo(t)
		root, err := repo.Save(ctx, &models.Category{Name: "Electronics"})
		require.NoError(t, err)
		phones, err := repo.Save(ctx, &models.Category{Name: "Phones", ParentID: &root.ID})
		require.NoError(t, err)
		_, err = repo.Save(ctx, &models.Category{Name: "Android", ParentID: &phones.ID})
		require.NoError(t, err)
		other, err := repo.Save(ctx, &models.Category{Name: "Garden"})
		require.NoError(t, err)

		n, err := repo.DeleteSubtree(ctx, root.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		for _, name := range []string{"Electronics", "Phones", "Android"} {
			got, err := repo.FindByName(ctx, name)
			require.NoError(t, err)
			assert.Nil(t, got, name)
		}

		forest, err := repo.AllRoots(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, forest.Len())
		assert.Equal(t, other.ID, forest.Roots()[0].ID)
	})

	t.Run("delete missing is a no-op", func(t *testing.T) {
		repo := newRepo(t)
		root, err := repo.Save(ctx, &models.Category{Name: "Electronics"})
		require.NoError(t, err)
		_, err = repo.DeleteSubtree(ctx, root.ID)
		require.NoError(t, err)

		n, err := repo.DeleteSubtree(ctx, root.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("all roots keeps creation order", func(t *testing.T) {
		repo := newRepo(t)
		a, err := repo.Save(ctx, &models.Category{Name: "A"})
		require.NoError(t, err)
		_, err = repo.Save(ctx, &models.Category{Name: "B"})
		require.NoError(t, err)
		_, err = repo.Save(ctx, &models.Category{Name: "A1", ParentID: &a.ID})
		require.NoError(t, err)
		_, err = repo.Save(ctx, &models.Category{Name: "A2", ParentID: &a.ID})
		require.NoError(t, err)

		forest, err := repo.AllRoots(ctx)
		require.NoError(t, err)

		var roots, children []string
		for _, r := range forest.Roots() {
			roots = append(roots, r.Name)
		}
		for _, c := range forest.Children(a.ID) {
			children = append(children, c.Name)
		}
		assert.Equal(t, []string{"A", "B"}, roots)
		assert.Equal(t, []string{"A1", "A2"}, children)
	})
}

func TestMemoryCategoryRepo_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) CategoryRepository {
		return NewMemoryCategoryRepo()
	})
}

func TestSQLiteCategoryRepo_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) CategoryRepository {
		db, err := database.OpenSQLite(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		require.NoError(t, database.Migrate(db, database.DialectSQLite))
		return NewSQLiteCategoryRepo(db)
	})
}

func TestMemoryCategoryRepo_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCategoryRepo()
	_, err := repo.Save(ctx, &models.Category{Name: "Electronics"})
	require.NoError(t, err)

	got, err := repo.FindByName(ctx, "Electronics")
	require.NoError(t, err)
	got.Name = "Mutated"

	again, err := repo.FindByName(ctx, "Electronics")
	require.NoError(t, err)
	assert.NotNil(t, again)
}
