package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"categorybot/internal/caching"
	"categorybot/internal/common"
	"categorybot/internal/models"
	"categorybot/internal/repositories"

	"go.uber.org/zap"
)

// CategoryService holds the tree operations. Names are case sensitive and
// are not required to be unique; lookups resolve to the first created match.
type CategoryService interface {
	AddRoot(ctx context.Context, name string) (*models.Category, error)
	AddChild(ctx context.Context, parentName, childName string) (bool, error)
	RemoveByName(ctx context.Context, name string) (bool, error)
	FindByName(ctx context.Context, name string) (*models.Category, error)
	Tree(ctx context.Context) (*models.Forest, error)
	ViewTree(ctx context.Context) (string, error)
	NestedTree(ctx context.Context) ([]*models.CategoryTree, error)
	DescribeTree(ctx context.Context) (*TreeView, error)
	ExportRows(ctx context.Context) ([]models.ExportRow, error)
	ExportWorkbook(ctx context.Context) ([]byte, error)
	ImportRows(ctx context.Context, rows []models.ImportRow) (*models.ImportResult, error)
	ImportWorkbook(ctx context.Context, r io.Reader) (*models.ImportResult, error)
}

// TreeView holds the nested and the indented rendering of one forest read
type TreeView struct {
	Nested []*models.CategoryTree
	Text   string
}

type categoryService struct {
	// mu makes every mutation a single critical section; reads share it
	mu       sync.RWMutex
	repo     repositories.CategoryRepository
	cache    caching.CacheService
	renderer *TreeRenderer
	cacheTTL time.Duration
	// cacheSuspect is set when a mutation could neither invalidate nor
	// refresh the cached forest; reads bypass the cache until it is rewritten
	cacheSuspect atomic.Bool
	logger       *zap.Logger
}

func NewCategoryService(repo repositories.CategoryRepository, cache caching.CacheService, renderer *TreeRenderer,
	cacheTTL time.Duration, logger *zap.Logger) CategoryService {
	if cache == nil {
		cache = caching.NewNoopCacheService()
	}
	if renderer == nil {
		renderer = NewTreeRenderer(DefaultMaxTreeNodes)
	}
	return &categoryService{
		repo:     repo,
		cache:    cache,
		renderer: renderer,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func (s *categoryService) AddRoot(ctx context.Context, name string) (*models.Category, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	category, err := s.repo.Save(ctx, &models.Category{Name: name})
	if err != nil {
		return nil, storageFault(err)
	}
	s.invalidate(ctx)
	s.logger.Debug("root category added", zap.String("name", name), zap.Stringer("id", category.ID))
	return category, nil
}

func (s *categoryService) AddChild(ctx context.Context, parentName, childName string) (bool, error) {
	if strings.TrimSpace(childName) == "" {
		return false, ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addChildLocked(ctx, parentName, childName)
}

func (s *categoryService) addChildLocked(ctx context.Context, parentName, childName string) (bool, error) {
	parent, err := s.repo.FindByName(ctx, parentName)
	if err != nil {
		return false, storageFault(err)
	}
	if parent == nil {
		return false, nil
	}

	child, err := s.repo.Save(ctx, &models.Category{Name: childName, ParentID: &parent.ID})
	if err != nil {
		return false, storageFault(err)
	}
	s.invalidate(ctx)
	s.logger.Debug("child category added",
		zap.String("parent", parentName),
		zap.String("name", childName),
		zap.Stringer("id", child.ID))
	return true, nil
}

func (s *categoryService) RemoveByName(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	category, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return false, storageFault(err)
	}
	if category == nil {
		return false, nil
	}

	removed, err := s.repo.DeleteSubtree(ctx, category.ID)
	if err != nil {
		return false, storageFault(err)
	}
	s.invalidate(ctx)
	s.logger.Debug("category subtree removed", zap.String("name", name), zap.Int64("removed", removed))
	return true, nil
}

func (s *categoryService) FindByName(ctx context.Context, name string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, storageFault(err)
	}
	if category == nil {
		return nil, fmt.Errorf("%w: %q", ErrCategoryNotFound, name)
	}
	return category, nil
}

func (s *categoryService) Tree(ctx context.Context) (*models.Forest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.treeLocked(ctx)
}

func (s *categoryService) treeLocked(ctx context.Context) (*models.Forest, error) {
	if !s.cacheSuspect.Load() {
		nodes, err := s.cache.GetTree(ctx)
		if err != nil {
			s.logger.Warn("tree cache read failed", zap.Error(err))
		} else if nodes != nil {
			return models.NewForest(nodes), nil
		}
	}

	return s.loadAndCache(ctx)
}

// loadAndCache reads the forest from the store and writes it to the cache
// under the generation sampled before the read. A failed cache write is
// logged; the forest is still returned.
func (s *categoryService) loadAndCache(ctx context.Context) (*models.Forest, error) {
	generation, genErr := s.cache.Generation(ctx)

	forest, err := s.repo.AllRoots(ctx)
	if err != nil {
		return nil, storageFault(err)
	}

	if genErr != nil {
		s.logger.Warn("tree cache generation read failed", zap.Error(genErr))
		return forest, nil
	}
	if err := s.cache.SetTree(ctx, generation, forest.All(), s.cacheTTL); err != nil {
		if errors.Is(err, caching.ErrStaleTree) {
			s.logger.Debug("tree changed while loading; cache left empty")
		} else {
			s.logger.Warn("tree cache write failed", zap.Error(err))
		}
		return forest, nil
	}
	s.cacheSuspect.Store(false)
	return forest, nil
}

func (s *categoryService) ViewTree(ctx context.Context) (string, error) {
	forest, err := s.Tree(ctx)
	if err != nil {
		return "", err
	}
	return s.renderer.RenderIndentedText(forest)
}

func (s *categoryService) NestedTree(ctx context.Context) ([]*models.CategoryTree, error) {
	forest, err := s.Tree(ctx)
	if err != nil {
		return nil, err
	}
	return s.renderer.Nested(forest)
}

func (s *categoryService) DescribeTree(ctx context.Context) (*TreeView, error) {
	forest, err := s.Tree(ctx)
	if err != nil {
		return nil, err
	}
	nested, err := s.renderer.Nested(forest)
	if err != nil {
		return nil, err
	}
	text, err := s.renderer.RenderIndentedText(forest)
	if err != nil {
		return nil, err
	}
	return &TreeView{Nested: nested, Text: text}, nil
}

func (s *categoryService) ExportRows(ctx context.Context) ([]models.ExportRow, error) {
	forest, err := s.Tree(ctx)
	if err != nil {
		return nil, err
	}
	return s.renderer.FlattenForExport(forest)
}

func (s *categoryService) ExportWorkbook(ctx context.Context) ([]byte, error) {
	rows, err := s.ExportRows(ctx)
	if err != nil {
		return nil, err
	}
	data, err := EncodeCategoryWorkbook(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	s.logger.Debug("category workbook built", zap.Int("rows", len(rows)), zap.Int("bytes", len(data)))
	return data, nil
}

// ImportRows applies rows in order, so a row may name a parent created by an
// earlier row. Rows whose parent is missing, and names that chat commands
// could not address, are skipped and reported.
func (s *categoryService) ImportRows(ctx context.Context, rows []models.ImportRow) (*models.ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &models.ImportResult{TotalItems: len(rows)}
	for _, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			result.FailedItems++
			result.Errors = append(result.Errors, models.ImportError{Line: row.Line, Error: ErrInvalidName.Error()})
			continue
		}
		if err := common.ValidateCategoryName(row.Name, "name"); err != nil {
			result.FailedItems++
			result.Errors = append(result.Errors, models.ImportError{Line: row.Line, Name: row.Name, Error: err.Error()})
			continue
		}

		if row.Parent == "" {
			if _, err := s.repo.Save(ctx, &models.Category{Name: row.Name}); err != nil {
				s.invalidate(ctx)
				return result, storageFault(err)
			}
			result.ProcessedItems++
			continue
		}

		added, err := s.addChildLocked(ctx, row.Parent, row.Name)
		if err != nil {
			s.invalidate(ctx)
			return result, err
		}
		if !added {
			result.FailedItems++
			result.Errors = append(result.Errors, models.ImportError{
				Line:  row.Line,
				Name:  row.Name,
				Error: fmt.Sprintf("parent %q not found", row.Parent),
			})
			continue
		}
		result.ProcessedItems++
	}

	s.invalidate(ctx)
	s.logger.Info("categories imported",
		zap.Int("total", result.TotalItems),
		zap.Int("processed", result.ProcessedItems),
		zap.Int("failed", result.FailedItems))
	return result, nil
}

func (s *categoryService) ImportWorkbook(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	rows, err := DecodeCategoryWorkbook(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return s.ImportRows(ctx, rows)
}

// invalidate drops the cached forest after a mutation. When the cache
// refuses the delete the fresh forest is written over it instead; if that
// fails too, reads skip the cache until a later write succeeds. Cache errors
// are logged, never returned.
func (s *categoryService) invalidate(ctx context.Context) {
	err := s.cache.InvalidateTree(ctx)
	if err == nil {
		s.cacheSuspect.Store(false)
		return
	}
	s.logger.Warn("tree cache invalidation failed", zap.Error(err))

	s.cacheSuspect.Store(true)
	if _, err := s.loadAndCache(ctx); err != nil {
		s.logger.Warn("tree cache refresh after failed invalidation failed", zap.Error(err))
	}
}

func storageFault(err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
