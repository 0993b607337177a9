package handlers

import (
	"errors"
	"net/http"

	"categorybot/internal/bot"
	"categorybot/internal/common"
	"categorybot/internal/models"
	"categorybot/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CategoryHandlers exposes the category tree over HTTP
type CategoryHandlers struct {
	categories services.CategoryService
	snapshots  services.SnapshotService
	logger     *zap.Logger
}

// NewCategoryHandlers creates a new category handlers instance
func NewCategoryHandlers(categories services.CategoryService, snapshots services.SnapshotService, logger *zap.Logger) *CategoryHandlers {
	return &CategoryHandlers{
		categories: categories,
		snapshots:  snapshots,
		logger:     logger,
	}
}

// TreeResponse is the body of GET /v1/categories/tree
type TreeResponse struct {
	Categories []*models.CategoryTree `json:"categories"`
	Text       string                 `json:"text"`
	Count      int                    `json:"count"`
}

// GetTree returns the forest both nested and rendered as indented text
//
//	@Summary	Get the category tree
//	@Tags		categories
//	@Produce	json
//	@Success	200	{object}	TreeResponse
//	@Failure	503	{object}	common.ErrorResponse
//	@Router		/v1/categories/tree [get]
func (h *CategoryHandlers) GetTree(c echo.Context) error {
	ctx := c.Request().Context()

	view, err := h.categories.DescribeTree(ctx)
	if err != nil {
		return h.serviceError(c, err)
	}

	nested := view.Nested
	if nested == nil {
		nested = []*models.CategoryTree{}
	}
	return c.JSON(http.StatusOK, TreeResponse{
		Categories: nested,
		Text:       view.Text,
		Count:      countNodes(nested),
	})
}

// CreateCategoryRequest represents the category creation request payload.
// An empty Parent creates a root.
type CreateCategoryRequest struct {
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

// CreateCategory adds a root or a child category
//
//	@Summary	Add a category
//	@Tags		categories
//	@Accept		json
//	@Produce	json
//	@Param		request	body		CreateCategoryRequest	true	"Category"
//	@Success	201		{object}	map[string]string
//	@Failure	400		{object}	common.ErrorResponse
//	@Failure	404		{object}	common.ErrorResponse
//	@Router		/v1/categories [post]
func (h *CategoryHandlers) CreateCategory(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateCategoryRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateCategoryName(req.Name, "name"); err != nil {
		return common.SendValidationError(c, "name", err.Error())
	}

	if req.Parent == "" {
		if _, err := h.categories.AddRoot(ctx, req.Name); err != nil {
			return h.serviceError(c, err)
		}
		return c.JSON(http.StatusCreated, map[string]string{"name": req.Name})
	}

	added, err := h.categories.AddChild(ctx, req.Parent, req.Name)
	if err != nil {
		return h.serviceError(c, err)
	}
	if !added {
		return common.SendNotFoundError(c, "Parent category")
	}
	return c.JSON(http.StatusCreated, map[string]string{"name": req.Name, "parent": req.Parent})
}

// DeleteCategory removes a category and its subtree
//
//	@Summary	Remove a category with its descendants
//	@Tags		categories
//	@Param		name	path	string	true	"Category name"
//	@Success	204
//	@Failure	404	{object}	common.ErrorResponse
//	@Router		/v1/categories/{name} [delete]
func (h *CategoryHandlers) DeleteCategory(c echo.Context) error {
	removed, err := h.categories.RemoveByName(c.Request().Context(), c.Param("name"))
	if err != nil {
		return h.serviceError(c, err)
	}
	if !removed {
		return common.SendNotFoundError(c, "Category")
	}
	return c.NoContent(http.StatusNoContent)
}

// ExportCategories streams the tree as an xlsx attachment
//
//	@Summary	Export the category tree
//	@Tags		categories
//	@Produce	application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Success	200
//	@Failure	500	{object}	common.ErrorResponse
//	@Router		/v1/categories/export [get]
func (h *CategoryHandlers) ExportCategories(c echo.Context) error {
	data, err := h.categories.ExportWorkbook(c.Request().Context())
	if err != nil {
		return h.serviceError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+services.ExportFileName+`"`)
	return c.Blob(http.StatusOK, services.ExportContentType, data)
}

// ImportCategories reads a multipart "file" workbook and applies its rows
//
//	@Summary	Import categories from a workbook
//	@Tags		categories
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		file	formData	file	true	"xlsx workbook"
//	@Success	200		{object}	models.ImportResult
//	@Failure	400		{object}	common.ErrorResponse
//	@Router		/v1/categories/import [post]
func (h *CategoryHandlers) ImportCategories(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return common.SendValidationError(c, "file", "file is required")
	}
	if fileHeader.Size > bot.MaxUploadBytes {
		return common.SendValidationError(c, "file", "file is too large")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return common.SendClientError(c, "Failed to read uploaded file")
	}
	defer file.Close()

	result, err := h.categories.ImportWorkbook(c.Request().Context(), file)
	if err != nil {
		if errors.Is(err, services.ErrExportFailed) {
			return common.SendValidationError(c, "file", "file is not a readable xlsx workbook")
		}
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// CreateSnapshot archives the current export in object storage
//
//	@Summary	Archive the category tree
//	@Tags		categories
//	@Produce	json
//	@Success	201	{object}	services.Snapshot
//	@Failure	503	{object}	common.ErrorResponse
//	@Router		/v1/categories/snapshots [post]
func (h *CategoryHandlers) CreateSnapshot(c echo.Context) error {
	snapshot, err := h.snapshots.CreateSnapshot(c.Request().Context())
	if err != nil {
		if errors.Is(err, services.ErrSnapshotsDisabled) {
			return common.SendUnavailableError(c, "Snapshot storage is not configured")
		}
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, snapshot)
}

func (h *CategoryHandlers) serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidName):
		return common.SendValidationError(c, "name", err.Error())
	case errors.Is(err, services.ErrCategoryNotFound):
		return common.SendNotFoundError(c, "Category")
	case errors.Is(err, services.ErrStorageUnavailable):
		h.logger.Error("category storage failure", zap.String("path", c.Path()), zap.Error(err))
		return common.SendUnavailableError(c, "Category storage is unavailable")
	default:
		h.logger.Error("category request failed", zap.String("path", c.Path()), zap.Error(err))
		return common.SendServerError(c, "Failed to process category request")
	}
}

func countNodes(trees []*models.CategoryTree) int {
	n := 0
	stack := append([]*models.CategoryTree(nil), trees...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++
		stack = append(stack, node.Children...)
	}
	return n
}

