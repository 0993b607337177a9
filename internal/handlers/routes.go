package handlers

import (
	"categorybot/internal/middleware"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
)

// NewServer builds the echo instance with every route registered
func NewServer(logger *zap.Logger, version *middleware.VersionMiddleware,
	categories *CategoryHandlers, commands *CommandHandlers, health *HealthHandlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.RequestLogger(logger))
	e.Use(echoMiddleware.Recover())
	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(version.APIVersionResolver())

	// Health endpoints
	e.GET("/health", health.HealthCheck)
	e.GET("/health/ready", health.ReadinessCheck)
	e.GET("/health/live", health.LivenessCheck)

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := version.VersionRoute(e, "v1")
	v1.POST("/commands", commands.ExecuteCommand)

	v1.GET("/categories/tree", categories.GetTree)
	v1.GET("/categories/export", categories.ExportCategories)
	v1.POST("/categories/import", categories.ImportCategories)
	v1.POST("/categories/snapshots", categories.CreateSnapshot)
	v1.POST("/categories", categories.CreateCategory)
	v1.DELETE("/categories/:name", categories.DeleteCategory)

	return e
}
