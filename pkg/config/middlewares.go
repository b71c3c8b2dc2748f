package config

import (
	"log/slog"

	appMiddleware "github.com/anonto42/ideafeed/backend/internal/middleware"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func SetupMiddleware(e *echo.Echo, logger *slog.Logger) {
	e.Use(appMiddleware.RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
}
