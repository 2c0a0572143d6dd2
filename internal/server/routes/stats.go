package routes

import (
	"errors"
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/1145-am/orggraph/internal/server/middleware"
	"github.com/1145-am/orggraph/pkg/cache"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/precompute"
)

// GetStatsHandler serves the precomputed per-country and per-industry
// counts for one trailing window.
func GetStatsHandler(c echo.Context) error {
	type statsParams struct {
		Days int `query:"days" validate:"omitempty,oneof=7 30 90"`
	}

	type statsResponse struct {
		Message string                  `json:"message,omitempty"`
		Stats   *precompute.WindowStats `json:"stats,omitempty"`
	}

	params := new(statsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, statsResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, statsResponse{Message: "Invalid request params"})
	}
	if params.Days == 0 {
		params.Days = 30
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	stats, err := precompute.Stats(ctx, app.Cache, params.Days)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return c.JSON(http.StatusNotFound, statsResponse{Message: "Stats not computed yet"})
		}
		logger.Error("Failed to read stats", "days", params.Days, "err", err)
		return c.JSON(http.StatusInternalServerError, statsResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, statsResponse{Stats: stats})
}
