package routes

import (
	"errors"
	"net/http"
	"time"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/1145-am/orggraph/internal/server/middleware"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/precompute"
	"github.com/1145-am/orggraph/pkg/query"
)

const dateLayout = "2006-01-02"

// GetActivitiesHandler returns the activity feed for a set of organization
// URIs, optionally widened through name-only equivalence and filtered to a
// set of activity classes.
func GetActivitiesHandler(c echo.Context) error {
	type activitiesParams struct {
		URIs    string `query:"uris" validate:"required"`
		MinDate string `query:"min_date"`
		MaxDate string `query:"max_date"`
		Days    int    `query:"days" validate:"omitempty,oneof=7 30 90"`
		Combine bool   `query:"combine"`
		Types   string `query:"types"`
		Limit   int    `query:"limit" validate:"omitempty,min=1,max=500"`
	}

	type activitiesResponse struct {
		Message    string           `json:"message,omitempty"`
		Activities []query.Activity `json:"activities"`
	}

	params := new(activitiesParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, activitiesResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, activitiesResponse{Message: "Invalid request params"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	minDate, maxDate, err := resolveWindow(c, params.MinDate, params.MaxDate, params.Days)
	if err != nil {
		return c.JSON(http.StatusBadRequest, activitiesResponse{Message: "Invalid date range"})
	}

	acts, err := app.Engine.ActivitiesByOrgURIs(ctx, splitCSV(params.URIs), minDate, maxDate, params.Combine, params.Limit)
	if err != nil {
		logger.Error("Failed to fetch activities", "err", err)
		return c.JSON(http.StatusInternalServerError, activitiesResponse{Message: "Internal server error"})
	}
	acts = query.FilterByActivityTypes(acts, splitCSV(params.Types))
	if acts == nil {
		acts = []query.Activity{}
	}

	return c.JSON(http.StatusOK, activitiesResponse{Activities: acts})
}

// GetActivitiesBySourceHandler returns activities attributed to a single
// publisher.
func GetActivitiesBySourceHandler(c echo.Context) error {
	type bySourceParams struct {
		Source  string `query:"source" validate:"required"`
		MinDate string `query:"min_date"`
		MaxDate string `query:"max_date"`
		Days    int    `query:"days" validate:"omitempty,oneof=7 30 90"`
		Limit   int    `query:"limit" validate:"omitempty,min=1,max=500"`
	}

	type bySourceResponse struct {
		Message    string           `json:"message,omitempty"`
		Activities []query.Activity `json:"activities"`
	}

	params := new(bySourceParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, bySourceResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, bySourceResponse{Message: "Invalid request params"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	minDate, maxDate, err := resolveWindow(c, params.MinDate, params.MaxDate, params.Days)
	if err != nil {
		return c.JSON(http.StatusBadRequest, bySourceResponse{Message: "Invalid date range"})
	}

	acts, err := app.Engine.ActivitiesBySource(ctx, params.Source, minDate, maxDate, params.Limit)
	if err != nil {
		logger.Error("Failed to fetch activities by source", "source", params.Source, "err", err)
		return c.JSON(http.StatusInternalServerError, bySourceResponse{Message: "Internal server error"})
	}
	if acts == nil {
		acts = []query.Activity{}
	}

	return c.JSON(http.StatusOK, bySourceResponse{Activities: acts})
}

// GetActivitiesByIndustryHandler serves a precomputed industry/geo cell.
func GetActivitiesByIndustryHandler(c echo.Context) error {
	type byIndustryParams struct {
		IndustryID string `query:"industry_id"`
		Country    string `query:"country"`
		Admin1     string `query:"admin1"`
		Days       int    `query:"days" validate:"omitempty,oneof=7 30 90"`
	}

	type byIndustryResponse struct {
		Message       string               `json:"message,omitempty"`
		MinDate       string               `json:"min_date,omitempty"`
		MaxDate       string               `json:"max_date,omitempty"`
		Organizations []precompute.OrgCell `json:"organizations"`
	}

	params := new(byIndustryParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, byIndustryResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, byIndustryResponse{Message: "Invalid request params"})
	}
	if params.IndustryID == "" && params.Country == "" {
		return c.JSON(http.StatusBadRequest, byIndustryResponse{Message: "industry_id or country is required"})
	}
	if params.Days == 0 {
		params.Days = 30
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	maxDate, err := precompute.LatestCacheDate(ctx, app.Cache, app.Graph)
	if err != nil {
		logger.Error("Failed to resolve cache date", "err", err)
		return c.JSON(http.StatusInternalServerError, byIndustryResponse{Message: "Internal server error"})
	}
	minDate := maxDate.AddDate(0, 0, -params.Days)

	cells, err := app.Engine.ActivitiesByIndustryGeo(ctx, minDate, maxDate, params.IndustryID, params.Country, params.Admin1)
	if err != nil {
		if errors.Is(err, query.ErrCellNotComputed) {
			return c.JSON(http.StatusNotFound, byIndustryResponse{Message: "Cell not in precomputed snapshot"})
		}
		logger.Error("Failed to fetch industry cell", "err", err)
		return c.JSON(http.StatusInternalServerError, byIndustryResponse{Message: "Internal server error"})
	}
	if cells == nil {
		cells = []precompute.OrgCell{}
	}

	return c.JSON(http.StatusOK, byIndustryResponse{
		MinDate:       minDate.Format(dateLayout),
		MaxDate:       maxDate.Format(dateLayout),
		Organizations: cells,
	})
}

// resolveWindow turns explicit min/max dates, or a trailing day count
// anchored on the snapshot date, into a concrete range.
func resolveWindow(c echo.Context, minStr, maxStr string, days int) (time.Time, time.Time, error) {
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	if minStr != "" && maxStr != "" {
		minDate, err := time.Parse(dateLayout, minStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		maxDate, err := time.Parse(dateLayout, maxStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return minDate, maxDate, nil
	}

	if days == 0 {
		days = 30
	}
	maxDate, err := precompute.LatestCacheDate(ctx, app.Cache, app.Graph)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return maxDate.AddDate(0, 0, -days), maxDate, nil
}
