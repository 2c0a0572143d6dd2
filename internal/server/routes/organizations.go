package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/1145-am/orggraph/internal/server/middleware"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/query"
)

// GetOrganizationsHandler matches organizations by name over the fulltext
// index, ranked by recent article coverage.
func GetOrganizationsHandler(c echo.Context) error {
	type orgsParams struct {
		Name    string `query:"name" validate:"required"`
		MinDate string `query:"min_date"`
		MaxDate string `query:"max_date"`
		Days    int    `query:"days" validate:"omitempty,oneof=7 30 90"`
		TopOne  bool   `query:"top_one"`
	}

	type orgsResponse struct {
		Message       string           `json:"message,omitempty"`
		Organizations []query.OrgMatch `json:"organizations"`
	}

	params := new(orgsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, orgsResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, orgsResponse{Message: "Invalid request params"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	minDate, maxDate, err := resolveWindow(c, params.MinDate, params.MaxDate, params.Days)
	if err != nil {
		return c.JSON(http.StatusBadRequest, orgsResponse{Message: "Invalid date range"})
	}

	matches, err := app.Engine.SearchOrganizationsByName(ctx, params.Name, minDate, maxDate, params.TopOne)
	if err != nil {
		logger.Error("Failed to search organizations", "name", params.Name, "err", err)
		return c.JSON(http.StatusInternalServerError, orgsResponse{Message: "Internal server error"})
	}
	if matches == nil {
		matches = []query.OrgMatch{}
	}

	return c.JSON(http.StatusOK, orgsResponse{Organizations: matches})
}

// GetOrganizationsByIndustryTextHandler resolves free industry text to
// organization URIs through the industry embedding index.
func GetOrganizationsByIndustryTextHandler(c echo.Context) error {
	type byIndustryTextParams struct {
		Text  string `query:"text" validate:"required"`
		Limit int    `query:"limit" validate:"omitempty,min=1,max=200"`
	}

	type byIndustryTextResponse struct {
		Message string   `json:"message,omitempty"`
		OrgURIs []string `json:"org_uris"`
	}

	params := new(byIndustryTextParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, byIndustryTextResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, byIndustryTextResponse{Message: "Invalid request params"})
	}
	if params.Limit == 0 {
		params.Limit = 50
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	uris, err := app.Engine.OrgsByIndustryText(ctx, app.Embedder, params.Text, params.Limit)
	if err != nil {
		logger.Error("Failed to match organizations by industry text", "err", err)
		return c.JSON(http.StatusInternalServerError, byIndustryTextResponse{Message: "Internal server error"})
	}
	if uris == nil {
		uris = []string{}
	}

	return c.JSON(http.StatusOK, byIndustryTextResponse{OrgURIs: uris})
}

// GetOrganizationWeightSumHandler returns the total weight of an
// organization's outgoing edges of one relationship type, the denominator
// behind the weight-proportion filters.
func GetOrganizationWeightSumHandler(c echo.Context) error {
	type weightSumParams struct {
		URI     string `query:"uri" validate:"required"`
		RelType string `query:"rel_type" validate:"required,alphanum"`
	}

	type weightSumResponse struct {
		Message string `json:"message,omitempty"`
		URI     string `json:"uri,omitempty"`
		RelType string `json:"rel_type,omitempty"`
		Total   int64  `json:"total"`
	}

	params := new(weightSumParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, weightSumResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, weightSumResponse{Message: "Invalid request params"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	total, err := app.Engine.SumWeights(ctx, params.URI, params.RelType)
	if err != nil {
		logger.Error("Failed to sum edge weights", "uri", params.URI, "rel_type", params.RelType, "err", err)
		return c.JSON(http.StatusInternalServerError, weightSumResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, weightSumResponse{URI: params.URI, RelType: params.RelType, Total: total})
}
