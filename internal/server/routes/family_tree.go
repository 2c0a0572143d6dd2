package routes

import (
	"net/http"
	"time"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/1145-am/orggraph/internal/server/middleware"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/query"
)

// GetFamilyTreeHandler traverses acquisition, vendor and investment links
// around one organization.
func GetFamilyTreeHandler(c echo.Context) error {
	type familyTreeParams struct {
		URI     string `query:"uri" validate:"required"`
		Rels    string `query:"rels"`
		Sources string `query:"sources"`
		MinDate string `query:"min_date"`
		Combine bool   `query:"combine"`
	}

	type familyTreeResponse struct {
		Message string            `json:"message,omitempty"`
		Tree    *query.FamilyTree `json:"tree,omitempty"`
	}

	params := new(familyTreeParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, familyTreeResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, familyTreeResponse{Message: "Invalid request params"})
	}

	var minDate time.Time
	if params.MinDate != "" {
		parsed, err := time.Parse(dateLayout, params.MinDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, familyTreeResponse{Message: "Invalid date range"})
		}
		minDate = parsed
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	tree, err := app.Engine.FamilyTree(ctx, query.FamilyTreeParams{
		RootURI:               params.URI,
		Rels:                  splitCSV(params.Rels),
		Sources:               query.ResolveSources(splitCSV(params.Sources)),
		MinDate:               minDate,
		CombineSameAsNameOnly: params.Combine,
	})
	if err != nil {
		logger.Error("Failed to build family tree", "uri", params.URI, "err", err)
		return c.JSON(http.StatusInternalServerError, familyTreeResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, familyTreeResponse{Tree: tree})
}
