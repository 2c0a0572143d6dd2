package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/1145-am/orggraph/internal/server/middleware"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/notify"
)

// CreateWatchHandler records something a user wants digests about: an
// organization, or an industry optionally narrowed to a region.
func CreateWatchHandler(c echo.Context) error {
	type watchParams struct {
		UserID          string `json:"user_id" validate:"required"`
		OrgURI          string `json:"org_uri"`
		IndustryTopicID string `json:"industry_topic_id"`
		Region          string `json:"region"`
	}

	type watchResponse struct {
		Message string `json:"message"`
	}

	params := new(watchParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, watchResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, watchResponse{Message: "Invalid request params"})
	}
	if (params.OrgURI == "") == (params.IndustryTopicID == "") {
		return c.JSON(http.StatusBadRequest, watchResponse{Message: "Exactly one of org_uri or industry_topic_id is required"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	err := app.Watches.AddWatch(ctx, params.UserID, notify.Watch{
		OrgURI:          params.OrgURI,
		IndustryTopicID: params.IndustryTopicID,
		Region:          params.Region,
	})
	if err != nil {
		logger.Error("Failed to record watch", "err", err)
		return c.JSON(http.StatusInternalServerError, watchResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusCreated, watchResponse{Message: "Watch recorded"})
}
