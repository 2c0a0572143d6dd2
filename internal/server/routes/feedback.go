package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/1145-am/orggraph/internal/server/middleware"
	"github.com/1145-am/orggraph/internal/storage"
	"github.com/1145-am/orggraph/pkg/logger"
)

// CreateFeedbackHandler records user feedback about a wrong node or edge
// for later review.
func CreateFeedbackHandler(c echo.Context) error {
	type feedbackParams struct {
		NodeOrEdge   string `json:"node_or_edge" validate:"required,oneof=node edge"`
		DocID        int64  `json:"doc_id" validate:"required"`
		SourceNode   string `json:"source_node" validate:"required"`
		TargetNode   string `json:"target_node"`
		Relationship string `json:"relationship"`
		Reason       string `json:"reason" validate:"required"`
	}

	type feedbackResponse struct {
		Message string `json:"message"`
		ID      int64  `json:"id,omitempty"`
	}

	params := new(feedbackParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, feedbackResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, feedbackResponse{Message: "Invalid request params"})
	}
	if params.NodeOrEdge == "edge" && (params.TargetNode == "" || params.Relationship == "") {
		return c.JSON(http.StatusBadRequest, feedbackResponse{Message: "target_node and relationship are required for edge feedback"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	fb := &storage.Feedback{
		NodeOrEdge: params.NodeOrEdge,
		DocID:      params.DocID,
		SourceNode: params.SourceNode,
		Reason:     params.Reason,
	}
	if params.TargetNode != "" {
		fb.TargetNode = &params.TargetNode
	}
	if params.Relationship != "" {
		fb.Relationship = &params.Relationship
	}

	if err := app.Feedback.Create(ctx, fb); err != nil {
		logger.Error("Failed to record feedback", "err", err)
		return c.JSON(http.StatusInternalServerError, feedbackResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusCreated, feedbackResponse{Message: "Feedback recorded", ID: fb.ID})
}
