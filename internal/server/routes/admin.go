package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/1145-am/orggraph/internal/queue"
	"github.com/1145-am/orggraph/internal/server/middleware"
	"github.com/1145-am/orggraph/pkg/logger"
)

// EnqueueJobHandler publishes a background job to its work queue. This is
// how operators trigger ingest, snapshot rebuilds, embedding refreshes and
// digest runs out of band.
func EnqueueJobHandler(c echo.Context) error {
	type enqueueParams struct {
		Kind    string `json:"kind" validate:"required,oneof=ingest_batch precompute_snapshot embed_refresh index_sync notify_digests process_feedback"`
		MaxDate string `json:"max_date"`
		DumpDir string `json:"dump_dir"`
		Force   bool   `json:"force"`
		User    string `json:"user"`
	}

	type enqueueResponse struct {
		Message string `json:"message"`
		JobID   string `json:"job_id,omitempty"`
	}

	params := new(enqueueParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, enqueueResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, enqueueResponse{Message: "Invalid request params"})
	}

	var payload any
	var queueName string
	switch params.Kind {
	case queue.KindIngestBatch:
		queueName = queue.IngestQueue
		payload = queue.IngestPayload{DumpDir: params.DumpDir, Force: params.Force}
	case queue.KindPrecompute:
		queueName = queue.PrecomputeQueue
		payload = queue.PrecomputePayload{MaxDate: params.MaxDate}
	case queue.KindEmbedRefresh, queue.KindIndexSync:
		queueName = queue.EmbedQueue
	case queue.KindProcessFeedback:
		queueName = queue.IngestQueue
	case queue.KindNotifyDigests:
		queueName = queue.NotifyQueue
		payload = queue.NotifyPayload{User: params.User}
	}

	job, err := queue.NewJob(params.Kind, payload)
	if err != nil {
		logger.Error("Failed to build job", "kind", params.Kind, "err", err)
		return c.JSON(http.StatusInternalServerError, enqueueResponse{Message: "Internal server error"})
	}

	app := c.(*middleware.AppContext).App
	if err := queue.Enqueue(app.Queue, queueName, job); err != nil {
		logger.Error("Failed to enqueue job", "kind", params.Kind, "err", err)
		return c.JSON(http.StatusInternalServerError, enqueueResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusAccepted, enqueueResponse{Message: "Job enqueued", JobID: job.ID})
}
