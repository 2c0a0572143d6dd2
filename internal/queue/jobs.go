package queue

import (
	"encoding/json"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rabbitmq/amqp091-go"
)

// Job kinds routed through the work queues.
const (
	KindIngestBatch     = "ingest_batch"
	KindPrecompute      = "precompute_snapshot"
	KindEmbedRefresh    = "embed_refresh"
	KindIndexSync       = "index_sync"
	KindNotifyDigests   = "notify_digests"
	KindProcessFeedback = "process_feedback"
)

// Job is the envelope every queued message carries.
type Job struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Attempts int             `json:"attempts"`
}

// NewJob wraps a payload in an envelope with a fresh id.
func NewJob(kind string, payload any) (*Job, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	job := &Job{ID: id, Kind: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode job payload: %w", err)
		}
		job.Payload = raw
	}
	return job, nil
}

// Enqueue publishes a job to its queue.
func Enqueue(ch *amqp091.Channel, queueName string, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return PublishFIFO(ch, queueName, data)
}

// DecodeJob parses a delivery body back into an envelope.
func DecodeJob(body []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// IngestPayload asks the worker to load pending RDF batches.
type IngestPayload struct {
	DumpDir string `json:"dump_dir,omitempty"`
	Force   bool   `json:"force,omitempty"`
}

// PrecomputePayload asks for a snapshot rebuild; MaxDate empty means the
// latest published date.
type PrecomputePayload struct {
	MaxDate string `json:"max_date,omitempty"`
}

// NotifyPayload asks for digest builds for one user, or for all when empty.
type NotifyPayload struct {
	User string `json:"user,omitempty"`
}
