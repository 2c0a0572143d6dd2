package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Feedback is one user report about a wrong node or edge.
type Feedback struct {
	ID           int64      `json:"id"`
	NodeOrEdge   string     `json:"node_or_edge"`
	DocID        int64      `json:"doc_id"`
	SourceNode   string     `json:"source_node"`
	TargetNode   *string    `json:"target_node,omitempty"`
	Relationship *string    `json:"relationship,omitempty"`
	Reason       string     `json:"reason"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// FeedbackStore persists feedback rows.
type FeedbackStore struct {
	pool *pgxpool.Pool
}

func NewFeedbackStore(pool *pgxpool.Pool) *FeedbackStore {
	return &FeedbackStore{pool: pool}
}

func (f *FeedbackStore) Create(ctx context.Context, fb *Feedback) error {
	return f.pool.QueryRow(ctx, `
		INSERT INTO feedback (node_or_edge, doc_id, source_node, target_node, relationship, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		fb.NodeOrEdge, fb.DocID, fb.SourceNode, fb.TargetNode, fb.Relationship, fb.Reason,
	).Scan(&fb.ID, &fb.CreatedAt)
}

// Unprocessed returns feedback rows awaiting review, oldest first.
func (f *FeedbackStore) Unprocessed(ctx context.Context, limit int) ([]Feedback, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := f.pool.Query(ctx, `
		SELECT id, node_or_edge, doc_id, source_node, target_node, relationship, reason, created_at, processed_at
		FROM feedback
		WHERE processed_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var fb Feedback
		if err := rows.Scan(&fb.ID, &fb.NodeOrEdge, &fb.DocID, &fb.SourceNode,
			&fb.TargetNode, &fb.Relationship, &fb.Reason, &fb.CreatedAt, &fb.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// MarkProcessed stamps a feedback row as handled.
func (f *FeedbackStore) MarkProcessed(ctx context.Context, id int64) error {
	_, err := f.pool.Exec(ctx,
		`UPDATE feedback SET processed_at = now() WHERE id = $1`, id)
	return err
}
