package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/model"
)

// EmbeddingRefresher is the hook the pipeline calls after merges settle;
// the embedding materializer satisfies it.
type EmbeddingRefresher interface {
	Run(ctx context.Context) error
}

// PostProcessor runs the merge pipeline after a batch load.
type PostProcessor struct {
	store      *graphstore.Store
	embeddings EmbeddingRefresher
}

// NewPostProcessor builds a pipeline over the given store. The refresher
// may be nil when embeddings are disabled.
func NewPostProcessor(store *graphstore.Store, embeddings EmbeddingRefresher) *PostProcessor {
	return &PostProcessor{store: store, embeddings: embeddings}
}

// Run executes the pipeline steps in their required order. The step order
// matters: activity subsumption relies on redundant sameAs edges having
// been pruned first.
func (p *PostProcessor) Run(ctx context.Context) error {
	start := time.Now()

	if err := p.pruneRedundantSameAs(ctx); err != nil {
		return fmt.Errorf("redundant sameAs pruning failed: %w", err)
	}
	if err := p.deleteSelfRelationships(ctx); err != nil {
		return fmt.Errorf("self-relationship deletion failed: %w", err)
	}
	if err := p.promoteDocumentExtracts(ctx); err != nil {
		return fmt.Errorf("document extract promotion failed: %w", err)
	}
	if err := p.defaultWeights(ctx); err != nil {
		return fmt.Errorf("weight defaulting failed: %w", err)
	}
	if _, err := EnrichGeoNamesLocations(ctx, p.store); err != nil {
		return fmt.Errorf("geo enrichment failed: %w", err)
	}
	if err := model.RefreshCompositeLabels(ctx, p.store); err != nil {
		return fmt.Errorf("composite label refresh failed: %w", err)
	}
	if _, err := MergeSimilarActivities(ctx, p.store); err != nil {
		return fmt.Errorf("activity subsumption failed: %w", err)
	}
	if _, err := MergeSameAsHighComponents(ctx, p.store); err != nil {
		return fmt.Errorf("sameAsHigh component merge failed: %w", err)
	}
	if err := p.pruneRedundantSameAs(ctx); err != nil {
		return fmt.Errorf("residual sameAs pruning failed: %w", err)
	}
	if p.embeddings != nil {
		if err := p.embeddings.Run(ctx); err != nil {
			return fmt.Errorf("embedding refresh failed: %w", err)
		}
	}
	if err := p.assignInternalIDs(ctx); err != nil {
		return fmt.Errorf("internal id assignment failed: %w", err)
	}

	logger.Info("[PostProcess] Pipeline complete", "duration", time.Since(start).String())
	return nil
}

// pruneRedundantSameAs removes the reverse edge of every mutual sameAs
// pair, keeping the direction from the node with the smaller element id.
// Processed nodes are stamped so later runs skip them.
func (p *PostProcessor) pruneRedundantSameAs(ctx context.Context) error {
	for _, relType := range []string{"sameAsHigh", "sameAsNameOnly"} {
		query := fmt.Sprintf(
			`MATCH (n1)-[r1:%[1]s]->(n2)-[r2:%[1]s]->(n1)
			 WHERE elementId(n1) < elementId(n2)
			 DELETE r2
			 SET n1.internalSameAsPrunedAt = timestamp(),
			     n2.internalSameAsPrunedAt = timestamp()
			 RETURN count(*) AS pruned`, relType)
		rows, err := p.store.Write(ctx, query, nil)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			if n, ok := rows[0]["pruned"].(int64); ok && n > 0 {
				logger.Info("[PostProcess] Redundant edges pruned", "type", relType, "count", n)
			}
		}
	}
	return nil
}

func (p *PostProcessor) deleteSelfRelationships(ctx context.Context) error {
	_, err := p.store.Write(ctx,
		`MATCH (n)-[r]-(n) DELETE r`,
		nil)
	return err
}

// promoteDocumentExtracts copies an activity's documentExtract onto its
// documentSource edge when the edge has none of its own.
func (p *PostProcessor) promoteDocumentExtracts(ctx context.Context) error {
	_, err := p.store.Write(ctx,
		`MATCH (activity)-[d:documentSource]->(:Article)
		 WHERE d.documentExtract IS NULL
		   AND activity.documentExtract IS NOT NULL
		 SET d.documentExtract = activity.documentExtract`,
		nil)
	return err
}

func (p *PostProcessor) defaultWeights(ctx context.Context) error {
	_, err := p.store.Write(ctx,
		`MATCH ()-[r]->()
		 WHERE r.weight IS NULL
		 SET r.weight = 1`,
		nil)
	return err
}

// assignInternalIDs gives every node lacking an internalId a unique integer
// and repairs duplicates by reassigning from the current maximum upward.
func (p *PostProcessor) assignInternalIDs(ctx context.Context) error {
	if _, err := p.store.Write(ctx,
		`MATCH (m:Resource)
		 WITH coalesce(max(m.internalId), 0) AS maxId
		 MATCH (n:Resource)
		 WHERE n.internalId IS NULL
		 WITH maxId, collect(n) AS nodes
		 UNWIND range(0, size(nodes) - 1) AS i
		 WITH nodes[i] AS node, maxId + i + 1 AS newId
		 SET node.internalId = newId`,
		nil); err != nil {
		return err
	}

	// duplicate detection: any internalId held by more than one node gets
	// every holder but one reassigned
	rows, err := p.store.Execute(ctx,
		`MATCH (n:Resource)
		 WHERE n.internalId IS NOT NULL
		 WITH n.internalId AS id, collect(n.uri) AS uris
		 WHERE size(uris) > 1
		 RETURN id, uris`,
		nil)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	var dupes []map[string]any
	for _, row := range rows {
		uris := row["uris"]
		if list, ok := uris.([]any); ok && len(list) > 1 {
			// keep the first holder, reassign the rest
			for _, u := range list[1:] {
				if s, ok := u.(string); ok {
					dupes = append(dupes, map[string]any{"uri": s})
				}
			}
		}
	}
	logger.Warn("[PostProcess] Duplicate internal ids found", "nodes", len(dupes))

	return p.store.BatchApply(ctx,
		`MATCH (m:Resource)
		 WITH coalesce(max(m.internalId), 0) AS maxId
		 UNWIND range(0, size($rows) - 1) AS i
		 MATCH (n:Resource {uri: $rows[i].uri})
		 SET n.internalId = maxId + i + 1`,
		dupes, applyChunkSize)
}
