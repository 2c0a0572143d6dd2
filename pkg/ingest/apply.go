package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const applyChunkSize = 1000

// ApplyParsedGraph writes a decoded Turtle file into the store. Nodes are
// grouped by label set and edges by type so each group runs as a single
// parameterized statement.
func ApplyParsedGraph(ctx context.Context, store *graphstore.Store, g *ParsedGraph) error {
	if err := applyNodes(ctx, store, g.Nodes); err != nil {
		return err
	}
	return applyEdges(ctx, store, g.Edges)
}

func applyNodes(ctx context.Context, store *graphstore.Store, nodes []NodeUpdate) error {
	groups := map[string][]map[string]any{}
	groupLabels := map[string][]string{}
	for _, n := range nodes {
		labels := append([]string{}, n.Labels...)
		sort.Strings(labels)
		key := strings.Join(labels, "|")
		groups[key] = append(groups[key], map[string]any{
			"uri":   n.URI,
			"props": n.Props,
		})
		groupLabels[key] = labels
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		labelClause := ""
		for _, l := range groupLabels[key] {
			if l == "Resource" {
				continue
			}
			labelClause += ":" + l
		}
		query := `UNWIND $rows AS row
			 MERGE (n:Resource {uri: row.uri})
			 SET n += row.props`
		if labelClause != "" {
			query += fmt.Sprintf("\n\t\t\t SET n%s", labelClause)
		}
		if err := store.BatchApply(ctx, query, groups[key], applyChunkSize); err != nil {
			return fmt.Errorf("node import failed for label set %q: %w", key, err)
		}
	}
	return nil
}

func applyEdges(ctx context.Context, store *graphstore.Store, edges []EdgeUpdate) error {
	groups := map[string][]map[string]any{}
	for _, e := range edges {
		groups[e.Type] = append(groups[e.Type], map[string]any{
			"from": e.FromURI,
			"to":   e.ToURI,
		})
	}

	types := make([]string, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, relType := range types {
		// relType was validated against identRe at parse time
		query := fmt.Sprintf(`UNWIND $rows AS row
			 MERGE (s:Resource {uri: row.from})
			 MERGE (t:Resource {uri: row.to})
			 MERGE (s)-[:%s]->(t)`, relType)
		if err := store.BatchApply(ctx, query, groups[relType], applyChunkSize); err != nil {
			return fmt.Errorf("edge import failed for type %q: %w", relType, err)
		}
	}
	return nil
}

// ApplyDeletions detach-deletes every listed subject and clears the merge
// pointer of any node that had been merged into one of them, so the walker
// never dangles into deleted space. Both statements run in one transaction;
// a pointer cleared without its target deleted would resurrect a retired
// representative.
func ApplyDeletions(ctx context.Context, store *graphstore.Store, uris []string) (int, error) {
	if len(uris) == 0 {
		return 0, nil
	}

	deleted := 0
	err := store.InTransaction(ctx, func(tx neo4j.ManagedTransaction) error {
		if _, err := tx.Run(ctx,
			`MATCH (n:Resource)
			 WHERE n.internalMergedSameAsHighToUri IN $uris
			 SET n.internalMergedSameAsHighToUri = NULL`,
			map[string]any{"uris": uris}); err != nil {
			return fmt.Errorf("failed to clear merge pointers: %w", err)
		}

		res, err := tx.Run(ctx,
			`MATCH (n:Resource)
			 WHERE n.uri IN $uris
			 DETACH DELETE n
			 RETURN count(*) AS deleted`,
			map[string]any{"uris": uris})
		if err != nil {
			return fmt.Errorf("failed to delete subjects: %w", err)
		}
		record, err := res.Single(ctx)
		if err != nil {
			return err
		}
		if n, ok := record.AsMap()["deleted"].(int64); ok {
			deleted = int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logger.Info("[Ingest] Deletions applied", "requested", len(uris), "deleted", deleted)
	return deleted, nil
}
