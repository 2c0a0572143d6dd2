package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/model"
)

// NodeRef identifies a merge candidate with the fields merge ordering needs.
type NodeRef struct {
	URI           string
	InternalDocID int64
}

// buildConnectedComponents groups URIs connected by pairs into components
// using union-find with path compression. Only components with more than
// one member are returned.
func buildConnectedComponents(pairs [][2]string) [][]string {
	parent := map[string]string{}

	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	union := func(a, b string) {
		if _, ok := parent[a]; !ok {
			parent[a] = a
		}
		if _, ok := parent[b]; !ok {
			parent[b] = b
		}
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for _, p := range pairs {
		union(p[0], p[1])
	}

	groups := map[string][]string{}
	for node := range parent {
		root := find(node)
		groups[root] = append(groups[root], node)
	}

	var components [][]string
	for _, members := range groups {
		if len(members) > 1 {
			sort.Strings(members)
			components = append(components, members)
		}
	}
	sort.Slice(components, func(i, j int) bool {
		return components[i][0] < components[j][0]
	})
	return components
}

// chooseMergeTarget orders component members by (internalDocId asc, uri asc)
// and returns the winner plus the remaining members in merge order.
func chooseMergeTarget(members []NodeRef) (NodeRef, []NodeRef) {
	sorted := make([]NodeRef, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].InternalDocID != sorted[j].InternalDocID {
			return sorted[i].InternalDocID < sorted[j].InternalDocID
		}
		return sorted[i].URI < sorted[j].URI
	})
	return sorted[0], sorted[1:]
}

type edgeRef struct {
	Type     string
	Outgoing bool
	OtherURI string
	Weight   int64
	Extract  string
}

// MergeNodeInto folds source into target: every typed edge on the source is
// either re-pointed at the target or, when the target already has an
// equal-typed edge to the same endpoint, its weight is added to the
// existing edge. Finally the source's merge pointer is set.
func MergeNodeInto(ctx context.Context, store *graphstore.Store, sourceURI, targetURI string) error {
	if sourceURI == targetURI {
		return fmt.Errorf("cannot merge %s into itself", sourceURI)
	}

	rows, err := store.Execute(ctx,
		`MATCH (s:Resource {uri: $source})-[r]-(other:Resource)
		 RETURN type(r) AS relType,
		        startNode(r).uri = $source AS outgoing,
		        other.uri AS otherUri,
		        coalesce(r.weight, 1) AS weight,
		        r.documentExtract AS extract`,
		map[string]any{"source": sourceURI})
	if err != nil {
		return fmt.Errorf("failed to read source edges: %w", err)
	}

	edges := make([]edgeRef, 0, len(rows))
	for _, row := range rows {
		e := edgeRef{}
		e.Type, _ = row["relType"].(string)
		e.Outgoing, _ = row["outgoing"].(bool)
		e.OtherURI, _ = row["otherUri"].(string)
		if w, ok := row["weight"].(int64); ok {
			e.Weight = w
		} else {
			e.Weight = 1
		}
		e.Extract, _ = row["extract"].(string)
		edges = append(edges, e)
	}

	for _, e := range edges {
		// an edge between source and target would become a self-loop
		if e.OtherURI == targetURI {
			continue
		}
		if !identRe.MatchString(e.Type) {
			return fmt.Errorf("unexpected relationship type %q on %s", e.Type, sourceURI)
		}
		pattern := fmt.Sprintf("(t)-[r:%s]->(o)", e.Type)
		if !e.Outgoing {
			pattern = fmt.Sprintf("(t)<-[r:%s]-(o)", e.Type)
		}
		query := fmt.Sprintf(
			`MATCH (t:Resource {uri: $target}), (o:Resource {uri: $other})
			 MERGE %s
			 ON CREATE SET r.weight = $weight, r.documentExtract = $extract
			 ON MATCH SET r.weight = coalesce(r.weight, 1) + $weight,
			              r.documentExtract = coalesce(r.documentExtract, $extract)`,
			pattern)
		params := map[string]any{
			"target": targetURI,
			"other":  e.OtherURI,
			"weight": e.Weight,
		}
		if e.Extract != "" {
			params["extract"] = e.Extract
		} else {
			params["extract"] = nil
		}
		if _, err := store.Write(ctx, query, params); err != nil {
			return fmt.Errorf("failed to relocate %s edge to %s: %w", e.Type, e.OtherURI, err)
		}
	}

	if _, err := store.Write(ctx,
		`MATCH (s:Resource {uri: $source})
		 OPTIONAL MATCH (s)-[r]-()
		 DELETE r
		 SET s.internalMergedSameAsHighToUri = $target`,
		map[string]any{"source": sourceURI, "target": targetURI}); err != nil {
		return fmt.Errorf("failed to finalize merge of %s: %w", sourceURI, err)
	}

	logger.Debug("[Merge] Node merged", "source", model.URIName(sourceURI), "target", model.URIName(targetURI))
	return nil
}

// MergeSameAsHighComponents runs the connected-component merge over
// sameAsHigh edges between organizations. Per component the lowest
// (internalDocId, uri) node wins; every other member is merged into it.
func MergeSameAsHighComponents(ctx context.Context, store *graphstore.Store) (int, error) {
	rows, err := store.Execute(ctx,
		`MATCH (a:Organization)-[:sameAsHigh]-(b:Organization)
		 WHERE a.internalMergedSameAsHighToUri IS NULL
		   AND b.internalMergedSameAsHighToUri IS NULL
		 RETURN DISTINCT a.uri AS fromUri, b.uri AS toUri`,
		nil)
	if err != nil {
		return 0, fmt.Errorf("failed to collect sameAsHigh pairs: %w", err)
	}

	pairs := make([][2]string, 0, len(rows))
	uris := map[string]struct{}{}
	for _, row := range rows {
		from, _ := row["fromUri"].(string)
		to, _ := row["toUri"].(string)
		pairs = append(pairs, [2]string{from, to})
		uris[from] = struct{}{}
		uris[to] = struct{}{}
	}
	if len(pairs) == 0 {
		return 0, nil
	}

	docIDs, err := fetchDocIDs(ctx, store, uris)
	if err != nil {
		return 0, err
	}

	components := buildConnectedComponents(pairs)
	merged := 0
	for _, members := range components {
		refs := make([]NodeRef, 0, len(members))
		for _, uri := range members {
			refs = append(refs, NodeRef{URI: uri, InternalDocID: docIDs[uri]})
		}
		target, sources := chooseMergeTarget(refs)
		for _, src := range sources {
			if err := MergeNodeInto(ctx, store, src.URI, target.URI); err != nil {
				return merged, err
			}
			merged++
		}
	}

	logger.Info("[Merge] sameAsHigh components merged", "components", len(components), "merged_nodes", merged)
	return merged, nil
}

func fetchDocIDs(ctx context.Context, store *graphstore.Store, uris map[string]struct{}) (map[string]int64, error) {
	list := make([]string, 0, len(uris))
	for uri := range uris {
		list = append(list, uri)
	}
	sort.Strings(list)

	rows, err := store.Execute(ctx,
		`MATCH (n:Resource) WHERE n.uri IN $uris
		 RETURN n.uri AS uri, coalesce(n.internalDocId, 0) AS docId`,
		map[string]any{"uris": list})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch doc ids: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		uri, _ := row["uri"].(string)
		id, _ := row["docId"].(int64)
		out[uri] = id
	}
	return out, nil
}
