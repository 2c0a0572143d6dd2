package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/logger"
)

// ErrNodeGone is returned when a merge pointer references a node no longer
// present in the store.
var ErrNodeGone = errors.New("node gone")

// UltimateTarget follows internalMergedSameAsHighToUri transitively and
// returns the active representative for the given URI. A URI whose node is
// missing yields ErrNodeGone; a dangling pointer mid-chain is logged and
// the last live node wins.
func UltimateTarget(ctx context.Context, store *graphstore.Store, uri string) (Resource, error) {
	seen := map[string]struct{}{}
	current := uri
	for {
		if _, dup := seen[current]; dup {
			return Resource{}, fmt.Errorf("merge pointer cycle at %s", current)
		}
		seen[current] = struct{}{}

		rows, err := store.Execute(ctx,
			`MATCH (n:Resource {uri: $uri})
			 RETURN labels(n) AS labels, properties(n) AS props`,
			map[string]any{"uri": current})
		if err != nil {
			return Resource{}, err
		}
		if len(rows) == 0 {
			if current == uri {
				return Resource{}, ErrNodeGone
			}
			logger.Warn("[Model] Dangling merge pointer", "from", uri, "missing", current)
			return Resource{}, ErrNodeGone
		}

		node := FromRow(asLabels(rows[0]["labels"]), asProps(rows[0]["props"]))
		if node.MergedSameAsHighToURI == "" {
			return node, nil
		}
		current = node.MergedSameAsHighToURI
	}
}

func asLabels(v any) []string {
	return asStringSlice(v)
}

func asProps(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
