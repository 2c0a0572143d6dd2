package model

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/logger"
)

// CompositeVariant describes a label combination observed in the store with
// more than two labels (Resource plus at least two family labels). Reads
// dispatch on the sorted label key.
type CompositeVariant struct {
	Key    string
	Labels []string
	Count  int64
}

var (
	compositeMu    sync.RWMutex
	compositeTable map[string]CompositeVariant
)

// CompositeKey builds the canonical lookup key for a label set.
func CompositeKey(labels []string) string {
	sorted := make([]string, len(labels))
	copy(sorted, labels)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// RefreshCompositeLabels scans the store for nodes carrying more than two
// labels and rebuilds the composite variant table. It is invoked at startup
// and after each merge pipeline run; nothing invalidates it implicitly.
func RefreshCompositeLabels(ctx context.Context, store *graphstore.Store) error {
	rows, err := store.Execute(ctx,
		`MATCH (n) WHERE size(labels(n)) > 2
		 RETURN labels(n) AS labels, count(*) AS cnt`,
		nil)
	if err != nil {
		return err
	}

	table := make(map[string]CompositeVariant, len(rows))
	for _, row := range rows {
		labels := asLabels(row["labels"])
		key := CompositeKey(labels)
		variant := table[key]
		variant.Key = key
		variant.Labels = labels
		if cnt, ok := row["cnt"].(int64); ok {
			variant.Count += cnt
		}
		table[key] = variant
	}

	compositeMu.Lock()
	compositeTable = table
	compositeMu.Unlock()

	logger.Info("[Model] Composite label table refreshed", "variants", len(table))
	return nil
}

// CompositeVariantFor returns the composite variant for a label set, if one
// was observed during the last refresh.
func CompositeVariantFor(labels []string) (CompositeVariant, bool) {
	compositeMu.RLock()
	defer compositeMu.RUnlock()
	v, ok := compositeTable[CompositeKey(labels)]
	return v, ok
}
