package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/1145-am/orggraph/pkg/ai"
)

// Distance thresholds for accepting a hit. Single-word queries embed more
// tightly, so they get a stricter cutoff.
const (
	SingleWordThreshold = 0.18
	MultiWordThreshold  = 0.22
)

// ThresholdFor picks the default distance cutoff for a query string.
func ThresholdFor(query string) float64 {
	if len(strings.Fields(query)) <= 1 {
		return SingleWordThreshold
	}
	return MultiWordThreshold
}

// WidenRegions augments the region set: a country-admin1 tag implies the
// containing country is also acceptable. Order of first appearance is kept.
func WidenRegions(regions []string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(tag string) {
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	for _, region := range regions {
		add(region)
		if cc, _, found := strings.Cut(region, "-"); found {
			add(cc)
		}
	}
	return out
}

// DedupeByURI keeps the closest hit per URI, preserving relative order of
// the survivors.
func DedupeByURI(hits []Hit) []Hit {
	best := map[string]int{}
	var out []Hit
	for _, hit := range hits {
		if idx, seen := best[hit.URI]; seen {
			if hit.Distance < out[idx].Distance {
				out[idx] = hit
			}
			continue
		}
		best[hit.URI] = len(out)
		out = append(out, hit)
	}
	return out
}

// FilterByDistance drops hits beyond the threshold.
func FilterByDistance(hits []Hit, threshold float64) []Hit {
	out := make([]Hit, 0, len(hits))
	for _, hit := range hits {
		if hit.Distance <= threshold {
			out = append(out, hit)
		}
	}
	return out
}

// Outcome classifies accepted hits by what the caller should do with them.
type Outcome struct {
	// OrgURIs feed the activity-by-org query, from direct organization
	// hits and from about-us parents.
	OrgURIs []string
	// IndustryTopicIDs feed the precomputed industry/geo cells.
	IndustryTopicIDs []string
	// SectorUpdates are emitted directly as pseudo-activities.
	SectorUpdates []Hit
	// Regions is the widened region set the caller should query cells with.
	Regions []string
}

// Searcher runs the fan-out across collections.
type Searcher struct {
	index    *Index
	embedder ai.EmbeddingClient
	limit    int
}

func NewSearcher(index *Index, embedder ai.EmbeddingClient) *Searcher {
	return &Searcher{index: index, embedder: embedder, limit: 25}
}

// Search embeds the query, fans out to every collection with the widened
// region filter, and classifies the surviving hits. threshold <= 0 selects
// the default for the query shape.
func (s *Searcher) Search(ctx context.Context, query string, regions []string, threshold float64) (*Outcome, error) {
	if threshold <= 0 {
		threshold = ThresholdFor(query)
	}
	widened := WidenRegions(regions)

	vector, err := s.embedder.GenerateEmbedding(ctx, []byte(strings.ToLower(query)))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var mu sync.Mutex
	var all []Hit
	var keyword []Hit
	g, gctx := errgroup.WithContext(ctx)
	for _, collection := range Collections {
		g.Go(func() error {
			hits, err := s.index.VectorSearch(gctx, collection, vector, widened, s.limit)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, hits...)
			mu.Unlock()
			return nil
		})
	}
	// the BM25 leg catches exact names the embedding misses
	g.Go(func() error {
		hits, err := s.index.KeywordSearch(gctx, CollectionOrganizations, query, s.limit)
		if err != nil {
			return err
		}
		mu.Lock()
		keyword = hits
		mu.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Distance < all[j].Distance })
	accepted := FilterByDistance(DedupeByURI(all), threshold)
	accepted = MergeKeywordHits(accepted, keyword)
	return classify(accepted, widened), nil
}

// MergeKeywordHits appends BM25 hits that the vector legs did not already
// surface. Keyword hits rank after every accepted vector hit; their distance
// is not comparable to an embedding distance.
func MergeKeywordHits(accepted, keyword []Hit) []Hit {
	seen := make(map[string]struct{}, len(accepted))
	for _, hit := range accepted {
		seen[hit.URI] = struct{}{}
	}
	for _, hit := range keyword {
		if _, dup := seen[hit.URI]; dup {
			continue
		}
		seen[hit.URI] = struct{}{}
		accepted = append(accepted, hit)
	}
	return accepted
}

func classify(hits []Hit, regions []string) *Outcome {
	out := &Outcome{Regions: regions}
	seenOrg := map[string]struct{}{}
	addOrg := func(uri string) {
		if uri == "" {
			return
		}
		if _, dup := seenOrg[uri]; dup {
			return
		}
		seenOrg[uri] = struct{}{}
		out.OrgURIs = append(out.OrgURIs, uri)
	}
	for _, hit := range hits {
		switch hit.Collection {
		case CollectionOrganizations:
			addOrg(hit.URI)
		case CollectionAboutUs:
			for _, uri := range hit.RelatedOrgURIs {
				addOrg(uri)
			}
		case CollectionIndustryClusters:
			if hit.TopicID != "" {
				out.IndustryTopicIDs = append(out.IndustryTopicIDs, hit.TopicID)
			}
		case CollectionIndustrySectorUpdates:
			out.SectorUpdates = append(out.SectorUpdates, hit)
		}
	}
	return out
}
