package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/1145-am/orggraph/pkg/ai"
	"github.com/1145-am/orggraph/pkg/cache"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/model"
	"github.com/1145-am/orggraph/pkg/precompute"
)

// OrgMatch is one ranked organization search hit.
type OrgMatch struct {
	URI          string `json:"uri"`
	Name         string `json:"name"`
	ArticleCount int64  `json:"article_count"`
}

// SearchOrganizationsByName unions the raw-name and cleaned-name full-text
// indexes, excludes merged rows and ranks by article count inside the
// window. topOneStrict returns only the best match.
func (e *Engine) SearchOrganizationsByName(ctx context.Context, name string, minDate, maxDate time.Time, topOneStrict bool) ([]OrgMatch, error) {
	rows, err := e.store.Execute(ctx, `
		CALL {
			CALL db.index.fulltext.queryNodes('resource_names', $query) YIELD node, score
			RETURN node, score
			UNION ALL
			CALL db.index.fulltext.queryNodes('organization_clean_names', $query) YIELD node, score
			RETURN node, score
		}
		WITH node, max(score) AS score
		WHERE node:Organization AND node.internalMergedSameAsHighToUri IS NULL
		OPTIONAL MATCH (node)--(act)-[:documentSource]->(art:Article)
		WHERE any(l IN labels(act) WHERE l ENDS WITH 'Activity')
		  AND art.datePublished >= datetime($minDate)
		  AND art.datePublished <= datetime($maxDate) + duration('P1D')
		WITH node, score, count(DISTINCT art) AS articleCount
		RETURN node.uri AS uri, node.name AS name, articleCount
		ORDER BY articleCount DESC, score DESC, uri ASC
		LIMIT 50`,
		map[string]any{
			"query":   fulltextQuery(name),
			"minDate": minDate.Format("2006-01-02"),
			"maxDate": maxDate.Format("2006-01-02"),
		})
	if err != nil {
		return nil, err
	}
	out := make([]OrgMatch, 0, len(rows))
	for _, row := range rows {
		m := OrgMatch{}
		m.URI, _ = row["uri"].(string)
		m.Name = firstString(row["name"])
		m.ArticleCount, _ = row["articleCount"].(int64)
		out = append(out, m)
	}
	if topOneStrict && len(out) > 1 {
		out = out[:1]
	}
	return out, nil
}

// fulltextQuery escapes the reserved Lucene characters in user input.
func fulltextQuery(name string) string {
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(`+-&|!(){}[]^"~*?:\/`, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// orgByIndustryScoreCutoff is the minimum vector-index similarity for an
// organization to count as matching an industry phrase.
const orgByIndustryScoreCutoff = 0.87

// OrgsByIndustryText finds organizations whose industry embedding is close
// to the given phrase, via the store's native vector index. Results are
// cached per normalized phrase.
func (e *Engine) OrgsByIndustryText(ctx context.Context, embedder ai.EmbeddingClient, text string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	key := fmt.Sprintf("org_by_industry_text_%s_%d", norm, limit)
	var cached []string
	if err := e.cache.GetJSON(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Warn("org-by-industry cache read failed", "error", err)
	}

	vector, err := embedder.GenerateEmbedding(ctx, []byte(norm))
	if err != nil {
		return nil, fmt.Errorf("embed industry text: %w", err)
	}
	rows, err := e.store.Execute(ctx, `
		CALL db.index.vector.queryNodes('organization_industry_embeddings', $limit, $vector)
		YIELD node, score
		WHERE score >= $cutoff AND node.internalMergedSameAsHighToUri IS NULL
		RETURN node.uri AS uri
		ORDER BY score DESC, uri ASC`,
		map[string]any{"limit": limit, "vector": vector, "cutoff": orgByIndustryScoreCutoff})
	if err != nil {
		return nil, err
	}
	uris := make([]string, 0, len(rows))
	for _, row := range rows {
		if uri, ok := row["uri"].(string); ok {
			uris = append(uris, uri)
		}
	}
	if err := e.cache.SetJSON(ctx, key, uris, 0); err != nil {
		logger.Warn("org-by-industry cache write failed", "error", err)
	}
	return uris, nil
}

// SumWeights returns the total weight of an org's outgoing edges of one
// type, cached as the denominator for weight-proportion filters.
func (e *Engine) SumWeights(ctx context.Context, orgURI, relType string) (int64, error) {
	key := precompute.SumWeightsKey(orgURI, relType)
	var cached int64
	if err := e.cache.GetJSON(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Warn("sum-weights cache read failed", "error", err)
	}

	rows, err := e.store.Execute(ctx, fmt.Sprintf(`
		MATCH (o:Organization {uri: $uri})-[r:%s]->()
		RETURN sum(coalesce(r.weight, 1)) AS total`, relType),
		map[string]any{"uri": orgURI})
	if err != nil {
		return 0, err
	}
	var total int64
	if len(rows) > 0 {
		total, _ = rows[0]["total"].(int64)
	}
	if err := e.cache.SetJSON(ctx, key, total, 0); err != nil {
		logger.Warn("sum-weights cache write failed", "error", err)
	}
	return total, nil
}

// BestNameFor resolves the display name of an organization, consulting the
// union of names across its sameAsHigh component.
func (e *Engine) BestNameFor(ctx context.Context, orgURI string) (string, error) {
	rows, err := e.store.Execute(ctx, `
		MATCH (o:Organization {uri: $uri})
		OPTIONAL MATCH (o)-[:sameAsHigh]-(peer:Organization)
		RETURN o.uri AS uri, o.name AS name, collect(peer.name) AS peerNames`,
		map[string]any{"uri": orgURI})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("organization %s not found", orgURI)
	}
	org := model.Organization{Resource: model.Resource{
		URI:   orgURI,
		Names: anySliceToStrings(rows[0]["name"]),
	}}
	var peerNames [][]string
	if peers, ok := rows[0]["peerNames"].([]any); ok {
		for _, p := range peers {
			peerNames = append(peerNames, anySliceToStrings(p))
		}
	}
	return model.BestName(org, peerNames), nil
}

func anySliceToStrings(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
