// Package query is the read side: activity feeds by organization set,
// publisher, industry/geo cell and free text, plus the family-tree
// traversal. Results are cached per call under the active cache version.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/1145-am/orggraph/pkg/cache"
	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/model"
	"github.com/1145-am/orggraph/pkg/precompute"
)

// ErrCellNotComputed distinguishes "this industry/geo cell was never part
// of the snapshot" from an empty cell.
var ErrCellNotComputed = errors.New("cell not in precomputed snapshot")

// Activity is one feed row.
type Activity struct {
	ActivityURI     string   `json:"activity_uri"`
	ActivityClass   string   `json:"activity_class"`
	DatePublished   string   `json:"date_published"`
	ArticleURI      string   `json:"article_uri"`
	Headline        string   `json:"headline,omitempty"`
	Source          string   `json:"source,omitempty"`
	DocumentExtract string   `json:"document_extract,omitempty"`
	OrgURIs         []string `json:"org_uris,omitempty"`
}

// Engine bundles the handles the read queries need.
type Engine struct {
	store *graphstore.Store
	cache *cache.Cache
}

func NewEngine(store *graphstore.Store, c *cache.Cache) *Engine {
	return &Engine{store: store, cache: c}
}

// ActivitiesByOrgURIs returns activities connected to the URI set inside
// the window, newest first. combineSameAsNameOnly widens the set through
// the cleaned-name equivalence before querying.
func (e *Engine) ActivitiesByOrgURIs(ctx context.Context, uris []string, minDate, maxDate time.Time, combineSameAsNameOnly bool, limit int) ([]Activity, error) {
	if len(uris) == 0 {
		return []Activity{}, nil
	}
	sorted := append([]string(nil), uris...)
	sort.Strings(sorted)

	key := fmt.Sprintf("activities_%s_%s_%s_%t_%d",
		strings.Join(sorted, ","),
		minDate.Format("2006-01-02"), maxDate.Format("2006-01-02"),
		combineSameAsNameOnly, limit)
	var cached []Activity
	if err := e.cache.GetJSON(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Warn("activity cache read failed", "error", err)
	}

	if combineSameAsNameOnly {
		widened, err := e.expandSameAsNameOnly(ctx, sorted)
		if err != nil {
			return nil, err
		}
		sorted = widened
	}

	activities, err := e.fetchActivities(ctx, sorted, minDate, maxDate, limit)
	if err != nil {
		return nil, err
	}
	if err := e.cache.SetJSON(ctx, key, activities, time.Hour); err != nil {
		logger.Warn("activity cache write failed", "error", err)
	}
	return activities, nil
}

// expandSameAsNameOnly adds sameAsNameOnly neighbors of every input org,
// resolved to their active representatives.
func (e *Engine) expandSameAsNameOnly(ctx context.Context, uris []string) ([]string, error) {
	rows, err := e.store.Execute(ctx, `
		MATCH (o:Organization)
		WHERE o.uri IN $uris
		OPTIONAL MATCH (o)-[:sameAsNameOnly]-(peer:Organization)
		WITH o, collect(coalesce(peer.internalMergedSameAsHighToUri, peer.uri)) AS peers
		RETURN coalesce(o.internalMergedSameAsHighToUri, o.uri) AS self, peers`,
		map[string]any{"uris": uris})
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	add := func(uri string) {
		if uri == "" {
			return
		}
		if _, dup := seen[uri]; dup {
			return
		}
		seen[uri] = struct{}{}
		out = append(out, uri)
	}
	for _, row := range rows {
		if self, ok := row["self"].(string); ok {
			add(self)
		}
		if peers, ok := row["peers"].([]any); ok {
			for _, p := range peers {
				if s, ok := p.(string); ok {
					add(s)
				}
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (e *Engine) fetchActivities(ctx context.Context, uris []string, minDate, maxDate time.Time, limit int) ([]Activity, error) {
	params := map[string]any{
		"uris":    uris,
		"minDate": minDate.Format("2006-01-02"),
		"maxDate": maxDate.Format("2006-01-02"),
	}
	query := `
		CALL {
			MATCH (o:Organization)-[rel]-(act)
			WHERE o.uri IN $uris
			  AND any(l IN labels(act) WHERE l ENDS WITH 'Activity')
			  AND NOT act:RoleActivity
			  AND type(rel) <> 'sameAsHigh' AND type(rel) <> 'sameAsNameOnly'
			RETURN act, o.uri AS orgUri
			UNION
			MATCH (o:Organization)-[:hasRole]->(:Role)<-[:role]-(act:RoleActivity)
			WHERE o.uri IN $uris
			RETURN act, o.uri AS orgUri
		}
		WITH act, collect(DISTINCT orgUri) AS orgUris
		WHERE act.internalMergedActivityWithSimilarRelationshipsToUri IS NULL
		MATCH (act)-[ds:documentSource]->(art:Article)
		WHERE art.datePublished >= datetime($minDate)
		  AND art.datePublished <= datetime($maxDate) + duration('P1D')
		RETURN act.uri AS activityUri, labels(act) AS activityLabels,
		       toString(art.datePublished) AS datePublished,
		       art.uri AS articleUri, art.headline AS headline,
		       art.sourceOrganization AS source,
		       ds.documentExtract AS extract,
		       orgUris
		ORDER BY datePublished DESC, activityUri ASC`
	if limit > 0 {
		query += `
		LIMIT $limit`
		params["limit"] = limit
	}
	rows, err := e.store.Execute(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return activitiesFromRows(rows), nil
}

// ActivitiesBySource returns activities whose article was published by the
// named source and that touch at least one live organization.
func (e *Engine) ActivitiesBySource(ctx context.Context, sourceName string, minDate, maxDate time.Time, limit int) ([]Activity, error) {
	params := map[string]any{
		"source":  sourceName,
		"minDate": minDate.Format("2006-01-02"),
		"maxDate": maxDate.Format("2006-01-02"),
	}
	query := `
		MATCH (act)-[ds:documentSource]->(art:Article)
		WHERE art.sourceOrganization = $source
		  AND any(l IN labels(act) WHERE l ENDS WITH 'Activity')
		  AND act.internalMergedActivityWithSimilarRelationshipsToUri IS NULL
		  AND art.datePublished >= datetime($minDate)
		  AND art.datePublished <= datetime($maxDate) + duration('P1D')
		  AND EXISTS {
			MATCH (act)--(o:Organization)
			WHERE o.internalMergedSameAsHighToUri IS NULL
		  }
		OPTIONAL MATCH (act)--(o:Organization)
		WHERE o.internalMergedSameAsHighToUri IS NULL
		WITH act, ds, art, collect(DISTINCT o.uri) AS orgUris
		RETURN act.uri AS activityUri, labels(act) AS activityLabels,
		       toString(art.datePublished) AS datePublished,
		       art.uri AS articleUri, art.headline AS headline,
		       art.sourceOrganization AS source,
		       ds.documentExtract AS extract,
		       orgUris
		ORDER BY datePublished DESC, activityUri ASC`
	if limit > 0 {
		query += `
		LIMIT $limit`
		params["limit"] = limit
	}
	rows, err := e.store.Execute(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return activitiesFromRows(rows), nil
}

// ActivitiesByIndustryGeo reads one precomputed cell. A missing key means
// the snapshot never covered that cell.
func (e *Engine) ActivitiesByIndustryGeo(ctx context.Context, minDate, maxDate time.Time, industryID, countryCode, admin1Code string) ([]precompute.OrgCell, error) {
	key := precompute.CellKey(minDate, maxDate, industryID, countryCode, admin1Code)
	var cells []precompute.OrgCell
	err := e.cache.GetJSON(ctx, key, &cells)
	if errors.Is(err, cache.ErrMiss) {
		return nil, fmt.Errorf("%w: %s", ErrCellNotComputed, key)
	}
	if err != nil {
		return nil, err
	}
	return cells, nil
}

// ActivitiesByIndustryGeoLive runs the cell query directly against the
// graph for an arbitrary window. The snapshot only covers the canonical
// windows ending on its reference date; callers with any other range use
// this path.
func (e *Engine) ActivitiesByIndustryGeoLive(ctx context.Context, minDate, maxDate time.Time, industryID, countryCode, admin1Code string) ([]precompute.OrgCell, error) {
	return precompute.QueryCellRange(ctx, e.store, minDate, maxDate, industryID, countryCode, admin1Code)
}

// FilterByActivityTypes keeps activities whose class matches one of the
// case-insensitive type prefixes. An empty allowlist keeps everything.
func FilterByActivityTypes(activities []Activity, types []string) []Activity {
	return model.FilterByActivityTypes(activities, func(a Activity) string { return a.ActivityClass }, types)
}

func activitiesFromRows(rows []graphstore.Row) []Activity {
	out := make([]Activity, 0, len(rows))
	for _, row := range rows {
		act := Activity{}
		act.ActivityURI, _ = row["activityUri"].(string)
		act.DatePublished, _ = row["datePublished"].(string)
		act.ArticleURI, _ = row["articleUri"].(string)
		act.Headline = firstString(row["headline"])
		act.Source = firstString(row["source"])
		act.DocumentExtract = firstString(row["extract"])
		act.ActivityClass = activityClassFromLabels(row["activityLabels"])
		if orgUris, ok := row["orgUris"].([]any); ok {
			for _, item := range orgUris {
				if s, ok := item.(string); ok {
					act.OrgURIs = append(act.OrgURIs, s)
				}
			}
		}
		out = append(out, act)
	}
	return out
}

func activityClassFromLabels(v any) string {
	labels, ok := v.([]any)
	if !ok {
		return ""
	}
	for _, item := range labels {
		label, ok := item.(string)
		if !ok {
			continue
		}
		if model.IsActivityLabel(label) {
			return label
		}
	}
	return ""
}

func firstString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
