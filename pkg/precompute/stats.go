package precompute

import (
	"context"
	"fmt"
	"time"

	"github.com/1145-am/orggraph/pkg/cache"
	"github.com/1145-am/orggraph/pkg/graphstore"
)

// Counts is the per-axis activity tally inside one window.
type Counts struct {
	Organizations int64 `json:"organizations"`
	Articles      int64 `json:"articles"`
	Activities    int64 `json:"activities"`
}

// WindowStats is the snapshot-wide tally for one window, broken down by
// country and by leaf industry topic id.
type WindowStats struct {
	MaxDate    string            `json:"max_date"`
	Days       int               `json:"days"`
	Countries  map[string]Counts `json:"countries"`
	Industries map[string]Counts `json:"industries"`
}

func statsKey(days int) string {
	return fmt.Sprintf("stats_%d", days)
}

// Stats reads the published tallies for one window from the active snapshot.
func Stats(ctx context.Context, c *cache.Cache, days int) (*WindowStats, error) {
	var out WindowStats
	if err := c.GetJSON(ctx, statsKey(days), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *Precomputer) writeStats(ctx context.Context, maxDate time.Time) error {
	for _, days := range WindowDays {
		minDate := WindowStart(maxDate, days)
		stats := WindowStats{
			MaxDate:    maxDate.Format("2006-01-02"),
			Days:       days,
			Countries:  map[string]Counts{},
			Industries: map[string]Counts{},
		}
		if err := p.countByCountry(ctx, minDate, maxDate, stats.Countries); err != nil {
			return err
		}
		if err := p.countByIndustry(ctx, minDate, maxDate, stats.Industries); err != nil {
			return err
		}
		if err := p.cache.SetJSONInInactive(ctx, statsKey(days), stats, 0); err != nil {
			return err
		}
	}
	return nil
}

func (p *Precomputer) countByCountry(ctx context.Context, minDate, maxDate time.Time, out map[string]Counts) error {
	rows, err := p.store.Execute(ctx, `
		MATCH (o:Organization)-[:basedInHighGeoNamesLocation]->(loc:GeoNamesLocation)
		WHERE o.internalMergedSameAsHighToUri IS NULL AND loc.countryCode IS NOT NULL
		MATCH (o)--(act)-[:documentSource]->(art:Article)
		WHERE any(l IN labels(act) WHERE l ENDS WITH 'Activity')
		  AND act.internalMergedActivityWithSimilarRelationshipsToUri IS NULL
		  AND art.datePublished >= datetime($minDate)
		  AND art.datePublished <= datetime($maxDate) + duration('P1D')
		RETURN loc.countryCode AS axis,
		       count(DISTINCT o) AS orgs,
		       count(DISTINCT art) AS articles,
		       count(DISTINCT act) AS activities`,
		map[string]any{
			"minDate": minDate.Format("2006-01-02"),
			"maxDate": maxDate.Format("2006-01-02"),
		})
	if err != nil {
		return err
	}
	collectCounts(rows, out)
	return nil
}

func (p *Precomputer) countByIndustry(ctx context.Context, minDate, maxDate time.Time, out map[string]Counts) error {
	rows, err := p.store.Execute(ctx, `
		MATCH (o:Organization)-[:industryClusterPrimary]->(c:IndustryCluster)
		WHERE o.internalMergedSameAsHighToUri IS NULL
		  AND NOT (c)-[:childLeft|childRight]->(:IndustryCluster)
		MATCH (o)--(act)-[:documentSource]->(art:Article)
		WHERE any(l IN labels(act) WHERE l ENDS WITH 'Activity')
		  AND act.internalMergedActivityWithSimilarRelationshipsToUri IS NULL
		  AND art.datePublished >= datetime($minDate)
		  AND art.datePublished <= datetime($maxDate) + duration('P1D')
		RETURN toString(c.topicId) AS axis,
		       count(DISTINCT o) AS orgs,
		       count(DISTINCT art) AS articles,
		       count(DISTINCT act) AS activities`,
		map[string]any{
			"minDate": minDate.Format("2006-01-02"),
			"maxDate": maxDate.Format("2006-01-02"),
		})
	if err != nil {
		return err
	}
	collectCounts(rows, out)
	return nil
}

func collectCounts(rows []graphstore.Row, out map[string]Counts) {
	for _, row := range rows {
		axis, _ := row["axis"].(string)
		if axis == "" {
			continue
		}
		c := Counts{}
		c.Organizations, _ = row["orgs"].(int64)
		c.Articles, _ = row["articles"].(int64)
		c.Activities, _ = row["activities"].(int64)
		out[axis] = c
	}
}
