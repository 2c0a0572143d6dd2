// Package precompute materializes the industry/geography activity snapshot:
// for each sliding window crossed with every leaf industry cluster, country
// and admin1 subdivision, the organizations active in that cell and their
// article references. Cells are written to the inactive cache version and
// published atomically with a version flip.
package precompute

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/1145-am/orggraph/internal/util"
	"github.com/1145-am/orggraph/pkg/cache"
	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/logger"
)

// countriesWithAdmin1 lists the countries whose first-level subdivisions get
// their own cells.
var countriesWithAdmin1 = map[string]struct{}{
	"AU": {}, "CA": {}, "CN": {}, "IN": {}, "US": {},
}

// ArticleRef is one activity/article hit inside a cell, sorted newest first.
type ArticleRef struct {
	ActivityURI   string `json:"activity_uri"`
	ArticleURI    string `json:"article_uri"`
	DatePublished string `json:"date_published"`
}

// OrgCell is one organization's row in a precomputed cell.
type OrgCell struct {
	OrgURI        string       `json:"org_uri"`
	Degree        int64        `json:"degree"`
	InternalDocID int64        `json:"internal_doc_id"`
	Articles      []ArticleRef `json:"articles"`
}

// Precomputer drives one full snapshot build.
type Precomputer struct {
	store *graphstore.Store
	cache *cache.Cache

	industryMinProportion float64
	geoMinProportion      float64
}

func New(store *graphstore.Store, c *cache.Cache) *Precomputer {
	return &Precomputer{
		store:                 store,
		cache:                 c,
		industryMinProportion: util.GetEnvFloat("INDUSTRY_CLUSTER_MIN_WEIGHT_PROPORTION", 0.5),
		geoMinProportion:      util.GetEnvFloat("GEO_LOCATION_MIN_WEIGHT_PROPORTION", 0.5),
	}
}

// Run builds the full snapshot against maxDate (zero value means the latest
// published date in the store), writes every cell to the inactive cache
// version, then flips.
func (p *Precomputer) Run(ctx context.Context, maxDate time.Time) error {
	if maxDate.IsZero() {
		latest, err := p.latestPublishedDate(ctx)
		if err != nil {
			return err
		}
		maxDate = latest
	}
	maxDate = maxDate.Truncate(24 * time.Hour)

	industries, err := p.leafIndustries(ctx)
	if err != nil {
		return err
	}
	geos, err := p.geoCells(ctx)
	if err != nil {
		return err
	}
	logger.Info("starting precompute",
		"max_date", maxDate.Format("2006-01-02"),
		"industries", len(industries), "geo_cells", len(geos))

	cells := 0
	for _, days := range WindowDays {
		minDate := WindowStart(maxDate, days)
		// the unconstrained axes are part of the cross product
		for _, ind := range append([]string{""}, industries...) {
			for _, geo := range append([]geoCell{{}}, geos...) {
				if err := p.computeCell(ctx, minDate, maxDate, ind, geo); err != nil {
					return fmt.Errorf("cell %s: %w",
						CellKey(minDate, maxDate, ind, geo.CountryCode, geo.Admin1Code), err)
				}
				cells++
			}
		}
	}

	if err := p.writeStats(ctx, maxDate); err != nil {
		return err
	}
	if err := p.cache.SetJSONInInactive(ctx, lastUpdatedKey, maxDate.Format("2006-01-02"), 0); err != nil {
		return err
	}
	if err := p.cache.Flip(ctx); err != nil {
		return err
	}
	logger.Info("precompute complete", "cells", cells)
	return nil
}

// LatestCacheDate returns the reference date of the active snapshot, falling
// back to the latest published article date when no snapshot exists.
func LatestCacheDate(ctx context.Context, c *cache.Cache, store *graphstore.Store) (time.Time, error) {
	var stamp string
	err := c.GetJSON(ctx, lastUpdatedKey, &stamp)
	if err == nil {
		return time.Parse("2006-01-02", stamp)
	}
	if err != cache.ErrMiss {
		return time.Time{}, err
	}
	p := &Precomputer{store: store}
	return p.latestPublishedDate(ctx)
}

func (p *Precomputer) latestPublishedDate(ctx context.Context) (time.Time, error) {
	rows, err := p.store.Execute(ctx, `
		MATCH (a:Article)
		RETURN max(a.datePublished) AS latest`, nil)
	if err != nil {
		return time.Time{}, err
	}
	if len(rows) == 0 || rows[0]["latest"] == nil {
		return time.Time{}, fmt.Errorf("no published articles in store")
	}
	switch v := rows[0]["latest"].(type) {
	case time.Time:
		return v, nil
	case string:
		return time.Parse(time.RFC3339, v)
	default:
		return time.Time{}, fmt.Errorf("unexpected datePublished type %T", v)
	}
}

// leafIndustries returns the topic ids of industry clusters with no child
// clusters; only leaves get their own cells.
func (p *Precomputer) leafIndustries(ctx context.Context) ([]string, error) {
	rows, err := p.store.Execute(ctx, `
		MATCH (c:IndustryCluster)
		WHERE c.internalMergedSameAsHighToUri IS NULL
		  AND NOT (c)-[:childLeft|childRight]->(:IndustryCluster)
		RETURN toString(c.topicId) AS topicId
		ORDER BY c.topicId`, nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if id, ok := row["topicId"].(string); ok && id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

type geoCell struct {
	CountryCode string
	Admin1Code  string
}

// geoCells enumerates every observed country, plus (country, admin1) pairs
// for countries whose subdivisions are tracked.
func (p *Precomputer) geoCells(ctx context.Context) ([]geoCell, error) {
	rows, err := p.store.Execute(ctx, `
		MATCH (l:GeoNamesLocation)
		WHERE l.countryCode IS NOT NULL
		RETURN DISTINCT l.countryCode AS cc, l.admin1Code AS adm1
		ORDER BY cc, adm1`, nil)
	if err != nil {
		return nil, err
	}
	var cells []geoCell
	seenCountry := map[string]struct{}{}
	for _, row := range rows {
		cc, _ := row["cc"].(string)
		if cc == "" {
			continue
		}
		if _, seen := seenCountry[cc]; !seen {
			seenCountry[cc] = struct{}{}
			cells = append(cells, geoCell{CountryCode: cc})
		}
		adm1, _ := row["adm1"].(string)
		if adm1 == "" {
			continue
		}
		if _, tracked := countriesWithAdmin1[cc]; tracked {
			cells = append(cells, geoCell{CountryCode: cc, Admin1Code: adm1})
		}
	}
	return cells, nil
}

// computeCell runs the cell query and writes the result to the inactive
// version. Empty cells write an empty list so readers can tell "no data"
// from "not computed".
func (p *Precomputer) computeCell(ctx context.Context, minDate, maxDate time.Time, industryID string, geo geoCell) error {
	orgs, err := p.queryCell(ctx, minDate, maxDate, industryID, geo)
	if err != nil {
		return err
	}
	if orgs == nil {
		orgs = []OrgCell{}
	}
	key := CellKey(minDate, maxDate, industryID, geo.CountryCode, geo.Admin1Code)
	return p.cache.SetJSONInInactive(ctx, key, orgs, 0)
}

func (p *Precomputer) queryCell(ctx context.Context, minDate, maxDate time.Time, industryID string, geo geoCell) ([]OrgCell, error) {
	return runCellQuery(ctx, p.store, minDate, maxDate, industryID, geo,
		p.industryMinProportion, p.geoMinProportion)
}

// QueryCellRange runs the cell query live against the graph for an
// arbitrary window. The snapshot only materializes the canonical windows,
// so readers anchored on some other range (digest deliveries resuming from
// the user's last notification) go through here instead of the cache.
func QueryCellRange(ctx context.Context, store *graphstore.Store, minDate, maxDate time.Time, industryID, countryCode, admin1Code string) ([]OrgCell, error) {
	return runCellQuery(ctx, store, minDate, maxDate, industryID,
		geoCell{CountryCode: countryCode, Admin1Code: admin1Code},
		util.GetEnvFloat("INDUSTRY_CLUSTER_MIN_WEIGHT_PROPORTION", 0.5),
		util.GetEnvFloat("GEO_LOCATION_MIN_WEIGHT_PROPORTION", 0.5))
}

func runCellQuery(ctx context.Context, store *graphstore.Store, minDate, maxDate time.Time, industryID string, geo geoCell, indProportion, geoProportion float64) ([]OrgCell, error) {
	query, params := buildCellQuery(minDate, maxDate, industryID, geo, indProportion, geoProportion)
	rows, err := store.Execute(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return orgCellsFromRows(rows), nil
}

func buildCellQuery(minDate, maxDate time.Time, industryID string, geo geoCell, indProportion, geoProportion float64) (string, map[string]any) {
	params := map[string]any{
		"minDate":       minDate.Format("2006-01-02"),
		"maxDate":       maxDate.Format("2006-01-02"),
		"industryId":    industryID,
		"countryCode":   geo.CountryCode,
		"admin1Code":    geo.Admin1Code,
		"indProportion": indProportion,
		"geoProportion": geoProportion,
	}

	query := `
		MATCH (o:Organization)
		WHERE o.internalMergedSameAsHighToUri IS NULL`
	if industryID != "" {
		// the industry edge must carry a meaningful share of the org's
		// total primary-cluster weight
		query += `
		MATCH (o)-[ic:industryClusterPrimary]->(c:IndustryCluster)
		WHERE toString(c.topicId) = $industryId
		WITH o, ic
		MATCH (o)-[allIc:industryClusterPrimary]->(:IndustryCluster)
		WITH o, ic, sum(coalesce(allIc.weight, 1)) AS totalIcWeight
		WHERE coalesce(ic.weight, 1) > 1
		  AND toFloat(coalesce(ic.weight, 1)) / totalIcWeight >= $indProportion`
	}
	if geo.CountryCode != "" {
		query += `
		MATCH (o)-[gl:basedInHighGeoNamesLocation]->(loc:GeoNamesLocation)
		WHERE loc.countryCode = $countryCode`
		if geo.Admin1Code != "" {
			query += ` AND loc.admin1Code = $admin1Code`
		}
		query += `
		WITH o, gl
		MATCH (o)-[allGl:basedInHighGeoNamesLocation]->(:GeoNamesLocation)
		WITH o, gl, sum(coalesce(allGl.weight, 1)) AS totalGlWeight
		WHERE coalesce(gl.weight, 1) > 1
		  AND toFloat(coalesce(gl.weight, 1)) / totalGlWeight >= $geoProportion`
	}
	query += `
		WITH DISTINCT o
		CALL {
			WITH o
			MATCH (o)-[rel]-(act)-[:documentSource]->(art:Article)
			WHERE any(l IN labels(act) WHERE l ENDS WITH 'Activity')
			  AND act.internalMergedActivityWithSimilarRelationshipsToUri IS NULL
			  AND type(rel) <> 'participant'
			  AND art.datePublished >= datetime($minDate)
			  AND art.datePublished <= datetime($maxDate) + duration('P1D')
			RETURN act.uri AS activityUri, art.uri AS articleUri,
			       toString(art.datePublished) AS datePublished
			UNION
			WITH o
			MATCH (o)-[:hasRole]->(:Role)<-[:role]-(act:RoleActivity)-[:documentSource]->(art:Article)
			WHERE act.internalMergedActivityWithSimilarRelationshipsToUri IS NULL
			  AND art.datePublished >= datetime($minDate)
			  AND art.datePublished <= datetime($maxDate) + duration('P1D')
			RETURN act.uri AS activityUri, art.uri AS articleUri,
			       toString(art.datePublished) AS datePublished
		}
		WITH o, collect({activityUri: activityUri, articleUri: articleUri, datePublished: datePublished}) AS refs
		WHERE size(refs) > 0
		RETURN o.uri AS orgUri,
		       COUNT { (o)--() } AS degree,
		       o.internalDocId AS docId,
		       refs
		ORDER BY degree DESC, docId ASC, orgUri ASC`

	return query, params
}

func orgCellsFromRows(rows []graphstore.Row) []OrgCell {
	out := make([]OrgCell, 0, len(rows))
	for _, row := range rows {
		cell := OrgCell{}
		cell.OrgURI, _ = row["orgUri"].(string)
		cell.Degree, _ = row["degree"].(int64)
		cell.InternalDocID, _ = row["docId"].(int64)
		if refs, ok := row["refs"].([]any); ok {
			for _, r := range refs {
				m, ok := r.(map[string]any)
				if !ok {
					continue
				}
				ref := ArticleRef{}
				ref.ActivityURI, _ = m["activityUri"].(string)
				ref.ArticleURI, _ = m["articleUri"].(string)
				ref.DatePublished, _ = m["datePublished"].(string)
				cell.Articles = append(cell.Articles, ref)
			}
		}
		sortArticleRefs(cell.Articles)
		out = append(out, cell)
	}
	return out
}

// sortArticleRefs orders a cell's references newest first, with the
// activity uri breaking date ties.
func sortArticleRefs(refs []ArticleRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].DatePublished != refs[j].DatePublished {
			return refs[i].DatePublished > refs[j].DatePublished
		}
		return refs[i].ActivityURI < refs[j].ActivityURI
	})
}
