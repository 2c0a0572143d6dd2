package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/logger"
)

// DocBuilder assembles index documents from the graph. Vectors come from
// the JSON embedding columns written by the materializer, so building
// documents never calls the embedding adapter.
type DocBuilder struct {
	store *graphstore.Store
}

func NewDocBuilder(store *graphstore.Store) *DocBuilder {
	return &DocBuilder{store: store}
}

// SyncAll rebuilds every collection from the current graph state.
func (b *DocBuilder) SyncAll(ctx context.Context, ix *Index) error {
	type family struct {
		collection string
		build      func(context.Context) ([]Document, error)
	}
	for _, fam := range []family{
		{CollectionOrganizations, b.OrganizationDocs},
		{CollectionIndustryClusters, b.IndustryClusterDocs},
		{CollectionAboutUs, b.AboutUsDocs},
		{CollectionIndustrySectorUpdates, b.SectorUpdateDocs},
	} {
		docs, err := fam.build(ctx)
		if err != nil {
			return fmt.Errorf("build %s docs: %w", fam.collection, err)
		}
		if err := ix.Upsert(ctx, fam.collection, docs); err != nil {
			return err
		}
		logger.Info("indexed collection", "collection", fam.collection, "docs", len(docs))
	}
	return nil
}

// OrganizationDocs returns one document per unmerged organization with an
// industry embedding. Regions cover every based-in location, as country
// code and as country-admin1.
func (b *DocBuilder) OrganizationDocs(ctx context.Context) ([]Document, error) {
	rows, err := b.store.Execute(ctx, `
		MATCH (o:Organization)
		WHERE o.internalMergedSameAsHighToUri IS NULL
		  AND o.industry_embedding_json IS NOT NULL
		OPTIONAL MATCH (o)-[:basedInHighGeoNamesLocation]->(loc:GeoNamesLocation)
		WITH o, collect(DISTINCT loc {.countryCode, .admin1Code}) AS locs
		RETURN o.uri AS uri, o.name AS name,
		       o.industry AS text,
		       o.industry_embedding_json AS embedding,
		       locs`, nil)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, ok := docFromRow(row)
		if !ok {
			continue
		}
		if locs, ok := row["locs"].([]any); ok {
			doc.RegionList = regionList(locs)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// IndustryClusterDocs indexes leaf clusters, carrying the union of regions
// of the organizations bound to each cluster.
func (b *DocBuilder) IndustryClusterDocs(ctx context.Context) ([]Document, error) {
	rows, err := b.store.Execute(ctx, `
		MATCH (c:IndustryCluster)
		WHERE c.internalMergedSameAsHighToUri IS NULL
		  AND c.representative_doc_embedding_json IS NOT NULL
		  AND NOT (c)-[:childLeft|childRight]->(:IndustryCluster)
		OPTIONAL MATCH (c)<-[:industryClusterPrimary]-(o:Organization)-[:basedInHighGeoNamesLocation]->(loc:GeoNamesLocation)
		WITH c, collect(DISTINCT loc {.countryCode, .admin1Code}) AS locs
		RETURN c.uri AS uri, c.representativeDoc AS name,
		       toString(c.topicId) AS topicId,
		       c.representative_doc_embedding_json AS embedding,
		       locs`, nil)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, ok := docFromRow(row)
		if !ok {
			continue
		}
		doc.TopicID, _ = row["topicId"].(string)
		if locs, ok := row["locs"].([]any); ok {
			doc.RegionList = regionList(locs)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// AboutUsDocs carries the parent org uris so hits can widen the org set.
func (b *DocBuilder) AboutUsDocs(ctx context.Context) ([]Document, error) {
	rows, err := b.store.Execute(ctx, `
		MATCH (a:AboutUs)
		WHERE a.about_us_embedding_json IS NOT NULL
		OPTIONAL MATCH (a)--(o:Organization)
		WHERE o.internalMergedSameAsHighToUri IS NULL
		WITH a, collect(DISTINCT coalesce(o.internalMergedSameAsHighToUri, o.uri)) AS orgUris
		OPTIONAL MATCH (a)--(:Organization)-[:basedInHighGeoNamesLocation]->(loc:GeoNamesLocation)
		WITH a, orgUris, collect(DISTINCT loc {.countryCode, .admin1Code}) AS locs
		RETURN a.uri AS uri, a.name AS name,
		       a.about_us_embedding_json AS embedding,
		       orgUris, locs`, nil)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, ok := docFromRow(row)
		if !ok {
			continue
		}
		if orgUris, ok := row["orgUris"].([]any); ok {
			for _, item := range orgUris {
				if s, ok := item.(string); ok && s != "" {
					doc.RelatedOrgURIs = append(doc.RelatedOrgURIs, s)
				}
			}
		}
		if locs, ok := row["locs"].([]any); ok {
			doc.RegionList = regionList(locs)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SectorUpdateDocs indexes sector updates as standalone pseudo-activities.
func (b *DocBuilder) SectorUpdateDocs(ctx context.Context) ([]Document, error) {
	rows, err := b.store.Execute(ctx, `
		MATCH (u:IndustrySectorUpdate)
		WHERE u.sector_update_embedding_json IS NOT NULL
		OPTIONAL MATCH (u)-[:documentSource]->(art:Article)
		WITH u, max(toString(art.datePublished)) AS datePublished
		RETURN u.uri AS uri, u.industry AS name,
		       u.sector_update_embedding_json AS embedding,
		       datePublished`, nil)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, ok := docFromRow(row)
		if !ok {
			continue
		}
		doc.DatePublished, _ = row["datePublished"].(string)
		docs = append(docs, doc)
	}
	return docs, nil
}

func docFromRow(row graphstore.Row) (Document, bool) {
	doc := Document{}
	doc.URI, _ = row["uri"].(string)
	if doc.URI == "" {
		return doc, false
	}
	doc.Name = firstString(row["name"])
	doc.Text = firstString(row["text"])

	encoded, _ := row["embedding"].(string)
	if encoded == "" {
		return doc, false
	}
	if err := json.Unmarshal([]byte(encoded), &doc.Vector); err != nil {
		logger.Warn("skipping document with bad embedding json", "uri", doc.URI, "error", err)
		return doc, false
	}
	return doc, true
}

// regionList converts location rows into cc and cc-adm1 region tags.
func regionList(locs []any) []string {
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
	for _, item := range locs {
		loc, ok := item.(map[string]any)
		if !ok {
			continue
		}
		cc, _ := loc["countryCode"].(string)
		if cc == "" {
			continue
		}
		add(cc)
		if adm1, _ := loc["admin1Code"].(string); adm1 != "" {
			add(cc + "-" + adm1)
		}
	}
	return out
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
