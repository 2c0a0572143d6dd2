// Package search maintains the vector/keyword index collections and runs the
// hybrid semantic search that fans out across them.
package search

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/1145-am/orggraph/pkg/logger"
)

// Collection names, one per embedded entity family.
const (
	CollectionOrganizations         = "Organizations"
	CollectionIndustryClusters      = "IndustryClusters"
	CollectionAboutUs               = "AboutUs"
	CollectionIndustrySectorUpdates = "IndustrySectorUpdates"
)

// Collections lists every collection the index manages.
var Collections = []string{
	CollectionOrganizations,
	CollectionIndustryClusters,
	CollectionAboutUs,
	CollectionIndustrySectorUpdates,
}

// Document is one indexable row. RegionList carries country codes and
// country-admin1 codes so region predicates can be applied server-side.
type Document struct {
	URI            string
	Name           string
	Text           string
	TopicID        string
	RegionList     []string
	RelatedOrgURIs []string
	DatePublished  string
	Vector         []float32
}

// Hit is one search result with its vector distance.
type Hit struct {
	URI            string
	Collection     string
	Name           string
	TopicID        string
	RelatedOrgURIs []string
	DatePublished  string
	Distance       float64
}

// Index wraps the vector store client.
type Index struct {
	client *weaviate.Client
}

// NewIndex connects to the vector store at rawURL (scheme://host[:port]).
func NewIndex(rawURL, apiKey string) (*Index, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse index url: %w", err)
	}
	cfg := weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	}
	if apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: apiKey}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create index client: %w", err)
	}
	return &Index{client: client}, nil
}

func NewIndexFromClient(client *weaviate.Client) *Index {
	return &Index{client: client}
}

// RecreateCollection drops and recreates one collection. Vectors are
// supplied by the caller, never computed index-side.
func (ix *Index) RecreateCollection(ctx context.Context, name string) error {
	exists, err := ix.client.Schema().ClassExistenceChecker().WithClassName(name).Do(ctx)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if exists {
		if err := ix.client.Schema().ClassDeleter().WithClassName(name).Do(ctx); err != nil {
			return fmt.Errorf("delete collection %s: %w", name, err)
		}
	}
	class := &models.Class{
		Class:      name,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "uri", DataType: []string{"text"}},
			{Name: "name", DataType: []string{"text"}},
			{Name: "text", DataType: []string{"text"}},
			{Name: "topic_id", DataType: []string{"text"}},
			{Name: "region_list", DataType: []string{"text[]"}},
			{Name: "related_org_uris", DataType: []string{"text[]"}},
			{Name: "date_published", DataType: []string{"text"}},
		},
	}
	if err := ix.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// EnsureCollections creates any missing collection without touching
// existing ones.
func (ix *Index) EnsureCollections(ctx context.Context) error {
	for _, name := range Collections {
		exists, err := ix.client.Schema().ClassExistenceChecker().WithClassName(name).Do(ctx)
		if err != nil {
			return fmt.Errorf("check collection %s: %w", name, err)
		}
		if !exists {
			if err := ix.RecreateCollection(ctx, name); err != nil {
				return err
			}
		}
	}
	return nil
}

const upsertBatchSize = 100

// Upsert writes documents into a collection in batches. Object ids derive
// from the document URI so re-imports overwrite in place.
func (ix *Index) Upsert(ctx context.Context, collection string, docs []Document) error {
	batch := ix.client.Batch().ObjectsBatcher()
	pending := 0
	flush := func() error {
		resp, err := batch.Do(ctx)
		if err != nil {
			return fmt.Errorf("upsert batch into %s: %w", collection, err)
		}
		var failed []string
		for _, obj := range resp {
			if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
				failed = append(failed, obj.Result.Errors.Error[0].Message)
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("upsert into %s: %d rows failed: %s", collection, len(failed), failed[0])
		}
		batch = ix.client.Batch().ObjectsBatcher()
		pending = 0
		return nil
	}

	for _, doc := range docs {
		batch.WithObjects(&models.Object{
			Class: collection,
			ID:    uuidFromURI(doc.URI),
			Properties: map[string]any{
				"uri":              doc.URI,
				"name":             doc.Name,
				"text":             doc.Text,
				"topic_id":         doc.TopicID,
				"region_list":      doc.RegionList,
				"related_org_uris": doc.RelatedOrgURIs,
				"date_published":   doc.DatePublished,
			},
			Vector: doc.Vector,
		})
		pending++
		if pending >= upsertBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if pending > 0 {
		return flush()
	}
	return nil
}

// Remove deletes the objects for the given URIs from every collection.
func (ix *Index) Remove(ctx context.Context, uris []string) error {
	for _, collection := range Collections {
		for _, uri := range uris {
			err := ix.client.Data().Deleter().
				WithClassName(collection).
				WithID(string(uuidFromURI(uri))).
				Do(ctx)
			if err != nil {
				// missing object is fine; anything else is logged and skipped
				logger.Debug("index delete", "collection", collection, "uri", uri, "error", err)
			}
		}
	}
	return nil
}

const hitFields = "uri name topic_id related_org_uris date_published _additional { distance id }"

// VectorSearch runs a near-vector query against one collection, optionally
// constrained to documents whose region list intersects regions.
func (ix *Index) VectorSearch(ctx context.Context, collection string, vector []float32, regions []string, limit int) ([]Hit, error) {
	builder := ix.client.GraphQL().Get().
		WithClassName(collection).
		WithFields(graphql.Field{Name: hitFields}).
		WithNearVector(ix.client.GraphQL().NearVectorArgBuilder().WithVector(vector)).
		WithLimit(limit)
	if len(regions) > 0 {
		builder = builder.WithWhere(filters.Where().
			WithPath([]string{"region_list"}).
			WithOperator(filters.ContainsAny).
			WithValueText(regions...))
	}
	result, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("vector search in %s: %w", collection, err)
	}
	return parseHits(result, collection)
}

// KeywordSearch runs a BM25 query against one collection.
func (ix *Index) KeywordSearch(ctx context.Context, collection, query string, limit int) ([]Hit, error) {
	result, err := ix.client.GraphQL().Get().
		WithClassName(collection).
		WithFields(graphql.Field{Name: hitFields}).
		WithBM25(ix.client.GraphQL().Bm25ArgBuilder().WithQuery(query)).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("keyword search in %s: %w", collection, err)
	}
	return parseHits(result, collection)
}

func parseHits(result *models.GraphQLResponse, collection string) ([]Hit, error) {
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search in %s: %s", collection, result.Errors[0].Message)
	}
	if result.Data == nil {
		return nil, nil
	}
	getMap, ok := result.Data["Get"].(map[string]any)
	if !ok {
		return nil, nil
	}
	rows, ok := getMap[collection].([]any)
	if !ok {
		return nil, nil
	}

	hits := make([]Hit, 0, len(rows))
	for _, r := range rows {
		row, ok := r.(map[string]any)
		if !ok {
			continue
		}
		hit := Hit{Collection: collection}
		hit.URI, _ = row["uri"].(string)
		hit.Name, _ = row["name"].(string)
		hit.TopicID, _ = row["topic_id"].(string)
		hit.DatePublished, _ = row["date_published"].(string)
		if related, ok := row["related_org_uris"].([]any); ok {
			for _, item := range related {
				if s, ok := item.(string); ok {
					hit.RelatedOrgURIs = append(hit.RelatedOrgURIs, s)
				}
			}
		}
		if additional, ok := row["_additional"].(map[string]any); ok {
			hit.Distance, _ = additional["distance"].(float64)
		}
		if hit.URI == "" {
			continue
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// uuidFromURI derives a stable UUID-shaped id from a document URI so that
// repeated upserts of the same entity replace the previous object.
func uuidFromURI(uri string) strfmt.UUID {
	sum := sha1.Sum([]byte(uri))
	hexed := fmt.Sprintf("%x", sum[:16])
	return strfmt.UUID(strings.Join([]string{
		hexed[0:8], hexed[8:12], hexed[12:16], hexed[16:20], hexed[20:32],
	}, "-"))
}
