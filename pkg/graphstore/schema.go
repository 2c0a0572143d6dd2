package graphstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/1145-am/orggraph/pkg/logger"
)

const embeddingDimensions = 768

// schemaStatements is applied in order by EnsureSchema. Names are stable so
// repeated runs are no-ops.
var schemaStatements = []string{
	`CREATE CONSTRAINT resource_uri IF NOT EXISTS
	 FOR (n:Resource) REQUIRE n.uri IS UNIQUE`,

	`CREATE INDEX resource_internal_doc_id IF NOT EXISTS
	 FOR (n:Resource) ON (n.internalDocId)`,
	`CREATE INDEX resource_merged_to IF NOT EXISTS
	 FOR (n:Resource) ON (n.internalMergedSameAsHighToUri)`,
	`CREATE INDEX article_date_published IF NOT EXISTS
	 FOR (n:Article) ON (n.datePublished)`,
	`CREATE INDEX geonames_country_admin1 IF NOT EXISTS
	 FOR (n:GeoNamesLocation) ON (n.countryCode, n.admin1Code)`,

	`CREATE FULLTEXT INDEX resource_names IF NOT EXISTS
	 FOR (n:Resource) ON EACH [n.name]`,
	`CREATE FULLTEXT INDEX organization_clean_names IF NOT EXISTS
	 FOR (n:Organization) ON EACH [n.internalCleanName, n.internalCleanShortName]`,

	vectorIndexStatement("industry_cluster_embeddings", "IndustryCluster", "representative_doc_embedding"),
	vectorIndexStatement("organization_industry_embeddings", "Organization", "industry_embedding"),
}

func vectorIndexStatement(name, label, property string) string {
	return fmt.Sprintf(
		"CREATE VECTOR INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.%s) "+
			"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
		name, label, property, embeddingDimensions,
	)
}

// EnsureSchema creates the URI uniqueness constraint plus the b-tree,
// full-text and vector indexes read paths depend on.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.Write(ctx, stmt, nil); err != nil {
			// Older servers reject vector index DDL; survivable, vector
			// search then runs against the external index only.
			if errors.Is(err, ErrSyntax) {
				logger.Warn("[GraphStore] Schema statement rejected", "err", err)
				continue
			}
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	logger.Info("[GraphStore] Schema ensured", "statements", len(schemaStatements))
	return nil
}
