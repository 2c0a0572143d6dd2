// Package embeddings materializes vector embeddings onto graph nodes that
// need them: industry clusters, organizations, about-us pages and sector
// updates. Each node family has its own source-text rule and batch size.
package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/1145-am/orggraph/internal/util"
	"github.com/1145-am/orggraph/pkg/ai"
	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/logger"
)

// familySpec describes how one node family sources its embedding text.
type familySpec struct {
	Name      string
	Label     string
	Field     string
	BatchSize int
	// SourceProps are fetched alongside uri for BuildText.
	SourceProps []string
	BuildText   func(props map[string]any) string
}

var families = []familySpec{
	{
		Name:        "industry_cluster",
		Label:       "IndustryCluster",
		Field:       "representative_doc_embedding",
		BatchSize:   10,
		SourceProps: []string{"representativeDoc"},
		BuildText:   clusterText,
	},
	{
		Name:        "organization",
		Label:       "Organization",
		Field:       "industry_embedding",
		BatchSize:   100,
		SourceProps: []string{"industry"},
		BuildText:   joinedText("industry", "; "),
	},
	{
		Name:        "about_us",
		Label:       "AboutUs",
		Field:       "about_us_embedding",
		BatchSize:   100,
		SourceProps: []string{"name"},
		BuildText:   joinedText("name", "; "),
	},
	{
		Name:        "industry_sector_update",
		Label:       "IndustrySectorUpdate",
		Field:       "sector_update_embedding",
		BatchSize:   100,
		SourceProps: []string{"industry"},
		BuildText:   joinedText("industry", "; "),
	},
}

// clusterText joins the two shortest representative documents, lowercased
// with the word "industry" removed. Short representatives describe the
// cluster topic more directly than long ones.
func clusterText(props map[string]any) string {
	docs := asStrings(props["representativeDoc"])
	if len(docs) == 0 {
		return ""
	}
	sort.Slice(docs, func(i, j int) bool {
		if len(docs[i]) != len(docs[j]) {
			return len(docs[i]) < len(docs[j])
		}
		return docs[i] < docs[j]
	})
	if len(docs) > 2 {
		docs = docs[:2]
	}
	cleaned := make([]string, 0, len(docs))
	for _, d := range docs {
		d = strings.ToLower(d)
		d = strings.Join(strings.Fields(strings.ReplaceAll(d, "industry", " ")), " ")
		if d != "" {
			cleaned = append(cleaned, d)
		}
	}
	return strings.Join(cleaned, " and ")
}

func joinedText(prop, sep string) func(map[string]any) string {
	return func(props map[string]any) string {
		return strings.Join(asStrings(props[prop]), sep)
	}
}

func asStrings(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Materializer finds nodes missing their family's embedding and fills both
// representations: a JSON string column for export and a native vector
// property for index-backed similarity queries.
type Materializer struct {
	store   *graphstore.Store
	adapter ai.EmbeddingClient
}

func NewMaterializer(store *graphstore.Store, adapter ai.EmbeddingClient) *Materializer {
	return &Materializer{store: store, adapter: adapter}
}

// Run refreshes embeddings for every family, looping per family until no
// unembedded nodes remain. Disabled unless CREATE_NEW_EMBEDDINGS is set.
func (m *Materializer) Run(ctx context.Context) error {
	if !util.GetEnvBool("CREATE_NEW_EMBEDDINGS", false) {
		logger.Info("embedding refresh disabled, skipping")
		return nil
	}
	for _, fam := range families {
		if err := m.runFamily(ctx, fam); err != nil {
			return fmt.Errorf("embedding refresh for %s: %w", fam.Name, err)
		}
	}
	return nil
}

func (m *Materializer) runFamily(ctx context.Context, fam familySpec) error {
	total := 0
	for {
		batch, err := m.fetchUnembedded(ctx, fam)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		if err := m.embedBatch(ctx, fam, batch); err != nil {
			return err
		}
		total += len(batch)
	}
	if total > 0 {
		logger.Info("embedded nodes", "family", fam.Name, "count", total)
	}
	return nil
}

type pendingNode struct {
	URI  string
	Text string
}

// candidateQuery selects nodes of the family that still lack an embedding.
// Nodes whose source properties are all null are skipped outright; embedding
// the empty string would write a meaningless vector and hide the node from
// future runs.
func candidateQuery(fam familySpec) string {
	props := make([]string, len(fam.SourceProps))
	sourced := make([]string, len(fam.SourceProps))
	for i, p := range fam.SourceProps {
		props[i] = fmt.Sprintf("%s: n.%s", p, p)
		sourced[i] = fmt.Sprintf("n.%s IS NOT NULL", p)
	}
	return fmt.Sprintf(`
		MATCH (n:%s)
		WHERE n.%s IS NULL AND n.%s_json IS NULL
		  AND (%s)
		RETURN n.uri AS uri, {%s} AS props
		ORDER BY n.uri
		LIMIT $limit`,
		fam.Label, fam.Field, fam.Field,
		strings.Join(sourced, " OR "), strings.Join(props, ", "))
}

func (m *Materializer) fetchUnembedded(ctx context.Context, fam familySpec) ([]pendingNode, error) {
	rows, err := m.store.Execute(ctx, candidateQuery(fam), map[string]any{"limit": fam.BatchSize})
	if err != nil {
		return nil, err
	}
	out := make([]pendingNode, 0, len(rows))
	for _, row := range rows {
		uri, _ := row["uri"].(string)
		propMap, _ := row["props"].(map[string]any)
		out = append(out, pendingNode{URI: uri, Text: fam.BuildText(propMap)})
	}
	return out, nil
}

func (m *Materializer) embedBatch(ctx context.Context, fam familySpec, batch []pendingNode) error {
	inputs := make([][]byte, len(batch))
	for i, node := range batch {
		inputs[i] = []byte(node.Text)
	}
	vectors, err := m.adapter.GenerateEmbeddings(ctx, inputs)
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("adapter returned %d vectors for %d inputs", len(vectors), len(batch))
	}

	rows := make([]map[string]any, len(batch))
	for i, node := range batch {
		encoded, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("encode embedding for %s: %w", node.URI, err)
		}
		rows[i] = map[string]any{
			"uri":       node.URI,
			"embedding": vectors[i],
			"json":      string(encoded),
		}
	}

	query := fmt.Sprintf(`
		UNWIND $rows AS row
		MATCH (n:%s {uri: row.uri})
		SET n.%s_json = row.json
		WITH n, row
		CALL db.create.setNodeVectorProperty(n, '%s', row.embedding)
		RETURN count(n)`,
		fam.Label, fam.Field, fam.Field)
	_, err = m.store.Write(ctx, query, map[string]any{"rows": rows})
	return err
}
