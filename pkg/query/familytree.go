package query

import (
	"context"
	"sort"
	"time"

	"github.com/1145-am/orggraph/pkg/graphstore"
)

// familyTreeRels is the full relationship allowlist for tree expansion.
var familyTreeRels = []string{"buyer", "vendor", "investor"}

// FamilyTreeEdge is one parent/child/sibling link found by the traversal.
type FamilyTreeEdge struct {
	OtherOrgURI     string `json:"other_org_uri"`
	OtherOrgName    string `json:"other_org_name"`
	CentralOrgURI   string `json:"central_org_uri"`
	ActivityURI     string `json:"activity_uri"`
	ArticleURI      string `json:"article_uri"`
	DatePublished   string `json:"date_published"`
	RelType         string `json:"rel_type"`
	Source          string `json:"source,omitempty"`
	DocumentExtract string `json:"document_extract,omitempty"`
}

// FamilyTree groups a traversal's results by direction.
type FamilyTree struct {
	Children []FamilyTreeEdge `json:"children"`
	Parents  []FamilyTreeEdge `json:"parents"`
	Siblings []FamilyTreeEdge `json:"siblings"`
}

// FamilyTreeParams configures one traversal.
type FamilyTreeParams struct {
	RootURI string
	// Rels restricts the corporate-finance edge types; empty means all of
	// buyer, vendor, investor.
	Rels []string
	// Sources is the publisher allowlist, resolved via ResolveSources.
	Sources []string
	MinDate time.Time
	// CombineSameAsNameOnly widens the root through the name-only
	// equivalence before each expansion.
	CombineSameAsNameOnly bool
}

// FamilyTree traverses acquisition/investment/vendor links around the root:
// children the root acted on, parents that acted on the root, and siblings
// reached through shared parents.
func (e *Engine) FamilyTree(ctx context.Context, p FamilyTreeParams) (*FamilyTree, error) {
	rels := p.Rels
	if len(rels) == 0 {
		rels = familyTreeRels
	}
	roots := []string{p.RootURI}
	if p.CombineSameAsNameOnly {
		widened, err := e.expandSameAsNameOnly(ctx, roots)
		if err != nil {
			return nil, err
		}
		roots = widened
	}

	tree := &FamilyTree{}
	children, err := e.familyTreeExpand(ctx, roots, rels, p.Sources, p.MinDate, false)
	if err != nil {
		return nil, err
	}
	tree.Children = children

	parents, err := e.familyTreeExpand(ctx, roots, rels, p.Sources, p.MinDate, true)
	if err != nil {
		return nil, err
	}
	tree.Parents = parents

	// siblings are the other children of every parent, attributed back to
	// the root; the root itself is excluded
	seenChild := map[string]struct{}{}
	for _, c := range children {
		seenChild[c.OtherOrgURI] = struct{}{}
	}
	rootSet := map[string]struct{}{}
	for _, r := range roots {
		rootSet[r] = struct{}{}
	}
	for _, parent := range parents {
		peers, err := e.familyTreeExpand(ctx, []string{parent.OtherOrgURI}, rels, p.Sources, p.MinDate, false)
		if err != nil {
			return nil, err
		}
		for _, peer := range peers {
			if _, isRoot := rootSet[peer.OtherOrgURI]; isRoot {
				continue
			}
			if _, dup := seenChild[peer.OtherOrgURI]; dup {
				continue
			}
			seenChild[peer.OtherOrgURI] = struct{}{}
			peer.CentralOrgURI = p.RootURI
			tree.Siblings = append(tree.Siblings, peer)
		}
	}

	sortEdges(tree.Children)
	sortEdges(tree.Parents)
	sortEdges(tree.Siblings)
	return tree, nil
}

// familyTreeExpand finds targets of the roots' corporate-finance activities
// (or, inverted, the orgs whose activities target the roots).
func (e *Engine) familyTreeExpand(ctx context.Context, roots, rels, sources []string, minDate time.Time, inverted bool) ([]FamilyTreeEdge, error) {
	pattern := `(root:Organization)-[x]-(act:CorporateFinanceActivity)-[:target]->(other:Organization)`
	if inverted {
		pattern = `(other:Organization)-[x]-(act:CorporateFinanceActivity)-[:target]->(root:Organization)`
	}
	query := `
		MATCH ` + pattern + `
		WHERE root.uri IN $roots
		  AND type(x) IN $rels
		  AND act.internalMergedActivityWithSimilarRelationshipsToUri IS NULL
		  AND other.uri <> root.uri
		MATCH (act)-[ds:documentSource]->(art:Article)
		WHERE art.datePublished >= datetime($minDate)`
	params := map[string]any{
		"roots":   roots,
		"rels":    rels,
		"minDate": minDate.Format("2006-01-02"),
	}
	if len(sources) > 0 {
		query += `
		  AND art.sourceOrganization IN $sources`
		params["sources"] = sources
	}
	query += `
		RETURN DISTINCT coalesce(other.internalMergedSameAsHighToUri, other.uri) AS otherUri,
		       other.name AS otherName,
		       root.uri AS rootUri,
		       act.uri AS activityUri, art.uri AS articleUri,
		       toString(art.datePublished) AS datePublished,
		       type(x) AS relType,
		       art.sourceOrganization AS source,
		       ds.documentExtract AS extract
		ORDER BY datePublished DESC`

	rows, err := e.store.Execute(ctx, query, params)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := make([]FamilyTreeEdge, 0, len(rows))
	for _, row := range rows {
		edge := edgeFromRow(row)
		if edge.OtherOrgURI == "" {
			continue
		}
		if _, dup := seen[edge.OtherOrgURI]; dup {
			continue
		}
		seen[edge.OtherOrgURI] = struct{}{}
		out = append(out, edge)
	}
	return out, nil
}

func edgeFromRow(row graphstore.Row) FamilyTreeEdge {
	edge := FamilyTreeEdge{}
	edge.OtherOrgURI, _ = row["otherUri"].(string)
	edge.OtherOrgName = firstString(row["otherName"])
	edge.CentralOrgURI, _ = row["rootUri"].(string)
	edge.ActivityURI, _ = row["activityUri"].(string)
	edge.ArticleURI, _ = row["articleUri"].(string)
	edge.DatePublished, _ = row["datePublished"].(string)
	edge.RelType, _ = row["relType"].(string)
	edge.Source = firstString(row["source"])
	edge.DocumentExtract = firstString(row["extract"])
	return edge
}

func sortEdges(edges []FamilyTreeEdge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].DatePublished != edges[j].DatePublished {
			return edges[i].DatePublished > edges[j].DatePublished
		}
		return edges[i].ActivityURI < edges[j].ActivityURI
	})
}
