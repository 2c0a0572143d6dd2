package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/logger"
)

// signatureEdge is one (edge type, neighbor URI) tuple in an activity's
// neighborhood signature. Neighbors are the active representatives of the
// connected organizations, plus roles reached over the role chain.
type signatureEdge struct {
	Type string
	URI  string
}

type activityCandidate struct {
	URI           string
	InternalDocID int64
	Signature     map[signatureEdge]struct{}
}

// isSubset reports whether a's signature is contained in b's.
func isSubset(a, b map[signatureEdge]struct{}) bool {
	if len(a) > len(b) {
		return false
	}
	for edge := range a {
		if _, ok := b[edge]; !ok {
			return false
		}
	}
	return true
}

// planActivityMerges decides which activities subsume which, given
// candidates that already share a document source and label set. The
// subset-signature rule applies; equal signatures fall back to lower doc id
// (lexicographically smaller URI on a tie). A node already scheduled as
// subsumed cannot also subsume in the same pass; conflicting pairs are
// skipped and retried in a later pass.
func planActivityMerges(pairs [][2]activityCandidate) map[string]string {
	plan := map[string]string{}
	subsumed := map[string]struct{}{}

	ordered := make([][2]activityCandidate, len(pairs))
	copy(ordered, pairs)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i][0].URI != ordered[j][0].URI {
			return ordered[i][0].URI < ordered[j][0].URI
		}
		return ordered[i][1].URI < ordered[j][1].URI
	})

	for _, pair := range ordered {
		a, b := pair[0], pair[1]

		var loser, winner activityCandidate
		switch {
		case isSubset(a.Signature, b.Signature) && isSubset(b.Signature, a.Signature):
			// equal signatures: lower docId wins, then lower URI
			winner, loser = a, b
			if b.InternalDocID < a.InternalDocID ||
				(b.InternalDocID == a.InternalDocID && b.URI < a.URI) {
				winner, loser = b, a
			}
		case isSubset(b.Signature, a.Signature):
			winner, loser = a, b
		case isSubset(a.Signature, b.Signature):
			winner, loser = b, a
		default:
			continue
		}

		if _, done := plan[loser.URI]; done {
			continue
		}
		// the winner must not itself be scheduled for subsumption
		if _, gone := subsumed[winner.URI]; gone {
			continue
		}
		plan[loser.URI] = winner.URI
		subsumed[loser.URI] = struct{}{}
	}
	return plan
}

// MergeSimilarActivities runs the activity subsumption step until a pass
// yields no new merges, marking each subsumed activity with a pointer to
// its canonical twin.
func MergeSimilarActivities(ctx context.Context, store *graphstore.Store) (int, error) {
	totalMerged := 0
	for pass := 1; ; pass++ {
		pairs, err := fetchActivityPairs(ctx, store)
		if err != nil {
			return totalMerged, err
		}
		plan := planActivityMerges(pairs)
		if len(plan) == 0 {
			break
		}

		rows := make([]map[string]any, 0, len(plan))
		for loser, winner := range plan {
			rows = append(rows, map[string]any{"loser": loser, "winner": winner})
		}
		sort.Slice(rows, func(i, j int) bool {
			return rows[i]["loser"].(string) < rows[j]["loser"].(string)
		})
		if err := store.BatchApply(ctx,
			`UNWIND $rows AS row
			 MATCH (l:Resource {uri: row.loser})
			 SET l.internalMergedActivityWithSimilarRelationshipsToUri = row.winner`,
			rows, applyChunkSize); err != nil {
			return totalMerged, fmt.Errorf("failed to mark subsumed activities: %w", err)
		}
		totalMerged += len(plan)
		logger.Info("[Merge] Activity subsumption pass complete", "pass", pass, "merged", len(plan))
	}
	return totalMerged, nil
}

// fetchActivityPairs finds activity pairs sharing a document source and
// label set where neither side is merged, with each side's neighborhood
// signature resolved to active organization representatives and roles.
func fetchActivityPairs(ctx context.Context, store *graphstore.Store) ([][2]activityCandidate, error) {
	rows, err := store.Execute(ctx,
		`MATCH (a)-[:documentSource]->(art:Article)<-[:documentSource]-(b)
		 WHERE a.uri < b.uri
		   AND labels(a) = labels(b)
		   AND any(l IN labels(a) WHERE l ENDS WITH 'Activity')
		   AND a.internalMergedActivityWithSimilarRelationshipsToUri IS NULL
		   AND b.internalMergedActivityWithSimilarRelationshipsToUri IS NULL
		 RETURN DISTINCT a.uri AS aUri, coalesce(a.internalDocId, 0) AS aDocId,
		                 b.uri AS bUri, coalesce(b.internalDocId, 0) AS bDocId`,
		nil)
	if err != nil {
		return nil, fmt.Errorf("failed to collect activity pairs: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	uriSet := map[string]int64{}
	for _, row := range rows {
		aURI, _ := row["aUri"].(string)
		bURI, _ := row["bUri"].(string)
		aID, _ := row["aDocId"].(int64)
		bID, _ := row["bDocId"].(int64)
		uriSet[aURI] = aID
		uriSet[bURI] = bID
	}

	signatures, err := fetchSignatures(ctx, store, uriSet)
	if err != nil {
		return nil, err
	}

	var out [][2]activityCandidate
	for _, row := range rows {
		aURI, _ := row["aUri"].(string)
		bURI, _ := row["bUri"].(string)
		out = append(out, [2]activityCandidate{
			{URI: aURI, InternalDocID: uriSet[aURI], Signature: signatures[aURI]},
			{URI: bURI, InternalDocID: uriSet[bURI], Signature: signatures[bURI]},
		})
	}
	return out, nil
}

func fetchSignatures(ctx context.Context, store *graphstore.Store, uris map[string]int64) (map[string]map[signatureEdge]struct{}, error) {
	list := make([]string, 0, len(uris))
	for uri := range uris {
		list = append(list, uri)
	}
	sort.Strings(list)

	signatures := make(map[string]map[signatureEdge]struct{}, len(list))
	for _, uri := range list {
		signatures[uri] = map[signatureEdge]struct{}{}
	}

	// organization neighbors, resolved through merge pointers
	orgRows, err := store.Execute(ctx,
		`MATCH (act:Resource)-[r]-(o:Organization)
		 WHERE act.uri IN $uris
		 RETURN act.uri AS actUri, type(r) AS relType,
		        coalesce(o.internalMergedSameAsHighToUri, o.uri) AS orgUri`,
		map[string]any{"uris": list})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch organization signatures: %w", err)
	}
	for _, row := range orgRows {
		actURI, _ := row["actUri"].(string)
		relType, _ := row["relType"].(string)
		orgURI, _ := row["orgUri"].(string)
		signatures[actURI][signatureEdge{Type: relType, URI: orgURI}] = struct{}{}
	}

	// role chain neighbors
	roleRows, err := store.Execute(ctx,
		`MATCH (act:Resource)-[:role]->(role:Role)
		 WHERE act.uri IN $uris
		 RETURN act.uri AS actUri, role.uri AS roleUri`,
		map[string]any{"uris": list})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch role signatures: %w", err)
	}
	for _, row := range roleRows {
		actURI, _ := row["actUri"].(string)
		roleURI, _ := row["roleUri"].(string)
		signatures[actURI][signatureEdge{Type: "role", URI: roleURI}] = struct{}{}
	}

	return signatures, nil
}
