package ingest

import (
	"reflect"
	"testing"
)

func TestBuildConnectedComponents(t *testing.T) {
	tests := []struct {
		name  string
		pairs [][2]string
		want  [][]string
	}{
		{
			"single pair",
			[][2]string{{"a", "b"}},
			[][]string{{"a", "b"}},
		},
		{
			"transitive chain",
			[][2]string{{"a", "b"}, {"b", "c"}, {"x", "y"}},
			[][]string{{"a", "b", "c"}, {"x", "y"}},
		},
		{
			"cycle collapses to one component",
			[][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}},
			[][]string{{"a", "b", "c"}},
		},
		{
			"no pairs",
			nil,
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildConnectedComponents(tt.pairs)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChooseMergeTarget(t *testing.T) {
	tests := []struct {
		name       string
		members    []NodeRef
		wantTarget string
		wantOrder  []string
	}{
		{
			"lower doc id wins",
			[]NodeRef{{"https://x/b", 200}, {"https://x/a", 100}},
			"https://x/a",
			[]string{"https://x/b"},
		},
		{
			"equal doc ids fall back to uri order",
			[]NodeRef{{"https://x/b", 100}, {"https://x/a", 100}},
			"https://x/a",
			[]string{"https://x/b"},
		},
		{
			"sources merge in order",
			[]NodeRef{{"https://x/c", 3}, {"https://x/a", 1}, {"https://x/b", 2}},
			"https://x/a",
			[]string{"https://x/b", "https://x/c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, sources := chooseMergeTarget(tt.members)
			if target.URI != tt.wantTarget {
				t.Errorf("target = %q, want %q", target.URI, tt.wantTarget)
			}
			gotOrder := make([]string, len(sources))
			for i, s := range sources {
				gotOrder[i] = s.URI
			}
			if !reflect.DeepEqual(gotOrder, tt.wantOrder) {
				t.Errorf("order = %v, want %v", gotOrder, tt.wantOrder)
			}
		})
	}
}

func sig(edges ...signatureEdge) map[signatureEdge]struct{} {
	m := map[signatureEdge]struct{}{}
	for _, e := range edges {
		m[e] = struct{}{}
	}
	return m
}

func TestPlanActivityMerges(t *testing.T) {
	buyer := signatureEdge{Type: "buyer", URI: "https://x/OrgA"}
	target := signatureEdge{Type: "target", URI: "https://x/OrgB"}
	vendor := signatureEdge{Type: "vendor", URI: "https://x/OrgC"}

	t.Run("subset is subsumed by superset", func(t *testing.T) {
		small := activityCandidate{URI: "https://x/act1", InternalDocID: 5, Signature: sig(buyer)}
		big := activityCandidate{URI: "https://x/act2", InternalDocID: 9, Signature: sig(buyer, target)}
		plan := planActivityMerges([][2]activityCandidate{{small, big}})
		if want := map[string]string{"https://x/act1": "https://x/act2"}; !reflect.DeepEqual(plan, want) {
			t.Errorf("plan = %v, want %v", plan, want)
		}
	})

	t.Run("equal signatures pick lower doc id", func(t *testing.T) {
		a := activityCandidate{URI: "https://x/act1", InternalDocID: 9, Signature: sig(buyer, target)}
		b := activityCandidate{URI: "https://x/act2", InternalDocID: 5, Signature: sig(buyer, target)}
		plan := planActivityMerges([][2]activityCandidate{{a, b}})
		if want := map[string]string{"https://x/act1": "https://x/act2"}; !reflect.DeepEqual(plan, want) {
			t.Errorf("plan = %v, want %v", plan, want)
		}
	})

	t.Run("disjoint signatures never merge", func(t *testing.T) {
		a := activityCandidate{URI: "https://x/act1", InternalDocID: 1, Signature: sig(buyer)}
		b := activityCandidate{URI: "https://x/act2", InternalDocID: 2, Signature: sig(vendor)}
		if plan := planActivityMerges([][2]activityCandidate{{a, b}}); len(plan) != 0 {
			t.Errorf("plan = %v, want empty", plan)
		}
	})

	t.Run("scheduled loser cannot subsume in same pass", func(t *testing.T) {
		a := activityCandidate{URI: "https://x/act1", InternalDocID: 1, Signature: sig(buyer, target, vendor)}
		b := activityCandidate{URI: "https://x/act2", InternalDocID: 2, Signature: sig(buyer, target)}
		c := activityCandidate{URI: "https://x/act3", InternalDocID: 3, Signature: sig(buyer)}
		plan := planActivityMerges([][2]activityCandidate{{a, b}, {b, c}})
		if plan["https://x/act2"] != "https://x/act1" {
			t.Fatalf("plan = %v", plan)
		}
		// b is already subsumed; c must not merge into b this pass
		if winner, ok := plan["https://x/act3"]; ok && winner == "https://x/act2" {
			t.Errorf("loser subsumed into an already-subsumed node: %v", plan)
		}
	})
}

func TestIsSubset(t *testing.T) {
	a := signatureEdge{Type: "buyer", URI: "u1"}
	b := signatureEdge{Type: "target", URI: "u2"}
	if !isSubset(sig(a), sig(a, b)) {
		t.Errorf("subset not detected")
	}
	if isSubset(sig(a, b), sig(a)) {
		t.Errorf("superset wrongly treated as subset")
	}
	if !isSubset(sig(), sig(a)) {
		t.Errorf("empty set is a subset of everything")
	}
}
