package embeddings

import (
	"strings"
	"testing"
)

func TestClusterText(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]any
		want  string
	}{
		{
			"two shortest docs joined",
			map[string]any{"representativeDoc": []any{
				"A very long description of the hospitality business sector",
				"Hotels",
				"Resorts Industry",
			}},
			"hotels and resorts",
		},
		{
			"industry token stripped and lowercased",
			map[string]any{"representativeDoc": "Biotech Industry Leaders"},
			"biotech leaders",
		},
		{
			"single doc",
			map[string]any{"representativeDoc": []string{"Fintech"}},
			"fintech",
		},
		{
			"no docs",
			map[string]any{},
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clusterText(tt.props); got != tt.want {
				t.Errorf("clusterText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJoinedText(t *testing.T) {
	build := joinedText("industry", "; ")
	got := build(map[string]any{"industry": []any{"Software", "Cloud Computing"}})
	if want := "Software; Cloud Computing"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := build(map[string]any{}); got != "" {
		t.Errorf("empty props produced %q", got)
	}
}

func TestAsStrings(t *testing.T) {
	if got := asStrings([]any{"a", 3, "b"}); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("mixed slice: %v", got)
	}
	if got := asStrings(""); got != nil {
		t.Errorf("blank string: %v", got)
	}
}

func TestCandidateQuery_SkipsNullSourceNodes(t *testing.T) {
	for _, fam := range families {
		t.Run(fam.Name, func(t *testing.T) {
			query := candidateQuery(fam)
			for _, prop := range fam.SourceProps {
				want := "n." + prop + " IS NOT NULL"
				if !strings.Contains(query, want) {
					t.Errorf("candidate query for %s lacks %q:\n%s", fam.Name, want, query)
				}
			}
			for _, want := range []string{
				"n." + fam.Field + " IS NULL",
				"n." + fam.Field + "_json IS NULL",
				"MATCH (n:" + fam.Label + ")",
			} {
				if !strings.Contains(query, want) {
					t.Errorf("candidate query for %s lacks %q:\n%s", fam.Name, want, query)
				}
			}
		})
	}
}
