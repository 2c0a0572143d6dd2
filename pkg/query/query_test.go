package query

import (
	"reflect"
	"testing"

	"github.com/1145-am/orggraph/pkg/graphstore"
)

func TestResolveSources(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  []string
	}{
		{"empty selects curated list", nil, CoreSources},
		{"core sentinel selects curated list", []string{"core"}, CoreSources},
		{"_all disables filtering", []string{"_all"}, nil},
		{"explicit names pass through", []string{"Reuters", "TechCrunch"}, []string{"Reuters", "TechCrunch"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveSources(tt.names); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveSources(%v) = %v, want %v", tt.names, got, tt.want)
			}
		})
	}
}

func TestFilterByActivityTypes(t *testing.T) {
	activities := []Activity{
		{ActivityURI: "https://x/1", ActivityClass: "FinancialReportingActivity"},
		{ActivityURI: "https://x/2", ActivityClass: "FinancialsActivity"},
		{ActivityURI: "https://x/3", ActivityClass: "MarketingActivity"},
	}
	got := FilterByActivityTypes(activities, []string{"Financial"})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got := FilterByActivityTypes(activities, nil); len(got) != 3 {
		t.Errorf("empty allowlist should keep all, got %d", len(got))
	}
	if got := FilterByActivityTypes(activities, []string{"marketing"}); len(got) != 1 {
		t.Errorf("prefix match is case insensitive, got %d", len(got))
	}
}

func TestFulltextQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme Corp", "Acme Corp"},
		{"AT&T", `AT\&T`},
		{`Yahoo!`, `Yahoo\!`},
		{`a/b (c)`, `a\/b \(c\)`},
	}
	for _, tt := range tests {
		if got := fulltextQuery(tt.in); got != tt.want {
			t.Errorf("fulltextQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestActivitiesFromRows(t *testing.T) {
	rows := []graphstore.Row{
		{
			"activityUri":    "https://x/act1",
			"activityLabels": []any{"Resource", "CorporateFinanceActivity"},
			"datePublished":  "2026-08-20T00:00:00Z",
			"articleUri":     "https://x/art1",
			"headline":       "Acme buys Widgets Inc",
			"source":         "Reuters",
			"extract":        "Acme announced...",
			"orgUris":        []any{"https://x/acme"},
		},
	}
	got := activitiesFromRows(rows)
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	act := got[0]
	if act.ActivityClass != "CorporateFinanceActivity" {
		t.Errorf("class = %q", act.ActivityClass)
	}
	if act.Source != "Reuters" || act.Headline != "Acme buys Widgets Inc" {
		t.Errorf("row mapping: %+v", act)
	}
	if !reflect.DeepEqual(act.OrgURIs, []string{"https://x/acme"}) {
		t.Errorf("org uris = %v", act.OrgURIs)
	}
}

func TestSortEdges(t *testing.T) {
	edges := []FamilyTreeEdge{
		{ActivityURI: "https://x/b", DatePublished: "2026-08-01T00:00:00Z"},
		{ActivityURI: "https://x/a", DatePublished: "2026-08-01T00:00:00Z"},
		{ActivityURI: "https://x/c", DatePublished: "2026-08-10T00:00:00Z"},
	}
	sortEdges(edges)
	if edges[0].ActivityURI != "https://x/c" || edges[1].ActivityURI != "https://x/a" {
		t.Errorf("order = %v", edges)
	}
}
