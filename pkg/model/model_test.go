package model

import (
	"reflect"
	"testing"
	"time"
)

func TestFromRow(t *testing.T) {
	props := map[string]any{
		"uri":                           "https://1145.am/db/123/Acme",
		"internalDocId":                 int64(123),
		"internalId":                    int64(77),
		"internalMergedSameAsHighToUri": "",
		"name":                          []any{"Acme Corp", "ACME"},
	}
	r := FromRow([]string{"Resource", "Organization"}, props)
	if r.URI != "https://1145.am/db/123/Acme" {
		t.Errorf("uri = %q", r.URI)
	}
	if r.InternalDocID != 123 || r.InternalID != 77 {
		t.Errorf("ids = %d/%d", r.InternalDocID, r.InternalID)
	}
	if !reflect.DeepEqual(r.Names, []string{"Acme Corp", "ACME"}) {
		t.Errorf("names = %v", r.Names)
	}
	if !r.HasLabel("Organization") || r.HasLabel("Article") {
		t.Errorf("label check failed: %v", r.Labels)
	}
	if r.IsMerged() {
		t.Errorf("empty merge pointer should not count as merged")
	}
}

func TestArticleDatePublished(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want time.Time
	}{
		{"rfc3339", "2019-01-10T08:30:00Z", time.Date(2019, 1, 10, 8, 30, 0, 0, time.UTC)},
		{"date only", "2019-01-10", time.Date(2019, 1, 10, 0, 0, 0, 0, time.UTC)},
		{"garbage", "not a date", time.Time{}},
		{"absent", nil, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Article{Resource{Attrs: map[string]any{"datePublished": tt.in}}}
			if got := a.DatePublished(); !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActivityClass(t *testing.T) {
	a := Activity{Resource{Labels: []string{"Resource", "CorporateFinanceActivity"}}}
	if got := a.ActivityClass(); got != "CorporateFinanceActivity" {
		t.Errorf("got %q", got)
	}
	plain := Activity{Resource{Labels: []string{"Resource", "Organization"}}}
	if got := plain.ActivityClass(); got != "" {
		t.Errorf("non-activity should yield empty class, got %q", got)
	}
}

func TestMatchesActivityTypePrefix(t *testing.T) {
	tests := []struct {
		name    string
		class   string
		allowed []string
		want    bool
	}{
		{"prefix matches family", "FinancialReportingActivity", []string{"Financial"}, true},
		{"prefix matches sibling family", "FinancialsActivity", []string{"Financial"}, true},
		{"case insensitive", "MarketingActivity", []string{"marketing"}, true},
		{"unknown type", "MarketingActivity", []string{"Bogus"}, false},
		{"empty allowlist admits all", "MarketingActivity", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesActivityTypePrefix(tt.class, tt.allowed); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBestName(t *testing.T) {
	org := Organization{Resource{
		URI:   "https://1145.am/db/1/Jde_Peets",
		Names: []string{"JDE Peets", "Jde Peets"},
	}}
	got := BestName(org, [][]string{{"JDE Peets"}, {"JDE Peet's N.V."}})
	if got != "JDE Peets" {
		t.Errorf("got %q, want modal name", got)
	}
}

func TestBestNameFallsBackToURI(t *testing.T) {
	org := Organization{Resource{URI: "https://1145.am/db/1/Acme"}}
	if got := BestName(org, nil); got != "Acme" {
		t.Errorf("got %q", got)
	}
}

func TestClusterBestName(t *testing.T) {
	cluster := IndustryCluster{Resource{Attrs: map[string]any{
		"representativeDoc": []any{"fintech", "financial technology platforms"},
		"uniqueName":        "fintech_12",
	}}}
	if got := ClusterBestName(cluster); got != "financial technology platforms" {
		t.Errorf("got %q, want longest representative doc", got)
	}

	empty := IndustryCluster{Resource{Attrs: map[string]any{"uniqueName": "fintech_12"}}}
	if got := ClusterBestName(empty); got != "fintech_12" {
		t.Errorf("got %q, want unique name fallback", got)
	}
}

func TestCompositeKey(t *testing.T) {
	a := CompositeKey([]string{"Resource", "AboutUs", "Organization"})
	b := CompositeKey([]string{"Organization", "Resource", "AboutUs"})
	if a != b {
		t.Errorf("key must be order independent: %q vs %q", a, b)
	}
}
