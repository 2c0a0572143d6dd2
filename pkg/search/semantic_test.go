package search

import (
	"reflect"
	"testing"
)

func TestThresholdFor(t *testing.T) {
	tests := []struct {
		query string
		want  float64
	}{
		{"fintech", SingleWordThreshold},
		{"  fintech  ", SingleWordThreshold},
		{"cloud computing", MultiWordThreshold},
		{"", SingleWordThreshold},
	}
	for _, tt := range tests {
		if got := ThresholdFor(tt.query); got != tt.want {
			t.Errorf("ThresholdFor(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestWidenRegions(t *testing.T) {
	tests := []struct {
		name    string
		regions []string
		want    []string
	}{
		{
			"admin1 implies country",
			[]string{"US-CA"},
			[]string{"US-CA", "US"},
		},
		{
			"country already present is not duplicated",
			[]string{"US", "US-CA", "US-NY"},
			[]string{"US", "US-CA", "US-NY"},
		},
		{
			"plain countries pass through",
			[]string{"GB", "DE"},
			[]string{"GB", "DE"},
		},
		{
			"empty set",
			nil,
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WidenRegions(tt.regions); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("WidenRegions() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDedupeByURI(t *testing.T) {
	hits := []Hit{
		{URI: "https://x/a", Collection: CollectionOrganizations, Distance: 0.2},
		{URI: "https://x/b", Collection: CollectionAboutUs, Distance: 0.15},
		{URI: "https://x/a", Collection: CollectionAboutUs, Distance: 0.1},
	}
	got := DedupeByURI(hits)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].URI != "https://x/a" || got[0].Distance != 0.1 {
		t.Errorf("min distance not kept: %+v", got[0])
	}
	if got[1].URI != "https://x/b" {
		t.Errorf("order not preserved: %+v", got[1])
	}
}

func TestFilterByDistance(t *testing.T) {
	hits := []Hit{
		{URI: "https://x/a", Distance: 0.1},
		{URI: "https://x/b", Distance: 0.22},
		{URI: "https://x/c", Distance: 0.3},
	}
	got := FilterByDistance(hits, 0.22)
	if len(got) != 2 || got[1].URI != "https://x/b" {
		t.Errorf("got %v", got)
	}
}

func TestClassify(t *testing.T) {
	hits := []Hit{
		{URI: "https://x/org1", Collection: CollectionOrganizations},
		{URI: "https://x/about1", Collection: CollectionAboutUs, RelatedOrgURIs: []string{"https://x/org2", "https://x/org1"}},
		{URI: "https://x/cluster1", Collection: CollectionIndustryClusters, TopicID: "42"},
		{URI: "https://x/update1", Collection: CollectionIndustrySectorUpdates},
	}
	out := classify(hits, []string{"US"})
	if want := []string{"https://x/org1", "https://x/org2"}; !reflect.DeepEqual(out.OrgURIs, want) {
		t.Errorf("OrgURIs = %v, want %v", out.OrgURIs, want)
	}
	if want := []string{"42"}; !reflect.DeepEqual(out.IndustryTopicIDs, want) {
		t.Errorf("IndustryTopicIDs = %v", out.IndustryTopicIDs)
	}
	if len(out.SectorUpdates) != 1 || out.SectorUpdates[0].URI != "https://x/update1" {
		t.Errorf("SectorUpdates = %v", out.SectorUpdates)
	}
}

func TestUUIDFromURI(t *testing.T) {
	a := uuidFromURI("https://1145.am/db/100/acme")
	b := uuidFromURI("https://1145.am/db/100/acme")
	if a != b {
		t.Errorf("not deterministic: %s vs %s", a, b)
	}
	if len(string(a)) != 36 {
		t.Errorf("not uuid shaped: %s", a)
	}
	if a == uuidFromURI("https://1145.am/db/100/other") {
		t.Errorf("collision between distinct uris")
	}
}

func TestRegionList(t *testing.T) {
	locs := []any{
		map[string]any{"countryCode": "US", "admin1Code": "CA"},
		map[string]any{"countryCode": "US", "admin1Code": ""},
		map[string]any{"countryCode": "GB"},
	}
	got := regionList(locs)
	want := []string{"US", "US-CA", "GB"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("regionList = %v, want %v", got, want)
	}
}

func TestMergeKeywordHits(t *testing.T) {
	accepted := []Hit{
		{URI: "https://x/acme", Collection: CollectionOrganizations, Distance: 0.05},
		{URI: "https://x/cluster", Collection: CollectionIndustryClusters, Distance: 0.1},
	}
	keyword := []Hit{
		{URI: "https://x/acme", Collection: CollectionOrganizations},
		{URI: "https://x/acme-gmbh", Collection: CollectionOrganizations},
	}

	got := MergeKeywordHits(accepted, keyword)
	if len(got) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(got))
	}
	// vector hits keep their rank, the new keyword hit goes last
	if got[0].URI != "https://x/acme" || got[1].URI != "https://x/cluster" {
		t.Errorf("vector hit order changed: %v", got)
	}
	if got[2].URI != "https://x/acme-gmbh" {
		t.Errorf("keyword hit not appended: %v", got)
	}

	if got := MergeKeywordHits(nil, keyword); len(got) != 2 {
		t.Errorf("keyword-only merge: expected 2 hits, got %d", len(got))
	}
}
