package routes

import (
	"reflect"
	"testing"

	"github.com/1145-am/orggraph/pkg/query"
)

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"US", []string{"US"}},
		{"US, US-CA ,DE", []string{"US", "US-CA", "DE"}},
		{" , ,", nil},
	}
	for _, tt := range tests {
		got := splitCSV(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitCSV(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMergeActivities(t *testing.T) {
	primary := []query.Activity{
		{ActivityURI: "a", DatePublished: "2026-08-01", Headline: "rich row"},
		{ActivityURI: "b", DatePublished: "2026-08-03"},
	}
	secondary := []query.Activity{
		{ActivityURI: "a", DatePublished: "2026-08-01"},
		{ActivityURI: "c", DatePublished: "2026-08-02"},
	}

	got := mergeActivities(primary, secondary, 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 activities, got %d", len(got))
	}
	// Newest first.
	if got[0].ActivityURI != "b" || got[1].ActivityURI != "c" || got[2].ActivityURI != "a" {
		t.Fatalf("unexpected order: %v", got)
	}
	// The primary row wins on duplicates.
	if got[2].Headline != "rich row" {
		t.Fatalf("expected primary row to survive dedupe, got %+v", got[2])
	}
}

func TestMergeActivitiesLimit(t *testing.T) {
	primary := []query.Activity{
		{ActivityURI: "a", DatePublished: "2026-08-01"},
		{ActivityURI: "b", DatePublished: "2026-08-03"},
		{ActivityURI: "c", DatePublished: "2026-08-02"},
	}
	got := mergeActivities(primary, nil, 2)
	if len(got) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(got))
	}
	if got[0].ActivityURI != "b" {
		t.Fatalf("expected newest first, got %v", got)
	}
}
