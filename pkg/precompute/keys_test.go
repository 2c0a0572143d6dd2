package precompute

import (
	"testing"
	"time"
)

func TestCellKey(t *testing.T) {
	min := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	max := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name               string
		industry, cc, adm1 string
		want               string
	}{
		{"all axes", "42", "US", "CA", "orgs_acts_2026-08-02_2026-09-01_42_US_CA"},
		{"country only", "", "GB", "", "orgs_acts_2026-08-02_2026-09-01_None_GB_None"},
		{"industry only", "7", "", "", "orgs_acts_2026-08-02_2026-09-01_7_None_None"},
		{"unconstrained", "", "", "", "orgs_acts_2026-08-02_2026-09-01_None_None_None"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CellKey(min, max, tt.industry, tt.cc, tt.adm1); got != tt.want {
				t.Errorf("CellKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWindowStart(t *testing.T) {
	max := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if got := WindowStart(max, 7); got.Format("2006-01-02") != "2026-08-25" {
		t.Errorf("7d start = %s", got.Format("2006-01-02"))
	}
	if got := WindowStart(max, 90); got.Format("2006-01-02") != "2026-06-03" {
		t.Errorf("90d start = %s", got.Format("2006-01-02"))
	}
}

func TestSumWeightsKey(t *testing.T) {
	got := SumWeightsKey("https://1145.am/db/100/acme", "industryClusterPrimary")
	if got != "sum_weights_https://1145.am/db/100/acme_industryClusterPrimary" {
		t.Errorf("got %q", got)
	}
}

func TestSortArticleRefs(t *testing.T) {
	refs := []ArticleRef{
		{ActivityURI: "https://x/b", DatePublished: "2026-08-01T00:00:00Z"},
		{ActivityURI: "https://x/a", DatePublished: "2026-08-01T00:00:00Z"},
		{ActivityURI: "https://x/c", DatePublished: "2026-08-15T00:00:00Z"},
	}
	sortArticleRefs(refs)
	if refs[0].ActivityURI != "https://x/c" || refs[1].ActivityURI != "https://x/a" || refs[2].ActivityURI != "https://x/b" {
		t.Errorf("order = %v", refs)
	}
}

// A reader anchoring on the snapshot's reference date must derive exactly
// the keys the writer produced, for every canonical window.
func TestCanonicalWindowKeysAlign(t *testing.T) {
	maxDate := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	for _, days := range WindowDays {
		written := CellKey(WindowStart(maxDate, days), maxDate, "42", "US", "CA")
		read := CellKey(maxDate.AddDate(0, 0, -days), maxDate, "42", "US", "CA")
		if written != read {
			t.Errorf("%dd window: writer key %q, reader key %q", days, written, read)
		}
	}
}
