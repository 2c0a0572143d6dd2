package precompute

import (
	"strings"
	"testing"
	"time"

	"github.com/1145-am/orggraph/pkg/graphstore"
)

func TestBuildCellQuery_ArbitraryDates(t *testing.T) {
	// not a canonical snapshot window on purpose: live readers pass
	// whatever range they need
	min := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	max := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	query, params := buildCellQuery(min, max, "42", geoCell{CountryCode: "US", Admin1Code: "CA"}, 0.5, 0.5)

	if got := params["minDate"]; got != "2026-08-30" {
		t.Errorf("minDate param = %v, want 2026-08-30", got)
	}
	if got := params["maxDate"]; got != "2026-09-01" {
		t.Errorf("maxDate param = %v, want 2026-09-01", got)
	}
	if got := params["industryId"]; got != "42" {
		t.Errorf("industryId param = %v", got)
	}
	if got := params["countryCode"]; got != "US" {
		t.Errorf("countryCode param = %v", got)
	}
	if got := params["admin1Code"]; got != "CA" {
		t.Errorf("admin1Code param = %v", got)
	}
	for _, want := range []string{
		"industryClusterPrimary",
		"basedInHighGeoNamesLocation",
		"loc.admin1Code = $admin1Code",
		"datetime($minDate)",
		"datetime($maxDate) + duration('P1D')",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query lacks %q", want)
		}
	}
}

func TestBuildCellQuery_UnconstrainedAxesOmitFilters(t *testing.T) {
	min := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	max := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	query, _ := buildCellQuery(min, max, "", geoCell{}, 0.5, 0.5)

	if strings.Contains(query, "industryClusterPrimary") {
		t.Error("unconstrained query must not filter by industry")
	}
	if strings.Contains(query, "basedInHighGeoNamesLocation]->(loc") {
		t.Error("unconstrained query must not filter by location")
	}
}

func TestOrgCellsFromRows(t *testing.T) {
	rows := []graphstore.Row{
		{
			"orgUri": "https://x/acme",
			"degree": int64(12),
			"docId":  int64(3),
			"refs": []any{
				map[string]any{"activityUri": "https://x/a1", "articleUri": "https://x/art1", "datePublished": "2026-08-01T00:00:00Z"},
				map[string]any{"activityUri": "https://x/a2", "articleUri": "https://x/art2", "datePublished": "2026-08-15T00:00:00Z"},
			},
		},
	}

	cells := orgCellsFromRows(rows)
	if len(cells) != 1 {
		t.Fatalf("expected 1 cell, got %d", len(cells))
	}
	cell := cells[0]
	if cell.OrgURI != "https://x/acme" || cell.Degree != 12 || cell.InternalDocID != 3 {
		t.Errorf("cell = %+v", cell)
	}
	if len(cell.Articles) != 2 || cell.Articles[0].ActivityURI != "https://x/a2" {
		t.Errorf("articles not newest first: %+v", cell.Articles)
	}
}
