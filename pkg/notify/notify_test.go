package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/1145-am/orggraph/pkg/precompute"
	"github.com/1145-am/orggraph/pkg/query"
)

func TestMinDateFor(t *testing.T) {
	maxDate := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name         string
		lastNotified time.Time
		windowDays   int
		want         string
	}{
		{"never notified uses full window", time.Time{}, 7, "2026-08-25"},
		{"recent watermark wins", time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), 7, "2026-08-29"},
		{"stale watermark clipped to window", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), 7, "2026-08-25"},
		{"wide window", time.Time{}, 30, "2026-08-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinDateFor(tt.lastNotified, maxDate, tt.windowDays)
			if got.Format("2006-01-02") != tt.want {
				t.Errorf("MinDateFor() = %s, want %s", got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

func TestSplitRegion(t *testing.T) {
	if cc, adm1 := splitRegion("US-CA"); cc != "US" || adm1 != "CA" {
		t.Errorf("got %q %q", cc, adm1)
	}
	if cc, adm1 := splitRegion("GB"); cc != "GB" || adm1 != "" {
		t.Errorf("got %q %q", cc, adm1)
	}
	if cc, adm1 := splitRegion(""); cc != "" || adm1 != "" {
		t.Errorf("got %q %q", cc, adm1)
	}
}

func TestCellActivities(t *testing.T) {
	cells := []precompute.OrgCell{
		{
			OrgURI: "https://x/acme",
			Articles: []precompute.ArticleRef{
				{ActivityURI: "https://x/act1", ArticleURI: "https://x/art1", DatePublished: "2026-08-20T00:00:00Z"},
				{ActivityURI: "https://x/act2", ArticleURI: "https://x/art2", DatePublished: "2026-08-19T00:00:00Z"},
			},
		},
		{
			OrgURI: "https://x/other",
			Articles: []precompute.ArticleRef{
				{ActivityURI: "https://x/act1", ArticleURI: "https://x/art1", DatePublished: "2026-08-20T00:00:00Z"},
			},
		},
	}
	got := cellActivities(cells)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (duplicate activity collapsed)", len(got))
	}
	if got[0].OrgURIs[0] != "https://x/acme" {
		t.Errorf("first occurrence attribution lost: %+v", got[0])
	}
}

func TestRenderDigest(t *testing.T) {
	body, err := renderDigest(digestData{
		MinDate: "25 Aug 2026",
		MaxDate: "1 Sep 2026",
		Sections: []digestSection{
			{
				Title: "Acme Corp",
				Activities: []query.Activity{
					{
						ActivityURI:   "https://x/act1",
						ActivityClass: "CorporateFinanceActivity",
						DatePublished: "2026-08-28T00:00:00Z",
						Headline:      "Acme acquires Widgets Inc",
						Source:        "Reuters",
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("renderDigest: %v", err)
	}
	for _, want := range []string{
		"25 Aug 2026 to 1 Sep 2026",
		"## Acme Corp",
		"[CorporateFinanceActivity]",
		"Acme acquires Widgets Inc",
		"(Reuters)",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("digest missing %q:\n%s", want, body)
		}
	}
}

type fakeActivitySource struct {
	liveCalls []struct {
		MinDate, MaxDate                  time.Time
		IndustryID, CountryCode, Admin1Code string
	}
	cells []precompute.OrgCell
}

func (f *fakeActivitySource) ActivitiesByOrgURIs(_ context.Context, uris []string, minDate, maxDate time.Time, _ bool, _ int) ([]query.Activity, error) {
	return nil, nil
}

func (f *fakeActivitySource) ActivitiesByIndustryGeoLive(_ context.Context, minDate, maxDate time.Time, industryID, countryCode, admin1Code string) ([]precompute.OrgCell, error) {
	f.liveCalls = append(f.liveCalls, struct {
		MinDate, MaxDate                  time.Time
		IndustryID, CountryCode, Admin1Code string
	}{minDate, maxDate, industryID, countryCode, admin1Code})
	return f.cells, nil
}

func (f *fakeActivitySource) BestNameFor(context.Context, string) (string, error) {
	return "", nil
}

type fakeWatermarks struct {
	last     time.Time
	recorded []time.Time
}

func (f *fakeWatermarks) LastMaxDate(context.Context, string) (time.Time, error) {
	return f.last, nil
}

func (f *fakeWatermarks) Record(_ context.Context, _ string, maxDate time.Time, _ int) error {
	f.recorded = append(f.recorded, maxDate)
	return nil
}

// An industry watch whose previous delivery falls inside the digest window
// must still produce a section: the cell query runs live from the watermark
// rather than reading a snapshot keyed on the canonical windows.
func TestBuildForUser_IndustryWatchResumesFromWatermark(t *testing.T) {
	maxDate := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	lastNotified := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	source := &fakeActivitySource{cells: []precompute.OrgCell{
		{
			OrgURI: "https://x/acme",
			Articles: []precompute.ArticleRef{
				{ActivityURI: "https://x/act1", ArticleURI: "https://x/art1", DatePublished: "2026-08-31"},
			},
		},
	}}
	marks := &fakeWatermarks{last: lastNotified}

	b := NewBuilder(source, marks, 7)
	digest, err := b.BuildForUser(context.Background(), "user1",
		[]Watch{{IndustryTopicID: "42", Region: "US-CA"}}, maxDate)
	if err != nil {
		t.Fatalf("BuildForUser() error = %v", err)
	}
	if digest == nil {
		t.Fatal("expected a digest, got nil")
	}
	if digest.NumActivities != 1 {
		t.Errorf("NumActivities = %d, want 1", digest.NumActivities)
	}

	if len(source.liveCalls) != 1 {
		t.Fatalf("expected 1 live cell query, got %d", len(source.liveCalls))
	}
	call := source.liveCalls[0]
	if !call.MinDate.Equal(lastNotified) {
		t.Errorf("live query minDate = %s, want watermark %s",
			call.MinDate.Format("2006-01-02"), lastNotified.Format("2006-01-02"))
	}
	if !call.MaxDate.Equal(maxDate) {
		t.Errorf("live query maxDate = %s, want %s",
			call.MaxDate.Format("2006-01-02"), maxDate.Format("2006-01-02"))
	}
	if call.IndustryID != "42" || call.CountryCode != "US" || call.Admin1Code != "CA" {
		t.Errorf("live query axes = %q %q %q", call.IndustryID, call.CountryCode, call.Admin1Code)
	}

	if len(marks.recorded) != 1 || !marks.recorded[0].Equal(maxDate) {
		t.Errorf("watermark not advanced to %s: %v", maxDate.Format("2006-01-02"), marks.recorded)
	}
}
