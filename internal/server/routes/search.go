package routes

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/1145-am/orggraph/internal/server/middleware"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/precompute"
	"github.com/1145-am/orggraph/pkg/query"
)

// SearchHandler runs the hybrid semantic search and assembles the matched
// activity feed from direct organization hits, precomputed industry cells
// and sector updates.
func SearchHandler(c echo.Context) error {
	type searchParams struct {
		Query     string  `query:"q" validate:"required"`
		Regions   string  `query:"regions"`
		Threshold float64 `query:"threshold"`
		Days      int     `query:"days" validate:"omitempty,oneof=7 30 90"`
		Limit     int     `query:"limit" validate:"omitempty,min=1,max=500"`
	}

	type sectorUpdate struct {
		URI           string `json:"uri"`
		Name          string `json:"name"`
		DatePublished string `json:"date_published"`
	}

	type searchResponse struct {
		Message          string           `json:"message,omitempty"`
		OrgURIs          []string         `json:"org_uris,omitempty"`
		IndustryTopicIDs []string         `json:"industry_topic_ids,omitempty"`
		Activities       []query.Activity `json:"activities"`
		SectorUpdates    []sectorUpdate   `json:"sector_updates,omitempty"`
	}

	params := new(searchParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, searchResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, searchResponse{Message: "Invalid request params"})
	}
	if params.Days == 0 {
		params.Days = 30
	}
	if params.Limit == 0 {
		params.Limit = 100
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	outcome, err := app.Searcher.Search(ctx, params.Query, splitCSV(params.Regions), params.Threshold)
	if err != nil {
		logger.Error("Search failed", "query", params.Query, "err", err)
		return c.JSON(http.StatusInternalServerError, searchResponse{Message: "Internal server error"})
	}

	maxDate, err := precompute.LatestCacheDate(ctx, app.Cache, app.Graph)
	if err != nil {
		logger.Error("Failed to resolve cache date", "err", err)
		return c.JSON(http.StatusInternalServerError, searchResponse{Message: "Internal server error"})
	}
	minDate := maxDate.AddDate(0, 0, -params.Days)

	var activities []query.Activity
	if len(outcome.OrgURIs) > 0 {
		acts, err := app.Engine.ActivitiesByOrgURIs(ctx, outcome.OrgURIs, minDate, maxDate, true, params.Limit)
		if err != nil {
			logger.Error("Failed to fetch org activities", "err", err)
			return c.JSON(http.StatusInternalServerError, searchResponse{Message: "Internal server error"})
		}
		activities = append(activities, acts...)
	}

	cellActs, err := industryCellActivities(c, outcome.IndustryTopicIDs, outcome.Regions, minDate, maxDate)
	if err != nil {
		logger.Error("Failed to fetch industry activities", "err", err)
		return c.JSON(http.StatusInternalServerError, searchResponse{Message: "Internal server error"})
	}
	activities = mergeActivities(activities, cellActs, params.Limit)

	resp := searchResponse{
		OrgURIs:          outcome.OrgURIs,
		IndustryTopicIDs: outcome.IndustryTopicIDs,
		Activities:       activities,
	}
	for _, hit := range outcome.SectorUpdates {
		resp.SectorUpdates = append(resp.SectorUpdates, sectorUpdate{
			URI:           hit.URI,
			Name:          hit.Name,
			DatePublished: hit.DatePublished,
		})
	}
	if resp.Activities == nil {
		resp.Activities = []query.Activity{}
	}

	return c.JSON(http.StatusOK, resp)
}

// industryCellActivities reads precomputed cells for every matched industry
// crossed with the widened regions. Cells absent from the snapshot are
// skipped rather than treated as errors.
func industryCellActivities(c echo.Context, topicIDs, regions []string, minDate, maxDate time.Time) ([]query.Activity, error) {
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	geos := [][2]string{{"", ""}}
	for _, region := range regions {
		cc, adm1, _ := strings.Cut(region, "-")
		geos = append(geos, [2]string{cc, adm1})
	}

	var out []query.Activity
	for _, topicID := range topicIDs {
		for _, geo := range geos {
			cells, err := app.Engine.ActivitiesByIndustryGeo(ctx, minDate, maxDate, topicID, geo[0], geo[1])
			if err != nil {
				if errors.Is(err, query.ErrCellNotComputed) {
					continue
				}
				return nil, err
			}
			for _, cell := range cells {
				for _, ref := range cell.Articles {
					out = append(out, query.Activity{
						ActivityURI:   ref.ActivityURI,
						ArticleURI:    ref.ArticleURI,
						DatePublished: ref.DatePublished,
						OrgURIs:       []string{cell.OrgURI},
					})
				}
			}
		}
	}
	return out, nil
}

// mergeActivities combines both feeds, dropping duplicate activities and
// keeping the richer row where one exists, newest first.
func mergeActivities(primary, secondary []query.Activity, limit int) []query.Activity {
	seen := make(map[string]bool, len(primary))
	out := make([]query.Activity, 0, len(primary)+len(secondary))
	for _, a := range primary {
		if seen[a.ActivityURI] {
			continue
		}
		seen[a.ActivityURI] = true
		out = append(out, a)
	}
	for _, a := range secondary {
		if seen[a.ActivityURI] {
			continue
		}
		seen[a.ActivityURI] = true
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DatePublished > out[j].DatePublished
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
