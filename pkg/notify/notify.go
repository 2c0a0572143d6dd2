// Package notify builds activity digests for watchers: for each user with
// watched organizations or industry/region pairs, diff recent activities
// against the last notification watermark and render a digest.
package notify

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/precompute"
	"github.com/1145-am/orggraph/pkg/query"
)

// Watch is one thing a user follows. Exactly one of OrgURI or
// IndustryTopicID must be set; Region is optional and only meaningful with
// an industry watch.
type Watch struct {
	OrgURI          string
	IndustryTopicID string
	Region          string
}

// WatermarkStore reads and writes the per-user notification watermark.
type WatermarkStore interface {
	LastMaxDate(ctx context.Context, user string) (time.Time, error)
	Record(ctx context.Context, user string, maxDate time.Time, numActivities int) error
}

// Digest is one rendered notification.
type Digest struct {
	User          string
	MinDate       time.Time
	MaxDate       time.Time
	NumActivities int
	Body          string
}

// ActivitySource is the slice of the read engine the digest builder uses.
// Industry watches go through the live cell query because the digest window
// is anchored on the user's watermark, not on the snapshot's canonical
// windows.
type ActivitySource interface {
	ActivitiesByOrgURIs(ctx context.Context, uris []string, minDate, maxDate time.Time, combineSameAsNameOnly bool, limit int) ([]query.Activity, error)
	ActivitiesByIndustryGeoLive(ctx context.Context, minDate, maxDate time.Time, industryID, countryCode, admin1Code string) ([]precompute.OrgCell, error)
	BestNameFor(ctx context.Context, uri string) (string, error)
}

// Builder assembles digests from the read-side query engine.
type Builder struct {
	engine     ActivitySource
	watermarks WatermarkStore
	windowDays int
}

func NewBuilder(engine ActivitySource, watermarks WatermarkStore, windowDays int) *Builder {
	if windowDays <= 0 {
		windowDays = 7
	}
	return &Builder{engine: engine, watermarks: watermarks, windowDays: windowDays}
}

// MinDateFor bounds the digest window: never before the previous watermark,
// never wider than the configured window.
func MinDateFor(lastNotified, maxDate time.Time, windowDays int) time.Time {
	floor := maxDate.AddDate(0, 0, -windowDays)
	if lastNotified.After(floor) {
		return lastNotified
	}
	return floor
}

// BuildForUser fetches the user's fresh activities, renders the digest and
// advances the watermark. A digest with no activities returns nil and
// leaves the watermark untouched.
func (b *Builder) BuildForUser(ctx context.Context, user string, watches []Watch, maxDate time.Time) (*Digest, error) {
	if len(watches) == 0 {
		return nil, nil
	}
	lastNotified, err := b.watermarks.LastMaxDate(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("read watermark for %s: %w", user, err)
	}
	minDate := MinDateFor(lastNotified, maxDate, b.windowDays)

	var sections []digestSection
	total := 0
	for _, watch := range watches {
		section, err := b.buildSection(ctx, watch, minDate, maxDate)
		if err != nil {
			return nil, err
		}
		if section == nil || len(section.Activities) == 0 {
			continue
		}
		sections = append(sections, *section)
		total += len(section.Activities)
	}
	if total == 0 {
		return nil, nil
	}

	body, err := renderDigest(digestData{
		MinDate:  minDate.Format("2 Jan 2006"),
		MaxDate:  maxDate.Format("2 Jan 2006"),
		Sections: sections,
	})
	if err != nil {
		return nil, err
	}

	if err := b.watermarks.Record(ctx, user, maxDate, total); err != nil {
		return nil, fmt.Errorf("record watermark for %s: %w", user, err)
	}
	logger.Info("notification built", "user", user, "activities", total)
	return &Digest{
		User:          user,
		MinDate:       minDate,
		MaxDate:       maxDate,
		NumActivities: total,
		Body:          body,
	}, nil
}

type digestSection struct {
	Title      string
	Activities []query.Activity
}

func (b *Builder) buildSection(ctx context.Context, watch Watch, minDate, maxDate time.Time) (*digestSection, error) {
	switch {
	case watch.OrgURI != "":
		activities, err := b.engine.ActivitiesByOrgURIs(ctx, []string{watch.OrgURI}, minDate, maxDate, true, 0)
		if err != nil {
			return nil, fmt.Errorf("activities for org %s: %w", watch.OrgURI, err)
		}
		name, err := b.engine.BestNameFor(ctx, watch.OrgURI)
		if err != nil {
			name = watch.OrgURI
		}
		return &digestSection{Title: name, Activities: activities}, nil
	case watch.IndustryTopicID != "":
		cc, adm1 := splitRegion(watch.Region)
		cells, err := b.engine.ActivitiesByIndustryGeoLive(ctx, minDate, maxDate, watch.IndustryTopicID, cc, adm1)
		if err != nil {
			return nil, fmt.Errorf("activities for industry %s region %q: %w", watch.IndustryTopicID, watch.Region, err)
		}
		title := "Industry " + watch.IndustryTopicID
		if watch.Region != "" {
			title += " in " + watch.Region
		}
		return &digestSection{Title: title, Activities: cellActivities(cells)}, nil
	default:
		return nil, nil
	}
}

func splitRegion(region string) (countryCode, admin1Code string) {
	if region == "" {
		return "", ""
	}
	cc, adm1, _ := strings.Cut(region, "-")
	return cc, adm1
}

// cellActivities flattens a precomputed cell into feed rows, deduplicating
// by activity URI.
func cellActivities(cells []precompute.OrgCell) []query.Activity {
	seen := map[string]struct{}{}
	var out []query.Activity
	for _, cell := range cells {
		for _, ref := range cell.Articles {
			if _, dup := seen[ref.ActivityURI]; dup {
				continue
			}
			seen[ref.ActivityURI] = struct{}{}
			out = append(out, query.Activity{
				ActivityURI:   ref.ActivityURI,
				ArticleURI:    ref.ArticleURI,
				DatePublished: ref.DatePublished,
				OrgURIs:       []string{cell.OrgURI},
			})
		}
	}
	return out
}

var digestTemplate = template.Must(template.New("digest").Parse(
	`Corporate activity update {{.MinDate}} to {{.MaxDate}}
{{range .Sections}}
## {{.Title}}
{{range .Activities}}- {{.DatePublished}} {{with .ActivityClass}}[{{.}}] {{end}}{{with .Headline}}{{.}}{{else}}{{.ActivityURI}}{{end}}{{with .Source}} ({{.}}){{end}}
{{end}}{{end}}`))

type digestData struct {
	MinDate  string
	MaxDate  string
	Sections []digestSection
}

func renderDigest(data digestData) (string, error) {
	var b strings.Builder
	if err := digestTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return b.String(), nil
}
