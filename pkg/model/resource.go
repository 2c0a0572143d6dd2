package model

import (
	"strings"
	"time"
)

// Resource is the universal node shape returned by the graph store. Every
// entity carries the full label set and the raw attribute map; typed views
// below expose the per-variant fields.
type Resource struct {
	URI                   string
	Labels                []string
	InternalDocID         int64
	InternalID            int64
	MergedSameAsHighToURI string
	Names                 []string
	FoundNames            []string
	Attrs                 map[string]any
}

// FromRow builds a Resource from a node property map plus its labels, as
// produced by `RETURN labels(n), properties(n)` style queries.
func FromRow(labels []string, props map[string]any) Resource {
	r := Resource{
		Labels: labels,
		Attrs:  props,
	}
	r.URI, _ = props["uri"].(string)
	r.InternalDocID = asInt64(props["internalDocId"])
	r.InternalID = asInt64(props["internalId"])
	r.MergedSameAsHighToURI, _ = props["internalMergedSameAsHighToUri"].(string)
	r.Names = asStringSlice(props["name"])
	r.FoundNames = asStringSlice(props["foundName"])
	return r
}

// HasLabel reports whether the resource carries the given label.
func (r Resource) HasLabel(label string) bool {
	for _, l := range r.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// IsMerged reports whether this node has been merged into another.
func (r Resource) IsMerged() bool {
	return r.MergedSameAsHighToURI != ""
}

// StringAttr returns a scalar string attribute, or the first element when
// the store returns it multi-valued.
func (r Resource) StringAttr(key string) string {
	if s, ok := r.Attrs[key].(string); ok {
		return s
	}
	if vs := asStringSlice(r.Attrs[key]); len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// StringsAttr returns a multi-valued string attribute.
func (r Resource) StringsAttr(key string) []string {
	return asStringSlice(r.Attrs[key])
}

// Organization is the typed view over a Resource with the Organization label.
type Organization struct {
	Resource
}

func (o Organization) Industries() []string      { return o.StringsAttr("industry") }
func (o Organization) Descriptions() []string    { return o.StringsAttr("description") }
func (o Organization) BasedInHighRaw() []string  { return o.StringsAttr("basedInHighRaw") }
func (o Organization) CleanNames() []string      { return o.StringsAttr("internalCleanName") }
func (o Organization) CleanShortNames() []string { return o.StringsAttr("internalCleanShortName") }

// Article is the typed view over a Resource with the Article label.
type Article struct {
	Resource
}

func (a Article) Headline() string           { return a.StringAttr("headline") }
func (a Article) SourceOrganization() string { return a.StringAttr("sourceOrganization") }

// DatePublished parses the stored publication timestamp; the zero time is
// returned when absent or unparseable.
func (a Article) DatePublished() time.Time {
	return asTime(a.Attrs["datePublished"])
}

// IndustryCluster is the typed view over a Resource with the
// IndustryCluster label.
type IndustryCluster struct {
	Resource
}

func (c IndustryCluster) TopicID() int64                { return asInt64(c.Attrs["topicId"]) }
func (c IndustryCluster) Representation() []string      { return c.StringsAttr("representation") }
func (c IndustryCluster) RepresentativeDocs() []string  { return c.StringsAttr("representativeDoc") }
func (c IndustryCluster) UniqueName() string            { return c.StringAttr("uniqueName") }
func (c IndustryCluster) EmbeddingJSON() string         { return c.StringAttr("representative_doc_embedding_json") }

// GeoNamesLocation is the typed view over a geo registry node.
type GeoNamesLocation struct {
	Resource
}

func (g GeoNamesLocation) GeoNamesID() int64     { return asInt64(g.Attrs["geoNamesId"]) }
func (g GeoNamesLocation) CountryCode() string   { return g.StringAttr("countryCode") }
func (g GeoNamesLocation) Admin1Code() string    { return g.StringAttr("admin1Code") }
func (g GeoNamesLocation) CountryList() []string { return g.StringsAttr("countryList") }
func (g GeoNamesLocation) FeatureCode() string   { return g.StringAttr("featureCode") }

// Activity is the typed view over any activity-family node.
type Activity struct {
	Resource
}

func (a Activity) ActivityTypes() []string { return a.StringsAttr("activityType") }
func (a Activity) Statuses() []string      { return a.StringsAttr("status") }
func (a Activity) WhenRaw() []string       { return a.StringsAttr("whenRaw") }
func (a Activity) DocumentExtract() string { return a.StringAttr("documentExtract") }

// MergedActivityToURI returns the subsumption marker for activities merged
// by the neighborhood rule.
func (a Activity) MergedActivityToURI() string {
	return a.StringAttr("internalMergedActivityWithSimilarRelationshipsToUri")
}

// ActivityClass returns the activity label of the node, preferring the most
// specific activity family label over bare Resource.
func (a Activity) ActivityClass() string {
	for _, l := range a.Labels {
		if IsActivityLabel(l) {
			return l
		}
	}
	return ""
}

// Role / Person / Site / Product typed views.

type Role struct{ Resource }

func (r Role) OrgFoundNames() []string { return r.StringsAttr("orgFoundName") }

type Person struct{ Resource }

type Site struct{ Resource }

func (s Site) NameClean() string { return s.StringAttr("nameClean") }

type Product struct{ Resource }

func (p Product) UseCases() []string { return p.StringsAttr("useCase") }

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case string:
		if vv == "" {
			return nil
		}
		return []string{vv}
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

// URIName returns the trailing path segment of a URI, useful for logs.
func URIName(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 && i+1 < len(uri) {
		return uri[i+1:]
	}
	return uri
}
