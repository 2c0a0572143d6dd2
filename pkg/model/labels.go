package model

import "strings"

// ActivityLabels lists every activity family label in the schema. AboutUs
// and IndustrySectorUpdate behave as activities for feed purposes even
// though they aggregate an organization rather than an event.
var ActivityLabels = []string{
	"CorporateFinanceActivity",
	"RoleActivity",
	"LocationActivity",
	"PartnershipActivity",
	"ProductActivity",
	"AnalystRatingActivity",
	"EquityActionsActivity",
	"FinancialReportingActivity",
	"FinancialsActivity",
	"IncidentActivity",
	"MarketingActivity",
	"OperationsActivity",
	"RecognitionActivity",
	"RegulatoryActivity",
	"AboutUs",
	"IndustrySectorUpdate",
}

var activityLabelSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(ActivityLabels))
	for _, l := range ActivityLabels {
		m[l] = struct{}{}
	}
	return m
}()

// IsActivityLabel reports whether label names an activity family.
func IsActivityLabel(label string) bool {
	_, ok := activityLabelSet[label]
	return ok
}

// MatchesActivityTypePrefix reports whether the activity class name matches
// any of the requested type strings as a case-insensitive prefix, so
// "Financial" admits both FinancialReporting and Financials.
func MatchesActivityTypePrefix(activityClass string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	lower := strings.ToLower(activityClass)
	for _, a := range allowed {
		if a == "" {
			continue
		}
		if strings.HasPrefix(lower, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

// FilterByActivityTypes keeps only activities whose class matches one of the
// allowed prefixes. A nil allowlist keeps everything.
func FilterByActivityTypes[T any](items []T, classOf func(T) string, allowed []string) []T {
	if len(allowed) == 0 {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if MatchesActivityTypePrefix(classOf(it), allowed) {
			out = append(out, it)
		}
	}
	return out
}
