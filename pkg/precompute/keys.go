package precompute

import (
	"fmt"
	"time"
)

// noneToken marks an unconstrained axis in a cell key.
const noneToken = "None"

// lastUpdatedKey holds the reference date the whole snapshot was computed
// against. Readers use it to rebuild the same window bounds.
const lastUpdatedKey = "activity_stats_last_updated"

// CellKey builds the logical cache key for one precomputed cell. Axis values
// left empty render as the none token so unconstrained and constrained cells
// never collide.
func CellKey(minDate, maxDate time.Time, industryID, countryCode, admin1Code string) string {
	return fmt.Sprintf("orgs_acts_%s_%s_%s_%s_%s",
		minDate.Format("2006-01-02"),
		maxDate.Format("2006-01-02"),
		orNone(industryID),
		orNone(countryCode),
		orNone(admin1Code))
}

// SumWeightsKey caches the per-org, per-relationship weight denominator
// used by the weight-proportion filters.
func SumWeightsKey(orgURI, relType string) string {
	return "sum_weights_" + orgURI + "_" + relType
}

func orNone(v string) string {
	if v == "" {
		return noneToken
	}
	return v
}

// WindowDays are the sliding windows a snapshot is computed for.
var WindowDays = []int{7, 30, 90}

// WindowStart returns the inclusive lower bound for a window ending at max.
func WindowStart(maxDate time.Time, days int) time.Time {
	return maxDate.AddDate(0, 0, -days)
}
