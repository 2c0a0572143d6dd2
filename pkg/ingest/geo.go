package ingest

import (
	"context"
	"fmt"

	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/logger"
)

const geoEnrichBatchSize = 1000

// EnrichGeoNamesLocations copies countryCode and admin1Code from the
// external geo registry node onto each GeoNamesLocation that is still
// missing them. The registry reference lives on the location as the
// geoNamesURL string property, so candidates are read in uri-ordered pages
// and resolved against the registry node in a second, batched write.
func EnrichGeoNamesLocations(ctx context.Context, store *graphstore.Store) (int, error) {
	total := 0
	after := ""
	for {
		rows, err := store.Execute(ctx,
			`MATCH (loc:GeoNamesLocation)
			 WHERE loc.countryCode IS NULL
			   AND loc.geoNamesURL IS NOT NULL
			   AND loc.uri > $after
			 RETURN loc.uri AS uri, loc.geoNamesURL AS geoNamesURL
			 ORDER BY loc.uri
			 LIMIT $batch`,
			map[string]any{"after": after, "batch": geoEnrichBatchSize})
		if err != nil {
			return total, fmt.Errorf("geo enrichment scan failed: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		pairs := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			uri, _ := row["uri"].(string)
			after = uri
			geoURI := firstGeoNamesURL(row["geoNamesURL"])
			if uri == "" || geoURI == "" {
				continue
			}
			pairs = append(pairs, map[string]any{"uri": uri, "geoUri": geoURI})
		}
		if len(pairs) > 0 {
			out, err := store.Write(ctx,
				`UNWIND $rows AS row
				 MATCH (loc:GeoNamesLocation {uri: row.uri})
				 MATCH (geo:Resource {uri: row.geoUri})
				 WHERE geo.countryCode IS NOT NULL
				 SET loc.countryCode = geo.countryCode,
				     loc.admin1Code = geo.admin1Code,
				     loc.featureCode = coalesce(loc.featureCode, geo.featureCode)
				 RETURN count(*) AS enriched`,
				map[string]any{"rows": pairs})
			if err != nil {
				return total, fmt.Errorf("geo enrichment batch failed: %w", err)
			}
			if len(out) > 0 {
				if n, ok := out[0]["enriched"].(int64); ok {
					total += int(n)
				}
			}
		}
		if len(rows) < geoEnrichBatchSize {
			break
		}
	}
	if total > 0 {
		logger.Info("[Ingest] GeoNames locations enriched", "count", total)
	}
	return total, nil
}

// firstGeoNamesURL normalizes the stored registry reference. Repeat
// observations during import grow the property into a list; the first entry
// wins.
func firstGeoNamesURL(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
