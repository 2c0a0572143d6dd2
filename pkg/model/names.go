package model

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/1145-am/orggraph/internal/util"
	"github.com/1145-am/orggraph/pkg/logger"
)

// BestName picks the canonical display name for an organization: the modal
// string across its own names plus the names of every sameAsHigh-connected
// node, first occurrence breaking ties.
func BestName(org Organization, sameAsHighNames [][]string) string {
	all := make([]string, 0, len(org.Names))
	all = append(all, org.Names...)
	for _, names := range sameAsHighNames {
		all = append(all, names...)
	}
	if name := util.ModalString(all); name != "" {
		return name
	}
	return URIName(org.URI)
}

// clusterNameOverrides maps lowercase representative docs to curated
// casings. Loaded once from an optional data file so new entries do not
// require a rebuild.
var clusterNameOverrides = loadClusterNameOverrides()

func loadClusterNameOverrides() map[string]string {
	path := os.Getenv("INDUSTRY_NAME_OVERRIDES")
	if path == "" {
		path = "config/industry_overrides.json"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]string{}
	}
	out := map[string]string{}
	if err := json.Unmarshal(data, &out); err != nil {
		logger.Warn("[Model] Ignoring malformed industry overrides file", "path", path, "err", err)
		return map[string]string{}
	}
	normalized := make(map[string]string, len(out))
	for k, v := range out {
		normalized[strings.ToLower(k)] = v
	}
	return normalized
}

// ClusterBestName names an industry cluster by its longest representative
// doc, applying curated casing overrides.
func ClusterBestName(cluster IndustryCluster) string {
	longest := ""
	for _, doc := range cluster.RepresentativeDocs() {
		if len(doc) > len(longest) {
			longest = doc
		}
	}
	if longest == "" {
		return cluster.UniqueName()
	}
	if override, ok := clusterNameOverrides[strings.ToLower(longest)]; ok {
		return override
	}
	return longest
}
