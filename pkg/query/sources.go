package query

// CoreSources is the curated publisher allowlist. Callers pass the
// CoreSourcesSentinel to select it instead of spelling the list out.
var CoreSources = []string{
	"Business Insider",
	"Business Wire",
	"CityAM",
	"GlobeNewswire",
	"Globe Newswire",
	"Live Design Online",
	"MarketWatch",
	"PR Newswire",
	"prweb",
	"Reuters",
	"Seeking Alpha",
	"TechCrunch",
	"The Globe and Mail",
	"VentureBeat",
}

// CoreSourcesSentinel selects CoreSources when passed as a source name.
const CoreSourcesSentinel = "core"

// ResolveSources maps the caller's source selection onto a concrete
// allowlist. Empty or the sentinel selects the curated list; "_all"
// disables source filtering.
func ResolveSources(names []string) []string {
	if len(names) == 0 {
		return CoreSources
	}
	if len(names) == 1 {
		switch names[0] {
		case CoreSourcesSentinel:
			return CoreSources
		case "_all":
			return nil
		}
	}
	return names
}
