package ingest

import "testing"

func TestFirstGeoNamesURL(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"plain string", "https://sws.geonames.org/5128581/", "https://sws.geonames.org/5128581/"},
		{"string list keeps first", []string{"https://sws.geonames.org/1/", "https://sws.geonames.org/2/"}, "https://sws.geonames.org/1/"},
		{"driver list keeps first non-empty", []any{"", "https://sws.geonames.org/3/"}, "https://sws.geonames.org/3/"},
		{"empty list", []any{}, ""},
		{"nil", nil, ""},
		{"wrong type", int64(7), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstGeoNamesURL(tt.value); got != tt.want {
				t.Errorf("firstGeoNamesURL(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}
