package ingest

import (
	"reflect"
	"strings"
	"testing"
)

const sampleTurtle = `
<https://1145.am/db/100/acme> a <https://1145.am/schema#Organization> ;
    a <https://1145.am/schema#Resource> ;
    <https://1145.am/schema#name> "Acme Corp" ;
    <https://1145.am/schema#name> "Acme Corporation" ;
    <https://1145.am/schema#internalDocId> "4001" ;
    <https://1145.am/schema#basedInHighGeoNamesLocation> <https://1145.am/db/geonames_location/5128581> .

<https://1145.am/db/100/buyback> a <https://1145.am/schema#CorporateFinanceActivity> ;
    <https://1145.am/schema#buyer> <https://1145.am/db/100/acme> .
`

func TestParseTurtle(t *testing.T) {
	g, err := ParseTurtle(strings.NewReader(sampleTurtle))
	if err != nil {
		t.Fatalf("ParseTurtle: %v", err)
	}

	if len(g.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(g.Nodes))
	}
	org := g.Nodes[0]
	if org.URI != "https://1145.am/db/100/acme" {
		t.Errorf("first node uri = %q", org.URI)
	}
	if want := []string{"Organization", "Resource"}; !reflect.DeepEqual(org.Labels, want) {
		t.Errorf("labels = %v, want %v", org.Labels, want)
	}
	if want := []string{"Acme Corp", "Acme Corporation"}; !reflect.DeepEqual(org.Props["name"], want) {
		t.Errorf("name = %v, want %v", org.Props["name"], want)
	}
	if got, ok := org.Props["internalDocId"].(int64); !ok || got != 4001 {
		t.Errorf("internalDocId = %v (%T), want int64 4001", org.Props["internalDocId"], org.Props["internalDocId"])
	}

	if len(g.Edges) != 2 {
		t.Fatalf("edges = %v, want 2", g.Edges)
	}
	want := []EdgeUpdate{
		{FromURI: "https://1145.am/db/100/acme", Type: "basedInHighGeoNamesLocation", ToURI: "https://1145.am/db/geonames_location/5128581"},
		{FromURI: "https://1145.am/db/100/buyback", Type: "buyer", ToURI: "https://1145.am/db/100/acme"},
	}
	if !reflect.DeepEqual(g.Edges, want) {
		t.Errorf("edges = %v, want %v", g.Edges, want)
	}
}

func TestParseTurtleGeoNamesExclusion(t *testing.T) {
	doc := `<https://1145.am/db/geonames_location/5128581> a <https://1145.am/schema#Resource> ;
    <https://1145.am/schema#geoNamesURL> <https://sws.geonames.org/5128581/> .`
	g, err := ParseTurtle(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseTurtle: %v", err)
	}
	if len(g.Edges) != 0 {
		t.Errorf("excluded IRI produced an edge: %v", g.Edges)
	}
	if got := g.Nodes[0].Props["geoNamesURL"]; got != "https://sws.geonames.org/5128581/" {
		t.Errorf("geoNamesURL = %v", got)
	}
}

func TestParseTurtleBadDocID(t *testing.T) {
	doc := `<https://1145.am/db/100/acme> <https://1145.am/schema#internalDocId> "not-a-number" .`
	if _, err := ParseTurtle(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for non-integer internalDocId")
	}
}

func TestDeletionSubjects(t *testing.T) {
	content := `<https://1145.am/db/100/acme> a <https://1145.am/schema#Organization> .
<https://1145.am/db/100/buyback> a <https://1145.am/schema#CorporateFinanceActivity> ;
    <https://1145.am/schema#buyer> <https://1145.am/db/100/acme> .
<https://1145.am/db/100/acme> a <https://1145.am/schema#Resource> .`
	got := DeletionSubjects(content)
	want := []string{"https://1145.am/db/100/acme", "https://1145.am/db/100/buyback"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("subjects = %v, want %v", got, want)
	}
	if got := DeletionSubjects(""); got != nil {
		t.Errorf("empty content produced %v", got)
	}
}
