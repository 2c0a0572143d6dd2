package ingest

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/knakk/rdf"
)

const rdfTypeIRI = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// geoNamesExclusionPrefixes blocks edge expansion into the external geo
// registry during import. Matching predicates keep their object IRI as a
// plain string property instead of creating a relationship.
var geoNamesExclusionPrefixes = []string{
	"https://sws.geonames.org/",
	"http://sws.geonames.org/",
}

// NodeUpdate is one subject's accumulated labels and properties from a
// Turtle file.
type NodeUpdate struct {
	URI    string
	Labels []string
	Props  map[string]any
}

// EdgeUpdate is one subject-predicate-object triple whose object is a
// resource in the graph.
type EdgeUpdate struct {
	FromURI string
	Type    string
	ToURI   string
}

// ParsedGraph holds the decoded content of a single Turtle file.
type ParsedGraph struct {
	Nodes []NodeUpdate
	Edges []EdgeUpdate
}

var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

// localName returns the final path or fragment segment of an IRI.
func localName(iri string) string {
	if i := strings.LastIndexAny(iri, "#/"); i >= 0 && i+1 < len(iri) {
		return iri[i+1:]
	}
	return iri
}

func excludedPredicate(pred string) bool {
	for _, prefix := range geoNamesExclusionPrefixes {
		if strings.HasPrefix(pred, prefix) {
			return true
		}
	}
	return false
}

// ParseTurtle decodes a Turtle document into node and edge updates. Literal
// objects accumulate into multi-valued properties; IRI objects become edges
// unless the predicate is on the geo exclusion list. internalDocId literals
// are coerced to integers because merge ordering depends on them.
func ParseTurtle(r io.Reader) (*ParsedGraph, error) {
	dec := rdf.NewTripleDecoder(r, rdf.Turtle)

	nodes := map[string]*NodeUpdate{}
	order := []string{}
	var edges []EdgeUpdate

	node := func(uri string) *NodeUpdate {
		if n, ok := nodes[uri]; ok {
			return n
		}
		n := &NodeUpdate{URI: uri, Props: map[string]any{}}
		nodes[uri] = n
		order = append(order, uri)
		return n
	}

	for {
		triple, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("turtle parse failed: %w", err)
		}

		subj := triple.Subj.String()
		pred := triple.Pred.String()

		switch obj := triple.Obj.(type) {
		case rdf.IRI:
			objIRI := obj.String()
			if pred == rdfTypeIRI {
				label := localName(objIRI)
				if !identRe.MatchString(label) {
					return nil, fmt.Errorf("invalid label %q for subject %s", label, subj)
				}
				n := node(subj)
				n.Labels = append(n.Labels, label)
				continue
			}
			if excludedPredicate(pred) || excludedPredicate(objIRI) {
				appendProp(node(subj), localName(pred), objIRI)
				continue
			}
			relType := localName(pred)
			if !identRe.MatchString(relType) {
				return nil, fmt.Errorf("invalid relationship type %q for subject %s", relType, subj)
			}
			node(subj)
			edges = append(edges, EdgeUpdate{FromURI: subj, Type: relType, ToURI: objIRI})
		case rdf.Literal:
			key := localName(pred)
			n := node(subj)
			if key == "internalDocId" {
				id, err := strconv.ParseInt(obj.String(), 10, 64)
				if err != nil {
					return nil, fmt.Errorf("non-integer internalDocId %q for subject %s", obj.String(), subj)
				}
				n.Props[key] = id
				continue
			}
			appendProp(n, key, obj.String())
		default:
			// blank nodes carry no graph identity here; skip
		}
	}

	out := &ParsedGraph{Edges: edges}
	for _, uri := range order {
		out.Nodes = append(out.Nodes, *nodes[uri])
	}
	return out, nil
}

// appendProp grows a property into a list on repeat observations, matching
// the store's multi-valued attribute convention.
func appendProp(n *NodeUpdate, key, value string) {
	switch existing := n.Props[key].(type) {
	case nil:
		n.Props[key] = value
	case string:
		n.Props[key] = []string{existing, value}
	case []string:
		n.Props[key] = append(existing, value)
	}
}

// deletionSubjectRe matches the subject of a type declaration at the start
// of a line. Deletion files are scanned with this rather than fully parsed:
// their object terms may reference vocabulary that no longer resolves.
var deletionSubjectRe = regexp.MustCompile(`(?m)^<(https://\S+)> a `)

// DeletionSubjects extracts the set of subject URIs named by a deletion
// file, in order of first appearance.
func DeletionSubjects(content string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range deletionSubjectRe.FindAllStringSubmatch(content, -1) {
		uri := m[1]
		if _, dup := seen[uri]; dup {
			continue
		}
		seen[uri] = struct{}{}
		out = append(out, uri)
	}
	return out
}
