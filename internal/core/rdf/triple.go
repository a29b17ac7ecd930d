package rdf

import (
	"sort"
	"strings"
)

// Triple is a single subject-predicate-object statement.
type Triple struct {
	Subject   Term `json:"subject"`
	Predicate Term `json:"predicate"`
	Object    Term `json:"object"`
}

func NewTriple(subject, predicate string, object Term) Triple {
	return Triple{Subject: IRI(subject), Predicate: IRI(predicate), Object: object}
}

// String renders the triple as one N-Triples statement without a trailing newline.
func (t Triple) String() string {
	return t.Subject.String() + " " + t.Predicate.String() + " " + t.Object.String() + " ."
}

// Graph is an unordered collection of triples.
type Graph []Triple

// Canonical returns the graph deduplicated and sorted by its N-Triples form,
// so two set-equal graphs produce identical output.
func (g Graph) Canonical() Graph {
	if len(g) == 0 {
		return Graph{}
	}
	seen := make(map[string]struct{}, len(g))
	lines := make([]string, 0, len(g))
	byLine := make(map[string]Triple, len(g))
	for _, t := range g {
		line := t.String()
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
		byLine[line] = t
	}
	sort.Strings(lines)
	out := make(Graph, 0, len(lines))
	for _, line := range lines {
		out = append(out, byLine[line])
	}
	return out
}

// NTriples serializes the graph, one statement per line.
func (g Graph) NTriples() string {
	var sb strings.Builder
	for _, t := range g {
		sb.WriteString(t.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Subjects returns the distinct subjects in order of first appearance.
func (g Graph) Subjects() []Term {
	seen := make(map[Term]struct{})
	var out []Term
	for _, t := range g {
		if _, ok := seen[t.Subject]; ok {
			continue
		}
		seen[t.Subject] = struct{}{}
		out = append(out, t.Subject)
	}
	return out
}
