// Package sparql assembles the store commands issued by the service: INSERT DATA
// updates built from triples and the lookup of an upload by its identifier.
// Commands stay structured until String is called at the store boundary.
package sparql

import (
	"strings"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/rdf"
)

// InsertData is a single INSERT DATA operation, optionally scoped to a named graph.
type InsertData struct {
	Graph   string
	Triples rdf.Graph
}

func (op InsertData) String() string {
	var sb strings.Builder
	sb.WriteString("INSERT DATA {\n")
	indent := ""
	if op.Graph != "" {
		sb.WriteString("GRAPH " + rdf.IRI(op.Graph).String() + " {\n")
		indent = "  "
	}
	for _, t := range op.Triples {
		sb.WriteString(indent)
		sb.WriteString(t.String())
		sb.WriteByte('\n')
	}
	if op.Graph != "" {
		sb.WriteString("}\n")
	}
	sb.WriteString("}")
	return sb.String()
}

// Update is one update request. Its operations are sent together.
type Update struct {
	Operations []InsertData
}

// NewInsert wraps triples into a single-operation update request.
func NewInsert(graph string, triples rdf.Graph) Update {
	return Update{Operations: []InsertData{{Graph: graph, Triples: triples}}}
}

// Merge joins several updates into one request.
func Merge(updates ...Update) Update {
	var out Update
	for _, u := range updates {
		out.Operations = append(out.Operations, u.Operations...)
	}
	return out
}

func (u Update) String() string {
	parts := make([]string, 0, len(u.Operations))
	for _, op := range u.Operations {
		parts = append(parts, op.String())
	}
	return strings.Join(parts, " ;\n")
}

// TripleCount returns the number of triples across all operations.
func (u Update) TripleCount() int {
	n := 0
	for _, op := range u.Operations {
		n += len(op.Triples)
	}
	return n
}
