package sparql

import (
	"strconv"
	"strings"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/rdf"
)

// Variables projected by the upload lookup.
const (
	VarURI       = "uri"
	VarName      = "name"
	VarFormat    = "format"
	VarSize      = "size"
	VarExtension = "extension"
)

// Pattern constrains the subject variable through one predicate. Exactly one of
// Var and Object is set: Var binds the object, Object requires a fixed value.
type Pattern struct {
	Predicate string
	Var       string
	Object    rdf.Term
}

func (p Pattern) IsBound() bool {
	return p.Var == ""
}

// Select is a basic graph pattern over a single subject variable.
type Select struct {
	Graph      string
	SubjectVar string
	Vars       []string
	Patterns   []Pattern
	Limit      int
}

// SelectUploadByID builds the lookup of the upload resource whose unique-id
// literal equals uploadID, binding name, format, extension and size.
func SelectUploadByID(graph, uploadID string) Select {
	return Select{
		Graph:      graph,
		SubjectVar: VarURI,
		Vars:       []string{VarURI, VarName, VarFormat, VarSize, VarExtension},
		Patterns: []Pattern{
			{Predicate: rdf.UUID, Object: rdf.Literal(uploadID)},
			{Predicate: rdf.FileName, Var: VarName},
			{Predicate: rdf.Format, Var: VarFormat},
			{Predicate: rdf.FileExtension, Var: VarExtension},
			{Predicate: rdf.FileSize, Var: VarSize},
		},
	}
}

// Predicates lists the predicates the query touches, in pattern order.
func (q Select) Predicates() []string {
	out := make([]string, 0, len(q.Patterns))
	for _, p := range q.Patterns {
		out = append(out, p.Predicate)
	}
	return out
}

func (q Select) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT")
	for _, v := range q.Vars {
		sb.WriteString(" ?" + v)
	}
	sb.WriteString(" WHERE {\n")
	if q.Graph != "" {
		sb.WriteString("GRAPH " + rdf.IRI(q.Graph).String() + " {\n")
	}
	for i, p := range q.Patterns {
		if i == 0 {
			sb.WriteString("?" + q.SubjectVar + " ")
		}
		sb.WriteString(rdf.IRI(p.Predicate).String() + " ")
		if p.IsBound() {
			sb.WriteString(p.Object.String())
		} else {
			sb.WriteString("?" + p.Var)
		}
		if i < len(q.Patterns)-1 {
			sb.WriteString(" ;\n")
		} else {
			sb.WriteString(" .\n")
		}
	}
	if q.Graph != "" {
		sb.WriteString("}\n")
	}
	sb.WriteString("}")
	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return sb.String()
}

// Binding maps variable names to the terms bound in one solution.
type Binding map[string]rdf.Term

// Results is the solution sequence of a select query.
type Results struct {
	Vars     []string
	Bindings []Binding
}

func (r Results) Empty() bool {
	return len(r.Bindings) == 0
}
