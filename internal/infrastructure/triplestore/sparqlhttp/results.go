package sparqlhttp

import (
	"fmt"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/rdf"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/sparql"
)

// resultsDocument is the SPARQL 1.1 Query Results JSON format.
type resultsDocument struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]jsonTerm `json:"bindings"`
	} `json:"results"`
}

type jsonTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype"`
	Lang     string `json:"xml:lang"`
}

func (d resultsDocument) toResults() (sparql.Results, error) {
	out := sparql.Results{
		Vars:     d.Head.Vars,
		Bindings: make([]sparql.Binding, 0, len(d.Results.Bindings)),
	}
	for i, row := range d.Results.Bindings {
		binding := make(sparql.Binding, len(row))
		for name, term := range row {
			t, err := term.toTerm()
			if err != nil {
				return sparql.Results{}, fmt.Errorf("binding %d variable %s: %w", i, name, err)
			}
			binding[name] = t
		}
		out.Bindings = append(out.Bindings, binding)
	}
	return out, nil
}

func (t jsonTerm) toTerm() (rdf.Term, error) {
	switch t.Type {
	case "uri":
		return rdf.IRI(t.Value), nil
	case "bnode":
		return rdf.Blank(t.Value), nil
	// Virtuoso still emits the pre-1.1 "typed-literal".
	case "literal", "typed-literal":
		if t.Lang != "" {
			return rdf.LangLiteral(t.Value, t.Lang), nil
		}
		return rdf.TypedLiteral(t.Value, t.Datatype), nil
	default:
		return rdf.Term{}, fmt.Errorf("unknown term type %q", t.Type)
	}
}
