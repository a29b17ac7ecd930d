package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/domain"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/rdf"
)

const (
	msgEmptyContent   = "Invalid content: The provided file does not contain any content."
	msgInvalidContent = "Invalid content: The provided file does not contain valid content."
)

// Executor translates BPMN documents into RDF using a compiled RuleSet.
// It holds no mutable state and is safe for concurrent use.
type Executor struct {
	rules  *RuleSet
	logger *slog.Logger
}

func NewExecutor(rules *RuleSet, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{rules: rules, logger: logger}
}

// Translate maps content to a canonical graph. Running it twice on the same
// input yields the same triples in the same order.
func (e *Executor) Translate(ctx context.Context, content string) (graph rdf.Graph, err error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.NewUserError(domain.ErrEmptyContent, msgEmptyContent)
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("mapping_panic", "panic", fmt.Sprint(r))
			graph = nil
			err = domain.WrapError(domain.ErrMappingEngine, "translate", fmt.Errorf("panic: %v", r))
		}
	}()

	doc, err := xmlquery.Parse(strings.NewReader(content))
	if err == nil {
		err = checkSingleRoot(doc)
	}
	if err != nil {
		e.logger.Debug("mapping_parse_failed", "error", err)
		return nil, domain.NewUserError(domain.ErrUnmappableContent, msgInvalidContent)
	}

	out := make(rdf.Graph, 0, 64)
	for i := range e.rules.Rules {
		if err := ctx.Err(); err != nil {
			return nil, domain.WrapError(domain.ErrMappingEngine, "translate", err)
		}
		out = e.apply(out, &e.rules.Rules[i], doc)
	}

	out = out.Canonical()
	if len(out) == 0 {
		return nil, domain.NewUserError(domain.ErrUnmappableContent, msgInvalidContent)
	}
	return out, nil
}

func (e *Executor) apply(out rdf.Graph, rule *Rule, doc *xmlquery.Node) rdf.Graph {
	for _, node := range xmlquery.QuerySelectorAll(doc, rule.iterator) {
		value, ok := rule.subject.expand(node)
		if !ok {
			continue
		}
		subject := e.rules.resolve(value)

		for _, class := range rule.classes {
			out = append(out, rdf.NewTriple(subject, rdf.RDFType, rdf.IRI(class)))
		}
		for j := range rule.Properties {
			prop := &rule.Properties[j]
			for _, target := range e.targets(node, prop) {
				object, ok := e.object(prop, target)
				if !ok {
					continue
				}
				out = append(out, rdf.NewTriple(subject, prop.predicate, object))
			}
		}
	}
	return out
}

func (e *Executor) targets(node *xmlquery.Node, prop *Property) []*xmlquery.Node {
	if prop.from == nil {
		return []*xmlquery.Node{node}
	}
	return xmlquery.QuerySelectorAll(node, prop.from)
}

func (e *Executor) object(prop *Property, node *xmlquery.Node) (rdf.Term, bool) {
	value, ok := prop.template.expand(node)
	if !ok {
		return rdf.Term{}, false
	}
	switch {
	case prop.TermType == termTypeIRI:
		return rdf.IRI(e.rules.resolve(value)), true
	case prop.datatype != "":
		return rdf.TypedLiteral(value, prop.datatype), true
	case prop.Lang != "":
		return rdf.LangLiteral(value, prop.Lang), true
	default:
		return rdf.Literal(value), true
	}
}

// checkSingleRoot enforces the document-level rules the parser does not: one
// root element and no character data outside it. Content ahead of the first
// element is attached as siblings of the document node, so both levels are
// walked.
func checkSingleRoot(doc *xmlquery.Node) error {
	var top []*xmlquery.Node
	for n := doc.NextSibling; n != nil; n = n.NextSibling {
		top = append(top, n)
	}
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		top = append(top, n)
	}

	roots := 0
	for _, n := range top {
		switch n.Type {
		case xmlquery.ElementNode:
			roots++
			if roots > 1 {
				return fmt.Errorf("document has more than one root element: <%s>", n.Data)
			}
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if strings.TrimSpace(n.Data) != "" {
				return errors.New("document has text outside the root element")
			}
		}
	}
	if roots == 0 {
		return errors.New("document has no root element")
	}
	return nil
}
