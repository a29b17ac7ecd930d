package mapping

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/rdf"
)

//go:embed rules/bpmn.yaml
var defaultRules []byte

const (
	termTypeLiteral = "literal"
	termTypeIRI     = "iri"
)

// RuleSet is a compiled set of mapping rules ready to run against XML documents.
type RuleSet struct {
	Base     string            `yaml:"base"`
	Prefixes map[string]string `yaml:"prefixes"`
	Shared   yaml.Node         `yaml:"shared"`
	Rules    []Rule            `yaml:"rules"`
}

// Rule mints one subject per element matched by its iterator.
type Rule struct {
	Name       string     `yaml:"name"`
	Element    string     `yaml:"element"`
	Iterator   string     `yaml:"iterator"`
	Subject    string     `yaml:"subject"`
	Classes    []string   `yaml:"classes"`
	Properties []Property `yaml:"properties"`

	iterator *xpath.Expr
	subject  template
	classes  []string
}

type Property struct {
	Predicate string `yaml:"predicate"`
	From      string `yaml:"from"`
	Template  string `yaml:"template"`
	TermType  string `yaml:"termType"`
	Datatype  string `yaml:"datatype"`
	Lang      string `yaml:"lang"`

	from      *xpath.Expr
	predicate string
	datatype  string
	template  template
}

// DefaultRules returns the built-in BPMN rule set.
func DefaultRules() (*RuleSet, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads a rule file from path, or the built-in rules when path is empty.
func LoadRules(path string) (*RuleSet, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRules()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping rules %s: %w", path, err)
	}
	return ParseRules(raw)
}

// ParseRules decodes and compiles a YAML rule document.
func ParseRules(raw []byte) (*RuleSet, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var rs RuleSet
	if err := dec.Decode(&rs); err != nil {
		return nil, fmt.Errorf("decode mapping rules: %w", err)
	}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// WithBase returns a copy of the rule set resolving relative IRIs against base.
func (rs *RuleSet) WithBase(base string) (*RuleSet, error) {
	if strings.TrimSpace(base) == "" {
		return rs, nil
	}
	if err := validateBase(base); err != nil {
		return nil, err
	}
	clone := *rs
	clone.Base = base
	return &clone, nil
}

func (rs *RuleSet) compile() error {
	if err := validateBase(rs.Base); err != nil {
		return err
	}
	if len(rs.Rules) == 0 {
		return errors.New("mapping rules: no rules defined")
	}
	for i := range rs.Rules {
		if err := rs.compileRule(&rs.Rules[i]); err != nil {
			return fmt.Errorf("mapping rule %d (%s): %w", i, rs.Rules[i].Label(), err)
		}
	}
	return nil
}

func (rs *RuleSet) compileRule(r *Rule) error {
	iter := strings.TrimSpace(r.Iterator)
	if iter == "" {
		if strings.TrimSpace(r.Element) == "" {
			return errors.New("element or iterator is required")
		}
		iter = fmt.Sprintf("//*[local-name()='%s']", r.Element)
	}
	expr, err := xpath.Compile(iter)
	if err != nil {
		return fmt.Errorf("compile iterator %q: %w", iter, err)
	}
	r.iterator = expr

	if r.subject, err = parseTemplate(r.Subject); err != nil {
		return fmt.Errorf("subject: %w", err)
	}
	if len(r.Classes) == 0 && len(r.Properties) == 0 {
		return errors.New("rule emits nothing: add classes or properties")
	}

	r.classes = make([]string, 0, len(r.Classes))
	for _, class := range r.Classes {
		iri, err := rs.expand(class)
		if err != nil {
			return err
		}
		r.classes = append(r.classes, iri)
	}

	// Properties may be shared through YAML aliases, so compile into fresh copies.
	props := make([]Property, len(r.Properties))
	for i, p := range r.Properties {
		if err := rs.compileProperty(&p); err != nil {
			return fmt.Errorf("property %s: %w", p.Predicate, err)
		}
		props[i] = p
	}
	r.Properties = props
	return nil
}

func (rs *RuleSet) compileProperty(p *Property) error {
	var err error
	if p.predicate, err = rs.expand(p.Predicate); err != nil {
		return err
	}
	if p.template, err = parseTemplate(p.Template); err != nil {
		return err
	}
	if strings.TrimSpace(p.From) != "" {
		if p.from, err = xpath.Compile(p.From); err != nil {
			return fmt.Errorf("compile from %q: %w", p.From, err)
		}
	}

	switch p.TermType {
	case "":
		p.TermType = termTypeLiteral
	case termTypeLiteral, termTypeIRI:
	default:
		return fmt.Errorf("unknown termType %q", p.TermType)
	}
	if p.TermType == termTypeIRI && (p.Datatype != "" || p.Lang != "") {
		return errors.New("datatype and lang apply to literals only")
	}
	if p.Datatype != "" && p.Lang != "" {
		return errors.New("datatype and lang are mutually exclusive")
	}
	if p.Datatype != "" {
		if p.datatype, err = rs.expand(p.Datatype); err != nil {
			return err
		}
		if p.datatype == rdf.XSDString {
			p.datatype = ""
		}
	}
	return nil
}

// expand turns a prefixed name such as bbo:Task into a full IRI.
func (rs *RuleSet) expand(name string) (string, error) {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "<") && strings.HasSuffix(name, ">") {
		return name[1 : len(name)-1], nil
	}
	if strings.Contains(name, "://") {
		return name, nil
	}
	prefix, local, ok := strings.Cut(name, ":")
	if !ok {
		return "", fmt.Errorf("%q is neither an IRI nor a prefixed name", name)
	}
	ns, ok := rs.Prefixes[prefix]
	if !ok {
		return "", fmt.Errorf("unknown prefix %q in %q", prefix, name)
	}
	return ns + local, nil
}

// resolve anchors a relative IRI value on the rule set base.
func (rs *RuleSet) resolve(value string) string {
	if hasScheme(value) {
		return value
	}
	return rs.Base + value
}

// Label names the rule in diagnostics: its name, else its element, else its iterator.
func (r Rule) Label() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.Element != "":
		return r.Element
	default:
		return r.Iterator
	}
}

func validateBase(base string) error {
	u, err := url.Parse(base)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("mapping base %q must be an absolute IRI", base)
	}
	if !strings.HasSuffix(base, "/") && !strings.HasSuffix(base, "#") {
		return fmt.Errorf("mapping base %q must end with / or #", base)
	}
	return nil
}

func hasScheme(value string) bool {
	return strings.Contains(value, "://") || strings.HasPrefix(strings.ToLower(value), "urn:")
}

// template is a string with {attr} or {.} references into the current element.
type template struct {
	parts []templatePart
}

type templatePart struct {
	literal string
	ref     string
	isRef   bool
}

func parseTemplate(raw string) (template, error) {
	if strings.TrimSpace(raw) == "" {
		return template{}, errors.New("template is required")
	}
	var t template
	rest := raw
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			t.parts = append(t.parts, templatePart{literal: rest})
			break
		}
		if open > 0 {
			t.parts = append(t.parts, templatePart{literal: rest[:open]})
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return template{}, fmt.Errorf("template %q: unclosed reference", raw)
		}
		ref := strings.TrimSpace(rest[open+1 : open+end])
		if ref == "" {
			return template{}, fmt.Errorf("template %q: empty reference", raw)
		}
		t.parts = append(t.parts, templatePart{ref: ref, isRef: true})
		rest = rest[open+end+1:]
	}
	return t, nil
}

// expand fills the template from node. It reports false when any reference
// is missing or blank, in which case no term is produced.
func (t template) expand(node *xmlquery.Node) (string, bool) {
	var sb strings.Builder
	for _, part := range t.parts {
		if !part.isRef {
			sb.WriteString(part.literal)
			continue
		}
		value := lookup(node, part.ref)
		if value == "" {
			return "", false
		}
		sb.WriteString(value)
	}
	return sb.String(), true
}

func lookup(node *xmlquery.Node, ref string) string {
	if ref == "." {
		return strings.TrimSpace(node.InnerText())
	}
	for _, attr := range node.Attr {
		if attr.Name.Local == ref {
			return strings.TrimSpace(attr.Value)
		}
	}
	return ""
}
