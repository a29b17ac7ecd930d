package rdf

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type TermKind int

const (
	KindIRI TermKind = iota
	KindLiteral
	KindBlank
)

func (k TermKind) String() string {
	switch k {
	case KindIRI:
		return "uri"
	case KindLiteral:
		return "literal"
	case KindBlank:
		return "bnode"
	default:
		return "unknown"
	}
}

// Term is an RDF node: an IRI, a literal or a blank node.
type Term struct {
	Kind     TermKind `json:"kind"`
	Value    string   `json:"value"`
	Datatype string   `json:"datatype,omitempty"`
	Lang     string   `json:"lang,omitempty"`
}

func IRI(value string) Term {
	return Term{Kind: KindIRI, Value: value}
}

func Blank(label string) Term {
	return Term{Kind: KindBlank, Value: label}
}

// Literal builds a plain string literal.
func Literal(value string) Term {
	return Term{Kind: KindLiteral, Value: value}
}

func TypedLiteral(value, datatype string) Term {
	return Term{Kind: KindLiteral, Value: value, Datatype: datatype}
}

func LangLiteral(value, lang string) Term {
	return Term{Kind: KindLiteral, Value: value, Lang: lang}
}

func Integer(v int64) Term {
	return TypedLiteral(strconv.FormatInt(v, 10), XSDInteger)
}

// DateTime renders t in UTC with millisecond precision.
func DateTime(t time.Time) Term {
	return TypedLiteral(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"), XSDDateTime)
}

func (t Term) IsIRI() bool { return t.Kind == KindIRI }

// Int parses the lexical form of an integer literal.
func (t Term) Int() (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(t.Value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("term %q is not an integer: %w", t.Value, err)
	}
	return n, nil
}

// String encodes the term in N-Triples syntax, which is also valid SPARQL.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + EscapeIRI(t.Value) + ">"
	case KindBlank:
		return "_:" + t.Value
	default:
		lit := `"` + EscapeString(t.Value) + `"`
		switch {
		case t.Lang != "":
			return lit + "@" + t.Lang
		case t.Datatype != "" && t.Datatype != XSDString:
			return lit + "^^<" + EscapeIRI(t.Datatype) + ">"
		default:
			return lit
		}
	}
}

// EscapeString escapes a literal's lexical form for N-Triples and SPARQL.
func EscapeString(s string) string {
	if !strings.ContainsAny(s, "\\\"\n\r\t") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// EscapeIRI percent-encodes the characters an IRIREF may not contain.
func EscapeIRI(s string) string {
	needs := false
	for i := 0; i < len(s); i++ {
		if iriForbidden(s[i]) {
			needs = true
			break
		}
	}
	if !needs {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if iriForbidden(c) {
			fmt.Fprintf(&sb, "%%%02X", c)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func iriForbidden(c byte) bool {
	if c <= 0x20 {
		return true
	}
	switch c {
	case '<', '>', '"', '{', '}', '|', '^', '`', '\\':
		return true
	}
	return false
}
