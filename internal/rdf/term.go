// Package rdf defines the statement model shared by the store, indexer and
// maintenance packages: terms, quads, match patterns and the vocabularies
// used to describe indexed files.
package rdf

import (
	"fmt"
	"strings"
)

// Kind distinguishes the three RDF node types.
type Kind uint8

const (
	// KindNone is the zero Kind; a Term of this kind matches anything in a Pattern.
	KindNone Kind = iota
	KindURI
	KindLiteral
	KindBlank
)

// String returns the kind name as stored in the quad store.
func (k Kind) String() string {
	switch k {
	case KindURI:
		return "uri"
	case KindLiteral:
		return "literal"
	case KindBlank:
		return "blank"
	default:
		return "none"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "uri":
		return KindURI, nil
	case "literal":
		return KindLiteral, nil
	case "blank":
		return KindBlank, nil
	}
	return KindNone, fmt.Errorf("unknown term kind %q", s)
}

// Term is a single RDF node.
type Term struct {
	Kind     Kind   `json:"kind"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"lang,omitempty"`
}

// URI returns a resource term.
func URI(value string) Term {
	return Term{Kind: KindURI, Value: value}
}

// Literal returns a plain string literal.
func Literal(value string) Term {
	return Term{Kind: KindLiteral, Value: value}
}

// TypedLiteral returns a literal with an explicit datatype URI.
func TypedLiteral(value, datatype string) Term {
	return Term{Kind: KindLiteral, Value: value, Datatype: datatype}
}

// LangLiteral returns a language-tagged literal.
func LangLiteral(value, lang string) Term {
	return Term{Kind: KindLiteral, Value: value, Lang: lang}
}

// Blank returns a blank node with the given label.
func Blank(label string) Term {
	return Term{Kind: KindBlank, Value: label}
}

// IsZero reports whether t is the wildcard term.
func (t Term) IsZero() bool {
	return t.Kind == KindNone
}

// IsURI reports whether t is a resource.
func (t Term) IsURI() bool { return t.Kind == KindURI }

// IsLiteral reports whether t is a literal.
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// String renders t in N-Triples syntax.
func (t Term) String() string {
	switch t.Kind {
	case KindURI:
		return "<" + escapeIRI(t.Value) + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		s := `"` + escapeLiteral(t.Value) + `"`
		if t.Lang != "" {
			return s + "@" + t.Lang
		}
		if t.Datatype != "" && t.Datatype != XSDString {
			return s + "^^<" + escapeIRI(t.Datatype) + ">"
		}
		return s
	default:
		return ""
	}
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}

var iriEscaper = strings.NewReplacer(
	"<", `\u003C`,
	">", `\u003E`,
	" ", `\u0020`,
	`"`, `\u0022`,
	"{", `\u007B`,
	"}", `\u007D`,
	"|", `\u007C`,
	"^", `\u005E`,
	"`", `\u0060`,
	`\`, `\u005C`,
)

func escapeIRI(s string) string {
	return iriEscaper.Replace(s)
}

// Statement is a quad: a triple plus the named graph that contains it.
type Statement struct {
	Subject   Term `json:"subject"`
	Predicate Term `json:"predicate"`
	Object    Term `json:"object"`
	Graph     Term `json:"graph"`
}

// NewStatement builds a statement in graph g.
func NewStatement(s, p, o, g Term) Statement {
	return Statement{Subject: s, Predicate: p, Object: o, Graph: g}
}

// String renders the statement as one N-Quads line without the newline.
func (s Statement) String() string {
	var b strings.Builder
	b.WriteString(s.Subject.String())
	b.WriteByte(' ')
	b.WriteString(s.Predicate.String())
	b.WriteByte(' ')
	b.WriteString(s.Object.String())
	if !s.Graph.IsZero() {
		b.WriteByte(' ')
		b.WriteString(s.Graph.String())
	}
	b.WriteString(" .")
	return b.String()
}

// Valid reports whether the statement can be stored.
func (s Statement) Valid() error {
	if s.Subject.Kind != KindURI && s.Subject.Kind != KindBlank {
		return fmt.Errorf("subject must be a URI or blank node")
	}
	if s.Predicate.Kind != KindURI {
		return fmt.Errorf("predicate must be a URI")
	}
	if s.Object.IsZero() {
		return fmt.Errorf("object is missing")
	}
	if s.Graph.Kind != KindURI {
		return fmt.Errorf("graph must be a URI")
	}
	return nil
}

// Pattern selects statements; zero terms match anything.
type Pattern struct {
	Subject   Term
	Predicate Term
	Object    Term
	Graph     Term
}

// Matches reports whether st satisfies the pattern.
func (p Pattern) Matches(st Statement) bool {
	return matchTerm(p.Subject, st.Subject) &&
		matchTerm(p.Predicate, st.Predicate) &&
		matchTerm(p.Object, st.Object) &&
		matchTerm(p.Graph, st.Graph)
}

func matchTerm(want, got Term) bool {
	return want.IsZero() || want == got
}
