// Package nlp provides the text analysis used by the involvement
// classifier: tokens with part of speech, lemma, dependency role and head,
// plus named-entity spans.
package nlp

import "strings"

// POS is a coarse, universal part-of-speech tag.
type POS string

// Coarse part-of-speech tags.
const (
	Noun  POS = "NOUN"
	PropN POS = "PROPN"
	Verb  POS = "VERB"
	Aux   POS = "AUX"
	Adp   POS = "ADP"
	Det   POS = "DET"
	Adj   POS = "ADJ"
	Adv   POS = "ADV"
	Pron  POS = "PRON"
	Num   POS = "NUM"
	CConj POS = "CCONJ"
	Part  POS = "PART"
	Punct POS = "PUNCT"
	Intj  POS = "INTJ"
	Sym   POS = "SYM"
	Other POS = "X"
)

// Dependency labels.
const (
	DepRoot      = "ROOT"
	DepNsubj     = "nsubj"
	DepNsubjPass = "nsubjpass"
	DepAgent     = "agent"
	DepDobj      = "dobj"
	DepPrep      = "prep"
	DepPobj      = "pobj"
	DepMark      = "mark"
	DepAux       = "aux"
	DepAuxPass   = "auxpass"
	DepNeg       = "neg"
	DepAdvmod    = "advmod"
	DepDet       = "det"
	DepPoss      = "poss"
	DepAmod      = "amod"
	DepNummod    = "nummod"
	DepCompound  = "compound"
	DepCase      = "case"
	DepConj      = "conj"
	DepCC        = "cc"
	DepCcomp     = "ccomp"
	DepPunct     = "punct"
	DepDep       = "dep"
)

// EntityPerson is the span label for people.
const EntityPerson = "PERSON"

// Token is one analysed word.
type Token struct {
	Index int
	Text  string
	Lower string
	Lemma string
	// Tag is the Penn Treebank tag.
	Tag string
	POS POS
	Dep string
	// Head is the index of the governing token; roots point at themselves.
	Head int
	// Entity is the IOB entity label, e.g. "B-PERSON" or "O".
	Entity string
}

// Span is a half-open token range [Start, End).
type Span struct {
	Start int
	End   int
	Label string
}

// Document is the analysis of one text.
type Document struct {
	Text     string
	Tokens   []Token
	Entities []Span
}

// Children returns the tokens governed by token i.
func (d *Document) Children(i int) []Token {
	var out []Token
	for _, tok := range d.Tokens {
		if tok.Head == i && tok.Index != i {
			out = append(out, tok)
		}
	}
	return out
}

// SpanText joins the text of the tokens in s with single spaces.
func (d *Document) SpanText(s Span) string {
	parts := make([]string, 0, s.End-s.Start)
	for i := s.Start; i < s.End && i < len(d.Tokens); i++ {
		parts = append(parts, d.Tokens[i].Text)
	}
	return strings.Join(parts, " ")
}

// Analyzer produces Documents. Implementations must be deterministic and
// safe for concurrent use.
type Analyzer interface {
	Analyze(text string) *Document
	// Lemma normalises a single word the same way Analyze fills
	// Token.Lemma, so vocabularies can be compared against tokens.
	Lemma(word string) string
}

// Word is tagger output before dependency labelling.
type Word struct {
	Text   string
	Tag    string
	Entity string
}

// Build labels tagged words and derives entity spans from their IOB labels.
func Build(text string, words []Word, lemma func(string) string) *Document {
	return &Document{
		Text:     text,
		Tokens:   Label(words, lemma),
		Entities: spans(words),
	}
}

func spans(words []Word) []Span {
	var (
		out  []Span
		open = -1
		kind string
	)
	closeSpan := func(end int) {
		if open >= 0 {
			out = append(out, Span{Start: open, End: end, Label: kind})
		}
		open, kind = -1, ""
	}
	for i, w := range words {
		prefix, label, ok := strings.Cut(w.Entity, "-")
		switch {
		case !ok:
			closeSpan(i)
		case prefix == "B", open < 0, label != kind:
			closeSpan(i)
			open, kind = i, label
		}
	}
	closeSpan(len(words))
	return out
}
