// Package classifier decides whether the tracked person actively takes part
// in an event, as opposed to merely being mentioned.
package classifier

import (
	"fmt"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/JakeFAU/eventwatch/internal/nlp"
)

// ProximityPolicy controls the last fallback stage.
type ProximityPolicy int

const (
	// RequireAction needs an event noun and an action verb near the name.
	RequireAction ProximityPolicy = iota
	// EventNounSuffices accepts an event noun near the name on its own.
	EventNounSuffices
)

// ParsePolicy maps the config spelling of a policy to its value.
func ParsePolicy(s string) (ProximityPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "require_action":
		return RequireAction, nil
	case "event_noun":
		return EventNounSuffices, nil
	}
	return RequireAction, fmt.Errorf("unknown proximity policy %q", s)
}

// Stage identifies which rule settled a verdict.
type Stage int

// Stages in evaluation order.
const (
	StageNameNotFound Stage = iota
	StageRole
	StagePhrase
	StageProximity
	StageNoSignal
)

func (s Stage) String() string {
	switch s {
	case StageNameNotFound:
		return "name-not-found"
	case StageRole:
		return "syntactic-role"
	case StagePhrase:
		return "phrase"
	case StageProximity:
		return "proximity"
	default:
		return "no-signal"
	}
}

// Decision is a verdict plus the stage that produced it.
type Decision struct {
	Involved bool
	Stage    Stage
	// Detail names the verb, phrase or noun that triggered a positive
	// verdict.
	Detail string
}

// Options names the tracked person and the proximity policy.
type Options struct {
	FirstName string
	Surname   string
	Policy    ProximityPolicy
}

// Classifier is safe for concurrent use; it holds no mutable state.
type Classifier struct {
	analyzer nlp.Analyzer
	policy   ProximityPolicy

	surname      string
	fullName     string
	firstLower   string
	surnameLower string
	fullLower    string

	actions      map[string]bool
	reporting    map[string]bool
	events       map[string]bool
	interview    string
	conversation string

	phrases     []string
	phraseIndex *ahocorasick.Matcher
}

// New builds a Classifier. Vocabulary is normalised with the analyzer's
// lemmatiser so it compares equal to token lemmas.
func New(analyzer nlp.Analyzer, opts Options) *Classifier {
	first := strings.TrimSpace(opts.FirstName)
	surname := strings.TrimSpace(opts.Surname)
	full := first + " " + surname
	c := &Classifier{
		analyzer:     analyzer,
		policy:       opts.Policy,
		surname:      surname,
		fullName:     full,
		firstLower:   strings.ToLower(first),
		surnameLower: strings.ToLower(surname),
		fullLower:    strings.ToLower(full),
		actions:      lemmaSet(analyzer, actionVerbs),
		reporting:    lemmaSet(analyzer, reportingVerbs),
		events:       lemmaSet(analyzer, eventNouns),
		interview:    analyzer.Lemma("interview"),
		conversation: analyzer.Lemma("conversation"),
	}
	for _, tmpl := range phraseTemplates {
		c.phrases = append(c.phrases, fmt.Sprintf(tmpl, c.fullLower))
	}
	c.phraseIndex = ahocorasick.NewStringMatcher(c.phrases)
	return c
}

// Classify implements harvest.Classifier.
func (c *Classifier) Classify(title, description string) bool {
	return c.Explain(title, description).Involved
}

// Explain runs the stages in order and reports which one decided.
func (c *Classifier) Explain(title, description string) Decision {
	text := title + " " + description
	doc := c.analyzer.Analyze(text)

	name, ok := c.locate(doc)
	if !ok {
		return Decision{Stage: StageNameNotFound}
	}
	if verb, ok := c.roleCheck(doc, name); ok {
		return Decision{Involved: true, Stage: StageRole, Detail: verb}
	}

	lower := strings.ToLower(text)
	if !strings.Contains(lower, c.fullLower) {
		return Decision{Stage: StageNoSignal}
	}
	if hits := c.phraseIndex.MatchThreadSafe([]byte(lower)); len(hits) > 0 {
		return Decision{Involved: true, Stage: StagePhrase, Detail: c.phrases[hits[0]]}
	}
	if noun, ok := c.proximity(doc); ok {
		return Decision{Involved: true, Stage: StageProximity, Detail: noun}
	}
	return Decision{Stage: StageNoSignal}
}

// locate finds the tracked name: a person entity containing the surname,
// preferring one with the full name, else a literal first-name/surname
// token pair in any case.
func (c *Classifier) locate(doc *nlp.Document) (nlp.Span, bool) {
	var (
		partial nlp.Span
		found   bool
	)
	for _, ent := range doc.Entities {
		if ent.Label != nlp.EntityPerson {
			continue
		}
		text := doc.SpanText(ent)
		if !strings.Contains(text, c.surname) {
			continue
		}
		if strings.Contains(text, c.fullName) {
			return ent, true
		}
		if !found {
			partial, found = ent, true
		}
	}
	if found {
		return partial, true
	}
	if occ := c.occurrences(doc); len(occ) > 0 {
		return nlp.Span{Start: occ[0], End: occ[0] + 2}, true
	}
	return nlp.Span{}, false
}

func (c *Classifier) occurrences(doc *nlp.Document) []int {
	var out []int
	for i := 0; i+1 < len(doc.Tokens); i++ {
		if doc.Tokens[i].Lower == c.firstLower && doc.Tokens[i+1].Lower == c.surnameLower {
			out = append(out, i)
		}
	}
	return out
}

func (c *Classifier) roleCheck(doc *nlp.Document, name nlp.Span) (string, bool) {
	for i := name.Start; i < name.End && i < len(doc.Tokens); i++ {
		tok := doc.Tokens[i]
		switch tok.Dep {
		case nlp.DepNsubj, nlp.DepNsubjPass, nlp.DepAgent:
		default:
			continue
		}
		if tok.Head < 0 || tok.Head >= len(doc.Tokens) || tok.Head == i {
			continue
		}
		head := doc.Tokens[tok.Head]
		switch {
		case head.Lemma == c.conversation:
			if c.hasChild(doc, head.Index, nlp.DepPrep, "with") {
				return head.Text, true
			}
		case head.POS != nlp.Verb:
		case c.actions[head.Lemma]:
			if head.Lemma == c.interview && c.hasChild(doc, head.Index, "", "by") {
				// "interviewed by <name>" only counts when the agent is the
				// tracked person.
				if c.nameIsAgent(doc, head.Index) {
					return head.Text, true
				}
				continue
			}
			return head.Text, true
		case c.reporting[head.Lemma]:
			// Views shared by the person; later stages decide.
		}
	}
	return "", false
}

func (c *Classifier) hasChild(doc *nlp.Document, head int, dep, lower string) bool {
	for _, child := range doc.Children(head) {
		if (dep == "" || child.Dep == dep) && child.Lower == lower {
			return true
		}
	}
	return false
}

func (c *Classifier) nameIsAgent(doc *nlp.Document, head int) bool {
	for _, child := range doc.Children(head) {
		if child.Dep == nlp.DepAgent && strings.Contains(child.Lower, c.surnameLower) {
			return true
		}
	}
	return false
}

// proximity looks 5 tokens before and 10 after each literal occurrence of
// the name for an event noun, then for an action verb in the same window.
func (c *Classifier) proximity(doc *nlp.Document) (string, bool) {
	n := len(doc.Tokens)
	for _, i := range c.occurrences(doc) {
		start := max(0, i-5)
		end := min(n, i+2+10)
		noun := ""
		for j := start; j < end; j++ {
			tok := doc.Tokens[j]
			if tok.POS != nlp.Verb && tok.POS != nlp.Aux && c.events[tok.Lemma] {
				noun = tok.Text
				break
			}
		}
		if noun == "" {
			continue
		}
		for k := start; k < end; k++ {
			if doc.Tokens[k].POS == nlp.Verb && c.actions[doc.Tokens[k].Lemma] {
				return noun, true
			}
		}
		if c.policy == EventNounSuffices {
			return noun, true
		}
	}
	return "", false
}

func lemmaSet(analyzer nlp.Analyzer, words []string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[analyzer.Lemma(w)] = true
	}
	return out
}
