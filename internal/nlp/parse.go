package nlp

import (
	"strings"
	"unicode"
)

// auxForms are the verb forms that act as auxiliaries before another verb.
var auxForms = map[string]bool{
	"am": true, "is": true, "are": true, "was": true, "were": true, "be": true, "been": true, "being": true,
	"'s": true, "'re": true, "'m": true,
	"has": true, "have": true, "had": true, "having": true, "'ve": true, "'d": true,
	"do": true, "does": true, "did": true,
}

var beForms = map[string]bool{
	"am": true, "is": true, "are": true, "was": true, "were": true, "be": true, "been": true, "being": true,
	"'s": true, "'re": true, "'m": true,
}

var clauseBreaks = map[string]bool{
	".": true, "!": true, "?": true, ";": true, ":": true, "|": true,
	"-": true, "–": true, "—": true, "/": true,
}

type chunk struct {
	start, end, head int
	conjOf           int
}

type group struct {
	start, end, main int
	passive          bool
}

type labeler struct {
	toks    []Token
	chunks  []chunk
	chunkAt []int
	groups  []group
	groupAt []int
}

// Label assigns coarse part of speech, dependency role and head to tagged
// words. It is a shallow rule-based labeler: noun phrases are chunked and
// headed by their last noun, verb groups by their main verb, and each verb
// takes the nearest free noun phrase on its left as subject (passive
// subject when the group is passive) and on its right as object. A noun
// phrase after "by" that follows a passive verb is the verb's agent.
// Coordinated noun phrases share the role of the first conjunct.
func Label(words []Word, lemma func(string) string) []Token {
	toks := make([]Token, len(words))
	for i, w := range words {
		toks[i] = Token{
			Index:  i,
			Text:   w.Text,
			Lower:  strings.ToLower(w.Text),
			Lemma:  lemma(w.Text),
			Tag:    w.Tag,
			POS:    coarse(w.Tag, w.Text),
			Head:   -1,
			Entity: w.Entity,
		}
	}
	markAuxiliaries(toks)

	l := &labeler{toks: toks}
	l.chunkNouns()
	l.groupVerbs()
	l.attachPrepositions()
	l.attachArguments()
	l.attachRest()
	return toks
}

func coarse(tag, text string) POS {
	switch {
	case strings.HasPrefix(tag, "VB"):
		return Verb
	case tag == "MD":
		return Aux
	case tag == "NNP" || tag == "NNPS":
		return PropN
	case strings.HasPrefix(tag, "NN"):
		return Noun
	case tag == "PRP" || tag == "PRP$" || tag == "WP" || tag == "WP$" || tag == "EX":
		return Pron
	case tag == "IN":
		return Adp
	case tag == "TO" || tag == "RP" || tag == "POS":
		return Part
	case tag == "DT" || tag == "PDT" || tag == "WDT":
		return Det
	case strings.HasPrefix(tag, "JJ"):
		return Adj
	case strings.HasPrefix(tag, "RB") || tag == "WRB":
		return Adv
	case tag == "CD":
		return Num
	case tag == "CC":
		return CConj
	case tag == "UH":
		return Intj
	case tag == "SYM":
		return Sym
	case isPunct(text):
		return Punct
	}
	return Other
}

func isPunct(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

func markAuxiliaries(toks []Token) {
	for i := range toks {
		if toks[i].POS != Verb || !auxForms[toks[i].Lower] {
			continue
		}
		j := i + 1
		for j < len(toks) && (toks[j].POS == Adv || isNegation(toks[j])) {
			j++
		}
		if j < len(toks) && toks[j].POS == Verb {
			toks[i].POS = Aux
		}
	}
}

func isNegation(tok Token) bool {
	return tok.Lower == "not" || tok.Lower == "n't"
}

func isBreak(tok Token) bool {
	return tok.POS == Punct && clauseBreaks[tok.Text]
}

func nominalModifier(tok Token) bool {
	switch tok.POS {
	case Det, Adj, Num, Noun, PropN:
		return true
	case Pron:
		return tok.Tag == "PRP$" || tok.Tag == "WP$"
	case Part:
		return tok.Tag == "POS"
	}
	return false
}

func (l *labeler) chunkNouns() {
	n := len(l.toks)
	l.chunkAt = fill(n)
	for i := 0; i < n; {
		tok := l.toks[i]
		if tok.POS == Pron && tok.Tag != "PRP$" && tok.Tag != "WP$" {
			l.addChunk(chunk{start: i, end: i + 1, head: i, conjOf: -1})
			i++
			continue
		}
		if !nominalModifier(tok) {
			i++
			continue
		}
		j, head := i, -1
		for j < n && nominalModifier(l.toks[j]) && (j == i || l.toks[j].POS != Det) {
			if l.toks[j].POS == Noun || l.toks[j].POS == PropN {
				head = j
			}
			j++
		}
		if head < 0 {
			i = j
			continue
		}
		c := chunk{start: i, end: j, head: head, conjOf: -1}
		if k := i - 1; k > 0 && l.toks[k].POS == CConj && l.chunkAt[k-1] >= 0 {
			c.conjOf = l.chunkAt[k-1]
		}
		l.addChunk(c)
		for k := i; k < j; k++ {
			if k != head {
				l.set(k, modifierDep(l.toks, k), head)
			}
		}
		i = j
	}
}

func modifierDep(toks []Token, k int) string {
	tok := toks[k]
	switch {
	case tok.Tag == "POS":
		return DepCase
	case tok.Tag == "PRP$" || tok.Tag == "WP$":
		return DepPoss
	case k+1 < len(toks) && toks[k+1].Tag == "POS":
		return DepPoss
	case tok.POS == Det:
		return DepDet
	case tok.POS == Adj:
		return DepAmod
	case tok.POS == Num:
		return DepNummod
	}
	return DepCompound
}

func (l *labeler) addChunk(c chunk) {
	idx := len(l.chunks)
	l.chunks = append(l.chunks, c)
	for k := c.start; k < c.end; k++ {
		l.chunkAt[k] = idx
	}
}

func (l *labeler) groupVerbs() {
	n := len(l.toks)
	l.groupAt = fill(n)
	for i := 0; i < n; i++ {
		if l.toks[i].POS != Aux && l.toks[i].POS != Verb {
			continue
		}
		j := i
		for j < n && (l.toks[j].POS == Aux || (j > i && (l.toks[j].POS == Adv || isNegation(l.toks[j])))) {
			j++
		}
		g := group{start: i}
		if j < n && l.toks[j].POS == Verb {
			g.main, g.end = j, j+1
		} else {
			g.main = i
			for k := i; k < j; k++ {
				if l.toks[k].POS == Aux {
					g.main = k
				}
			}
			g.end = g.main + 1
		}
		g.passive = l.isPassive(g)
		idx := len(l.groups)
		l.groups = append(l.groups, g)
		for k := g.start; k < g.end; k++ {
			l.groupAt[k] = idx
			if k == g.main {
				continue
			}
			switch {
			case isNegation(l.toks[k]):
				l.set(k, DepNeg, g.main)
			case l.toks[k].POS == Adv:
				l.set(k, DepAdvmod, g.main)
			case g.passive && beForms[l.toks[k].Lower]:
				l.set(k, DepAuxPass, g.main)
			default:
				l.set(k, DepAux, g.main)
			}
		}
		i = g.end - 1
	}
}

func (l *labeler) isPassive(g group) bool {
	tag := l.toks[g.main].Tag
	followedByBy := g.end < len(l.toks) && l.toks[g.end].Lower == "by"
	if tag == "VBD" && g.start == g.main {
		// reduced relative: "Screentalk hosted by ..."
		return followedByBy
	}
	if tag != "VBN" {
		return false
	}
	for k := g.start; k < g.main; k++ {
		if l.toks[k].POS == Aux && beForms[l.toks[k].Lower] {
			return true
		}
	}
	return followedByBy
}

func (l *labeler) attachPrepositions() {
	for a, tok := range l.toks {
		if tok.POS != Adp || a+1 >= len(l.toks) {
			continue
		}
		obj := l.chunkStartingAt(a + 1)
		if tok.Lower == "by" {
			if g := l.groupEndingAt(a); g >= 0 && l.groups[g].passive {
				main := l.groups[g].main
				l.set(a, DepPrep, main)
				if obj >= 0 {
					l.assignChunk(obj, DepAgent, main)
				}
				continue
			}
		}
		if obj >= 0 {
			if g := l.groupAfter(l.chunks[obj].end); g >= 0 {
				// "as Cate Blanchett appears": the phrase is the subject of
				// the following clause.
				l.set(a, DepMark, l.groups[g].main)
				continue
			}
		}
		switch {
		case a > 0 && l.chunkAt[a-1] >= 0:
			l.set(a, DepPrep, l.chunks[l.chunkAt[a-1]].head)
		case l.groupBefore(a) >= 0:
			l.set(a, DepPrep, l.groups[l.groupBefore(a)].main)
		}
		if obj >= 0 {
			l.assignChunk(obj, DepPobj, a)
		}
	}
}

func (l *labeler) attachArguments() {
	for _, g := range l.groups {
		k := g.start - 1
		for k >= 0 && l.toks[k].POS == Adv {
			k--
		}
		if k < 0 || l.chunkAt[k] < 0 || l.chunks[l.chunkAt[k]].end != k+1 {
			continue
		}
		c := l.rootConjunct(l.chunkAt[k])
		if l.toks[l.chunks[c].head].Dep != "" {
			continue
		}
		dep := DepNsubj
		if g.passive {
			dep = DepNsubjPass
		}
		l.assignChunk(c, dep, g.main)
	}
	for _, g := range l.groups {
		if g.passive {
			continue
		}
		if c := l.chunkStartingAt(g.end); c >= 0 && l.toks[l.chunks[c].head].Dep == "" {
			l.assignChunk(c, DepDobj, g.main)
		}
	}
}

func (l *labeler) attachRest() {
	for start := 0; start < len(l.toks); {
		end := start
		for end < len(l.toks) && !isBreak(l.toks[end]) {
			end++
		}
		if end < len(l.toks) {
			end++
		}
		l.attachClause(start, end)
		start = end
	}
}

func (l *labeler) attachClause(start, end int) {
	root := -1
	prevMain := -1
	for k := start; k < end; k++ {
		g := l.groupAt[k]
		if g < 0 || l.groups[g].main != k {
			continue
		}
		switch {
		case root < 0:
			root = k
			l.set(k, DepRoot, k)
		case l.groups[g].start > 0 && l.toks[l.groups[g].start-1].POS == CConj:
			l.set(k, DepConj, prevMain)
		default:
			l.set(k, DepCcomp, prevMain)
		}
		prevMain = k
	}
	if root < 0 {
		for k := start; k < end; k++ {
			if c := l.chunkAt[k]; c >= 0 && l.chunks[c].head == k && l.toks[k].Dep == "" {
				root = k
				l.set(k, DepRoot, k)
				break
			}
		}
	}
	if root < 0 {
		root = start
		l.set(start, DepRoot, start)
	}
	for k := start; k < end; k++ {
		tok := l.toks[k]
		if tok.Dep != "" {
			continue
		}
		switch {
		case tok.Tag == "TO" && k+1 < len(l.toks) && l.groupAt[k+1] >= 0:
			l.set(k, DepAux, l.groups[l.groupAt[k+1]].main)
		case tok.POS == Punct:
			l.set(k, DepPunct, root)
		case tok.POS == CConj:
			l.set(k, DepCC, root)
		case tok.POS == Adp:
			l.set(k, DepPrep, root)
		default:
			l.set(k, DepDep, root)
		}
	}
}

// assignChunk gives chunk c and the conjuncts coordinated with it the same
// role under head.
func (l *labeler) assignChunk(c int, dep string, head int) {
	l.set(l.chunks[c].head, dep, head)
	for next := range l.chunks {
		if l.chunks[next].conjOf == c && l.toks[l.chunks[next].head].Dep == "" {
			l.assignChunk(next, dep, head)
			cc := l.chunks[next].start - 1
			if l.toks[cc].Dep == "" {
				l.set(cc, DepCC, l.chunks[c].head)
			}
		}
	}
}

func (l *labeler) rootConjunct(c int) int {
	for l.chunks[c].conjOf >= 0 && l.toks[l.chunks[l.chunks[c].conjOf].head].Dep == "" {
		c = l.chunks[c].conjOf
	}
	return c
}

func (l *labeler) chunkStartingAt(k int) int {
	if k < len(l.toks) && l.chunkAt[k] >= 0 && l.chunks[l.chunkAt[k]].start == k {
		return l.chunkAt[k]
	}
	return -1
}

func (l *labeler) groupEndingAt(k int) int {
	if k > 0 && l.groupAt[k-1] >= 0 && l.groups[l.groupAt[k-1]].end == k {
		return l.groupAt[k-1]
	}
	return -1
}

// groupAfter returns the verb group starting at k, skipping adverbs.
func (l *labeler) groupAfter(k int) int {
	for k < len(l.toks) && l.toks[k].POS == Adv {
		k++
	}
	if k < len(l.toks) && l.groupAt[k] >= 0 && l.groups[l.groupAt[k]].start == k {
		return l.groupAt[k]
	}
	return -1
}

// groupBefore returns the nearest verb group left of k in the same clause.
func (l *labeler) groupBefore(k int) int {
	for j := k - 1; j >= 0; j-- {
		if isBreak(l.toks[j]) {
			return -1
		}
		if l.groupAt[j] >= 0 {
			return l.groupAt[j]
		}
	}
	return -1
}

func (l *labeler) set(k int, dep string, head int) {
	l.toks[k].Dep = dep
	l.toks[k].Head = head
}

func fill(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = -1
	}
	return out
}
