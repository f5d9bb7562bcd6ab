package nlp

import (
	"strings"

	"github.com/kljensen/snowball/english"
)

// irregular maps inflected forms the stemmer cannot reduce to their base.
var irregular = map[string]string{
	"am": "be", "is": "be", "are": "be", "was": "be", "were": "be", "been": "be", "being": "be",
	"has": "have", "had": "have", "having": "have",
	"does": "do", "did": "do", "done": "do",
	"said": "say", "says": "say",
	"told": "tell",
	"thought": "think",
	"spoke": "speak", "spoken": "speak",
	"gave": "give", "given": "give",
	"went": "go", "gone": "go",
	"came": "come",
	"took": "take", "taken": "take",
	"held": "hold",
	"led": "lead",
	"met": "meet",
	"brought": "bring",
	"made": "make",
	"saw": "see", "seen": "see",
	"wrote": "write", "written": "write",
	"sang": "sing", "sung": "sing",
	"won": "win",
}

// Lemmatize reduces word to a lower-case base form: irregular forms through
// a lookup table, everything else through the Snowball English stemmer.
// Hyphenated words keep their prefix and stem the final part.
func Lemmatize(word string) string {
	lower := strings.ToLower(strings.TrimSpace(word))
	if lower == "" {
		return ""
	}
	if base, ok := irregular[lower]; ok {
		return base
	}
	if i := strings.LastIndex(lower, "-"); i > 0 && i < len(lower)-1 {
		return lower[:i+1] + english.Stem(lower[i+1:], false)
	}
	return english.Stem(lower, false)
}
