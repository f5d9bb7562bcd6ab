package nlp

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"
)

// ErrModelUnavailable is returned when the tagging model cannot be loaded.
var ErrModelUnavailable = errors.New("language model unavailable")

const warmupText = "Cate Blanchett will host a talk at the Barbican in London."

// ProseAnalyzer tags and recognises entities with prose, then labels
// dependencies with Label.
type ProseAnalyzer struct {
	mu     sync.Mutex
	model  *prose.Model
	logger *zap.Logger
}

// NewProseAnalyzer loads the prose model once. A failure here means no
// text can be classified.
func NewProseAnalyzer(logger *zap.Logger) (a *ProseAnalyzer, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defer func() {
		if r := recover(); r != nil {
			a, err = nil, fmt.Errorf("%w: %v", ErrModelUnavailable, r)
		}
	}()
	doc, err := prose.NewDocument(warmupText, prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	if doc.Model == nil {
		return nil, fmt.Errorf("%w: no model attached", ErrModelUnavailable)
	}
	return &ProseAnalyzer{model: doc.Model, logger: logger}, nil
}

// Analyze implements Analyzer.
func (a *ProseAnalyzer) Analyze(text string) (out *Document) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("text analysis panicked", zap.String("panic", fmt.Sprint(r)))
			out = &Document{Text: text}
		}
	}()

	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.UsingModel(a.model),
	)
	if err != nil {
		a.logger.Warn("text analysis failed", zap.Error(err))
		return &Document{Text: text}
	}
	tokens := doc.Tokens()
	words := make([]Word, len(tokens))
	for i, tok := range tokens {
		words[i] = Word{Text: tok.Text, Tag: tok.Tag, Entity: tok.Label}
	}
	return Build(text, words, Lemmatize)
}

// Lemma implements Analyzer.
func (a *ProseAnalyzer) Lemma(word string) string {
	return Lemmatize(word)
}
