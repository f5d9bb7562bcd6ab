// Package extract turns rendered listing HTML into candidate events.
package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/harvest"
)

// Placeholder text for missing fields.
const (
	NoTitle       = "No Title Found"
	NoDescription = "No Description Found"
)

// MaxDescription is the number of characters kept in a description snippet.
const MaxDescription = 200

const ellipsis = "..."

var absolutePrefixes = []string{"http://", "https://"}

// Extractor applies a source's selectors to rendered HTML.
type Extractor struct {
	logger *zap.Logger
}

// New constructs an Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract returns one candidate per container match. It never fails:
// unparsable markup and invalid selectors yield no candidates, and missing
// fields are defaulted.
func (e *Extractor) Extract(html string, src harvest.SourceDescriptor) (out []harvest.Candidate) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("extraction aborted",
				zap.String("source_id", src.ID),
				zap.String("panic", fmt.Sprint(r)),
			)
			out = nil
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Warn("parse listing html", zap.String("source_id", src.ID), zap.Error(err))
		return nil
	}
	if strings.TrimSpace(src.ContainerSelector) == "" {
		return nil
	}

	doc.Find(src.ContainerSelector).Each(func(_ int, container *goquery.Selection) {
		description := text(container, src.DescriptionSelector, NoDescription)
		out = append(out, harvest.Candidate{
			Title:           text(container, src.TitleSelector, NoTitle),
			Description:     Truncate(description),
			FullDescription: description,
			URL:             link(container, src),
			SourceID:        src.ID,
		})
	})
	return out
}

// Truncate bounds s to MaxDescription characters plus an ellipsis marker.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxDescription {
		return s
	}
	return string([]rune(s)[:MaxDescription]) + ellipsis
}

// Resolve joins a relative href to base by plain concatenation.
func Resolve(href, base string) string {
	if base == "" {
		return href
	}
	for _, prefix := range absolutePrefixes {
		if strings.HasPrefix(href, prefix) {
			return href
		}
	}
	return base + href
}

func text(container *goquery.Selection, selector, placeholder string) string {
	if strings.TrimSpace(selector) == "" {
		return placeholder
	}
	sel := container.Find(selector).First()
	if sel.Length() == 0 {
		return placeholder
	}
	return strings.TrimSpace(sel.Text())
}

func link(container *goquery.Selection, src harvest.SourceDescriptor) string {
	if strings.TrimSpace(src.LinkSelector) == "" {
		return src.URL
	}
	href, ok := container.Find(src.LinkSelector).First().Attr("href")
	if !ok {
		return src.URL
	}
	return Resolve(href, src.BaseURL)
}
