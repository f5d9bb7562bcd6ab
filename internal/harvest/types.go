// Package harvest defines core types shared across the harvest pipeline.
package harvest

import (
	"errors"
	"sort"
)

// ErrEmptyPage is returned when a renderer produced no markup.
var ErrEmptyPage = errors.New("renderer returned an empty page")

// SourceDescriptor describes one monitored listing page.
type SourceDescriptor struct {
	ID                  string
	URL                 string
	ContainerSelector   string
	TitleSelector       string
	DescriptionSelector string
	LinkSelector        string
	// BaseURL is prepended to relative hrefs. Empty leaves hrefs untouched.
	BaseURL string
	// Render is nil for pages that need a plain fetch only.
	Render *RenderProfile
}

// RenderProfile is a wait-and-interact script for pages that build their
// listing client side. Every selector is a CSS query and every wait is
// satisfied by element presence.
type RenderProfile struct {
	Ready   string
	Stealth bool
	Steps   []Step
}

// Step clicks Trigger then waits for WaitAfter to appear.
type Step struct {
	Trigger   string
	WaitAfter string
}

// Candidate is one event extracted from a listing page.
type Candidate struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Involved    bool   `json:"is_involved"`
	Description string `json:"description"`
	SourceID    string `json:"-"`
	// FullDescription is the untruncated description text used for
	// classification.
	FullDescription string `json:"-"`
}

// ClassifierText returns the description the classifier should see.
func (c Candidate) ClassifierText() string {
	if c.FullDescription != "" {
		return c.FullDescription
	}
	return c.Description
}

// Notification is a batch of new events addressed to a recipient list.
type Notification struct {
	Subject    string
	Body       string
	Sender     string
	Recipients []string
	Events     []Candidate
}

// URLSet is a set of canonical event URLs.
type URLSet map[string]struct{}

// NewURLSet builds a set from the given URLs.
func NewURLSet(urls ...string) URLSet {
	s := make(URLSet, len(urls))
	for _, u := range urls {
		s[u] = struct{}{}
	}
	return s
}

// Contains reports whether url is in the set.
func (s URLSet) Contains(url string) bool {
	_, ok := s[url]
	return ok
}

// Add inserts url into the set.
func (s URLSet) Add(url string) {
	s[url] = struct{}{}
}

// Sorted returns the members in lexical order.
func (s URLSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
