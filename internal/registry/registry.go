// Package registry holds the table of monitored listing pages and their
// render profiles.
package registry

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/eventwatch/internal/config"
	"github.com/JakeFAU/eventwatch/internal/harvest"
)

// profiles maps a source id to the script needed to obtain its complete
// listing. Sources absent from the map are fetched without a browser.
var profiles = map[string]harvest.RenderProfile{
	"bfi": {
		Ready:   "#menuTop",
		Stealth: true,
		Steps: []harvest.Step{
			{Trigger: "#menuTopItem1", WaitAfter: ".menuSub"},
			{Trigger: ".menuSubItem", WaitAfter: ".Highlight"},
		},
	},
	"national-theatre": {Ready: ".c-event-card"},
	"southbank-centre": {Ready: ".c-event-card"},
	"royal-academy":    {Ready: ".whats-on-listing__item"},
	"npg":              {Ready: ".o-card-standard"},
}

type row struct {
	id, url, container, title, description, link, base string
}

var defaults = []row{
	{"barbican", "https://www.barbican.org.uk/whats-on",
		"article.listing--event", "h2.listing-title--event", "div.search-listing__intro",
		"a.search-listing__link", "https://www.barbican.org.uk"},
	{"national-theatre", "https://www.nationaltheatre.org.uk/whats-on",
		"div.c-event-card", "h3.c-event-card__title", "div.c-event-card__description",
		"a.c-event-card__cover-link", "https://www.nationaltheatre.org.uk"},
	{"premiere-scene", "https://premierescene.net/film-calendar/",
		"div.vsel-content", "h4.vsel-meta-title", "div.vsel-info",
		"a", "https://premierescene.net/film-calendar/"},
	{"bfi", "https://whatson.bfi.org.uk/Online/default.asp",
		"div.Highlight", "h3.Highlight__heading", "p.Highlight__copy",
		"a.Highlight__link", "https://www.bfi.org.uk"},
	{"bbc-entertainment", "https://www.bbc.co.uk/news/entertainment_and_arts",
		"li.e1gp961v0", "div.ssrcss-espw6b-Stack", "a",
		"a.ssrcss-5wtq5v-PromoLink", "https://www.bbc.co.uk"},
	{"npg", "https://www.npg.org.uk/whatson/events-calendar?when=&what=event&who=",
		"div.o-card-standard", "a.a-link--nodec", "div.o-card-standard__text > div:last-child",
		"div.o-card-standard__image", "https://www.npg.org.uk"},
	{"southbank-centre", "https://www.southbankcentre.co.uk/whats-on/",
		"div.c-event-card", "h3.c-event-card__title", "div.c-event-card__listing-details",
		"a.c-event-card__cover-link", "https://www.southbankcentre.co.uk"},
	{"royal-academy", "https://www.royalacademy.org.uk/exhibitions-and-events?page=1&what-filter=talks-lectures",
		"li.whats-on-listing__item", "h2.event-card__title", "h2.event-card__title",
		"a.event-card__link", "https://www.royalacademy.org.uk"},
	{"national-gallery", "https://www.nationalgallery.org.uk/events/talks-and-conversations",
		"article.card", "div.card-title", "div.event-description",
		"a.dl-product-link", "https://www.nationalgallery.org.uk"},
	{"vam", "https://www.vam.ac.uk/whatson?type=talk",
		"li.b-event-teaser", "h2.b-event-teaser__title", "h2.b-event-teaser__title",
		"a.b-event-teaser__link", "https://www.vam.ac.uk"},
	{"tate", "https://www.tate.org.uk/whats-on?event_type=talk",
		"div.card", "h2.card__title", "div.card__description",
		"a", "https://www.tate.org.uk"},
	{"wellcome", "https://wellcomecollection.org/events?format=Wd-QYCcAACcAoiJS",
		"a.sc-d97058b-1", "h3.sc-4e66622a-0", "h3.sc-4e66622a-0",
		"a.sc-d97058b-1", "https://wellcomecollection.org"},
	{"london-library", "https://www.londonlibrary.co.uk/whats-on",
		"li.event", "h3.title", "div.event-description p",
		"a", "https://www.londonlibrary.co.uk"},
}

// Default returns the built-in source table. Each call returns fresh
// values so callers cannot mutate shared state.
func Default() []harvest.SourceDescriptor {
	out := make([]harvest.SourceDescriptor, 0, len(defaults))
	for _, r := range defaults {
		out = append(out, harvest.SourceDescriptor{
			ID:                  r.id,
			URL:                 r.url,
			ContainerSelector:   r.container,
			TitleSelector:       r.title,
			DescriptionSelector: r.description,
			LinkSelector:        r.link,
			BaseURL:             r.base,
			Render:              Profile(r.id),
		})
	}
	return out
}

// Profile returns a copy of the render profile registered for id, or nil.
func Profile(id string) *harvest.RenderProfile {
	p, ok := profiles[id]
	if !ok {
		return nil
	}
	p.Steps = append([]harvest.Step(nil), p.Steps...)
	return &p
}

// Load returns the configured sources, or the default table when none are
// configured.
func Load(overrides []config.SourceConfig) ([]harvest.SourceDescriptor, error) {
	if len(overrides) == 0 {
		return Default(), nil
	}
	return FromConfig(overrides)
}

// FromConfig converts config rows to descriptors. A row without its own
// render block inherits the registered profile for its id.
func FromConfig(rows []config.SourceConfig) ([]harvest.SourceDescriptor, error) {
	out := make([]harvest.SourceDescriptor, 0, len(rows))
	for _, r := range rows {
		src := harvest.SourceDescriptor{
			ID:                  strings.TrimSpace(r.ID),
			URL:                 strings.TrimSpace(r.URL),
			ContainerSelector:   r.Container,
			TitleSelector:       r.Title,
			DescriptionSelector: r.Description,
			LinkSelector:        r.Link,
			BaseURL:             r.BaseURL,
		}
		if r.Render != nil {
			profile := &harvest.RenderProfile{Ready: r.Render.Ready, Stealth: r.Render.Stealth}
			for _, s := range r.Render.Steps {
				profile.Steps = append(profile.Steps, harvest.Step{Trigger: s.Click, WaitAfter: s.Wait})
			}
			src.Render = profile
		} else {
			src.Render = Profile(src.ID)
		}
		out = append(out, src)
	}
	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks that every descriptor is usable and ids are unique.
func Validate(sources []harvest.SourceDescriptor) error {
	seen := make(map[string]struct{}, len(sources))
	for i, src := range sources {
		if src.ID == "" {
			return fmt.Errorf("source %d: id is required", i)
		}
		if _, dup := seen[src.ID]; dup {
			return fmt.Errorf("source %q: duplicate id", src.ID)
		}
		seen[src.ID] = struct{}{}
		if src.URL == "" {
			return fmt.Errorf("source %q: url is required", src.ID)
		}
		if strings.TrimSpace(src.ContainerSelector) == "" {
			return fmt.Errorf("source %q: container selector is required", src.ID)
		}
		if src.Render != nil {
			for j, step := range src.Render.Steps {
				if step.Trigger == "" || step.WaitAfter == "" {
					return fmt.Errorf("source %q: step %d needs both click and wait selectors", src.ID, j)
				}
			}
		}
	}
	return nil
}
