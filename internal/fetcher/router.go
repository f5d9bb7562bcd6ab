// Package fetcher picks the page renderer for a source.
package fetcher

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/harvest"
)

// PageFetcher performs a plain HTTP fetch.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Router implements harvest.Renderer by sending profiled sources to the
// scripted renderer and everything else to the plain fetcher.
type Router struct {
	plain    PageFetcher
	scripted harvest.Renderer
	logger   *zap.Logger
}

// NewRouter builds a Router. scripted may be nil when headless rendering
// is disabled.
func NewRouter(plain PageFetcher, scripted harvest.Renderer, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{plain: plain, scripted: scripted, logger: logger}
}

// Render returns the page markup. An empty page is reported as
// harvest.ErrEmptyPage.
func (r *Router) Render(ctx context.Context, url string, profile *harvest.RenderProfile) (string, error) {
	var (
		html string
		err  error
	)
	switch {
	case profile != nil && r.scripted != nil:
		html, err = r.scripted.Render(ctx, url, profile)
	default:
		if profile != nil {
			r.logger.Warn("headless renderer disabled, falling back to plain fetch", zap.String("url", url))
		}
		html, err = r.plain.Fetch(ctx, url)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(html) == "" {
		return "", harvest.ErrEmptyPage
	}
	return html, nil
}
