// Package headless renders listing pages that build their content client
// side, driving headless Chrome through chromedp.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/eventwatch/internal/harvest"
)

const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// Config controls the behavior of the headless renderer.
type Config struct {
	MaxParallel int
	UserAgent   string
	// WaitTimeout bounds navigation and every wait condition individually.
	WaitTimeout time.Duration
}

// Renderer implements harvest.Renderer using chromedp and headless Chrome.
type Renderer struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a renderer backed by a shared Chrome allocator.
func NewChromedp(cfg Config) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, shutting the browser down.
func (r *Renderer) Close() {
	r.allocCancel()
}

// Render navigates to url, runs the profile's wait and click steps, and
// returns the resulting DOM.
func (r *Renderer) Render(ctx context.Context, url string, profile *harvest.RenderProfile) (string, error) {
	if err := r.acquire(ctx); err != nil {
		return "", err
	}
	defer r.release()

	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	meta := &documentStatus{}
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	var html string
	if err := chromedp.Run(taskCtx, r.actions(url, profile, &html)...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	if status := meta.get(); status >= http.StatusBadRequest {
		return "", fmt.Errorf("unexpected status %d", status)
	}
	return html, nil
}

func (r *Renderer) actions(url string, profile *harvest.RenderProfile, html *string) []chromedp.Action {
	actions := []chromedp.Action{
		r.setupAction(profile != nil && profile.Stealth),
		r.bounded("navigate", chromedp.Navigate(url)),
	}
	if profile != nil {
		if profile.Ready != "" {
			actions = append(actions, r.waitFor(profile.Ready))
		}
		for _, step := range profile.Steps {
			actions = append(actions,
				r.bounded("click "+step.Trigger, chromedp.Click(step.Trigger, chromedp.ByQuery)),
				r.waitFor(step.WaitAfter),
			)
		}
	}
	return append(actions, chromedp.OuterHTML("html", html, chromedp.ByQuery))
}

func (r *Renderer) setupAction(stealth bool) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if stealth {
			if _, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx); err != nil {
				return fmt.Errorf("install stealth script: %w", err)
			}
		}
		return nil
	})
}

func (r *Renderer) waitFor(selector string) chromedp.Action {
	return r.bounded("wait for "+selector, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// bounded runs action under its own WaitTimeout.
func (r *Renderer) bounded(name string, action chromedp.Action) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		stepCtx, cancel := context.WithTimeout(ctx, r.waitTimeout())
		defer cancel()
		if err := action.Do(stepCtx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}

func (r *Renderer) waitTimeout() time.Duration {
	if r.cfg.WaitTimeout > 0 {
		return r.cfg.WaitTimeout
	}
	return 20 * time.Second
}

// documentStatus records the HTTP status of the main document.
type documentStatus struct {
	mu     sync.Mutex
	status int
}

func (d *documentStatus) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	d.mu.Lock()
	if d.status == 0 {
		d.status = int(resp.Response.Status)
	}
	d.mu.Unlock()
}

func (d *documentStatus) get() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}
