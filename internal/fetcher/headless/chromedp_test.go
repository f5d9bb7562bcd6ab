package headless

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/JakeFAU/eventwatch/internal/harvest"
)

func TestNewChromedpLimiterValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewChromedp(Config{MaxParallel: -1}); err == nil {
		t.Fatal("expected error for negative max parallel")
	}
	renderer, err := NewChromedp(Config{MaxParallel: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer renderer.Close()
	if cap(renderer.limiter) != 2 {
		t.Fatalf("expected limiter capacity 2, got %d", cap(renderer.limiter))
	}
}

func TestWaitTimeoutDefault(t *testing.T) {
	t.Parallel()

	renderer := &Renderer{}
	if got := renderer.waitTimeout(); got != 20*time.Second {
		t.Fatalf("expected default wait timeout, got %v", got)
	}
	renderer.cfg.WaitTimeout = time.Second
	if got := renderer.waitTimeout(); got != time.Second {
		t.Fatalf("expected override to be used, got %v", got)
	}
}

func TestActionsFollowProfile(t *testing.T) {
	t.Parallel()

	renderer := &Renderer{}
	var html string
	if got := len(renderer.actions("https://example.com", nil, &html)); got != 3 {
		t.Fatalf("expected setup, navigate and capture for a plain render, got %d actions", got)
	}

	profile := &harvest.RenderProfile{
		Ready: "#menuTop",
		Steps: []harvest.Step{
			{Trigger: "#menuTopItem1", WaitAfter: ".menuSub"},
			{Trigger: ".menuSubItem", WaitAfter: ".Highlight"},
		},
	}
	// setup + navigate + ready + 2*(click, wait) + capture
	if got := len(renderer.actions("https://example.com", profile, &html)); got != 8 {
		t.Fatalf("expected 8 actions, got %d", got)
	}
}

func TestBoundedAppliesTimeout(t *testing.T) {
	t.Parallel()

	renderer := &Renderer{cfg: Config{WaitTimeout: 20 * time.Millisecond}}
	slow := chromedpActionFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	err := renderer.bounded("wait for .Highlight", slow).Do(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestAcquireRespectsCancellation(t *testing.T) {
	t.Parallel()

	renderer := &Renderer{limiter: make(chan struct{}, 1)}
	if err := renderer.acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := renderer.acquire(ctx); err == nil {
		t.Fatal("expected canceled acquire to fail while the slot is held")
	}
	renderer.release()
	if err := renderer.acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestDocumentStatusKeepsFirstDocument(t *testing.T) {
	t.Parallel()

	meta := &documentStatus{}
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 500},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 404},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 200},
	})
	if got := meta.get(); got != 404 {
		t.Fatalf("expected first document status 404, got %d", got)
	}
}

type chromedpActionFunc func(ctx context.Context) error

func (f chromedpActionFunc) Do(ctx context.Context) error {
	return f(ctx)
}
