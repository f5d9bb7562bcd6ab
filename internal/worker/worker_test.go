package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/harvest"
)

type fakeRenderer struct {
	html    string
	err     error
	profile *harvest.RenderProfile
}

func (f *fakeRenderer) Render(_ context.Context, _ string, profile *harvest.RenderProfile) (string, error) {
	f.profile = profile
	return f.html, f.err
}

type fakeExtractor struct {
	candidates []harvest.Candidate
	panics     bool
}

func (f *fakeExtractor) Extract(string, harvest.SourceDescriptor) []harvest.Candidate {
	if f.panics {
		panic("selector engine exploded")
	}
	out := make([]harvest.Candidate, len(f.candidates))
	copy(out, f.candidates)
	return out
}

type keywordClassifier struct {
	mu    sync.Mutex
	texts []string
}

func (k *keywordClassifier) Classify(title, description string) bool {
	k.mu.Lock()
	k.texts = append(k.texts, description)
	k.mu.Unlock()
	return strings.Contains(title+" "+description, "Cate Blanchett")
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(250 * time.Millisecond)
	return now
}

func source() harvest.SourceDescriptor {
	return harvest.SourceDescriptor{ID: "bfi", URL: "https://whatson.bfi.org.uk/", Render: &harvest.RenderProfile{Ready: "#menuTop"}}
}

func TestWorkerRunDone(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{html: "<html></html>"}
	extractor := &fakeExtractor{candidates: []harvest.Candidate{
		{Title: "In Conversation", Description: "Cate Blanch...", FullDescription: "Cate Blanchett discusses her career.", URL: "https://a"},
		{Title: "Gallery Tour", Description: "A tour.", URL: "https://b"},
	}}
	classifier := &keywordClassifier{}
	w := New(renderer, extractor, classifier, &fakeClock{now: time.Unix(0, 0)}, zap.NewNop())

	res := w.Run(context.Background(), source())

	require.Equal(t, StateDone, res.State)
	require.NoError(t, res.Err)
	require.Equal(t, "bfi", res.SourceID)
	require.Len(t, res.Candidates, 2)
	require.True(t, res.Candidates[0].Involved)
	require.False(t, res.Candidates[1].Involved)
	require.Equal(t, 250*time.Millisecond, res.Duration)
	require.NotNil(t, renderer.profile)
	require.Equal(t, "Cate Blanchett discusses her career.", classifier.texts[0])
}

func TestWorkerRunRenderFailure(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{err: errors.New("wait for .Highlight: context deadline exceeded")}
	w := New(renderer, &fakeExtractor{}, &keywordClassifier{}, nil, nil)

	res := w.Run(context.Background(), source())

	require.Equal(t, StateFailed, res.State)
	require.Error(t, res.Err)
	require.Empty(t, res.Candidates)
}

func TestWorkerRunRecoversPanics(t *testing.T) {
	t.Parallel()

	w := New(&fakeRenderer{html: "<html></html>"}, &fakeExtractor{panics: true}, &keywordClassifier{}, nil, nil)

	res := w.Run(context.Background(), source())

	require.Equal(t, StateFailed, res.State)
	require.ErrorContains(t, res.Err, "panic")
	require.Nil(t, res.Candidates)
}

func TestWorkerRunCanceledContext(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{html: "<html></html>"}
	w := New(renderer, &fakeExtractor{}, &keywordClassifier{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := w.Run(ctx, source())

	require.Equal(t, StateFailed, res.State)
	require.ErrorIs(t, res.Err, context.Canceled)
	require.Nil(t, renderer.profile)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	cases := map[State]string{
		StateIdle:       "idle",
		StateRequested:  "requested",
		StateRendered:   "rendered",
		StateExtracted:  "extracted",
		StateClassified: "classified",
		StateDone:       "done",
		StateFailed:     "failed",
		State(42):       "state(42)",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
