package dispatcher

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/harvest"
	"github.com/JakeFAU/eventwatch/internal/worker"
)

type scriptedTask struct {
	failing  map[string]bool
	delay    time.Duration
	running  atomic.Int32
	peak     atomic.Int32
	finished atomic.Int32
}

func (s *scriptedTask) Run(ctx context.Context, src harvest.SourceDescriptor) worker.Result {
	cur := s.running.Add(1)
	defer s.running.Add(-1)
	for {
		old := s.peak.Load()
		if cur <= old || s.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	time.Sleep(s.delay)
	defer s.finished.Add(1)

	if s.failing[src.ID] {
		return worker.Result{SourceID: src.ID, State: worker.StateFailed, Err: fmt.Errorf("render %s failed", src.ID)}
	}
	return worker.Result{
		SourceID: src.ID,
		State:    worker.StateDone,
		Candidates: []harvest.Candidate{
			{Title: src.ID + " event", URL: src.URL + "/event", SourceID: src.ID},
		},
	}
}

func sources(n int) []harvest.SourceDescriptor {
	out := make([]harvest.SourceDescriptor, n)
	for i := range out {
		id := fmt.Sprintf("source-%d", i)
		out[i] = harvest.SourceDescriptor{ID: id, URL: "https://example.com/" + id}
	}
	return out
}

func TestDispatcherAggregatesAllSources(t *testing.T) {
	t.Parallel()

	task := &scriptedTask{failing: map[string]bool{"source-1": true}}
	d := New(task, Config{Concurrency: 4}, zap.NewNop())

	agg := d.Run(context.Background(), sources(5))

	require.Len(t, agg.Results, 5)
	require.Len(t, agg.Candidates, 4)
	require.Equal(t, 1, agg.Failed())
	for _, c := range agg.Candidates {
		require.NotEqual(t, "source-1", c.SourceID)
	}
}

func TestDispatcherAllFailing(t *testing.T) {
	t.Parallel()

	failing := map[string]bool{}
	for _, src := range sources(3) {
		failing[src.ID] = true
	}
	task := &scriptedTask{failing: failing}

	agg := New(task, Config{}, nil).Run(context.Background(), sources(3))

	require.Empty(t, agg.Candidates)
	require.Equal(t, 3, agg.Failed())
	require.EqualValues(t, 3, task.finished.Load())
}

func TestDispatcherRespectsLimit(t *testing.T) {
	t.Parallel()

	task := &scriptedTask{delay: 20 * time.Millisecond}
	d := New(task, Config{Concurrency: 8, MaxWorkers: 2}, zap.NewNop())

	agg := d.Run(context.Background(), sources(6))

	require.Len(t, agg.Results, 6)
	require.LessOrEqual(t, task.peak.Load(), int32(2))
}

func TestDispatcherNoSources(t *testing.T) {
	t.Parallel()

	agg := New(&scriptedTask{}, Config{}, nil).Run(context.Background(), nil)
	require.Empty(t, agg.Results)
	require.Empty(t, agg.Candidates)
}

func TestWorkerCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     Config
		sources int
		want    int
	}{
		{name: "capped by sources", cfg: Config{Concurrency: 8}, sources: 3, want: 3},
		{name: "capped by max workers", cfg: Config{Concurrency: 40, MaxWorkers: 10}, sources: 13, want: 10},
		{name: "default max workers", cfg: Config{Concurrency: 40}, sources: 30, want: DefaultMaxWorkers},
		{name: "explicit concurrency", cfg: Config{Concurrency: 2}, sources: 13, want: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := New(nil, tc.cfg, nil)
			if got := d.workerCount(tc.sources); got != tc.want {
				t.Fatalf("workerCount(%d) = %d, want %d", tc.sources, got, tc.want)
			}
		})
	}
}
