package probe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"apirelay/internal/fetch"
	"apirelay/internal/ratelimit"
	"apirelay/internal/registry"
)

// fakePinger records probe calls and fails the URLs listed in fail.
type fakePinger struct {
	mu          sync.Mutex
	delay       time.Duration
	fail        map[string]bool
	seen        map[string][]string // origin -> urls in call order
	inflight    map[string]int
	maxInflight map[string]int
}

func newFakePinger() *fakePinger {
	return &fakePinger{
		fail:        map[string]bool{},
		seen:        map[string][]string{},
		inflight:    map[string]int{},
		maxInflight: map[string]int{},
	}
}

func (f *fakePinger) FetchRaw(_ context.Context, urls []string, _ map[string]string, probeOnly bool) (fetch.Result, error) {
	if !probeOnly {
		return fetch.Result{}, errors.New("prober must use probe-only mode")
	}
	u := urls[0]
	origin := ratelimit.Origin(u)

	f.mu.Lock()
	f.seen[origin] = append(f.seen[origin], u)
	f.inflight[origin]++
	if f.inflight[origin] > f.maxInflight[origin] {
		f.maxInflight[origin] = f.inflight[origin]
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inflight[origin]--
	failed := f.fail[u]
	f.mu.Unlock()

	if failed {
		return fetch.Result{}, errors.New("probe refused")
	}
	return fetch.Result{}, nil
}

func def(name string, urls ...string) registry.Definition {
	return registry.Definition{Keywords: []string{name}, URLs: urls, Type: registry.KindText}
}

func TestRunRoundCountMatchesLongestOriginQueue(t *testing.T) {
	t.Parallel()

	pinger := newFakePinger()
	p := New(pinger, nil, zap.NewNop())

	report := p.Run(context.Background(), []registry.Definition{
		def("multi", "https://x.example.com/a", "https://x.example.com/b", "https://x.example.com/c"),
		def("single", "https://y.example.com/only"),
	})

	require.Equal(t, 3, report.Rounds)
	require.Equal(t, []string{"multi", "single"}, report.Available)
	require.Empty(t, report.Unavailable)
}

func TestRunAnyURLSuccessMarksAvailable(t *testing.T) {
	t.Parallel()

	pinger := newFakePinger()
	pinger.fail["https://x.example.com/down"] = true
	pinger.fail["https://dead.example.com/a"] = true
	pinger.fail["https://dead.example.com/b"] = true
	p := New(pinger, nil, zap.NewNop())

	report := p.Run(context.Background(), []registry.Definition{
		def("flaky", "https://x.example.com/down", "https://x.example.com/up"),
		def("dead", "https://dead.example.com/a", "https://dead.example.com/b"),
	})

	require.Equal(t, []string{"flaky"}, report.Available)
	require.Equal(t, []string{"dead"}, report.Unavailable)
}

func TestRunPreservesPerOriginFIFO(t *testing.T) {
	t.Parallel()

	pinger := newFakePinger()
	p := New(pinger, nil, zap.NewNop())

	p.Run(context.Background(), []registry.Definition{
		def("a", "https://x.example.com/1", "https://x.example.com/2"),
		def("b", "https://x.example.com/3"),
	})

	require.Equal(t,
		[]string{"https://x.example.com/1", "https://x.example.com/2", "https://x.example.com/3"},
		pinger.seen["https://x.example.com"],
	)
}

func TestRunBoundsPerOriginConcurrency(t *testing.T) {
	t.Parallel()

	pinger := newFakePinger()
	pinger.delay = 20 * time.Millisecond
	p := New(pinger, nil, zap.NewNop())

	p.Run(context.Background(), []registry.Definition{
		def("a", "https://x.example.com/1", "https://x.example.com/2", "https://x.example.com/3"),
		def("b", "https://y.example.com/1", "https://y.example.com/2"),
		def("c", "https://z.example.com/1"),
	})

	for origin, max := range pinger.maxInflight {
		require.LessOrEqual(t, max, 1, "origin %s saw concurrent probes", origin)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pinger := newFakePinger()
	p := New(pinger, nil, zap.NewNop())
	report := p.Run(ctx, []registry.Definition{
		def("a", "https://x.example.com/1"),
	})

	require.Zero(t, report.Rounds)
	require.Equal(t, []string{"a"}, report.Unavailable)
}

func TestRunEmptyRegistry(t *testing.T) {
	t.Parallel()

	p := New(newFakePinger(), nil, zap.NewNop())
	report := p.Run(context.Background(), nil)
	require.Zero(t, report.Rounds)
	require.Empty(t, report.Available)
	require.Empty(t, report.Unavailable)
}
