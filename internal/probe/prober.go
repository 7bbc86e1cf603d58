// Package probe health-checks every registered endpoint URL, batched so
// that no single origin ever sees more than one in-flight probe at a time.
package probe

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"apirelay/internal/fetch"
	"apirelay/internal/metrics"
	"apirelay/internal/ratelimit"
	"apirelay/internal/registry"
)

// Pinger is the slice of the fetch client the prober needs: the primitive
// request operation in probe-only mode.
type Pinger interface {
	FetchRaw(ctx context.Context, urls []string, params map[string]string, probeOnly bool) (fetch.Result, error)
}

// Limiter paces requests per origin between rounds.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Report is the outcome of one full probe pass.
type Report struct {
	Available   []string
	Unavailable []string
	Rounds      int
}

// entry is one URL to probe on behalf of an endpoint.
type entry struct {
	endpoint string
	url      string
	params   map[string]string
}

// Prober drives probe rounds over the registry snapshot.
type Prober struct {
	client  Pinger
	limiter Limiter
	logger  *zap.Logger
}

// New constructs a Prober. limiter may be nil to probe unpaced.
func New(client Pinger, limiter Limiter, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Prober{client: client, limiter: limiter, logger: logger}
}

// Run probes every URL of every definition. Each round pops one entry per
// non-empty origin queue and probes the batch concurrently; an endpoint is
// available once any of its URLs succeeds in any round. Individual probe
// failures never abort the pass.
func (p *Prober) Run(ctx context.Context, defs []registry.Definition) Report {
	queues := make(map[string][]entry)
	succeeded := make(map[string]bool, len(defs))
	for _, def := range defs {
		succeeded[def.Name()] = false
		for _, u := range def.URLs {
			origin := ratelimit.Origin(u)
			queues[origin] = append(queues[origin], entry{
				endpoint: def.Name(),
				url:      u,
				params:   def.Params,
			})
		}
	}

	origins := make([]string, 0, len(queues))
	for origin := range queues {
		origins = append(origins, origin)
	}
	sort.Strings(origins)

	var mu sync.Mutex
	rounds := 0
	for ctx.Err() == nil {
		batch := p.nextBatch(queues, origins)
		if len(batch) == 0 {
			break
		}
		rounds++
		metrics.ObserveProbeRound()

		var wg sync.WaitGroup
		for _, e := range batch {
			wg.Add(1)
			go func(e entry) {
				defer wg.Done()
				if ok := p.probeOne(ctx, e); ok {
					mu.Lock()
					succeeded[e.endpoint] = true
					mu.Unlock()
				}
			}(e)
		}
		wg.Wait()
	}

	report := Report{Rounds: rounds}
	names := make([]string, 0, len(succeeded))
	for name := range succeeded {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		metrics.SetEndpointAvailable(name, succeeded[name])
		if succeeded[name] {
			report.Available = append(report.Available, name)
		} else {
			report.Unavailable = append(report.Unavailable, name)
		}
	}
	p.logger.Info("probe pass finished",
		zap.Int("rounds", report.Rounds),
		zap.Int("available", len(report.Available)),
		zap.Int("unavailable", len(report.Unavailable)),
	)
	return report
}

// nextBatch pops the head of every non-empty origin queue, preserving
// per-origin FIFO order.
func (p *Prober) nextBatch(queues map[string][]entry, origins []string) []entry {
	var batch []entry
	for _, origin := range origins {
		q := queues[origin]
		if len(q) == 0 {
			continue
		}
		batch = append(batch, q[0])
		queues[origin] = q[1:]
	}
	return batch
}

// probeOne issues one probe-only request. Any non-error outcome counts as
// reachable.
func (p *Prober) probeOne(ctx context.Context, e entry) bool {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, e.url); err != nil {
			p.logger.Warn("probe pacing interrupted",
				zap.String("endpoint", e.endpoint), zap.String("url", e.url), zap.Error(err))
			return false
		}
	}
	if _, err := p.client.FetchRaw(ctx, []string{e.url}, e.params, true); err != nil {
		p.logger.Debug("probe failed",
			zap.String("endpoint", e.endpoint), zap.String("url", e.url), zap.Error(err))
		return false
	}
	return true
}
