package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/pkg/metrics"
	"github.com/WessleyAI/carsearch/pkg/resilience"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("engine/provider")

// ErrAdapterPanic wraps a value recovered from a panicking adapter.
var ErrAdapterPanic = errors.New("adapter panicked")

// PoolConfig configures a Pool.
type PoolConfig struct {
	AdapterTimeout time.Duration
	Breaker        resilience.BreakerOpts
	Metrics        *metrics.Pipeline
	Logger         *slog.Logger
}

type entry struct {
	adapter  Adapter
	priority int
	breaker  *resilience.Breaker
}

// Pool runs every registered adapter concurrently and gathers the results.
type Pool struct {
	cfg PoolConfig
	log *slog.Logger

	mu      sync.RWMutex
	entries []entry
}

// NewPool creates an empty Pool.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pool{cfg: cfg, log: cfg.Logger}
}

// Register adds an adapter. Lower priority wins when listings collide.
func (p *Pool) Register(a Adapter, priority int) {
	opts := p.cfg.Breaker
	m, log := p.cfg.Metrics, p.log
	opts.OnStateChange = func(name string, from, to resilience.State) {
		log.Warn("provider breaker state changed", "provider", name, "from", from.String(), "to", to.String())
		m.BreakerState(name, int(to))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry{
		adapter:  a,
		priority: priority,
		breaker:  resilience.NewBreaker(a.Name(), opts),
	})
}

// Names returns the registered adapter names in registration order.
func (p *Pool) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.entries))
	for i, e := range p.entries {
		names[i] = e.adapter.Name()
	}
	return names
}

// AdapterTimeout returns the per-adapter time bound.
func (p *Pool) AdapterTimeout() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.AdapterTimeout
}

// SetAdapterTimeout changes the per-adapter time bound for later runs.
func (p *Pool) SetAdapterTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d > 0 {
		p.cfg.AdapterTimeout = d
	}
}

// Run queries all adapters and waits until each has finished or hit its
// timeout. Failed, slow and panicking adapters contribute an empty batch.
// Batches come back in registration order. If ctx ends before the barrier,
// Run returns ctx.Err().
func (p *Pool) Run(ctx context.Context, criteria domain.SearchCriteria, geo domain.GeoTarget) ([]Batch, error) {
	ctx, span := tracer.Start(ctx, "provider.pool")
	defer span.End()

	p.mu.RLock()
	entries := append([]entry(nil), p.entries...)
	timeout := p.cfg.AdapterTimeout
	p.mu.RUnlock()
	span.SetAttributes(attribute.Int("adapters", len(entries)))

	out := make([]Batch, len(entries))
	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e entry) {
			defer wg.Done()
			out[i] = p.call(ctx, e, timeout, criteria, geo)
		}(i, e)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type callResult struct {
	listings []RawListing
	err      error
}

func (p *Pool) call(ctx context.Context, e entry, timeout time.Duration, criteria domain.SearchCriteria, geo domain.GeoTarget) Batch {
	name := e.adapter.Name()
	start := time.Now()
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan callResult, 1)
	go func() {
		var listings []RawListing
		err := e.breaker.Call(actx, func(ctx context.Context) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("%w: %v", ErrAdapterPanic, rec)
				}
			}()
			listings, err = e.adapter.Search(ctx, criteria, geo)
			return err
		})
		ch <- callResult{listings: listings, err: err}
	}()

	var res callResult
	select {
	case res = <-ch:
	case <-actx.Done():
		res = callResult{err: actx.Err()}
	}

	b := Batch{Provider: name, Priority: e.priority, Took: time.Since(start)}
	switch {
	case errors.Is(res.err, resilience.ErrCircuitOpen):
		b.Outcome = OutcomeCircuitOpen
	case errors.Is(res.err, ErrAdapterPanic):
		b.Outcome = OutcomePanic
	case errors.Is(res.err, context.DeadlineExceeded) || (res.err != nil && actx.Err() == context.DeadlineExceeded):
		b.Outcome = OutcomeTimeout
	case errors.Is(res.err, context.Canceled):
		b.Outcome = OutcomeCanceled
	case res.err != nil:
		b.Outcome = OutcomeError
	case len(res.listings) == 0:
		b.Outcome = OutcomeEmpty
	default:
		b.Outcome = OutcomeOK
	}

	if res.err == nil {
		b.Listings = make([]RawListing, len(res.listings))
		for i, l := range res.listings {
			l.Provider = name
			l.Priority = e.priority
			b.Listings[i] = l
		}
	} else {
		p.log.Warn("provider returned no results", "provider", name, "outcome", b.Outcome, "err", res.err, "took", b.Took)
	}
	p.cfg.Metrics.ProviderCall(name, b.Outcome, len(b.Listings), b.Took)
	return b
}
