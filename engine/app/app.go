// Package app assembles the search pipeline from configuration. The API
// server and the CLI share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/carsearch/engine/currency"
	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/engine/geo"
	"github.com/WessleyAI/carsearch/engine/provider"
	"github.com/WessleyAI/carsearch/engine/provider/autodev"
	"github.com/WessleyAI/carsearch/engine/provider/autotraderca"
	"github.com/WessleyAI/carsearch/engine/provider/marketcheck"
	"github.com/WessleyAI/carsearch/engine/quota"
	"github.com/WessleyAI/carsearch/engine/search"
	"github.com/WessleyAI/carsearch/pkg/config"
	"github.com/WessleyAI/carsearch/pkg/fn"
	"github.com/WessleyAI/carsearch/pkg/metrics"
	"github.com/WessleyAI/carsearch/pkg/resilience"
)

// Provider priorities: lower wins when the same vehicle is listed twice.
const (
	PriorityMarketCheck  = 1
	PriorityAutoDev      = 2
	PriorityAutoTraderCA = 3
)

// Stack is a fully wired pipeline.
type Stack struct {
	Registry *metrics.Registry
	Metrics  *metrics.Pipeline
	Ledger   *quota.Ledger
	Pool     *provider.Pool
	Search   *search.Service

	closers []func()
}

// Option customizes Build.
type Option func(*options)

type options struct {
	publisher search.Publisher
	adapters  []provider.Adapter
	store     quota.Store
}

// WithPublisher hands completed searches to p.
func WithPublisher(p search.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithAdapters replaces the configured providers.
func WithAdapters(a ...provider.Adapter) Option {
	return func(o *options) { o.adapters = a }
}

// WithStore replaces the configured ledger store.
func WithStore(s quota.Store) Option {
	return func(o *options) { o.store = s }
}

// Build wires the ledger store, geo resolver, provider pool, currency
// normalizer and search service described by cfg.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger, opts ...Option) (*Stack, error) {
	if log == nil {
		log = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	st := &Stack{Registry: metrics.New()}
	st.Metrics = metrics.NewPipeline(st.Registry)

	store := o.store
	if store == nil {
		s, closer, err := OpenStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = s
		st.closers = append(st.closers, closer)
	}
	st.Ledger = quota.NewLedger(store, quota.Opts{FreeCredits: cfg.FreeCredits, Metrics: st.Metrics, Logger: log})

	table := geo.NewTable()
	if cfg.GeoTableFile != "" {
		n, err := table.LoadTOML(cfg.GeoTableFile)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("geo table: %w", err)
		}
		log.Info("geo table loaded", "file", cfg.GeoTableFile, "entries", n)
	}
	resolver := geo.NewResolver(table, log)

	rate, err := currency.ParseRate(cfg.USDToCAD)
	if err != nil {
		st.Close()
		return nil, err
	}
	fx, err := currency.New(rate)
	if err != nil {
		st.Close()
		return nil, err
	}

	st.Pool = provider.NewPool(provider.PoolConfig{
		AdapterTimeout: cfg.AdapterTimeout,
		Breaker:        resilience.DefaultBreakerOpts,
		Metrics:        st.Metrics,
		Logger:         log,
	})
	if o.adapters != nil {
		for i, a := range o.adapters {
			st.Pool.Register(a, i+1)
		}
	} else {
		registerAdapters(st.Pool, cfg, log)
	}

	st.Search = search.New(st.Ledger, resolver, st.Pool, search.Config{
		Deadline: cfg.SearchTimeout,
		Defaults: domain.CriteriaDefaults{
			Country:  cfg.DefaultCountry,
			RadiusKM: cfg.DefaultRadiusKM,
			Limit:    cfg.DefaultLimit,
			MaxLimit: cfg.MaxLimit,
		},
		Currency:  fx,
		Publisher: o.publisher,
		Metrics:   st.Metrics,
		Logger:    log,
	})
	return st, nil
}

func registerAdapters(p *provider.Pool, cfg config.Config, log *slog.Logger) {
	client := func(name string) *provider.HTTPClient {
		return provider.NewHTTPClient(name, provider.ClientOpts{
			RPS: cfg.ProviderRPS,
			Retry: fn.RetryPolicy{
				MaxAttempts: cfg.RetryAttempts,
				BaseDelay:   cfg.RetryBaseDelay,
				Multiplier:  cfg.RetryMultiplier,
				MaxDelay:    cfg.RetryMaxDelay,
				Jitter:      true,
			},
			Timeout: cfg.AdapterTimeout,
			Logger:  log,
		})
	}
	p.Register(marketcheck.New(marketcheck.Config{
		BaseURL: cfg.MarketCheckURL,
		APIKey:  cfg.MarketCheckKey,
		Client:  client(marketcheck.Name),
		Logger:  log,
	}), PriorityMarketCheck)
	p.Register(autodev.New(autodev.Config{
		BaseURL: cfg.AutoDevURL,
		APIKey:  cfg.AutoDevKey,
		Client:  client(autodev.Name),
		Logger:  log,
	}), PriorityAutoDev)
	p.Register(autotraderca.New(autotraderca.Config{
		ApifyURL: cfg.ApifyURL,
		Token:    cfg.ApifyToken,
		Actor:    cfg.ApifyActor,
		Client:   client(autotraderca.Name),
		Logger:   log,
	}), PriorityAutoTraderCA)
}

// OpenStore opens the ledger store named by cfg.LedgerDriver.
func OpenStore(ctx context.Context, cfg config.Config) (quota.Store, func(), error) {
	switch cfg.LedgerDriver {
	case "", "memory":
		return quota.NewMemoryStore(), func() {}, nil
	case "postgres":
		s, err := quota.OpenPostgres(ctx, cfg.PostgresDSN, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("ledger postgres: %w", err)
		}
		return s, s.Close, nil
	case "sqlite":
		s, err := quota.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("ledger sqlite: %w", err)
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger driver %q", cfg.LedgerDriver)
	}
}

// Close releases the ledger store.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
