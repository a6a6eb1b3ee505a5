package metrics

import "time"

// Pipeline groups the search service instruments. A nil *Pipeline is valid
// and records nothing.
type Pipeline struct {
	reg *Registry
}

// NewPipeline registers the search instruments on reg.
func NewPipeline(reg *Registry) *Pipeline {
	return &Pipeline{reg: reg}
}

// Registry returns the underlying registry.
func (p *Pipeline) Registry() *Registry {
	if p == nil {
		return nil
	}
	return p.reg
}

// ProviderCall records one adapter invocation. Outcome is one of ok, empty,
// error, timeout, panic, circuit_open.
func (p *Pipeline) ProviderCall(provider, outcome string, listings int, took time.Duration) {
	if p == nil {
		return
	}
	p.reg.Counter(WithLabels("carsearch_provider_calls_total", "provider", provider, "outcome", outcome),
		"Provider adapter calls by outcome.").Inc()
	p.reg.Counter(WithLabels("carsearch_provider_listings_total", "provider", provider),
		"Raw listings returned per provider.").Add(int64(listings))
	p.reg.Histogram(WithLabels("carsearch_provider_duration_seconds", "provider", provider),
		"Provider adapter call latency.", nil).Observe(took.Seconds())
}

// BreakerState records a provider circuit breaker state (0 closed, 1 open, 2 half-open).
func (p *Pipeline) BreakerState(provider string, state int) {
	if p == nil {
		return
	}
	p.reg.Gauge(WithLabels("carsearch_provider_breaker_state", "provider", provider),
		"Provider circuit breaker state.").Set(int64(state))
}

// Merged records aggregation counts.
func (p *Pipeline) Merged(raw, droppedPrice, duplicates int) {
	if p == nil {
		return
	}
	p.reg.Counter("carsearch_listings_raw_total", "Raw listings entering aggregation.").Add(int64(raw))
	p.reg.Counter("carsearch_listings_dropped_total", "Listings dropped for missing price.").Add(int64(droppedPrice))
	p.reg.Counter("carsearch_listings_duplicate_total", "Listings discarded as duplicates.").Add(int64(duplicates))
}

// Search records one pipeline execution by outcome (ok, empty, quota, timeout, error).
func (p *Pipeline) Search(outcome string, took time.Duration) {
	if p == nil {
		return
	}
	p.reg.Counter(WithLabels("carsearch_searches_total", "outcome", outcome), "Searches by outcome.").Inc()
	p.reg.Histogram("carsearch_search_duration_seconds", "End-to-end search latency.", nil).Observe(took.Seconds())
}

// Credit records a ledger decision (deducted, unlimited, denied).
func (p *Pipeline) Credit(result string) {
	if p == nil {
		return
	}
	p.reg.Counter(WithLabels("carsearch_credit_decisions_total", "result", result), "Credit ledger decisions.").Inc()
}
