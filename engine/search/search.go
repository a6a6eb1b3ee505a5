// Package search runs the credit-gated search pipeline: geo resolution,
// provider fan-out, merge, filter, rank, pagination and currency display.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/carsearch/engine/aggregate"
	"github.com/WessleyAI/carsearch/engine/currency"
	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/engine/provider"
	"github.com/WessleyAI/carsearch/engine/rank"
	"github.com/WessleyAI/carsearch/pkg/fn"
	"github.com/WessleyAI/carsearch/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("engine/search")

// DefaultDeadline bounds one pipeline execution.
const DefaultDeadline = 60 * time.Second

// adapterShare is the largest fraction of the deadline an adapter may use.
const adapterShare = 0.8

// Ledger charges searches.
type Ledger interface {
	TryDeduct(ctx context.Context, userID string) (int, error)
}

// GeoResolver turns loose location input into a target.
type GeoResolver interface {
	Resolve(location, postal, country string) domain.GeoTarget
}

// Providers fans a search out to the inventory sources.
type Providers interface {
	Run(ctx context.Context, c domain.SearchCriteria, g domain.GeoTarget) ([]provider.Batch, error)
	AdapterTimeout() time.Duration
	SetAdapterTimeout(time.Duration)
}

// Extractor turns free text into untrusted partial criteria.
type Extractor interface {
	Extract(ctx context.Context, text string) (domain.PartialCriteria, error)
}

// Publisher hands completed searches to persistence.
type Publisher interface {
	PublishCompleted(ctx context.Context, ev domain.SearchCompleted) error
}

// Config holds the optional collaborators and limits of a Service.
type Config struct {
	Deadline  time.Duration
	Defaults  domain.CriteriaDefaults
	Currency  *currency.Normalizer
	Extractor Extractor
	Publisher Publisher
	Metrics   *metrics.Pipeline
	Logger    *slog.Logger
	Now       func() time.Time
}

// Service executes searches. It holds no per-request state.
type Service struct {
	ledger    Ledger
	geo       GeoResolver
	providers Providers
	deadline  time.Duration
	defaults  domain.CriteriaDefaults
	fx        *currency.Normalizer
	extractor Extractor
	publisher Publisher
	m         *metrics.Pipeline
	log       *slog.Logger
	now       func() time.Time
}

// New wires a Service. The provider adapter timeout is lowered to 80% of
// the deadline when it would otherwise reach it.
func New(ledger Ledger, geo GeoResolver, providers Providers, cfg Config) *Service {
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	if cfg.Defaults.Country == "" {
		cfg.Defaults = domain.DefaultCriteria
	}
	if cfg.Currency == nil {
		cfg.Currency = currency.Default()
	}
	if cfg.Extractor == nil {
		cfg.Extractor = RuleExtractor{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if limit := time.Duration(float64(cfg.Deadline) * adapterShare); providers.AdapterTimeout() > limit {
		cfg.Logger.Warn("adapter timeout clamped below search deadline",
			"adapter_timeout", providers.AdapterTimeout(), "deadline", cfg.Deadline, "clamped", limit)
		providers.SetAdapterTimeout(limit)
	}
	return &Service{
		ledger:    ledger,
		geo:       geo,
		providers: providers,
		deadline:  cfg.Deadline,
		defaults:  cfg.Defaults,
		fx:        cfg.Currency,
		extractor: cfg.Extractor,
		publisher: cfg.Publisher,
		m:         cfg.Metrics,
		log:       cfg.Logger,
		now:       cfg.Now,
	}
}

// Defaults returns the criteria defaults used by ExecuteText.
func (s *Service) Defaults() domain.CriteriaDefaults { return s.defaults }

// Execute charges userID one credit and runs the pipeline for c. It returns
// an error wrapping domain.ErrQuotaExceeded when the user has no credit and
// domain.ErrPipelineTimeout when the deadline expires after the charge.
// A search that finds nothing succeeds with an empty page.
func (s *Service) Execute(ctx context.Context, c domain.SearchCriteria, userID string) (domain.RankedResults, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "search.execute", trace.WithAttributes(attribute.String("user", userID)))
	defer span.End()

	res, outcome, err := s.execute(ctx, c, userID)
	s.m.Search(outcome, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Warn("search failed", "user", userID, "outcome", outcome, "err", err, "took", time.Since(start))
		return domain.RankedResults{}, err
	}
	span.SetAttributes(attribute.Int("total", res.Total), attribute.String("search_id", res.SearchID))
	s.log.Info("search completed", "user", userID, "search_id", res.SearchID,
		"total", res.Total, "page", res.Page, "returned", len(res.Results), "took", time.Since(start))
	return res, nil
}

func (s *Service) execute(ctx context.Context, c domain.SearchCriteria, userID string) (domain.RankedResults, string, error) {
	remaining, err := s.ledger.TryDeduct(ctx, userID)
	if errors.Is(err, domain.ErrQuotaExceeded) {
		return domain.RankedResults{}, "quota", fmt.Errorf("search: %w", err)
	}
	if err != nil {
		return domain.RankedResults{}, "error", fmt.Errorf("search: %w", err)
	}
	s.log.Debug("credit deducted", "user", userID, "remaining", remaining)

	dctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	target, _ := fn.Run(dctx, "search.geo", c, fn.MapStage(func(c domain.SearchCriteria) domain.GeoTarget {
		return s.geo.Resolve(c.Location, c.PostalCode, c.Country)
	}))

	batches, err := fn.Run(dctx, "search.providers", c, func(ctx context.Context, c domain.SearchCriteria) fn.Result[[]provider.Batch] {
		return fn.FromPair(s.providers.Run(ctx, c, target))
	})
	if err != nil {
		return s.abort(ctx, dctx, err)
	}

	rec, err := fn.Run(dctx, "search.reconcile", batches, s.reconcile(c))
	if err == nil {
		err = dctx.Err()
	}
	if err != nil {
		return s.abort(ctx, dctx, err)
	}

	res := domain.RankedResults{
		SearchID: uuid.NewString(),
		Results:  rec.page,
		Page:     c.Page,
		Limit:    c.Limit,
		Total:    rec.total,
		Currency: domain.CurrencyFor(c.Country),
		Geo:      target,
	}
	s.publish(ctx, c, userID, res)

	if rec.total == 0 {
		return res, "empty", nil
	}
	return res, "ok", nil
}

type reconciled struct {
	page  []domain.RankedResult
	total int
}

// reconcile merges, filters, ranks and paginates, then converts the page
// into the display currency. It is pure apart from logging and metrics.
func (s *Service) reconcile(c domain.SearchCriteria) fn.Stage[[]provider.Batch, reconciled] {
	return func(ctx context.Context, batches []provider.Batch) fn.Result[reconciled] {
		merged, st := aggregate.Merge(batches)
		s.m.Merged(st.Raw, st.DroppedPrice, st.Duplicates)

		filtered := rank.Filter(merged, c)
		ranked := rank.Rank(filtered, c.FreeTextQuery)
		page := s.fx.NormalizeAll(rank.Paginate(ranked, c.Page, c.Limit), c.Country)

		s.log.Debug("listings reconciled", "raw", st.Raw, "dropped_price", st.DroppedPrice,
			"duplicates", st.Duplicates, "merged", len(merged), "filtered", len(filtered))
		return fn.Ok(reconciled{page: page, total: len(ranked)})
	}
}

// abort maps a failure after the charge. Expiry of any deadline becomes
// ErrPipelineTimeout; the spent credit is not refunded.
func (s *Service) abort(parent, dctx context.Context, err error) (domain.RankedResults, string, error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(dctx.Err(), context.DeadlineExceeded) {
		return domain.RankedResults{}, "timeout", fmt.Errorf("search after %s: %w", s.deadline, domain.ErrPipelineTimeout)
	}
	if perr := parent.Err(); perr != nil {
		return domain.RankedResults{}, "canceled", fmt.Errorf("search: %w", perr)
	}
	return domain.RankedResults{}, "error", fmt.Errorf("search: %w", err)
}

func (s *Service) publish(ctx context.Context, c domain.SearchCriteria, userID string, res domain.RankedResults) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	ev := domain.SearchCompleted{
		SearchID:    res.SearchID,
		UserID:      userID,
		Criteria:    c,
		Results:     res.Results,
		Total:       res.Total,
		CompletedAt: s.now().UTC(),
	}
	if err := s.publisher.PublishCompleted(pctx, ev); err != nil {
		s.log.Warn("publish search completed failed", "search_id", res.SearchID, "err", err)
	}
}

// ExecuteText extracts criteria from free text, lets explicit fields in
// base take precedence, and runs Execute. Extraction failures are logged
// and treated as an empty extraction.
func (s *Service) ExecuteText(ctx context.Context, text string, base domain.PartialCriteria, userID string) (domain.RankedResults, error) {
	extracted, err := s.extractor.Extract(ctx, text)
	if err != nil {
		s.log.Warn("feature extraction failed", "err", err)
		extracted = domain.PartialCriteria{}
	}
	if base.Query == nil && text != "" {
		base.Query = &text
	}
	c := domain.BuildCriteria(base.Merge(extracted), s.defaults)
	return s.Execute(ctx, c, userID)
}
