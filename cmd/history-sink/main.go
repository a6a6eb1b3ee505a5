// Package main implements the history sink: it consumes completed searches
// from NATS, records them in Neo4j and indexes their listings in Qdrant.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/engine/history"
	"github.com/WessleyAI/carsearch/engine/semantic"
	"github.com/WessleyAI/carsearch/pkg/config"
	"github.com/WessleyAI/carsearch/pkg/fn"
	"github.com/WessleyAI/carsearch/pkg/natsutil"
	"github.com/WessleyAI/carsearch/pkg/ollama"
	"github.com/nats-io/nats.go"
)

// embedDims is the vector size of the default embedding model.
const embedDims = 768

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("history sink exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := history.Connect(ctx, cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		return fmt.Errorf("neo4j connect: %w", err)
	}
	defer driver.Close(context.Background())
	store := history.New(driver, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	index, err := semantic.New(cfg.QdrantURL, cfg.Collection, ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel))
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer index.Close()
	if err := index.EnsureCollection(ctx, embedDims); err != nil {
		logger.Warn("similar-listing index unavailable", "err", err)
	}

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("carsearch-history-sink"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	s := &sink{recorder: store, indexer: index, log: logger, timeout: 30 * time.Second}
	sub, err := natsutil.Subscribe(nc, natsutil.SubjectSearchCompleted, logger, s.handle)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	logger.Info("history sink listening", "subject", natsutil.SubjectSearchCompleted)
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

type recorder interface {
	Record(ctx context.Context, ev domain.SearchCompleted) error
}

type indexer interface {
	IndexListings(ctx context.Context, listings []domain.Listing) (int, error)
}

type sink struct {
	recorder recorder
	indexer  indexer
	log      *slog.Logger
	timeout  time.Duration
}

// handle records the search first; indexing failures are logged and do
// not undo the history write.
func (s *sink) handle(ctx context.Context, ev domain.SearchCompleted) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log := s.log.With("search_id", ev.SearchID, "user_id", ev.UserID)
	if err := s.recorder.Record(ctx, ev); err != nil {
		log.Error("record search failed", "err", err)
		return
	}

	listings := fn.Map(ev.Results, func(r domain.RankedResult) domain.Listing { return r.Listing })
	n, err := s.indexer.IndexListings(ctx, listings)
	if err != nil {
		log.Warn("index listings failed", "err", err)
		return
	}
	log.Info("search persisted", "results", len(ev.Results), "indexed", n)
}
