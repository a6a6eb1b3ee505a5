// Package main implements the carsearch API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/carsearch/engine/app"
	"github.com/WessleyAI/carsearch/engine/semantic"
	"github.com/WessleyAI/carsearch/pkg/config"
	"github.com/WessleyAI/carsearch/pkg/mid"
	"github.com/WessleyAI/carsearch/pkg/natsutil"
	"github.com/WessleyAI/carsearch/pkg/ollama"
	"github.com/nats-io/nats.go"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []app.Option

	// --- NATS (optional) ---
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("carsearch-api"))
	if err != nil {
		logger.Warn("nats unavailable, search history disabled", "url", cfg.NATSURL, "err", err)
	} else {
		defer nc.Drain()
		opts = append(opts, app.WithPublisher(natsutil.NewCompletedPublisher(nc, natsutil.SubjectSearchCompleted)))
	}

	// --- Search pipeline ---
	stack, err := app.Build(ctx, cfg, logger, opts...)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer stack.Close()

	// --- Qdrant similar listings ---
	index, err := semantic.New(cfg.QdrantURL, cfg.Collection, ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel))
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer index.Close()

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: mid.Chain(newServer(stack.Search, stack.Ledger, index, logger).routes(stack.Registry),
			mid.Recover(logger),
			mid.RequestID(),
			mid.Logger(logger),
			mid.CORS(cfg.CORSOrigin),
			mid.OTel("carsearch-api"),
			mid.Metrics(stack.Registry),
		),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SearchTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "ledger", cfg.LedgerDriver, "providers", stack.Pool.Names())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
