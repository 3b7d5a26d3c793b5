package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/notegraph/notegraph/internal/config"
	"github.com/notegraph/notegraph/internal/driver"
	"github.com/notegraph/notegraph/internal/feedback"
	"github.com/notegraph/notegraph/internal/graph"
	"github.com/notegraph/notegraph/internal/llm"
	"github.com/notegraph/notegraph/internal/metrics"
	"github.com/notegraph/notegraph/internal/orchestrator"
	"github.com/notegraph/notegraph/internal/pipeline"
	"github.com/notegraph/notegraph/internal/query"
	"github.com/notegraph/notegraph/internal/server"
	"github.com/notegraph/notegraph/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config file not loaded, using defaults", "path", cfgPath, "err", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := driver.NewNeo4jDriver(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password,
		cfg.Neo4j.Database, cfg.Pipeline.EmbeddingDimensions, logger)
	if err != nil {
		return err
	}
	defer d.Close(context.Background())

	if err := d.BuildIndices(ctx); err != nil {
		return err
	}

	llmClient, embedderClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	if embedderClient == nil {
		return errors.New("configured llm provider has no embedding support")
	}

	backend, err := store.OpenBackend(cfg.Store.Path, false, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	files, err := store.NewLocalFileStore(filepath.Join(cfg.Store.Path, "documents"))
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	tasks := store.NewTaskStore(backend, cfg.Orchestrator.TaskRetention)
	feedbackLog := store.NewFeedbackLog(backend)

	adapter := graph.NewAdapter(d, logger)

	pipe, err := pipeline.New(cfg.Pipeline, files, embedderClient, llmClient, adapter, logger)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(cfg.Orchestrator, tasks, pipe, adapter, m, logger)
	if err != nil {
		return err
	}
	defer orch.Release()

	// Re-enqueue tasks interrupted by the previous shutdown or crash.
	if err := orch.Recover(); err != nil {
		logger.Warn("task recovery incomplete", "err", err)
	}

	srv := &server.Server{
		Orchestrator: orch,
		Query:        query.NewEngine(adapter, embedderClient, llmClient, cfg.Search, m, logger),
		Graph:        adapter,
		Feedback:     feedback.NewService(feedbackLog, cfg.Feedback.StatsCacheTTL, m, logger),
		Driver:       d,
		Files:        files,
		Metrics:      m,
		Registry:     registry,
		Logger:       logger,
	}

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.SetupRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
