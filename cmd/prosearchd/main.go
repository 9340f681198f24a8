package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/prosearch/prosearch/internal/config"
	"github.com/prosearch/prosearch/internal/engine"
	"github.com/prosearch/prosearch/internal/httpapi"
	"github.com/prosearch/prosearch/internal/llm"
	"github.com/prosearch/prosearch/internal/research"
	"github.com/prosearch/prosearch/internal/search"
	"github.com/prosearch/prosearch/internal/server"
	"github.com/prosearch/prosearch/internal/streaming"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	llmKey := os.Getenv("LLM_API_KEY")
	if llmKey == "" {
		logger.Fatal("LLM_API_KEY is required")
	}
	searchKey := os.Getenv("TAVILY_API_KEY")
	if searchKey == "" {
		logger.Fatal("TAVILY_API_KEY is required")
	}

	llmCfg := llm.DefaultConfig(llmKey)
	if cfg.LLM.BaseURL != "" {
		llmCfg.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.LLM.Timeout > 0 {
		llmCfg.Timeout = cfg.LLM.Timeout
	}
	gateway := llm.NewClient(llmCfg, logger)

	searchCfg := search.DefaultTavilyConfig(searchKey)
	if cfg.Search.BaseURL != "" {
		searchCfg.BaseURL = cfg.Search.BaseURL
	}
	if cfg.Search.SearchDepth != "" {
		searchCfg.SearchDepth = cfg.Search.SearchDepth
	}
	if cfg.Search.RatePerSec > 0 {
		searchCfg.RatePerSec = cfg.Search.RatePerSec
	}
	if cfg.Search.Burst > 0 {
		searchCfg.Burst = cfg.Search.Burst
	}
	if cfg.Search.Timeout > 0 {
		searchCfg.Timeout = cfg.Search.Timeout
	}
	searcher := search.NewTavilyClient(searchCfg, logger)

	generator := research.NewGenerator(gateway, cfg.LLM.QueryGeneratorModel, logger)
	researcher := research.NewResearcher(gateway, searcher, research.ResearcherConfig{
		Model:            cfg.LLM.QueryGeneratorModel,
		MaxResults:       cfg.Search.MaxResults,
		MaxContentLength: cfg.Research.MaxContentLength,
		MinContentLength: cfg.Research.MinContentLength,
	}, logger)
	reflector := research.NewReflector(gateway, logger)
	finalizer := research.NewFinalizer(gateway, logger)

	streams := streaming.NewManager(cfg.Research.StreamBufferSize)
	eng := engine.New(generator, researcher, reflector, finalizer, streams,
		engine.Config{
			MaxConcurrentBranches: cfg.Research.MaxConcurrentBranches,
			DefaultReasoningModel: cfg.LLM.ReasoningModel,
		}, logger)
	svc := server.NewService(eng, streams, logger)

	// Hot-reload of per-run tunables; missing file just keeps the loaded values.
	initial := config.Tunables{
		DefaultEffort:    cfg.Research.DefaultEffort,
		MaxContentLength: cfg.Research.MaxContentLength,
		MinContentLength: cfg.Research.MinContentLength,
	}
	tunables := func() config.Tunables { return initial }
	tunablesPath := os.Getenv("TUNABLES_PATH")
	if tunablesPath == "" {
		tunablesPath = "config/tunables.yaml"
	}
	if watcher, err := config.NewWatcher(tunablesPath, initial, logger); err == nil {
		defer watcher.Close()
		tunables = watcher.Tunables
	} else {
		logger.Warn("tunables watcher disabled", zap.String("path", tunablesPath), zap.Error(err))
	}

	mux := http.NewServeMux()
	httpapi.NewHandler(svc, streams, tunables, logger).RegisterRoutes(mux)

	apiServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.MetricsPort),
		Handler: metricsMux,
	}
	go func() {
		logger.Info("Metrics server listening", zap.Int("port", cfg.Server.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Warn("runs did not finish before deadline", zap.Error(err))
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Metrics server shutdown", zap.Error(err))
	}
}
