package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"medcure.com/assistant/internal/api"
	"medcure.com/assistant/internal/auth"
	"medcure.com/assistant/internal/config"
	"medcure.com/assistant/internal/core"
	"medcure.com/assistant/internal/logging"
	"medcure.com/assistant/internal/metrics"
	"medcure.com/assistant/internal/store"
)

func main() {
	seedFile := flag.String("seed", "", "Load diseases and medicines from a YAML catalog file and exit")
	refreshEmbeddings := flag.Bool("refresh-embeddings", false, "Embed missing or stale catalog rows and exit")
	tokenFor := flag.String("token", "", "Print a bearer token for the given user id and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup logging
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	tokens := auth.NewManager(cfg.JWTSecret)
	if *tokenFor != "" {
		token, err := tokens.GenerateJWT(*tokenFor)
		if err != nil {
			logger.Fatal("Failed to generate token", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize database store
	dbStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.String("driver", cfg.DatabaseDriver), zap.Error(err))
	}
	defer dbStore.Close()

	if *seedFile != "" {
		seed, err := store.LoadCatalogFile(*seedFile)
		if err != nil {
			logger.Fatal("Failed to read catalog file", zap.String("file", *seedFile), zap.Error(err))
		}
		n, err := store.SeedCatalog(ctx, dbStore, seed)
		if err != nil {
			logger.Fatal("Catalog seeding failed", zap.Error(err))
		}
		logger.Info("Catalog seeding complete", zap.Int("entries", n))
		return
	}

	// Initialize embedding and generation backends
	llm, err := newBackends(ctx, cfg, logger, m)
	if err != nil {
		logger.Fatal("Failed to initialize LLM backends", zap.String("provider", cfg.LLMProvider), zap.Error(err))
	}
	defer llm.close()

	if *refreshEmbeddings {
		refresher := core.NewEmbeddingRefresher(dbStore, llm.embedder, cfg.Embedding.RefreshDelay, logger)
		report, err := refresher.Run(ctx)
		if err != nil {
			logger.Fatal("Embedding refresh failed", zap.Error(err))
		}
		logger.Info("Embedding refresh complete", zap.Int("updated", report.Updated), zap.Int("failed", report.Failed))
		return
	}

	translator := newTranslator(ctx, cfg.Translate, logger, m)

	ragService := core.NewRAGService(dbStore, llm.embedder, translator, cfg.Retrieval, logger, m)
	chatService := core.NewChatService(dbStore, ragService, llm.completer, cfg.Retrieval, logger, m)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, tokens, logger)
	router := api.NewRouter(apiHandler, logger, reg)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Generation.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", serverAddr), zap.String("provider", cfg.LLMProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	logger.Info("Server exiting gracefully")
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		return store.NewSQLiteStore(cfg.DatabaseURL, logger)
	case config.DriverPostgres:
		return store.NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	case config.DriverMemory:
		logger.Warn("Using in-memory store, data is lost on exit")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}

type backends struct {
	embedder  core.Embedder
	completer core.Completer
	close     func()
}

func newBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*backends, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		gemini, err := core.NewGeminiService(ctx, cfg, logger, m)
		if err != nil {
			return nil, err
		}
		return &backends{embedder: gemini, completer: gemini, close: gemini.Close}, nil
	case config.ProviderOpenAI:
		if cfg.Embedding.APIKey == "" {
			logger.Warn("EMBEDDING_API_KEY not set, retrieval will return no context")
		}
		if cfg.Generation.APIKey == "" {
			logger.Warn("GENERATION_API_KEY not set, answers will use the fallback message")
		}
		return &backends{
			embedder:  core.NewEmbeddingClient(cfg.Embedding, m),
			completer: core.NewChatCompletionClient(cfg.Generation, logger, m),
			close:     func() {},
		}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// newTranslator returns nil when translation is disabled or unavailable.
func newTranslator(ctx context.Context, cfg config.TranslateConfig, logger *zap.Logger, m *metrics.Metrics) core.Translator {
	if !cfg.Enabled {
		return nil
	}
	if cfg.APIKey == "" {
		logger.Warn("TRANSLATE_API_KEY not set, Vietnamese questions are searched untranslated")
		return nil
	}
	translator, err := core.NewGoogleTranslator(ctx, cfg, m)
	if err != nil {
		logger.Warn("Translation disabled", zap.Error(err))
		return nil
	}
	return translator
}
