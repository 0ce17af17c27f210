package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/PabloGalante/chatrelay/internal/adapters/http"
	"github.com/PabloGalante/chatrelay/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/chatrelay/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/chatrelay/internal/adapters/storage/memory"
	mongostore "github.com/PabloGalante/chatrelay/internal/adapters/storage/mongo"
	sqlitestore "github.com/PabloGalante/chatrelay/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/chatrelay/internal/app/conversation"
	"github.com/PabloGalante/chatrelay/internal/app/metrics"
	"github.com/PabloGalante/chatrelay/internal/app/persist"
	"github.com/PabloGalante/chatrelay/internal/config"
	"github.com/PabloGalante/chatrelay/internal/domain"
	"github.com/PabloGalante/chatrelay/internal/observability"
)

const serviceName = "chatrelay"

// app owns every long-lived dependency and tears them down in order.
type app struct {
	cfg *config.Config

	registry *prometheus.Registry
	store    domain.Store
	writer   *persist.Writer
	conv     *conversation.Service
	analysis *metrics.Service

	shutdownTracing func(context.Context)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := observability.Logger()

	shutdownTracing, err := observability.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := observability.NewMetrics(registry)

	store, err := openStore(ctx, cfg)
	if err != nil {
		shutdownTracing(ctx)
		return nil, err
	}

	provider, evaluator, err := newModels(ctx, cfg)
	if err != nil {
		_ = store.Close(ctx)
		shutdownTracing(ctx)
		return nil, err
	}

	writer := persist.NewWriter(store, persist.Options{
		QueueSize:    cfg.PersistQueueSize,
		Workers:      cfg.PersistWorkers,
		WriteTimeout: cfg.PersistWriteTimeout,
		Metrics:      m,
	})

	conv := conversation.NewService(provider, store, store, writer, conversation.Options{
		SerializeTurns: cfg.SerializeTurns,
		Metrics:        m,
	})
	analysis := metrics.NewService(evaluator, store, store, metrics.Options{
		Concurrency: cfg.AnalysisConcurrency,
		Metrics:     m,
	})

	log.Info("application wired",
		"mode", cfg.Mode,
		"storage_backend", cfg.StorageBackend,
		"mock_llm", cfg.UseMockLLM,
		"serialize_turns", cfg.SerializeTurns,
	)

	return &app{
		cfg:             cfg,
		registry:        registry,
		store:           store,
		writer:          writer,
		conv:            conv,
		analysis:        analysis,
		shutdownTracing: shutdownTracing,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (domain.Store, error) {
	log := observability.WithFields("component", "storage")

	switch cfg.StorageBackend {
	case config.StorageMongo:
		log.Info("using mongo storage", "database", cfg.MongoDatabase)
		return mongostore.NewStore(ctx, cfg.MongoURL, cfg.MongoDatabase)
	case config.StorageSQLite:
		log.Info("using sqlite storage", "path", cfg.SQLitePath)
		return sqlitestore.Open(ctx, cfg.SQLitePath)
	case config.StorageFirestore:
		log.Info("using firestore storage", "project", cfg.GCPProjectID)
		return firestorestore.NewStore(ctx, cfg.GCPProjectID)
	case config.StorageMemory:
		log.Info("using in-memory storage")
		return memstore.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func newModels(ctx context.Context, cfg *config.Config) (domain.Provider, domain.Evaluator, error) {
	log := observability.WithFields("component", "llm")

	if cfg.UseMockLLM {
		log.Info("using mock LLM for chat and evaluation")
		mock := llm.NewMockLLM()
		return mock, mock, nil
	}

	knowledge, err := llm.LoadKnowledge(cfg.KnowledgeFile)
	if err != nil {
		return nil, nil, err
	}

	provider, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
		APIKey:   cfg.GeminiAPIKey,
		Project:  cfg.GCPProjectID,
		Location: cfg.GCPLocation,
		Model:    cfg.GeminiModel,
		System:   llm.AssistantPrompt(knowledge),
	})
	if err != nil {
		return nil, nil, err
	}

	evaluator, err := llm.NewMistralClient(llm.MistralConfig{
		APIKey:  cfg.MistralAPIKey,
		Model:   cfg.MistralModel,
		BaseURL: cfg.MistralBaseURL,
		System:  llm.EvaluatorPrompt(knowledge),
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info("using gemini for chat and mistral for evaluation",
		"gemini_model", cfg.GeminiModel,
		"mistral_model", cfg.MistralModel,
	)
	return provider, evaluator, nil
}

// serve runs the HTTP server until ctx ends, then shuts everything down.
func (a *app) serve(ctx context.Context) error {
	log := observability.Logger()

	srv := &http.Server{
		Addr: a.cfg.Addr(),
		Handler: httpadapter.NewServer(a.conv, a.analysis, httpadapter.Options{
			ServiceName: serviceName,
			Gatherer:    a.registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("chatrelay API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		for err := range a.writer.Errors() {
			log.Error("assistant message was not stored", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := a.close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// close drains pending writes, then releases the store and flushes traces.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.writer.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	a.shutdownTracing(ctx)
	return errors.Join(errs...)
}
