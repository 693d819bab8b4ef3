package main

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/openprogramia/propuestas/internal/config"
	"github.com/openprogramia/propuestas/internal/db"
	dbQdrant "github.com/openprogramia/propuestas/internal/db/qdrant"
	dbRedis "github.com/openprogramia/propuestas/internal/db/redis"
	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/domain/roster"
	"github.com/openprogramia/propuestas/internal/domain/taxonomy"
	logpkg "github.com/openprogramia/propuestas/internal/logger"
	"github.com/openprogramia/propuestas/internal/metrics"
	"github.com/openprogramia/propuestas/internal/repository/embcache"
	"github.com/openprogramia/propuestas/internal/repository/retrieval"
	openaiEmb "github.com/openprogramia/propuestas/internal/transport/openai"
	"github.com/openprogramia/propuestas/internal/usecase/classify"
	embeddinguc "github.com/openprogramia/propuestas/internal/usecase/embedding"
	healthuc "github.com/openprogramia/propuestas/internal/usecase/health"
	searchuc "github.com/openprogramia/propuestas/internal/usecase/search"
	"github.com/openprogramia/propuestas/internal/version"
)

// base is what every command needs: config, logger, taxonomy, classifier.
type base struct {
	env        string
	cfg        config.Config
	logger     *zap.Logger
	classifier *classify.Classifier
}

func loadBase(env string) (*base, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	tax, err := taxonomy.Load(config.ResolvePath(cfg.Taxonomy.Path))
	if err != nil {
		return nil, err
	}

	cache := classify.NewCache(
		time.Duration(cfg.Classifier.CacheTTLSec)*time.Second,
		cfg.Classifier.CacheMaxEntries,
	)
	metrics.Register()
	classifier := classify.New(tax, cache).
		WithMetrics(metrics.ClassificationsTotal, metrics.ClassificationCacheTotal)

	return &base{env: env, cfg: cfg, logger: logger, classifier: classifier}, nil
}

// app is the fully wired search service.
type app struct {
	*base
	store  db.VectorStore
	repo   *retrieval.Repo
	search *searchuc.Service
	health *healthuc.Service
	pool   *ants.Pool

	closers []func()
}

func buildApp(ctx context.Context, env string) (*app, error) {
	b, err := loadBase(env)
	if err != nil {
		return nil, err
	}
	cfg := b.cfg
	a := &app{base: b}

	b.logger.Info("Starting propuestas",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("retrieval_driver", cfg.Retrieval.Driver),
		zap.String("collection", cfg.Retrieval.Collection),
	)

	var redisStore *dbRedis.Store
	switch cfg.Retrieval.Driver {
	case config.DriverQdrant:
		qs, err := dbQdrant.NewStore(dbQdrant.Config{
			Host:   cfg.Retrieval.Host,
			Port:   cfg.Retrieval.Port,
			APIKey: cfg.Retrieval.APIKey,
			UseTLS: cfg.Retrieval.UseTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("create qdrant store: %w", err)
		}
		a.store = qs
	case config.DriverRedis:
		redisStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Retrieval.Addrs,
			Password: cfg.Retrieval.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		a.store = redisStore
	default:
		return nil, fmt.Errorf("unknown retrieval driver %q", cfg.Retrieval.Driver)
	}
	a.closers = append(a.closers, a.store.Close)

	readiness := time.Duration(cfg.Retrieval.ReadinessTimeout) * time.Second
	if err := a.store.WaitForReady(ctx, readiness); err != nil {
		a.Close()
		return nil, fmt.Errorf("retrieval backend not ready: %w", err)
	}
	b.logger.Info("Connected to retrieval backend")

	// Embedding cache: the retrieval Redis, or a dedicated one.
	if addrs := cfg.RedisAddrs(); redisStore == nil && len(addrs) > 0 {
		redisStore, err = dbRedis.NewStore(dbRedis.Config{Addrs: addrs})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create embedding cache store: %w", err)
		}
		a.closers = append(a.closers, redisStore.Close)
	}

	provider := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     b.logger,
	})
	embedder := buildEmbedder(provider, redisStore, cfg.Embedding)

	a.pool, err = ants.NewPool(cfg.Search.PoolSize)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create search pool: %w", err)
	}
	a.closers = append(a.closers, a.pool.Release)

	ros, err := roster.New(cfg.Roster)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build roster: %w", err)
	}

	a.repo = retrieval.New(a.store, cfg.Retrieval.Collection, cfg.Search.HNSWEF)
	orch := searchuc.NewOrchestrator(a.repo, ros, a.pool, searchuc.OrchestratorConfig{
		PerEntityLimit:      cfg.Search.PerEntityLimit,
		FallbackLimit:       cfg.Search.FallbackLimit,
		MinEntitiesWithHits: cfg.Search.MinEntitiesWithHits,
		EntityTimeout:       time.Duration(cfg.Search.EntityTimeoutSec) * time.Second,
	}).WithMetrics(metrics.EntitySearchesTotal, metrics.FallbackPassesTotal)

	a.search = searchuc.New(b.classifier, embedder, orch, searchuc.ServiceConfig{
		RequestTimeout: time.Duration(cfg.Search.RequestTimeoutSec) * time.Second,
		MaxDocuments:   cfg.Search.MaxDocuments,
	}).WithMetrics(metrics.SearchPipelineDuration)

	a.health = healthuc.New(a.store, provider)

	b.logger.Info("Search pipeline ready",
		zap.Int("entities", ros.Len()),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Bool("embedding_cache", redisStore != nil),
	)
	return a, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
func buildEmbedder(provider domain.Embedder, cacheStore *dbRedis.Store, cfg config.EmbeddingConfig) domain.Embedder {
	embedder := provider
	if cacheStore != nil {
		embedder = embcache.New(embedder, cacheStore, embcache.Config{
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			TTL:        time.Duration(cfg.CacheTTLHours) * time.Hour,
		}).WithMetrics(metrics.EmbeddingCacheTotal)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model)

	// Outermost so cache keys are built from the prepared query text.
	return domain.NewInstructionEmbedder(embedder, cfg.QueryInstruction)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}
