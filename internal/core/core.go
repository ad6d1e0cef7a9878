// Package core wires every component (C1-C11) into a single composition
// root constructed once at startup and threaded explicitly into the HTTP
// handlers, never reached through a package-level global (§9).
package core

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/ragbox-backend/internal/breaker"
	"github.com/connexus-ai/ragbox-backend/internal/config"
	"github.com/connexus-ai/ragbox-backend/internal/dedup"
	"github.com/connexus-ai/ragbox-backend/internal/embed"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/orchestrator"
	"github.com/connexus-ai/ragbox-backend/internal/ratelimit"
	"github.com/connexus-ai/ragbox-backend/internal/repository"
	"github.com/connexus-ai/ragbox-backend/internal/resultcache"
	"github.com/connexus-ai/ragbox-backend/internal/source"
	"github.com/connexus-ai/ragbox-backend/internal/vectorindex"
)

// Clock abstracts time.Now so admin operations like backup can be tested
// deterministically, grounded on the teacher's injectable-clock test style.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Context is the composition root: every long-lived component the HTTP
// layer needs, constructed once and passed down explicitly.
type Context struct {
	Config       *config.Config
	Index        *vectorindex.Index
	Dedup        *dedup.Deduplicator
	Limiter      *ratelimit.Limiter
	Breaker      *breaker.Breaker
	Federator    *source.Federator
	ResultCache  resultcache.Backend
	Embedder     embed.Embedder
	EmbedService *embed.Service
	Orchestrator *orchestrator.Orchestrator
	Registry     *prometheus.Registry
	Metrics      *middleware.Metrics
	Clock        Clock

	pgPool   *pgxpool.Pool
	redisCli *redis.Client
}

// New constructs every component from cfg and wires them into the
// orchestrator. The embedding backend is a deterministic Stub unless
// Config.UseStubEmbedder is false and a GCP project is configured; the
// dedup ledger is file-backed unless Config.DatabaseURL is set; rate-limit
// and result-cache backends are in-process unless Config.CacheBackendURL
// is set.
func New(ctx context.Context, cfg *config.Config, clock Clock) (*Context, error) {
	if clock == nil {
		clock = systemClock{}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("core.New: create data dir: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(registry)

	idx := vectorindex.New(vectorindex.Config{
		Dimension:     cfg.EmbeddingDim,
		UpgradeAt10k:  cfg.IndexUpgradeAt10k,
		UpgradeAt100k: cfg.IndexUpgradeAt100k,
		UpgradeAt1M:   cfg.IndexUpgradeAt1M,
	})
	if err := idx.Load(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("core.New: load index: %w", err)
	}
	idx.SetSizeRecorder(metrics)

	c := &Context{Config: cfg, Index: idx, Registry: registry, Metrics: metrics, Clock: clock}

	ledger, err := c.buildDedupLedger(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("core.New: %w", err)
	}
	dd, err := dedup.New(ctx, ledger, cfg.DedupTargetCardinality, cfg.DedupFalsePositiveRate)
	if err != nil {
		return nil, fmt.Errorf("core.New: build deduplicator: %w", err)
	}
	c.Dedup = dd

	var rlBackend ratelimit.Backend
	var rcBackend resultcache.Backend
	if cfg.CacheBackendURL != "" {
		c.redisCli = redis.NewClient(&redis.Options{Addr: cfg.CacheBackendURL})
		rlBackend = ratelimit.NewRedisBackend(c.redisCli, "ratelimit:")
		rcBackend = resultcache.NewRedisCache(c.redisCli, "resultcache:", cfg.ResultCacheTTL)
	} else {
		rcBackend = resultcache.New(cfg.ResultCacheTTL)
	}
	c.Limiter = ratelimit.New(rlBackend)
	c.ResultCache = resultcache.Instrument(rcBackend, metrics)

	c.Breaker = breaker.New(cfg.CircuitOpenAt, cfg.CircuitCooldown)
	c.Breaker.SetRecorder(metrics)
	c.Federator = source.NewFederator(cfg, &http.Client{Timeout: cfg.SourceTimeout}, c.Limiter, c.Breaker)

	backend, err := c.buildEmbedderBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("core.New: build embedder: %w", err)
	}
	c.Embedder = backend
	c.EmbedService = embed.NewService(backend, cfg.EmbeddingBatchMax)

	c.Orchestrator = orchestrator.New(c.EmbedService, c.ResultCache, c.Index, c.Dedup, c.Federator, orchestrator.Config{
		SearchK:        20,
		SufficientHits: cfg.SufficientHits,
		ResultK:        10,
		Deadline:       cfg.OrchestratorDeadline,
		SaveDebounce:   cfg.SaveDebounce,
		ResultCacheTTL: cfg.ResultCacheTTL,
	}, c.saveIndex)

	return c, nil
}

func (c *Context) buildDedupLedger(ctx context.Context, cfg *config.Config) (dedup.Ledger, error) {
	if cfg.DatabaseURL == "" {
		return dedup.NewFileLedger(fmt.Sprintf("%s/content_hashes.txt", cfg.DataDir))
	}
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return nil, fmt.Errorf("build postgres ledger: %w", err)
	}
	c.pgPool = pool
	return dedup.NewPGLedger(pool), nil
}

func (c *Context) buildEmbedderBackend(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	if cfg.UseStubEmbedder || cfg.GCPProject == "" {
		return embed.NewStub(cfg.EmbeddingDim), nil
	}
	return embed.NewVertexAdapter(ctx, cfg.GCPProject, cfg.EmbeddingLocation, cfg.EmbeddingModel, cfg.EmbeddingDim)
}

// saveIndex is the orchestrator.SaveFunc passed to the orchestrator for its
// debounced index persistence (§4.10 step 8).
func (c *Context) saveIndex(ctx context.Context) error {
	return c.Index.Save(c.Config.DataDir)
}

// Admin operations (§6), each a thin wrapper exposing one C1-C9 method
// under a name the HTTP layer can dispatch on directly.

// Save persists the index to disk immediately, bypassing the debounce.
func (c *Context) Save(ctx context.Context) error {
	return c.Index.Save(c.Config.DataDir)
}

// Backup copies the current persisted index files into a timestamped
// subdirectory and returns its path.
func (c *Context) Backup(ctx context.Context) (string, error) {
	return c.Index.Backup(c.Config.DataDir, c.Clock.Now())
}

// ClearIndex empties the vector index.
func (c *Context) ClearIndex() {
	c.Index.Clear()
}

// RemoveDuplicates removes papers sharing a content hash, keeping the
// lowest paper ID in each group, and returns the count removed.
func (c *Context) RemoveDuplicates() (int, error) {
	return c.Index.RemoveDuplicates()
}

// ResetLimits restores every source's rate-limit bucket and circuit breaker
// to their initial state.
func (c *Context) ResetLimits() {
	c.Limiter.ResetAll()
	c.Breaker.Reset()
}

// ClearResultCache empties the result cache.
func (c *Context) ClearResultCache() {
	c.ResultCache.Clear()
}

// DeduplicationStats reports the authoritative ledger's cardinality.
func (c *Context) DeduplicationStats(ctx context.Context) (int, error) {
	return c.Dedup.Stats(ctx)
}

// Close releases every resource the Context opened: the dedup ledger, any
// Postgres pool, and any Redis client.
func (c *Context) Close() error {
	if err := c.Dedup.Close(); err != nil {
		return fmt.Errorf("core.Context.Close: %w", err)
	}
	if c.redisCli != nil {
		if err := c.redisCli.Close(); err != nil {
			return fmt.Errorf("core.Context.Close: %w", err)
		}
	}
	if closer, ok := c.Embedder.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("core.Context.Close: %w", err)
		}
	}
	return nil
}
