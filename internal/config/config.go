package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// SourceKey holds the per-source credential material an adapter needs to
// build authenticated requests (API key and/or contact email for a mailto
// or User-Agent param).
type SourceKey struct {
	APIKey string
	Email  string
}

// Config holds all application configuration loaded from environment
// variables. It is immutable after Load() returns.
type Config struct {
	Port        int
	Environment string
	FrontendURL string

	DataDir string

	CacheBackendURL string // redis URL; empty means in-process backends only

	DatabaseURL      string // optional, backs the Postgres dedup ledger
	DatabaseMaxConns int

	GCPProject        string
	EmbeddingLocation string
	EmbeddingModel    string
	EmbeddingDim      int
	EmbeddingBatchMax int
	UseStubEmbedder   bool

	DefaultThreshold float64
	PoolSize         int // CPU-bound worker pool size (C1/C2/C4 heavy steps)
	WorkerProcesses  int

	OrchestratorDeadline time.Duration
	FederatorDeadline    time.Duration
	SourceTimeout        time.Duration

	IndexUpgradeAt10k  int
	IndexUpgradeAt100k int
	IndexUpgradeAt1M   int

	DedupTargetCardinality int
	DedupFalsePositiveRate float64

	ResultCacheTTL  time.Duration
	SaveDebounce    time.Duration
	CircuitOpenAt   int
	CircuitCooldown time.Duration
	SourceResultCap int
	SufficientHits  int

	Sources map[string]SourceKey
}

// sourceTags are the twelve configured external bibliographic sources (§4.7).
var sourceTags = []string{
	"crossref", "pubmed", "semanticscholar", "arxiv", "openalex",
	"europepmc", "doaj", "zenodo", "core", "archiveorg", "unpaywall", "hal",
}

// Load reads configuration from environment variables. Optional variables
// use sensible defaults; no variable is hard-required since every external
// collaborator (Postgres, Redis, Vertex AI) is optional and falls back to
// an in-process or stub implementation.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        envInt("PORT", 8080),
		Environment: envStr("ENVIRONMENT", "development"),
		FrontendURL: envStr("FRONTEND_URL", "http://localhost:3000"),

		DataDir: envStr("DATA_DIR", "./data"),

		CacheBackendURL: envStr("CACHE_BACKEND_URL", ""),

		DatabaseURL:      envStr("DATABASE_URL", ""),
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 10),

		GCPProject:        envStr("GOOGLE_CLOUD_PROJECT", ""),
		EmbeddingLocation: envStr("VERTEX_AI_EMBEDDING_LOCATION", "us-central1"),
		EmbeddingModel:    envStr("VERTEX_AI_EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDim:      envInt("EMBEDDING_DIMENSIONS", 384),
		EmbeddingBatchMax: envInt("EMBEDDING_BATCH_MAX", 64),
		UseStubEmbedder:   envBool("USE_STUB_EMBEDDER", true),

		DefaultThreshold: envFloat("DEFAULT_THRESHOLD", 0.60),
		PoolSize:         envInt("WORKER_POOL_SIZE", 0), // 0 -> runtime.NumCPU()
		WorkerProcesses:  envInt("WORKER_PROCESSES", 4),

		OrchestratorDeadline: envDuration("ORCHESTRATOR_DEADLINE", 20*time.Second),
		FederatorDeadline:    envDuration("FEDERATOR_DEADLINE", 10*time.Second),
		SourceTimeout:        envDuration("SOURCE_TIMEOUT", 8*time.Second),

		IndexUpgradeAt10k:  envInt("INDEX_UPGRADE_AT_10K", 10_000),
		IndexUpgradeAt100k: envInt("INDEX_UPGRADE_AT_100K", 100_000),
		IndexUpgradeAt1M:   envInt("INDEX_UPGRADE_AT_1M", 1_000_000),

		DedupTargetCardinality: envInt("DEDUP_TARGET_CARDINALITY", 1_000_000),
		DedupFalsePositiveRate: envFloat("DEDUP_FALSE_POSITIVE_RATE", 0.01),

		ResultCacheTTL:  envDuration("RESULT_CACHE_TTL", 24*time.Hour),
		SaveDebounce:    envDuration("INDEX_SAVE_DEBOUNCE", 5*time.Second),
		CircuitOpenAt:   envInt("CIRCUIT_OPEN_AT", 5),
		CircuitCooldown: envDuration("CIRCUIT_COOLDOWN", 30*time.Second),
		SourceResultCap: envInt("SOURCE_RESULT_CAP", 5),
		SufficientHits:  envInt("SUFFICIENT_HITS", 5),
	}

	cfg.Sources = make(map[string]SourceKey, len(sourceTags))
	for _, tag := range sourceTags {
		env := sourceEnvPrefix(tag)
		cfg.Sources[tag] = SourceKey{
			APIKey: envStr(env+"_API_KEY", ""),
			Email:  envStr(env+"_EMAIL", envStr("CONTACT_EMAIL", "")),
		}
	}

	if cfg.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("config.Load: EMBEDDING_DIMENSIONS must be positive, got %d", cfg.EmbeddingDim)
	}
	if cfg.DefaultThreshold < 0 || cfg.DefaultThreshold > 1 {
		return nil, fmt.Errorf("config.Load: DEFAULT_THRESHOLD must be in [0,1], got %f", cfg.DefaultThreshold)
	}

	return cfg, nil
}

func sourceEnvPrefix(tag string) string {
	switch tag {
	case "semanticscholar":
		return "SEMANTIC_SCHOLAR"
	case "europepmc":
		return "EUROPE_PMC"
	case "archiveorg":
		return "ARCHIVE_ORG"
	default:
		out := make([]byte, 0, len(tag))
		for _, r := range tag {
			if r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			out = append(out, byte(r))
		}
		return string(out)
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
