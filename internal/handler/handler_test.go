package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/connexus-ai/ragbox-backend/internal/breaker"
	"github.com/connexus-ai/ragbox-backend/internal/config"
	"github.com/connexus-ai/ragbox-backend/internal/core"
	"github.com/connexus-ai/ragbox-backend/internal/dedup"
	"github.com/connexus-ai/ragbox-backend/internal/embed"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/normalize"
	"github.com/connexus-ai/ragbox-backend/internal/orchestrator"
	"github.com/connexus-ai/ragbox-backend/internal/ratelimit"
	"github.com/connexus-ai/ragbox-backend/internal/resultcache"
	"github.com/connexus-ai/ragbox-backend/internal/source"
	"github.com/connexus-ai/ragbox-backend/internal/vectorindex"
)

const testDim = 4

// noopFederator never finds anything, so tests exercise the index-only path
// without standing up real source adapters, in the style of orchestrator's
// own fakeFederator.
type noopFederator struct{}

func (noopFederator) Federate(ctx context.Context, query, theme, language string, allowedSources []string) source.FederateResult {
	return source.FederateResult{}
}

func newTestContext(t *testing.T) *core.Context {
	t.Helper()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.DataDir = t.TempDir()
	cfg.EmbeddingDim = testDim
	cfg.UseStubEmbedder = true
	cfg.DefaultThreshold = 0.5

	idx := vectorindex.New(vectorindex.Config{Dimension: testDim, UpgradeAt10k: 10000, UpgradeAt100k: 100000, UpgradeAt1M: 1000000})

	ledger, err := dedup.NewFileLedger(filepath.Join(t.TempDir(), "ledger.txt"))
	if err != nil {
		t.Fatalf("dedup.NewFileLedger() error = %v", err)
	}
	dd, err := dedup.New(context.Background(), ledger, 1000, 0.01)
	if err != nil {
		t.Fatalf("dedup.New() error = %v", err)
	}

	backend := embed.NewStub(testDim)
	embedSvc := embed.NewService(backend, 64)
	cache := resultcache.New(time.Hour)

	orch := orchestrator.New(embedSvc, cache, idx, dd, noopFederator{}, orchestrator.Config{
		SearchK:        20,
		SufficientHits: 5,
		ResultK:        10,
		Deadline:       5 * time.Second,
		SaveDebounce:   time.Second,
		ResultCacheTTL: time.Hour,
	}, func(context.Context) error { return nil })

	registry := prometheus.NewRegistry()

	return &core.Context{
		Config:       cfg,
		Index:        idx,
		Dedup:        dd,
		Limiter:      ratelimit.New(nil),
		Breaker:      breaker.New(5, 30*time.Second),
		ResultCache:  cache,
		Embedder:     backend,
		EmbedService: embedSvc,
		Orchestrator: orch,
		Registry:     registry,
		Metrics:      middleware.NewMetrics(registry),
		Clock:        fixedClock{},
	}
}

// fixedClock gives admin Backup a deterministic timestamp in tests.
type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v, body=%s", err, rec.Body.String())
	}
	return env
}

func TestSimilaritySearch_MissingFragments(t *testing.T) {
	c := newTestContext(t)
	req := httptest.NewRequest(http.MethodPost, "/api/similarity-search", strings.NewReader(`{"language":"en"}`))
	rec := httptest.NewRecorder()

	SimilaritySearch(c)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSimilaritySearch_InvalidThreshold(t *testing.T) {
	c := newTestContext(t)
	body := `{"language":"en","threshold":1.5,"fragments":[{"page":"1","paragraph":"1","text":"hello world"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/similarity-search", strings.NewReader(body))
	rec := httptest.NewRecorder()

	SimilaritySearch(c)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSimilaritySearch_EmptyIndexReturnsNoMatches(t *testing.T) {
	c := newTestContext(t)
	body := `{"language":"en","fragments":[{"page":"1","paragraph":"1","text":"hello world"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/similarity-search", strings.NewReader(body))
	rec := httptest.NewRecorder()

	SimilaritySearch(c)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Errorf("Success = false, want true: %+v", env)
	}
}

func TestSimilaritySearch_IndexedPaperMatches(t *testing.T) {
	c := newTestContext(t)
	vec, err := c.EmbedService.Embed(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	c.Index.Add(model.Paper{Title: "Hello", Abstract: "hello world", ContentHash: [32]byte{1}, Embedding: vec[0]})

	body := `{"language":"en","threshold":0.1,"fragments":[{"page":"1","paragraph":"1","text":"hello world"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/similarity-search", strings.NewReader(body))
	rec := httptest.NewRecorder()

	SimilaritySearch(c)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data is not an object: %+v", env.Data)
	}
	if count, _ := data["count"].(float64); count != 1 {
		t.Errorf("count = %v, want 1", data["count"])
	}
}

func TestPlagiarismCheck_InvalidChunkMode(t *testing.T) {
	c := newTestContext(t)
	body := `{"language":"en","text":"some text to check","chunkMode":"bogus"}`
	req := httptest.NewRequest(http.MethodPost, "/api/plagiarism-check", strings.NewReader(body))
	rec := httptest.NewRecorder()

	PlagiarismCheck(c)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestPlagiarismCheck_SentencesAggregatesByBand(t *testing.T) {
	c := newTestContext(t)
	text := "Neural networks learn representations. A second unrelated sentence follows here. And a third one too."
	vec, err := c.EmbedService.Embed(context.Background(), []string{"Neural networks learn representations."})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	c.Index.Add(model.Paper{Title: "NN", Abstract: "Neural networks learn representations.", ContentHash: [32]byte{2}, Embedding: vec[0]})

	body := `{"language":"en","text":"` + text + `","chunkMode":"sentences","minChunkWords":1,"threshold":0.1}`
	req := httptest.NewRequest(http.MethodPost, "/api/plagiarism-check", strings.NewReader(body))
	rec := httptest.NewRecorder()

	PlagiarismCheck(c)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("Success = false: %+v", env)
	}
}

func TestDirectIndexSearch_MissingQuery(t *testing.T) {
	c := newTestContext(t)
	req := httptest.NewRequest(http.MethodGet, "/api/index/search", nil)
	rec := httptest.NewRecorder()

	DirectIndexSearch(c)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestDirectIndexSearch_EmbedsAndSearchesIndex(t *testing.T) {
	c := newTestContext(t)
	norm := normalize.Text("hello world", "en")
	vec, err := c.EmbedService.Embed(context.Background(), []string{norm})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	c.Index.Add(model.Paper{Title: "Hello", Abstract: "hello world", ContentHash: [32]byte{3}, Embedding: vec[0]})

	req := httptest.NewRequest(http.MethodGet, "/api/index/search?query=hello+world&language=en&threshold=0.1", nil)
	rec := httptest.NewRecorder()

	DirectIndexSearch(c)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data is not an object: %+v", env.Data)
	}
	if count, _ := data["count"].(float64); count != 1 {
		t.Errorf("count = %v, want 1", data["count"])
	}
}

func TestDirectIndexSearch_InvalidK(t *testing.T) {
	c := newTestContext(t)
	req := httptest.NewRequest(http.MethodGet, "/api/index/search?query=x&language=en&k=0", nil)
	rec := httptest.NewRecorder()

	DirectIndexSearch(c)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAdminHandlers_RoundTrip(t *testing.T) {
	c := newTestContext(t)

	t.Run("save", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Save(c)(rec, httptest.NewRequest(http.MethodPost, "/api/admin/save", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("clear", func(t *testing.T) {
		c.Index.Add(model.Paper{Title: "x", Abstract: "y", ContentHash: [32]byte{9}, Embedding: make([]float32, testDim)})
		rec := httptest.NewRecorder()
		Clear(c)(rec, httptest.NewRequest(http.MethodPost, "/api/admin/clear", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if c.Index.Stats().Count != 0 {
			t.Errorf("index count = %d, want 0 after clear", c.Index.Stats().Count)
		}
	})

	t.Run("backup", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Backup(c)(rec, httptest.NewRequest(http.MethodPost, "/api/admin/backup", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	t.Run("remove-duplicates", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RemoveDuplicates(c)(rec, httptest.NewRequest(http.MethodPost, "/api/admin/remove-duplicates", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	t.Run("reset-limits", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ResetLimits(c)(rec, httptest.NewRequest(http.MethodPost, "/api/admin/reset-limits", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("clear-cache", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ClearResultCache(c)(rec, httptest.NewRequest(http.MethodPost, "/api/admin/clear-cache", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("dedup-stats", func(t *testing.T) {
		rec := httptest.NewRecorder()
		DeduplicationStats(c)(rec, httptest.NewRequest(http.MethodGet, "/api/admin/dedup-stats", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("index-stats", func(t *testing.T) {
		rec := httptest.NewRecorder()
		IndexStats(c)(rec, httptest.NewRequest(http.MethodGet, "/api/admin/index-stats", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})
}

func TestHealth_OK(t *testing.T) {
	c := newTestContext(t)
	rec := httptest.NewRecorder()
	Health(c, "0.1.0")(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}
