package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EmbeddingDim != 384 {
		t.Errorf("EmbeddingDim = %d, want 384", cfg.EmbeddingDim)
	}
	if cfg.DefaultThreshold != 0.60 {
		t.Errorf("DefaultThreshold = %f, want 0.60", cfg.DefaultThreshold)
	}
	if len(cfg.Sources) != 12 {
		t.Errorf("len(Sources) = %d, want 12", len(cfg.Sources))
	}
	if !cfg.UseStubEmbedder {
		t.Errorf("UseStubEmbedder = false, want true by default")
	}
}

func TestLoad_RejectsBadThreshold(t *testing.T) {
	t.Setenv("DEFAULT_THRESHOLD", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want error for out-of-range threshold")
	}
}

func TestLoad_RejectsBadDimension(t *testing.T) {
	t.Setenv("EMBEDDING_DIMENSIONS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want error for non-positive dimension")
	}
}

func TestLoad_SourceKeysFromEnv(t *testing.T) {
	t.Setenv("PUBMED_API_KEY", "secret-key")
	t.Setenv("CONTACT_EMAIL", "ops@example.com")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sources["pubmed"].APIKey != "secret-key" {
		t.Errorf("pubmed APIKey = %q, want secret-key", cfg.Sources["pubmed"].APIKey)
	}
	if cfg.Sources["arxiv"].Email != "ops@example.com" {
		t.Errorf("arxiv Email = %q, want fallback from CONTACT_EMAIL", cfg.Sources["arxiv"].Email)
	}
}
