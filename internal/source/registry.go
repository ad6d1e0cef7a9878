package source

import (
	"net/http"

	"github.com/connexus-ai/ragbox-backend/internal/breaker"
	"github.com/connexus-ai/ragbox-backend/internal/config"
	"github.com/connexus-ai/ragbox-backend/internal/ratelimit"
)

// defaultRateLimits are the per-source bucket capacity and refill rate
// used when Config doesn't override them. Conservative values chosen to
// stay under each public API's documented free-tier limits.
var defaultRateLimits = map[string]struct {
	capacity float64
	refill   float64
}{
	"crossref":        {50, 5},
	"pubmed":          {10, 3},
	"semanticscholar": {100, 1},
	"arxiv":           {20, 1},
	"openalex":        {100, 10},
	"europepmc":       {50, 5},
	"doaj":            {30, 3},
	"zenodo":          {60, 5},
	"core":            {10, 1},
	"archiveorg":      {30, 3},
	"unpaywall":       {100, 10},
	"hal":             {30, 3},
}

// NewRegistry builds the twelve adapters from Config's per-source
// credentials (§4.7) and configures the shared rate limiter.
func NewRegistry(cfg *config.Config, limiter *ratelimit.Limiter) map[string]adapter {
	keys := cfg.Sources
	adapters := map[string]adapter{
		"crossref":        newCrossrefAdapter(keys["crossref"].Email),
		"pubmed":          newPubmedAdapter(keys["pubmed"].APIKey, keys["pubmed"].Email),
		"semanticscholar": newSemanticScholarAdapter(keys["semanticscholar"].APIKey),
		"arxiv":           newArxivAdapter(),
		"openalex":        newOpenAlexAdapter(keys["openalex"].Email),
		"europepmc":       newEuropePMCAdapter(),
		"doaj":            newDOAJAdapter(),
		"zenodo":          newZenodoAdapter(keys["zenodo"].APIKey),
		"core":            newCoreAdapter(keys["core"].APIKey),
		"archiveorg":      newArchiveOrgAdapter(),
		"unpaywall":       newUnpaywallAdapter(keys["unpaywall"].Email),
		"hal":             newHALAdapter(),
	}
	for name, limits := range defaultRateLimits {
		limiter.Configure(name, limits.capacity, limits.refill)
	}
	return adapters
}

// NewFederator wires the registry, rate limiter, and circuit breaker into
// a ready-to-use Federator (C8).
func NewFederator(cfg *config.Config, httpClient *http.Client, limiter *ratelimit.Limiter, brk *breaker.Breaker) *Federator {
	adapters := NewRegistry(cfg, limiter)
	d := newDriver(httpClient, limiter, brk, cfg.SourceTimeout)
	return &Federator{
		adapters:    adapters,
		driver:      d,
		globalDeadline: cfg.FederatorDeadline,
		resultCap:   cfg.SourceResultCap,
	}
}
