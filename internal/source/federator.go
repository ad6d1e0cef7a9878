package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// federatorSourceOrder fixes adapter declaration order for deterministic
// fan-out and result concatenation (§4.8, §5): "result order after the
// federator is deterministic (concatenation in adapter declaration order,
// then stable dedup)".
var federatorSourceOrder = []string{
	"crossref", "pubmed", "semanticscholar", "arxiv", "openalex",
	"europepmc", "doaj", "zenodo", "core", "archiveorg", "unpaywall", "hal",
}

// Federator fans out a query to every permitted adapter in parallel and
// merges the results, per §4.8. It must not let one adapter's failure or
// timeout cancel its siblings, so the fan-out is a plain sync.WaitGroup
// rather than errgroup (errgroup's Wait cancels on first error, which is
// the wrong behavior here — a failed pubmed call must not abort arxiv).
type Federator struct {
	adapters       map[string]adapter
	driver         *driver
	globalDeadline time.Duration
	resultCap      int
}

// FederateResult is the outcome of one Federate call: the merged, deduped
// papers plus the per-source envelopes for telemetry/tests (S4).
type FederateResult struct {
	Papers    []model.Paper
	Envelopes []model.SourceEnvelope
}

// Federate queries every adapter in allowedSources (or every registered
// adapter if allowedSources is empty; unconfigured ones report ok with no
// papers) in parallel, bounded by the
// federator's global deadline. Adapters that miss the deadline are
// reported as failed for this call. Results are concatenated in adapter
// declaration order, capped per source at resultCap, then deduplicated by
// content hash preserving first-seen order (§4.8).
func (f *Federator) Federate(ctx context.Context, query, theme, language string, allowedSources []string) FederateResult {
	ctx, cancel := context.WithTimeout(ctx, f.globalDeadline)
	defer cancel()

	names := f.orderedNames(allowedSources)

	envelopes := make([]model.SourceEnvelope, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		a, ok := f.adapters[name]
		if !ok {
			envelopes[i] = model.SourceEnvelope{Source: name, OK: false, Error: "unknown_source"}
			continue
		}
		wg.Add(1)
		go func(i int, a adapter) {
			defer wg.Done()
			envelopes[i] = f.driver.call(ctx, a, query, theme, language)
		}(i, a)
	}
	wg.Wait()

	for _, env := range envelopes {
		if !env.OK && env.Error != "" {
			slog.Debug("[FEDERATOR] source failed", "source", env.Source, "error", env.Error, "latency_ms", env.LatencyMS)
		}
	}

	var concatenated []model.Paper
	for _, env := range envelopes {
		papers := env.Papers
		if f.resultCap > 0 && len(papers) > f.resultCap {
			papers = papers[:f.resultCap]
		}
		concatenated = append(concatenated, papers...)
	}

	return FederateResult{
		Papers:    dedupeByContentHash(concatenated, language),
		Envelopes: envelopes,
	}
}

// orderedNames returns the names to fan out to, in declaration order: the
// names in allowedSources that appear in the declaration list when it is
// non-empty (a name with no registered adapter is then reported as
// unknown_source), otherwise every registered adapter. Fan-out order is
// thus deterministic and reproducible for tests (§5 "adapter fan-out order is
// not observable; result order after the federator is deterministic").
func (f *Federator) orderedNames(allowedSources []string) []string {
	if len(allowedSources) > 0 {
		allowed := make(map[string]struct{}, len(allowedSources))
		for _, s := range allowedSources {
			allowed[s] = struct{}{}
		}
		names := make([]string, 0, len(allowedSources))
		for _, name := range federatorSourceOrder {
			if _, ok := allowed[name]; ok {
				names = append(names, name)
			}
		}
		return names
	}
	names := make([]string, 0, len(f.adapters))
	for _, name := range federatorSourceOrder {
		if _, ok := f.adapters[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// dedupeByContentHash drops later papers sharing a normalized-title+
// abstract content hash with an earlier one, preserving first-seen order.
func dedupeByContentHash(papers []model.Paper, language string) []model.Paper {
	seen := make(map[[32]byte]struct{}, len(papers))
	out := make([]model.Paper, 0, len(papers))
	for _, p := range papers {
		h := model.ContentHashOf(p.Title, p.Abstract, language)
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, p)
	}
	return out
}
