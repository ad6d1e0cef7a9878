// Package orchestrator implements the similarity orchestrator (C10): the
// end-to-end batch pipeline tying the normalizer, embedding service,
// result cache, vector index, deduplicator, and source federator together
// (§4.10).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/ragbox-backend/internal/apierr"
	"github.com/connexus-ai/ragbox-backend/internal/dedup"
	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/normalize"
	"github.com/connexus-ai/ragbox-backend/internal/resultcache"
	"github.com/connexus-ai/ragbox-backend/internal/source"
	"github.com/connexus-ai/ragbox-backend/internal/vectorindex"
)

// minAbstractChars is the §4.10 step 5 floor: papers whose normalized
// abstract is empty or shorter than this are discarded as unusable.
const minAbstractChars = 20

// Fragment is one request-shaped input text with its origin (§3 Query).
type Fragment struct {
	Page      string
	Paragraph string
	Text      string
}

// Config fixes the orchestrator's tunable constants (§4.10).
type Config struct {
	SearchK        int           // k passed to search_batch, default 20
	SufficientHits int           // M_sufficient, default 5
	ResultK        int           // k_result, truncation after re-score, default 10
	Deadline       time.Duration // global per-batch deadline
	SaveDebounce   time.Duration // T_save, default 5s
	ResultCacheTTL time.Duration
}

// Result is the batch outcome returned to the HTTP layer (§6
// similarity_search response shape).
type Result struct {
	Matches          []model.Match
	ProcessedTexts   int
	ThresholdUsed    float64
	IndexEnabled     bool
	DeadlineExceeded bool
}

// SaveFunc persists the index; the orchestrator debounces calls to it
// per §4.10 step 8 ("coalesce concurrent save requests into one").
type SaveFunc func(ctx context.Context) error

// embedderClient is the subset of *embed.Service the orchestrator depends
// on, narrowed to an interface so tests can substitute a fake batch
// embedder.
type embedderClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// federatorClient is the subset of *source.Federator the orchestrator
// depends on, narrowed to an interface so tests can substitute a fake
// without standing up real HTTP adapters.
type federatorClient interface {
	Federate(ctx context.Context, query, theme, language string, allowedSources []string) source.FederateResult
}

// Orchestrator wires C1-C9 into the run_batch pipeline described in §4.10.
type Orchestrator struct {
	embedder  embedderClient
	cache     resultcache.Backend
	index     *vectorindex.Index
	dedup     *dedup.Deduplicator
	federator federatorClient
	cfg       Config
	saveFn    SaveFunc

	saveMu      sync.Mutex
	savePending bool
	saveTimer   *time.Timer
}

// New constructs an Orchestrator. saveFn may be nil, in which case step 8's
// debounced index save is a no-op (useful in tests that don't exercise
// persistence).
func New(embedder embedderClient, cache resultcache.Backend, index *vectorindex.Index, dd *dedup.Deduplicator, federator federatorClient, cfg Config, saveFn SaveFunc) *Orchestrator {
	if cfg.SearchK <= 0 {
		cfg.SearchK = 20
	}
	if cfg.SufficientHits <= 0 {
		cfg.SufficientHits = 5
	}
	if cfg.ResultK <= 0 {
		cfg.ResultK = 10
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 20 * time.Second
	}
	if cfg.SaveDebounce <= 0 {
		cfg.SaveDebounce = 5 * time.Second
	}
	return &Orchestrator{
		embedder:  embedder,
		cache:     cache,
		index:     index,
		dedup:     dd,
		federator: federator,
		cfg:       cfg,
		saveFn:    saveFn,
	}
}

// uniqueQuery tracks one distinct normalized text within a batch and every
// fragment origin that shares it (§4.10 step 1: "group identical
// normalized texts; compute each unique text once downstream").
type uniqueQuery struct {
	text    string
	origins []Fragment
	vec     []float32
	matches []model.Match
	done    bool // satisfied by cache hit or sufficient index hits
}

// RunBatch runs the 8-step pipeline in §4.10 over fragments sharing one
// theme/language/threshold, grouping fragments whose normalized text is
// identical into one query, and returns matches rebroadcast per original
// fragment. It never fails the whole call on a deadline miss; it returns
// best-effort partial results with DeadlineExceeded set instead, unless the
// index itself is unusable.
func (o *Orchestrator) RunBatch(ctx context.Context, fragments []Fragment, theme, language string, threshold float64, allowedSources []string, useIndex bool) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Deadline)
	defer cancel()

	queries := o.groupFragments(fragments, language)

	// Step 2: cache probe for every unique text.
	for _, q := range queries {
		fp := resultcache.Fingerprint(theme, language, q.text, threshold)
		if matches, ok := o.cache.Lookup(fp); ok {
			q.matches = matches
			q.done = true
		}
	}

	deadlineExceeded := false

	// Step 3: batch-embed cache misses.
	var missTexts []string
	for _, q := range queries {
		if !q.done {
			missTexts = append(missTexts, q.text)
		}
	}
	if len(missTexts) > 0 {
		vecs, err := o.embedder.Embed(ctx, missTexts)
		if err != nil {
			return nil, apierr.NewUnavailable("orchestrator.RunBatch: embedding service unavailable", err)
		}
		i := 0
		for _, q := range queries {
			if !q.done {
				q.vec = vecs[i]
				i++
			}
		}
	}

	indexEnabled := useIndex && o.index != nil && o.index.Stats().Count > 0

	// Step 4: index probe.
	if indexEnabled {
		var pending []*uniqueQuery
		var vecs [][]float32
		for _, q := range queries {
			if !q.done {
				pending = append(pending, q)
				vecs = append(vecs, q.vec)
			}
		}
		if len(pending) > 0 {
			resultSets, err := o.index.SearchBatch(vecs, o.cfg.SearchK, float32(threshold))
			if err == nil {
				for i, q := range pending {
					q.matches = append(q.matches, toMatches(resultSets[i], q.origins)...)
					if len(resultSets[i]) >= o.cfg.SufficientHits {
						q.done = true
					}
				}
			}
		}
	}

	// Step 5-6: federate + re-score for queries still unsatisfied.
	newlyAdded := false
	g, gctx := errgroup.WithContext(ctx)
	var resultsMu sync.Mutex
	for _, q := range queries {
		if q.done || ctx.Err() != nil {
			if ctx.Err() != nil {
				deadlineExceeded = true
			}
			continue
		}
		q := q
		g.Go(func() error {
			added, matches, err := o.federateAndRescore(gctx, q, theme, language, threshold, allowedSources)
			if err != nil {
				return nil // per-query failure is absorbed, not fatal to the batch
			}
			resultsMu.Lock()
			q.matches = append(q.matches, matches...)
			if added {
				newlyAdded = true
			}
			resultsMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		deadlineExceeded = true
	}
	if ctx.Err() != nil {
		deadlineExceeded = true
	}

	// Step 7: finalize per query, then cache (step 8).
	var out []model.Match
	processed := 0
	for _, q := range queries {
		processed++
		final := finalizeMatches(q.matches, o.cfg.ResultK)
		for _, origin := range q.origins {
			for _, m := range final {
				m.OriginatingPage = origin.Page
				m.OriginatingPara = origin.Paragraph
				out = append(out, m)
			}
		}
		fp := resultcache.Fingerprint(theme, language, q.text, threshold)
		o.cache.Store(fp, final, o.cfg.ResultCacheTTL)
	}

	if newlyAdded {
		o.debouncedSave()
	}

	return &Result{
		Matches:          out,
		ProcessedTexts:   processed,
		ThresholdUsed:    threshold,
		IndexEnabled:     indexEnabled,
		DeadlineExceeded: deadlineExceeded,
	}, nil
}

// groupFragments normalizes every fragment's text (step 1) and groups
// fragments sharing an identical normalized text so downstream work is
// done once per unique text.
func (o *Orchestrator) groupFragments(fragments []Fragment, language string) []*uniqueQuery {
	byText := make(map[string]*uniqueQuery)
	var order []string
	for _, f := range fragments {
		norm := normalize.Text(f.Text, language)
		q, ok := byText[norm]
		if !ok {
			q = &uniqueQuery{text: norm}
			byText[norm] = q
			order = append(order, norm)
		}
		q.origins = append(q.origins, f)
	}
	queries := make([]*uniqueQuery, 0, len(order))
	for _, text := range order {
		queries = append(queries, byText[text])
	}
	return queries
}

// federateAndRescore runs steps 5-6 for a single unsatisfied query: fan out
// to the federator, discard unusable papers, deduplicate into the index,
// re-embed surviving abstracts, and score against the query vector.
func (o *Orchestrator) federateAndRescore(ctx context.Context, q *uniqueQuery, theme, language string, threshold float64, allowedSources []string) (bool, []model.Match, error) {
	fed := o.federator.Federate(ctx, q.text, theme, language, allowedSources)

	type candidate struct {
		paper        model.Paper
		normAbstract string
		needsEmbed   bool
	}
	var candidates []candidate
	newlyAdded := false

	for _, paper := range fed.Papers {
		normAbstract := normalize.Text(paper.Abstract, language)
		if len(normAbstract) < minAbstractChars {
			continue
		}
		hash := model.ContentHashOf(paper.Title, paper.Abstract, language)
		paper.ContentHash = hash

		if existing, ok := o.index.FindByContentHash(hash); ok {
			candidates = append(candidates, candidate{paper: existing, normAbstract: normAbstract})
			continue
		}
		candidates = append(candidates, candidate{paper: paper, normAbstract: normAbstract, needsEmbed: true})
	}

	var toEmbed []string
	for _, c := range candidates {
		if c.needsEmbed {
			toEmbed = append(toEmbed, c.normAbstract)
		}
	}
	var vecs [][]float32
	if len(toEmbed) > 0 {
		var err error
		vecs, err = o.embedder.Embed(ctx, toEmbed)
		if err != nil {
			return false, nil, fmt.Errorf("orchestrator.federateAndRescore: embed: %w", err)
		}
	}

	var matches []model.Match
	vi := 0
	for _, c := range candidates {
		paper := c.paper
		if c.needsEmbed {
			paper.Embedding = vecs[vi]
			vi++

			outcome, err := o.dedup.SeenOrAdd(ctx, paper.ContentHash)
			if err != nil {
				slog.Warn("[ORCHESTRATOR] dedup check failed", "error", err)
				continue
			}
			if outcome == dedup.New {
				id, err := o.index.Add(paper)
				if err != nil {
					slog.Warn("[ORCHESTRATOR] index add failed", "error", err)
					continue
				}
				paper.PaperID = id
				newlyAdded = true
			} else if existing, ok := o.index.FindByContentHash(paper.ContentHash); ok {
				paper = existing
			}
		}

		score := dotProduct(q.vec, paper.Embedding)
		band, ok := model.ClassifyBand(score)
		if !ok || score < float32(threshold) {
			continue
		}
		matches = append(matches, model.Match{SourcePaper: paper, CosineScore: score, PlagiarismBand: band})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].CosineScore != matches[j].CosineScore {
			return matches[i].CosineScore > matches[j].CosineScore
		}
		return matches[i].SourcePaper.PaperID < matches[j].SourcePaper.PaperID
	})
	if len(matches) > o.cfg.ResultK {
		matches = matches[:o.cfg.ResultK]
	}
	return newlyAdded, matches, nil
}

// debouncedSave coalesces concurrent save requests into one effective save
// within the configured debounce window (§4.10 step 8).
func (o *Orchestrator) debouncedSave() {
	if o.saveFn == nil {
		return
	}
	o.saveMu.Lock()
	defer o.saveMu.Unlock()
	if o.savePending {
		return
	}
	o.savePending = true
	o.saveTimer = time.AfterFunc(o.cfg.SaveDebounce, func() {
		o.saveMu.Lock()
		o.savePending = false
		o.saveMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := o.saveFn(ctx); err != nil {
			slog.Warn("[ORCHESTRATOR] debounced index save failed, will retry on next window", "error", err)
		}
	})
}

func toMatches(results []vectorindex.Result, origins []Fragment) []model.Match {
	out := make([]model.Match, 0, len(results))
	for _, r := range results {
		band, ok := model.ClassifyBand(r.Score)
		if !ok {
			continue
		}
		out = append(out, model.Match{SourcePaper: r.Paper, CosineScore: r.Score, PlagiarismBand: band})
	}
	return out
}

// finalizeMatches unions index + federator matches by paper ID (step 7),
// preferring the higher-scoring instance, then sorts and truncates.
func finalizeMatches(matches []model.Match, k int) []model.Match {
	byID := make(map[uint64]model.Match)
	var order []uint64
	for _, m := range matches {
		id := m.SourcePaper.PaperID
		existing, ok := byID[id]
		if !ok {
			byID[id] = m
			order = append(order, id)
			continue
		}
		if m.CosineScore > existing.CosineScore {
			byID[id] = m
		}
	}
	out := make([]model.Match, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CosineScore != out[j].CosineScore {
			return out[i].CosineScore > out[j].CosineScore
		}
		return out[i].SourcePaper.PaperID < out[j].SourcePaper.PaperID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func dotProduct(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
