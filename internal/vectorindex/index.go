package vectorindex

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/connexus-ai/ragbox-backend/internal/apierr"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// Config fixes the index's dimensionality and the corpus-size thresholds
// that drive strategy auto-upgrade (§4.4).
type Config struct {
	Dimension     int
	UpgradeAt10k  int
	UpgradeAt100k int
	UpgradeAt1M   int
}

// Result pairs an indexed paper with its score against a query.
type Result struct {
	Paper model.Paper
	Score float32
}

// Stats summarizes the index for admin/diagnostic endpoints (§4.4 stats()).
type Stats struct {
	Strategy        Strategy
	Count           int
	Dimension       int
	Corrupted       bool
	ReadOnly        bool
	SupportsRemoval bool
	IsApproximate   bool
}

// SizeRecorder observes the index's entry count whenever it changes, for
// the index-size gauge SPEC_FULL's DOMAIN STACK promises.
type SizeRecorder interface {
	ObserveIndexSize(n int)
}

// Index is the vector index (C4): paper_id-mapped vectors plus metadata,
// guarded by a single write-exclusive lock, with an active strategy chosen
// by corpus size and swapped in by a full rebuild (§4.4, §5, §9).
type Index struct {
	mu         sync.RWMutex
	dim        int
	thresholds thresholds
	strategy   Strategy
	engine     searchEngine
	papers     map[uint64]*model.Paper
	nextID     uint64
	corrupted  bool
	readOnly   bool
	sizeRec    SizeRecorder
}

// New constructs an empty index at the flat strategy.
func New(cfg Config) *Index {
	idx := &Index{
		dim: cfg.Dimension,
		thresholds: thresholds{
			upTo10k:  cfg.UpgradeAt10k,
			upTo100k: cfg.UpgradeAt100k,
			upTo1M:   cfg.UpgradeAt1M,
		},
		papers:   make(map[uint64]*model.Paper),
		strategy: StrategyFlat,
		engine:   newFlatEngine(),
	}
	return idx
}

// SetSizeRecorder installs an observer notified of the index's entry count
// after every mutation. Safe to call at any time; nil disables reporting.
func (idx *Index) SetSizeRecorder(r SizeRecorder) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.sizeRec = r
	if r != nil {
		r.ObserveIndexSize(len(idx.papers))
	}
}

// reportSizeLocked notifies the installed recorder, if any. Callers must
// hold idx.mu.
func (idx *Index) reportSizeLocked() {
	if idx.sizeRec != nil {
		idx.sizeRec.ObserveIndexSize(len(idx.papers))
	}
}

// Add inserts a paper's embedding, assigns it a paper ID, and rebuilds the
// search engine (possibly under a new strategy) to include it.
func (idx *Index) Add(paper model.Paper) (uint64, error) {
	if len(paper.Embedding) != idx.dim {
		return 0, apierr.NewInvalidInput(fmt.Sprintf("embedding has dimension %d, index expects %d", len(paper.Embedding), idx.dim))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.readOnly {
		return 0, apierr.NewUnavailable("index is read-only pending a rebuild after a strategy mismatch on load", nil)
	}

	idx.nextID++
	id := idx.nextID
	paper.PaperID = id
	idx.papers[id] = &paper
	idx.rebuildLocked()
	idx.reportSizeLocked()
	return id, nil
}

// Remove deletes a paper by ID. Approximate strategies do not support
// incremental removal (§4.4); Remove always triggers a full rebuild so the
// engine never holds a stale vector regardless of strategy.
func (idx *Index) Remove(paperID uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.papers[paperID]; !ok {
		return apierr.NewInvalidInput(fmt.Sprintf("paper %d not found", paperID))
	}
	delete(idx.papers, paperID)
	idx.rebuildLocked()
	idx.reportSizeLocked()
	return nil
}

// RemoveDuplicates deletes papers sharing a content hash, keeping the
// lowest paper ID in each group, and returns the number removed.
func (idx *Index) RemoveDuplicates() (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	keepers := make(map[[32]byte]uint64)
	for id, p := range idx.papers {
		if cur, ok := keepers[p.ContentHash]; !ok || id < cur {
			keepers[p.ContentHash] = id
		}
	}
	removed := 0
	for id, p := range idx.papers {
		if keepers[p.ContentHash] != id {
			delete(idx.papers, id)
			removed++
		}
	}
	if removed > 0 {
		idx.rebuildLocked()
		idx.reportSizeLocked()
	}
	return removed, nil
}

// Clear empties the index and resets it to the flat strategy.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.papers = make(map[uint64]*model.Paper)
	idx.nextID = 0
	idx.strategy = StrategyFlat
	idx.engine = newFlatEngine()
	idx.engine.build(nil, idx.dim)
	idx.corrupted = false
	idx.readOnly = false
	idx.reportSizeLocked()
}

// Search returns up to k papers at or above minScore, best match first.
func (idx *Index) Search(query []float32, k int, minScore float32) ([]Result, error) {
	if len(query) != idx.dim {
		return nil, apierr.NewInvalidInput(fmt.Sprintf("query has dimension %d, index expects %d", len(query), idx.dim))
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.resultsFrom(idx.engine.search(query, k, minScore)), nil
}

// SearchBatch runs Search for each query vector.
func (idx *Index) SearchBatch(queries [][]float32, k int, minScore float32) ([][]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	raw := idx.engine.searchBatch(queries, k, minScore)
	out := make([][]Result, len(raw))
	for i, r := range raw {
		out[i] = idx.resultsFrom(r)
	}
	return out, nil
}

func (idx *Index) resultsFrom(raw []scored) []Result {
	out := make([]Result, 0, len(raw))
	for _, s := range raw {
		p, ok := idx.papers[s.paperID]
		if !ok {
			continue
		}
		out = append(out, Result{Paper: *p, Score: s.score})
	}
	return out
}

// FindByContentHash returns the paper with the given content hash, if any
// (§3 invariant: at most one paper_id per content_hash).
func (idx *Index) FindByContentHash(hash [32]byte) (model.Paper, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, p := range idx.papers {
		if p.ContentHash == hash {
			return *p, true
		}
	}
	return model.Paper{}, false
}

// GetPaper retrieves a single paper by ID.
func (idx *Index) GetPaper(paperID uint64) (model.Paper, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.papers[paperID]
	if !ok {
		return model.Paper{}, false
	}
	return *p, true
}

// Stats reports the index's current strategy, size, and health.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Stats{
		Strategy:        idx.strategy,
		Count:           len(idx.papers),
		Dimension:       idx.dim,
		Corrupted:       idx.corrupted,
		ReadOnly:        idx.readOnly,
		SupportsRemoval: idx.engine.supportsRemoval(),
		IsApproximate:   idx.engine.isApproximate(),
	}
}

// rebuildLocked chooses the strategy for the current corpus size and
// rebuilds the engine from scratch. Callers must hold idx.mu for writing.
func (idx *Index) rebuildLocked() {
	desired := strategyFor(len(idx.papers), idx.thresholds)
	if desired != idx.strategy || idx.engine == nil {
		slog.Info("[INDEX] strategy upgrade", "from", idx.strategy, "to", desired, "count", len(idx.papers))
		idx.strategy = desired
		idx.engine = newEngine(desired)
	}
	vectors := make(map[uint64][]float32, len(idx.papers))
	for id, p := range idx.papers {
		vectors[id] = p.Embedding
	}
	idx.engine.build(vectors, idx.dim)
	idx.readOnly = false
}
