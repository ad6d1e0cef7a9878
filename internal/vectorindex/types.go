// Package vectorindex implements the vector index (C4): an in-memory
// ANN/exact index with ID mapping, metadata, crash-safe persistence, and
// auto-upgrade across strategies as the index grows (§4.4).
package vectorindex

// Strategy names the internal structure backing the index.
type Strategy string

const (
	StrategyFlat    Strategy = "flat"
	StrategyHNSW    Strategy = "hnsw"
	StrategyIVFFlat Strategy = "ivf_flat"
	StrategyIVFPQ   Strategy = "ivf_pq"
)

// thresholds for the auto-upgrade table in §4.4.
type thresholds struct {
	upTo10k  int
	upTo100k int
	upTo1M   int
}

func strategyFor(count int, t thresholds) Strategy {
	switch {
	case count <= t.upTo10k:
		return StrategyFlat
	case count <= t.upTo100k:
		return StrategyHNSW
	case count <= t.upTo1M:
		return StrategyIVFFlat
	default:
		return StrategyIVFPQ
	}
}

// scored is a candidate match before it is attached to a query/band.
type scored struct {
	paperID uint64
	score   float32
}

// searchEngine is the capability every strategy implements: build itself
// from the full metadata set (rebuild-from-scratch, per §9's "pure rebuild"
// design note) and answer nearest-neighbor queries over it.
type searchEngine interface {
	name() Strategy
	isApproximate() bool
	supportsRemoval() bool
	// build constructs the engine's internal structure from the given
	// vectors. Implementations must treat this as the only mutation path:
	// no in-place incremental engine state survives a rebuild.
	build(vectors map[uint64][]float32, dim int)
	search(query []float32, k int, minScore float32) []scored
	searchBatch(queries [][]float32, k int, minScore float32) [][]scored
}
