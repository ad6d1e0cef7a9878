package vectorindex

// flatEngine is an exact brute-force index: every query scans every vector.
// It is the default strategy below the small-corpus threshold (§4.4) and
// the baseline the approximate strategies are measured against.
type flatEngine struct {
	ids     []uint64
	vectors [][]float32
}

func newFlatEngine() *flatEngine { return &flatEngine{} }

func (e *flatEngine) name() Strategy      { return StrategyFlat }
func (e *flatEngine) isApproximate() bool { return false }
func (e *flatEngine) supportsRemoval() bool { return true }

func (e *flatEngine) build(vectors map[uint64][]float32, dim int) {
	e.ids = make([]uint64, 0, len(vectors))
	e.vectors = make([][]float32, 0, len(vectors))
	for id, v := range vectors {
		e.ids = append(e.ids, id)
		e.vectors = append(e.vectors, v)
	}
}

func (e *flatEngine) search(query []float32, k int, minScore float32) []scored {
	return bruteForceTopK(query, e.ids, e.vectors, k, minScore)
}

func (e *flatEngine) searchBatch(queries [][]float32, k int, minScore float32) [][]scored {
	out := make([][]scored, len(queries))
	for i, q := range queries {
		out[i] = e.search(q, k, minScore)
	}
	return out
}
