package vectorindex

// ivfPQEngine adds product quantization on top of the inverted-list
// partitioning in ivfFlatEngine: each vector is split into subvectors, and
// each subvector is replaced with the ID of its nearest of 256 per-segment
// centroids. Search reconstructs an approximate score from a lookup table
// instead of touching the full-precision vector, cutting memory at the
// scale this strategy is chosen for (§4.4, above one million vectors).
type ivfPQEngine struct {
	ivfFlatEngine
	segments   int
	subDim     int
	codebooks  [][][]float32 // [segment][code][subDim]
	codes      [][]byte      // codes[vectorIdx][segment]
}

const (
	ivfpqSegments     = 8
	ivfpqCodesPerSeg  = 256
	ivfpqKMeansIter   = 6
)

func newIVFPQEngine() *ivfPQEngine {
	return &ivfPQEngine{ivfFlatEngine: ivfFlatEngine{nprobe: ivfFlatNProbe}}
}

func (e *ivfPQEngine) name() Strategy        { return StrategyIVFPQ }
func (e *ivfPQEngine) isApproximate() bool   { return true }
func (e *ivfPQEngine) supportsRemoval() bool { return false }

func (e *ivfPQEngine) build(vectors map[uint64][]float32, dim int) {
	e.ivfFlatEngine.build(vectors, dim)
	if len(e.vectors) == 0 {
		e.codebooks, e.codes = nil, nil
		return
	}

	segments := ivfpqSegments
	for segments > dim {
		segments /= 2
	}
	if segments < 1 {
		segments = 1
	}
	subDim := dim / segments
	if subDim < 1 {
		subDim = dim
		segments = 1
	}
	e.segments, e.subDim = segments, subDim

	e.codebooks = make([][][]float32, segments)
	e.codes = make([][]byte, len(e.vectors))
	for i := range e.codes {
		e.codes[i] = make([]byte, segments)
	}

	for seg := 0; seg < segments; seg++ {
		sub := extractSubvectors(e.vectors, seg*subDim, subDim)
		nCodes := ivfpqCodesPerSeg
		if nCodes > len(sub) {
			nCodes = len(sub)
		}
		book := kMeans(sub, nCodes, ivfpqKMeansIter, subDim)
		e.codebooks[seg] = book
		for i, v := range sub {
			e.codes[i][seg] = byte(nearestCentroid(v, book))
		}
	}
}

func extractSubvectors(vectors [][]float32, offset, subDim int) [][]float32 {
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		end := offset + subDim
		if end > len(v) {
			end = len(v)
		}
		out[i] = append([]float32(nil), v[offset:end]...)
	}
	return out
}

// approxScore reconstructs the vector from its PQ codes and scores it
// against the query. This is the "asymmetric distance computation" variant:
// the query stays full precision, only the indexed side is quantized.
func (e *ivfPQEngine) approxScore(query []float32, idx int) float32 {
	var sum float32
	for seg := 0; seg < e.segments; seg++ {
		code := e.codes[idx][seg]
		centroid := e.codebooks[seg][code]
		offset := seg * e.subDim
		for d := 0; d < len(centroid); d++ {
			sum += query[offset+d] * centroid[d]
		}
	}
	return sum
}

func (e *ivfPQEngine) search(query []float32, k int, minScore float32) []scored {
	if len(e.centroids) == 0 {
		return nil
	}
	top := newTopKBounded(k)
	for _, c := range e.probeLists(query) {
		for _, idx := range e.lists[c] {
			if s := e.approxScore(query, idx); s >= minScore {
				top.add(scored{paperID: e.ids[idx], score: s})
			}
		}
	}
	return top.values()
}

func (e *ivfPQEngine) searchBatch(queries [][]float32, k int, minScore float32) [][]scored {
	out := make([][]scored, len(queries))
	for i, q := range queries {
		out[i] = e.search(q, k, minScore)
	}
	return out
}
