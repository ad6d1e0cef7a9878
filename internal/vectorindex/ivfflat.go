package vectorindex

import "math/rand"

// ivfFlatEngine partitions vectors into Voronoi cells (inverted lists) via
// k-means over a random sample of centroids, then at query time probes only
// the nearest nprobe cells instead of scanning the whole corpus. It keeps
// full-precision vectors, unlike ivfPQEngine, trading memory for recall.
type ivfFlatEngine struct {
	centroids [][]float32
	lists     [][]int // per-centroid indices into ids/vectors
	ids       []uint64
	vectors   [][]float32
	nprobe    int
}

const (
	ivfFlatMinPerList = 64
	ivfFlatMaxLists   = 256
	ivfFlatKMeansIter = 8
	ivfFlatNProbe     = 8
)

func newIVFFlatEngine() *ivfFlatEngine {
	return &ivfFlatEngine{nprobe: ivfFlatNProbe}
}

func (e *ivfFlatEngine) name() Strategy        { return StrategyIVFFlat }
func (e *ivfFlatEngine) isApproximate() bool   { return true }
func (e *ivfFlatEngine) supportsRemoval() bool { return false }

func (e *ivfFlatEngine) build(vectors map[uint64][]float32, dim int) {
	e.ids = make([]uint64, 0, len(vectors))
	e.vectors = make([][]float32, 0, len(vectors))
	for id, v := range vectors {
		e.ids = append(e.ids, id)
		e.vectors = append(e.vectors, v)
	}
	n := len(e.vectors)
	if n == 0 {
		e.centroids, e.lists = nil, nil
		return
	}

	nlists := n / ivfFlatMinPerList
	if nlists < 1 {
		nlists = 1
	}
	if nlists > ivfFlatMaxLists {
		nlists = ivfFlatMaxLists
	}
	if nlists > n {
		nlists = n
	}

	e.centroids = kMeans(e.vectors, nlists, ivfFlatKMeansIter, dim)
	e.lists = make([][]int, len(e.centroids))
	for i, v := range e.vectors {
		c := nearestCentroid(v, e.centroids)
		e.lists[c] = append(e.lists[c], i)
	}
}

func (e *ivfFlatEngine) probeLists(query []float32) []int {
	nprobe := e.nprobe
	if nprobe > len(e.centroids) {
		nprobe = len(e.centroids)
	}
	order := rankCentroids(query, e.centroids)
	return order[:nprobe]
}

func (e *ivfFlatEngine) search(query []float32, k int, minScore float32) []scored {
	if len(e.centroids) == 0 {
		return nil
	}
	top := newTopKBounded(k)
	for _, c := range e.probeLists(query) {
		for _, idx := range e.lists[c] {
			if s := dot(query, e.vectors[idx]); s >= minScore {
				top.add(scored{paperID: e.ids[idx], score: s})
			}
		}
	}
	return top.values()
}

func (e *ivfFlatEngine) searchBatch(queries [][]float32, k int, minScore float32) [][]scored {
	out := make([][]scored, len(queries))
	for i, q := range queries {
		out[i] = e.search(q, k, minScore)
	}
	return out
}

// kMeans runs a fixed number of Lloyd iterations starting from a
// deterministic random sample of the input vectors as initial centroids.
func kMeans(vectors [][]float32, nlists, iterations, dim int) [][]float32 {
	rnd := rand.New(rand.NewSource(int64(len(vectors))*31 + int64(nlists)))
	perm := rnd.Perm(len(vectors))
	centroids := make([][]float32, nlists)
	for i := 0; i < nlists; i++ {
		centroids[i] = append([]float32(nil), vectors[perm[i%len(perm)]]...)
	}

	for iter := 0; iter < iterations; iter++ {
		sums := make([][]float64, nlists)
		counts := make([]int, nlists)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for _, v := range vectors {
			c := nearestCentroid(v, centroids)
			counts[c]++
			for d := 0; d < dim; d++ {
				sums[c][d] += float64(v[d])
			}
		}
		for c := 0; c < nlists; c++ {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}
	}
	return centroids
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best, bestScore := 0, dot(v, centroids[0])
	for i := 1; i < len(centroids); i++ {
		if s := dot(v, centroids[i]); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// rankCentroids returns centroid indices ordered nearest-first to query.
func rankCentroids(query []float32, centroids [][]float32) []int {
	order := make([]int, len(centroids))
	scores := make([]float32, len(centroids))
	for i, c := range centroids {
		order[i] = i
		scores[i] = dot(query, c)
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && scores[order[j-1]] < scores[order[j]]; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}
	return order
}
