package vectorindex

import (
	"math/rand"
)

// hnswEngine is a single-layer navigable small-world graph: each node keeps
// up to M edges to its approximate nearest neighbors, and search walks the
// graph breadth-first from a fixed set of entry points, scoring every node
// it reaches and keeping the ef best. Results are approximate: a node with
// no path from the entry points is never scored. It is the strategy the
// index moves to once the corpus outgrows the flat engine (§4.4). This is
// a simplified single-layer variant of Malkov & Yashunin's
// multi-layer HNSW; the pack carries no ANN graph-index library, so the
// construction and greedy-search routines below are original, built in the
// same min-heap idiom as the flat engine.
type hnswEngine struct {
	ids       []uint64
	vectors   [][]float32
	edges     [][]int // adjacency by vector slice index
	entries   []int
	maxDegree int
	efSearch  int
}

const (
	hnswMaxDegree  = 16
	hnswEfConstruct = 64
	hnswEfSearch    = 48
	hnswEntryPoints = 4
)

func newHNSWEngine() *hnswEngine {
	return &hnswEngine{maxDegree: hnswMaxDegree, efSearch: hnswEfSearch}
}

func (e *hnswEngine) name() Strategy        { return StrategyHNSW }
func (e *hnswEngine) isApproximate() bool   { return true }
func (e *hnswEngine) supportsRemoval() bool { return false }

func (e *hnswEngine) build(vectors map[uint64][]float32, dim int) {
	e.ids = make([]uint64, 0, len(vectors))
	e.vectors = make([][]float32, 0, len(vectors))
	for id, v := range vectors {
		e.ids = append(e.ids, id)
		e.vectors = append(e.vectors, v)
	}
	n := len(e.vectors)
	e.edges = make([][]int, n)
	if n == 0 {
		e.entries = nil
		return
	}

	// Deterministic construction order keyed by paper ID so a rebuild from
	// the same data always yields the same graph.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sortByID(order, e.ids)

	for pos, i := range order {
		built := order[:pos+1]
		entryPoints := built
		if len(entryPoints) > hnswEntryPoints {
			entryPoints = entryPoints[len(entryPoints)-hnswEntryPoints:]
		}
		candidates := e.greedySearch(e.vectors[i], hnswEfConstruct, entryPoints)
		neighbors := selectNeighbors(candidates, e.maxDegree, i)
		e.edges[i] = neighbors
		for _, j := range neighbors {
			e.edges[j] = addEdgeCapped(e.edges[j], i, e.maxDegree)
		}
	}

	numEntries := hnswEntryPoints
	if numEntries > n {
		numEntries = n
	}
	rnd := rand.New(rand.NewSource(1))
	perm := rnd.Perm(n)
	e.entries = append([]int(nil), perm[:numEntries]...)
}

// greedySearch walks the graph from entryPoints, expanding along edges and
// keeping the ef best-scoring nodes visited, and returns up to ef candidate
// indices sorted best-first.
func (e *hnswEngine) greedySearch(query []float32, ef int, entryPoints []int) []int {
	if len(entryPoints) == 0 {
		return nil
	}
	visited := make(map[int]bool, ef*2)
	top := newTopKBounded(ef)

	queue := append([]int(nil), entryPoints...)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		// paperID here is overloaded to carry the graph index, not a real
		// paper ID; greedySearch works in index space and the caller maps
		// back to paper IDs afterward.
		top.add(scored{paperID: uint64(cur), score: dot(query, e.vectors[cur])})
		for _, nb := range e.edges[cur] {
			if !visited[nb] {
				queue = append(queue, nb)
			}
		}
	}

	results := top.values()
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = int(r.paperID)
	}
	return out
}

func (e *hnswEngine) search(query []float32, k int, minScore float32) []scored {
	if len(e.ids) == 0 {
		return nil
	}
	ef := e.efSearch
	if ef < k {
		ef = k
	}
	candidates := e.greedySearch(query, ef, e.entries)
	top := newTopKBounded(k)
	for _, idx := range candidates {
		if s := dot(query, e.vectors[idx]); s >= minScore {
			top.add(scored{paperID: e.ids[idx], score: s})
		}
	}
	return top.values()
}

func (e *hnswEngine) searchBatch(queries [][]float32, k int, minScore float32) [][]scored {
	out := make([][]scored, len(queries))
	for i, q := range queries {
		out[i] = e.search(q, k, minScore)
	}
	return out
}

func sortByID(order []int, ids []uint64) {
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && ids[order[j-1]] > ids[order[j]]; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}
}

// selectNeighbors picks the maxDegree closest of the candidate indices to
// self, excluding self.
func selectNeighbors(candidates []int, maxDegree, self int) []int {
	out := make([]int, 0, maxDegree)
	for _, c := range candidates {
		if c == self {
			continue
		}
		out = append(out, c)
		if len(out) >= maxDegree {
			break
		}
	}
	return out
}

// addEdgeCapped adds a backlink unless the node already has maxDegree
// edges, in which case the new edge is dropped; existing edges are never
// evicted.
func addEdgeCapped(edges []int, newIdx int, maxDegree int) []int {
	for _, e := range edges {
		if e == newIdx {
			return edges
		}
	}
	if len(edges) < maxDegree {
		return append(edges, newIdx)
	}
	return edges
}
