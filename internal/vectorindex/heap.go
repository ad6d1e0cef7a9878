package vectorindex

import (
	"container/heap"
	"runtime"
	"sync"
)

// dot returns the inner product of two equal-length vectors. Embeddings
// entering the index are already L2-normalized (embed.Service), so this
// doubles as cosine similarity.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// preferred reports whether candidate a should be kept over b when both
// would otherwise tie: higher score wins, and on an exact score tie the
// lower paper ID wins.
func preferred(a, b scored) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.paperID < b.paperID
}

// scoredMinHeap is a fixed-capacity min-heap of scored candidates, grounded
// on chromem-go's maxDocSims: push while under capacity, then replace the
// current worst entry whenever a better candidate shows up.
type scoredMinHeap []scored

func (h scoredMinHeap) Len() int { return len(h) }
func (h scoredMinHeap) Less(i, j int) bool {
	// min-heap orders the least preferred candidate to the top so it is
	// the one evicted.
	return preferred(h[j], h[i])
}
func (h scoredMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scoredMinHeap) Push(x any)        { *h = append(*h, x.(scored)) }
func (h *scoredMinHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topKBounded keeps the k best-scoring candidates passed to add(); callers
// apply any minScore filter before adding. It is safe for concurrent add()
// calls; call values() only once all adds have finished.
type topKBounded struct {
	mu sync.Mutex
	h  scoredMinHeap
	k  int
}

func newTopKBounded(k int) *topKBounded {
	return &topKBounded{h: make(scoredMinHeap, 0, max(k, 0)), k: k}
}

func (t *topKBounded) add(c scored) {
	if t.k <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.h.Len() < t.k {
		heap.Push(&t.h, c)
		return
	}
	if len(t.h) > 0 && preferred(c, t.h[0]) {
		heap.Pop(&t.h)
		heap.Push(&t.h, c)
	}
}

// values drains the heap into a slice ordered best-first.
func (t *topKBounded) values() []scored {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]scored, t.h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&t.h).(scored)
	}
	return out
}

// bruteForceTopK scans every candidate vector concurrently and keeps the k
// highest-scoring matches at or above minScore, grounded on chromem-go's
// getMostSimilarDocs split-and-scan pattern.
func bruteForceTopK(query []float32, ids []uint64, vectors [][]float32, k int, minScore float32) []scored {
	if k <= 0 || len(ids) == 0 {
		return nil
	}
	top := newTopKBounded(k)

	numCPU := runtime.NumCPU()
	concurrency := numCPU
	if len(ids) < concurrency {
		concurrency = len(ids)
	}
	if concurrency <= 1 {
		for i, v := range vectors {
			if s := dot(query, v); s >= minScore {
				top.add(scored{paperID: ids[i], score: s})
			}
		}
		return top.values()
	}

	chunk := len(ids) / concurrency
	rem := len(ids) % concurrency
	var wg sync.WaitGroup
	start := 0
	for i := 0; i < concurrency; i++ {
		end := start + chunk
		if i < rem {
			end++
		}
		s, e := start, end
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := s; j < e; j++ {
				if score := dot(query, vectors[j]); score >= minScore {
					top.add(scored{paperID: ids[j], score: score})
				}
			}
		}()
		start = end
	}
	wg.Wait()
	return top.values()
}
