package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Outcome is the result of SeenOrAdd (§4.3).
type Outcome int

const (
	New Outcome = iota
	Duplicate
)

func (o Outcome) String() string {
	if o == Duplicate {
		return "duplicate"
	}
	return "new"
}

// Deduplicator layers a probabilistic filter over an authoritative ledger
// (§3, §4.3). The ledger is the source of truth; the filter is a
// rebuildable accelerator (§9) that may be dropped if the ledger alone is
// fast enough, but here both are kept to bound cost on the hot "was this
// ever seen" path.
type Deduplicator struct {
	mu     sync.Mutex // single-writer per §5; guards filter and ledger together
	filter *bloom
	ledger Ledger
}

// New constructs a Deduplicator, loading the authoritative set from the
// ledger on startup and rebuilding the probabilistic filter from it (§4.3).
func New(ctx context.Context, ledger Ledger, targetCardinality int, falsePositiveRate float64) (*Deduplicator, error) {
	d := &Deduplicator{
		filter: newBloom(targetCardinality, falsePositiveRate),
		ledger: ledger,
	}
	if err := d.rebuildFilter(ctx); err != nil {
		return nil, fmt.Errorf("dedup.New: %w", err)
	}
	return d, nil
}

func (d *Deduplicator) rebuildFilter(ctx context.Context) error {
	hashes, err := d.ledger.All(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	d.filter.reset()
	for _, h := range hashes {
		d.filter.add(h)
	}
	slog.Info("[DEDUP] filter rebuilt", "entries", len(hashes))
	return nil
}

// SeenOrAdd implements the algorithm in §4.3: probe the filter first; a
// miss is conclusively New and is recorded in both layers. A filter hit
// must be confirmed against the authoritative ledger, since the filter may
// false-positive but never false-negatives.
func (d *Deduplicator) SeenOrAdd(ctx context.Context, hash [32]byte) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.filter.mightContain(hash) {
		if err := d.ledger.Add(ctx, hash); err != nil {
			return New, fmt.Errorf("dedup.SeenOrAdd: add to ledger: %w", err)
		}
		d.filter.add(hash)
		return New, nil
	}

	exists, err := d.ledger.Contains(ctx, hash)
	if err != nil {
		return New, fmt.Errorf("dedup.SeenOrAdd: ledger lookup: %w", err)
	}
	if exists {
		return Duplicate, nil
	}

	// Bloom false positive: not actually in the ledger yet.
	if err := d.ledger.Add(ctx, hash); err != nil {
		return New, fmt.Errorf("dedup.SeenOrAdd: add to ledger: %w", err)
	}
	return New, nil
}

// Stats reports ledger cardinality for admin/diagnostic use.
func (d *Deduplicator) Stats(ctx context.Context) (int, error) {
	hashes, err := d.ledger.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("dedup.Stats: %w", err)
	}
	return len(hashes), nil
}

// Close releases the underlying ledger's resources.
func (d *Deduplicator) Close() error {
	return d.ledger.Close()
}
