package dedup

import (
	"encoding/binary"
	"math"
)

// bloom is a fixed-size Bloom filter over 32-byte content hashes. Sized for
// a target cardinality n* with a target false-positive rate p per §4.3:
//
//	m = ceil(-n*ln(p) / ln(2)^2)
//	k = round((m/n) * ln(2))
//
// It never produces false negatives, only false positives, which is why
// the authoritative ledger must still be consulted on every hit (§3, §4.3).
type bloom struct {
	bits []uint64
	m    uint64
	k    int
}

func newBloom(targetCardinality int, falsePositiveRate float64) *bloom {
	if targetCardinality <= 0 {
		targetCardinality = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	n := float64(targetCardinality)
	m := uint64(math.Ceil(-n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)))
	if m < 64 {
		m = 64
	}
	k := int(math.Round((float64(m) / n) * math.Ln2))
	if k < 1 {
		k = 1
	}

	words := (m + 63) / 64
	return &bloom{
		bits: make([]uint64, words),
		m:    words * 64,
		k:    k,
	}
}

// add sets the k bit positions derived from hash via double hashing
// (Kirsch-Mitzenmacher): position_i = (h1 + i*h2) mod m.
func (b *bloom) add(hash [32]byte) {
	h1, h2 := splitHash(hash)
	for i := 0; i < b.k; i++ {
		pos := (h1 + uint64(i)*h2) % b.m
		b.bits[pos/64] |= 1 << (pos % 64)
	}
}

// mightContain returns false only when hash is definitely absent.
func (b *bloom) mightContain(hash [32]byte) bool {
	h1, h2 := splitHash(hash)
	for i := 0; i < b.k; i++ {
		pos := (h1 + uint64(i)*h2) % b.m
		if b.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// reset clears all bits, used when rebuilding the filter from the ledger.
func (b *bloom) reset() {
	for i := range b.bits {
		b.bits[i] = 0
	}
}

func splitHash(hash [32]byte) (uint64, uint64) {
	h1 := binary.BigEndian.Uint64(hash[0:8])
	h2 := binary.BigEndian.Uint64(hash[8:16])
	if h2 == 0 {
		h2 = 1 // avoid a degenerate all-zero stride
	}
	return h1, h2
}
