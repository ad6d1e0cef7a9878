package vectorindex

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

func unitVec(dim int, hot int) []float32 {
	v := make([]float32, dim)
	v[hot%dim] = 1
	return v
}

func paper(hash byte, embedding []float32) model.Paper {
	return model.Paper{
		ContentHash: [32]byte{hash},
		Title:       "paper",
		Embedding:   embedding,
	}
}

func newTestIndex() *Index {
	return New(Config{Dimension: 4, UpgradeAt10k: 10000, UpgradeAt100k: 100000, UpgradeAt1M: 1000000})
}

func TestAdd_AssignsIncrementingIDs(t *testing.T) {
	idx := newTestIndex()
	id1, err := idx.Add(paper(1, unitVec(4, 0)))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	id2, err := idx.Add(paper(2, unitVec(4, 1)))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if id1 == 0 || id2 == 0 || id1 == id2 {
		t.Errorf("ids = %d, %d, want distinct nonzero", id1, id2)
	}
}

func TestAdd_RejectsWrongDimension(t *testing.T) {
	idx := newTestIndex()
	if _, err := idx.Add(paper(1, unitVec(3, 0))); err == nil {
		t.Error("Add() error = nil, want dimension mismatch error")
	}
}

func TestSearch_ExactMatchScoresOne(t *testing.T) {
	idx := newTestIndex()
	id, _ := idx.Add(paper(1, unitVec(4, 0)))

	results, err := idx.Search(unitVec(4, 0), 5, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Paper.PaperID != id {
		t.Errorf("result paperID = %d, want %d", results[0].Paper.PaperID, id)
	}
	if math.Abs(float64(results[0].Score-1)) > 1e-6 {
		t.Errorf("score = %v, want ~1", results[0].Score)
	}
}

func TestSearch_RespectsMinScore(t *testing.T) {
	idx := newTestIndex()
	idx.Add(paper(1, unitVec(4, 0)))
	idx.Add(paper(2, unitVec(4, 1)))

	results, err := idx.Search(unitVec(4, 0), 5, 0.99)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1 (orthogonal vector excluded)", len(results))
	}
}

func TestSearch_RespectsK(t *testing.T) {
	idx := newTestIndex()
	for i := 0; i < 5; i++ {
		idx.Add(paper(byte(i), unitVec(4, 0)))
	}
	results, err := idx.Search(unitVec(4, 0), 2, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
}

func TestRemove_DeletesFromSearch(t *testing.T) {
	idx := newTestIndex()
	id, _ := idx.Add(paper(1, unitVec(4, 0)))
	if err := idx.Remove(id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	results, _ := idx.Search(unitVec(4, 0), 5, 0)
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0 after remove", len(results))
	}
}

func TestRemove_UnknownIDErrors(t *testing.T) {
	idx := newTestIndex()
	if err := idx.Remove(999); err == nil {
		t.Error("Remove() error = nil, want error for unknown ID")
	}
}

func TestRemoveDuplicates_KeepsLowestID(t *testing.T) {
	idx := newTestIndex()
	hash := [32]byte{7}
	p1 := paper(7, unitVec(4, 0))
	p1.ContentHash = hash
	p2 := paper(7, unitVec(4, 1))
	p2.ContentHash = hash

	id1, _ := idx.Add(p1)
	idx.Add(p2)

	removed, err := idx.RemoveDuplicates()
	if err != nil {
		t.Fatalf("RemoveDuplicates() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := idx.GetPaper(id1); !ok {
		t.Error("lowest paper ID was removed, want it kept")
	}
}

func TestClear_ResetsToEmptyFlat(t *testing.T) {
	idx := newTestIndex()
	idx.Add(paper(1, unitVec(4, 0)))
	idx.Clear()

	stats := idx.Stats()
	if stats.Count != 0 || stats.Strategy != StrategyFlat {
		t.Errorf("stats = %+v, want empty flat index", stats)
	}
}

func TestStrategyFor_UpgradesAtThresholds(t *testing.T) {
	th := thresholds{upTo10k: 10, upTo100k: 100, upTo1M: 1000}
	cases := []struct {
		count int
		want  Strategy
	}{
		{1, StrategyFlat},
		{10, StrategyFlat},
		{11, StrategyHNSW},
		{100, StrategyHNSW},
		{101, StrategyIVFFlat},
		{1000, StrategyIVFFlat},
		{1001, StrategyIVFPQ},
	}
	for _, c := range cases {
		if got := strategyFor(c.count, th); got != c.want {
			t.Errorf("strategyFor(%d) = %v, want %v", c.count, got, c.want)
		}
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx := newTestIndex()
	id, _ := idx.Add(paper(1, unitVec(4, 0)))
	idx.Add(paper(2, unitVec(4, 1)))

	if err := idx.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	for _, name := range []string{vectorsFileName, metaFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected file %s to exist: %v", name, err)
		}
	}

	reloaded := newTestIndex()
	if err := reloaded.Load(dir); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	stats := reloaded.Stats()
	if stats.Count != 2 {
		t.Fatalf("Count = %d, want 2", stats.Count)
	}
	if stats.Corrupted {
		t.Error("Corrupted = true, want false")
	}
	p, ok := reloaded.GetPaper(id)
	if !ok {
		t.Fatal("GetPaper() after reload: not found")
	}
	if len(p.Embedding) != 4 {
		t.Errorf("reloaded embedding dim = %d, want 4", len(p.Embedding))
	}
}

func TestLoad_MissingFilesIsNotAnError(t *testing.T) {
	idx := newTestIndex()
	if err := idx.Load(t.TempDir()); err != nil {
		t.Fatalf("Load() error = %v, want nil for empty directory", err)
	}
}

func TestLoad_CorruptFileMarksIndexCorrupted(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, vectorsFileName), []byte("not a valid index file"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	idx := newTestIndex()
	if err := idx.Load(dir); err != nil {
		t.Fatalf("Load() error = %v, want nil (corruption reported via Stats)", err)
	}
	if !idx.Stats().Corrupted {
		t.Error("Corrupted = false, want true")
	}
}

func TestLoad_DimensionMismatchRefuses(t *testing.T) {
	dir := t.TempDir()
	idx := New(Config{Dimension: 8, UpgradeAt10k: 10, UpgradeAt100k: 100, UpgradeAt1M: 1000})
	idx.Add(paper(1, unitVec(8, 0)))
	if err := idx.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	mismatched := newTestIndex() // dimension 4
	if err := mismatched.Load(dir); err == nil {
		t.Error("Load() error = nil, want dimension mismatch error")
	}
}

func TestBackup_CopiesBothFiles(t *testing.T) {
	dir := t.TempDir()
	idx := newTestIndex()
	idx.Add(paper(1, unitVec(4, 0)))
	if err := idx.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	backupDir, err := idx.Backup(dir, time.Now())
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	for _, name := range []string{vectorsFileName, metaFileName} {
		if _, err := os.Stat(filepath.Join(backupDir, name)); err != nil {
			t.Errorf("expected backup file %s: %v", name, err)
		}
	}
}
