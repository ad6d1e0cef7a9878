package embed

import (
	"context"
	"math"
	"testing"
)

func vecLen(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestService_ProducesL2NormalizedVectors(t *testing.T) {
	svc := NewService(NewStub(384), 64)
	vecs, err := svc.Embed(context.Background(), []string{"hello world", "foo bar"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	for i, v := range vecs {
		if l := vecLen(v); math.Abs(l-1) > 1e-4 {
			t.Errorf("vec[%d] norm = %f, want ~1", i, l)
		}
	}
}

func TestService_CachesRepeatedText(t *testing.T) {
	svc := NewService(NewStub(32), 64)
	ctx := context.Background()

	if _, err := svc.Embed(ctx, []string{"repeat me"}); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if got := svc.CacheLen(); got != 1 {
		t.Fatalf("CacheLen() = %d, want 1", got)
	}

	vecs, err := svc.Embed(ctx, []string{"repeat me", "new text"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("len(vecs) = %d, want 2", len(vecs))
	}
	if svc.CacheLen() != 2 {
		t.Fatalf("CacheLen() = %d, want 2", svc.CacheLen())
	}
}

func TestStub_Deterministic(t *testing.T) {
	s := NewStub(384)
	a, _ := s.Embed(context.Background(), []string{"deep learning"})
	b, _ := s.Embed(context.Background(), []string{"deep learning"})
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("Stub.Embed not deterministic at index %d: %f != %f", i, a[0][i], b[0][i])
		}
	}
}

func TestStub_DifferentTextsDiffer(t *testing.T) {
	s := NewStub(384)
	vecs, _ := s.Embed(context.Background(), []string{"apples", "oranges"})
	same := true
	for i := range vecs[0] {
		if vecs[0][i] != vecs[1][i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different texts to produce different vectors")
	}
}
