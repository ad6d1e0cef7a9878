package fragment

import (
	"reflect"
	"testing"
)

func TestSliding_ProducesOverlappingWindows(t *testing.T) {
	got, err := Sliding("a b c d e f g h i j", 4, 2)
	if err != nil {
		t.Fatalf("Sliding() error = %v", err)
	}
	want := []Chunk{
		{Index: 0, Text: "a b c d"},
		{Index: 1, Text: "c d e f"},
		{Index: 2, Text: "e f g h"},
		{Index: 3, Text: "g h i j"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sliding() = %+v, want %+v", got, want)
	}
}

func TestSliding_RejectsInvalidOverlap(t *testing.T) {
	cases := []struct {
		window, overlap int
	}{
		{4, 0},
		{4, 4},
		{4, 5},
		{0, 1},
	}
	for _, c := range cases {
		if _, err := Sliding("a b c d", c.window, c.overlap); err == nil {
			t.Errorf("Sliding(window=%d, overlap=%d) error = nil, want error", c.window, c.overlap)
		}
	}
}

func TestSliding_EmptyTextReturnsNoChunks(t *testing.T) {
	got, err := Sliding("   ", 4, 2)
	if err != nil {
		t.Fatalf("Sliding() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Sliding() = %+v, want empty", got)
	}
}

func TestSentences_SplitsOnTerminators(t *testing.T) {
	got := Sentences("This is one sentence. This is another sentence here.", 3)
	if len(got) != 2 {
		t.Fatalf("Sentences() = %d chunks, want 2: %+v", len(got), got)
	}
	if got[0].Index != 0 || got[1].Index != 1 {
		t.Errorf("Sentences() indices = %d,%d, want 0,1", got[0].Index, got[1].Index)
	}
}

func TestSentences_ConcatenatesTooShortSentences(t *testing.T) {
	got := Sentences("No. Way. This sentence has enough words in it.", 5)
	for _, c := range got {
		if wordCount(c.Text) < 5 {
			t.Errorf("chunk %q has %d words, want >= 5", c.Text, wordCount(c.Text))
		}
	}
}

func TestSentences_HandlesFullWidthTerminators(t *testing.T) {
	got := Sentences("这是一个句子。这是另一个句子。", 2)
	if len(got) == 0 {
		t.Fatal("Sentences() returned no chunks for full-width terminators")
	}
}

func TestSentences_EmptyTextReturnsNoChunks(t *testing.T) {
	got := Sentences("   ", 3)
	if len(got) != 0 {
		t.Errorf("Sentences() = %+v, want empty", got)
	}
}
