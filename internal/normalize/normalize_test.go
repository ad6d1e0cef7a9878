package normalize

import "testing"

func TestText_Deterministic(t *testing.T) {
	in := "<p>Neural Networks are MODELS!</p>"
	a := Text(in, "en")
	b := Text(in, "en")
	if a != b {
		t.Fatalf("Text is not deterministic: %q != %q", a, b)
	}
}

func TestText_StripsHTMLAndStopwords(t *testing.T) {
	got := Text("<b>The</b> Neural Networks are a model of the brain.", "en")
	want := "neural networks model brain"
	if got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestText_UnknownLanguageSkipsStopwordRemoval(t *testing.T) {
	got := Text("The quick fox", "xx")
	want := "the quick fox"
	if got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestText_CollapsesPunctuationToSpace(t *testing.T) {
	got := Text("hello,,,world---foo", "xx")
	want := "hello world foo"
	if got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestContentHashInput_UsesNewlineSeparator(t *testing.T) {
	got := ContentHashInput("a title", "an abstract")
	want := "a title\nan abstract"
	if got != want {
		t.Errorf("ContentHashInput() = %q, want %q", got, want)
	}
}
