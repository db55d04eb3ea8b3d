package draft

import (
	"strings"
	"testing"
)

func TestFit_UnderBudgetUnchanged(t *testing.T) {
	text := "A short draft.\n\nWith two paragraphs."
	got, trimmed := Fit(text, 1000)
	if trimmed {
		t.Error("expected no trimming")
	}
	if got != text {
		t.Errorf("expected text unchanged, got %q", got)
	}
}

func TestFit_ZeroBudgetDisablesTrimming(t *testing.T) {
	text := strings.Repeat("word ", 5000)
	got, trimmed := Fit(text, 0)
	if trimmed || got != text {
		t.Error("expected zero budget to disable trimming")
	}
}

func TestFit_KeepsWholeParagraphs(t *testing.T) {
	para := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)
	text := strings.Join([]string{para, para, para, para}, "\n\n")

	budget := EstimateTokens(para)*2 + 5
	got, trimmed := Fit(text, budget)
	if !trimmed {
		t.Fatal("expected trimming")
	}
	if EstimateTokens(got) > budget {
		t.Errorf("expected at most %d tokens, got %d", budget, EstimateTokens(got))
	}
	if !strings.HasPrefix(text, strings.SplitN(got, "\n\n", 2)[0]) {
		t.Error("expected result to be a prefix of the original paragraphs")
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("expected cut at a sentence boundary, got suffix %q", got[len(got)-10:])
	}
}

func TestFit_SplitsOversizedParagraphBySentence(t *testing.T) {
	text := strings.Repeat("One two three four five six seven eight. ", 100)
	got, trimmed := Fit(text, 50)
	if !trimmed {
		t.Fatal("expected trimming")
	}
	if got == "" {
		t.Fatal("expected at least one sentence")
	}
	if EstimateTokens(got) > 50 {
		t.Errorf("expected at most 50 tokens, got %d", EstimateTokens(got))
	}
	if !strings.HasPrefix(got, "One two three four five six seven eight.") {
		t.Errorf("unexpected prefix: %q", got)
	}
}

func TestFit_HardCutWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("가", 4000)
	got, trimmed := Fit(text, 100)
	if !trimmed {
		t.Fatal("expected trimming")
	}
	if got == "" || EstimateTokens(got) > 100 {
		t.Errorf("expected a non-empty cut within budget, got %d tokens", EstimateTokens(got))
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Error("expected 0 tokens for empty text")
	}
	if EstimateTokens("a") != 1 {
		t.Error("expected at least 1 token for non-empty text")
	}
	// 300 words -> ~399 tokens.
	if got := EstimateTokens(strings.Repeat("word ", 300)); got < 350 || got > 450 {
		t.Errorf("expected ~399 tokens, got %d", got)
	}
	// Unspaced scripts fall back to runes/4.
	if got := EstimateTokens(strings.Repeat("가", 400)); got != 100 {
		t.Errorf("expected 100 tokens, got %d", got)
	}
}
