// Package draft keeps a draft within the prompt budget of the evaluator.
package draft

import "strings"

// Fit returns the longest prefix of text, cut at a paragraph or sentence
// boundary, whose estimated size is within maxTokens. The second result reports
// whether anything was dropped. maxTokens <= 0 disables trimming.
func Fit(text string, maxTokens int) (string, bool) {
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return text, false
	}

	var out string
	fits := func(candidate string) bool { return EstimateTokens(candidate) <= maxTokens }

paragraphs:
	for _, para := range splitByParagraphs(text) {
		if candidate := join(out, "\n\n", para); fits(candidate) {
			out = candidate
			continue
		}

		// Take whole sentences from the paragraph that overflows.
		sep := "\n\n"
		for _, sent := range splitSentences(para) {
			candidate := join(out, sep, sent)
			if !fits(candidate) {
				break paragraphs
			}
			out = candidate
			sep = " "
		}
		break
	}

	if out == "" {
		return hardCut(text, maxTokens), true
	}
	return out, true
}

func join(prefix, sep, s string) string {
	if prefix == "" {
		return s
	}
	return prefix + sep + s
}

// hardCut keeps leading runes when not even one sentence fits.
func hardCut(text string, maxTokens int) string {
	runes := []rune(strings.TrimSpace(text))
	for n := min(len(runes), maxTokens*4); n > 0; n /= 2 {
		if cut := strings.TrimSpace(string(runes[:n])); EstimateTokens(cut) <= maxTokens {
			return cut
		}
	}
	return ""
}

// splitByParagraphs splits on blank lines.
func splitByParagraphs(text string) []string {
	parts := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitSentences does basic sentence splitting.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n') {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
