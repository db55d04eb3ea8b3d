package evaluate

import (
	"fmt"
	"strings"
)

// SystemPrompt is sent as the system message on every call.
const SystemPrompt = "You are an expert grader who reviews and corrects student assignments."

// ResponseSchema is the JSON shape the model is asked to return.
const ResponseSchema = `{
  "type": "object",
  "properties": {
    "conditions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "index": {"type": "integer"},
          "condition_text": {"type": "string"},
          "status": {"type": "string", "enum": ["✅", "⚠️", "❌"]},
          "reason": {"type": "string"},
          "suggestion": {"type": "string"}
        }
      }
    },
    "score": {"type": "integer"},
    "summary": {"type": "string"}
  }
}`

const evaluationPrompt = `You are an expert in grading and correcting student assignments, and you can verify facts.
Check how well the student's text meets the [Conditions] below, including factual, naming and conceptual errors, and report the result as a checklist.

Grading:
- Condition met: ✅
- Weak grammar, expression or logic, or only partly met: ⚠️
- Factual, naming or conceptual error, or condition not met: ❌

Strictness: %s

Output requirements (mandatory):
1) Output exactly ONE JSON object matching the JSON schema below.
2) Put the conditions in the "conditions" array in input order. Each item has index (1-based), condition_text, status, reason and suggestion.
3) suggestion contains a corrected sentence or an example sentence, preferably an actual correction.
4) score is an integer from 0 to 100.
5) summary is a short overall comment of one to three sentences.
6) Write reason, suggestion and summary in the language of the student's text.

JSON schema:
%s

[Conditions]
%s

[Student text]
%s

Output: ONE JSON object only (no other text).`

const correctionPrompt = `You are an expert copy editor. Revise the student's original text below:
- Replace sentences that break the conditions or state wrong facts with accurate facts and names.
- Smooth out grammar, expression and the flow of the argument.
- Keep the student's intent and tone as far as possible, but fix the errors.
- Output only the full revised text as a single piece of text. No explanations.

[Conditions]
%s

[Original text]
%s`

// ParseConditions splits text into one condition per non-blank line.
// Leading list markers such as "1." or "-" are kept as written.
func ParseConditions(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// BuildEvaluationPrompt renders the checklist request for the given conditions
// and draft.
func BuildEvaluationPrompt(conditions []string, draft string, strictness Strictness) string {
	return fmt.Sprintf(evaluationPrompt,
		strictness.Description(),
		ResponseSchema,
		strings.Join(conditions, "\n"),
		draft,
	)
}

// BuildCorrectionPrompt renders the request for a fully corrected draft.
func BuildCorrectionPrompt(conditions []string, draft string) string {
	return fmt.Sprintf(correctionPrompt, strings.Join(conditions, "\n"), draft)
}
