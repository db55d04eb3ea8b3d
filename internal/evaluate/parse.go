package evaluate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrUnparseable is returned when a response holds no usable evaluation.
var ErrUnparseable = errors.New("unparseable evaluation")

// responseSchema accepts what models actually send: numbers that may be
// floats, and nulls in place of empty strings.
const responseSchema = `{
  "type": "object",
  "required": ["conditions"],
  "properties": {
    "conditions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "index": {"type": ["number", "null"]},
          "condition_text": {"type": ["string", "null"]},
          "status": {"type": ["string", "null"]},
          "reason": {"type": ["string", "null"]},
          "suggestion": {"type": ["string", "null"]}
        }
      }
    },
    "score": {"type": ["number", "null"]},
    "summary": {"type": ["string", "null"]}
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(responseSchema))
})

var (
	codeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	jsonSpanRe  = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)
)

// ExtractJSON returns the span from the first opening brace or bracket to the
// last matching closer, after stripping a surrounding code fence. Text with no
// such span is returned trimmed.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	if span := jsonSpanRe.FindString(s); span != "" {
		return span
	}
	return s
}

type wireCondition struct {
	ConditionText string `json:"condition_text"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
	Suggestion    string `json:"suggestion"`
}

type wireEvaluation struct {
	Conditions []wireCondition `json:"conditions"`
	Score      *float64        `json:"score"`
	Summary    string          `json:"summary"`
}

// ParseEvaluation extracts and validates the evaluation in a model response.
// Responses that use single quotes instead of double quotes are accepted.
func ParseEvaluation(raw string, conditions []string) (*Evaluation, error) {
	span := ExtractJSON(raw)
	if !json.Valid([]byte(span)) {
		fixed := strings.ReplaceAll(span, "'", `"`)
		if !json.Valid([]byte(fixed)) {
			return nil, fmt.Errorf("%w: no JSON object in response", ErrUnparseable)
		}
		span = fixed
	}

	if err := checkSchema([]byte(span)); err != nil {
		return nil, err
	}

	var wire wireEvaluation
	if err := json.Unmarshal([]byte(span), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	ev := &Evaluation{
		Conditions: make([]ConditionResult, 0, len(wire.Conditions)),
		Summary:    wire.Summary,
	}
	if wire.Score != nil && !math.IsNaN(*wire.Score) {
		score := int(math.Round(math.Min(math.Max(*wire.Score, 0), 100)))
		ev.Score = &score
	}
	for _, c := range wire.Conditions {
		ev.Conditions = append(ev.Conditions, ConditionResult{
			ConditionText: c.ConditionText,
			Status:        Status(c.Status),
			Reason:        c.Reason,
			Suggestion:    c.Suggestion,
		})
	}
	ValidateEvaluation(ev, conditions)
	return ev, nil
}

func checkSchema(doc []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile response schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		msgs = append(msgs, field+": "+desc.Description())
	}
	return fmt.Errorf("%w: %s", ErrUnparseable, strings.Join(msgs, "; "))
}
