// Package evaluate asks a language model to check a draft against a list of
// assignment conditions, and to produce a corrected draft on request.
package evaluate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidInput is returned when conditions or the draft are missing.
var ErrInvalidInput = errors.New("invalid input")

// Strictness selects how harshly partial or ambiguous answers are judged.
type Strictness int

const (
	StrictnessLenient Strictness = 1
	StrictnessNormal  Strictness = 2
	StrictnessStrict  Strictness = 3
)

func (s Strictness) Valid() bool {
	return s >= StrictnessLenient && s <= StrictnessStrict
}

func (s Strictness) String() string {
	switch s {
	case StrictnessLenient:
		return "lenient"
	case StrictnessNormal:
		return "normal"
	case StrictnessStrict:
		return "strict"
	default:
		return "strictness(" + strconv.Itoa(int(s)) + ")"
	}
}

// Description is the grading rule given to the model.
func (s Strictness) Description() string {
	switch s {
	case StrictnessLenient:
		return "Level 1 (lenient): give the benefit of the doubt on ambiguous cases. Prefer ✅ and mark ❌ only for clear factual errors."
	case StrictnessStrict:
		return "Level 3 (strict): judge rigorously. Treat even minor omissions or vagueness as ⚠️ or ❌."
	default:
		return "Level 2 (normal): the usual standard. Factual or naming errors are ❌; weak expression or logic is ⚠️."
	}
}

// ParseStrictness accepts "1".."3" or the level name.
func ParseStrictness(s string) (Strictness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "lenient":
		return StrictnessLenient, nil
	case "", "2", "normal":
		return StrictnessNormal, nil
	case "3", "strict":
		return StrictnessStrict, nil
	}
	return 0, fmt.Errorf("%w: strictness %q", ErrInvalidInput, s)
}

// Status is the verdict for a single condition.
type Status string

const (
	StatusMet     Status = "✅"
	StatusPartial Status = "⚠️"
	StatusUnmet   Status = "❌"
)

// Label is a plain-word rendering of the status.
func (s Status) Label() string {
	switch s {
	case StatusMet:
		return "met"
	case StatusUnmet:
		return "not met"
	default:
		return "partial"
	}
}

// normalizeStatus maps the model's spelling of a verdict onto a Status.
// Anything unrecognised is treated as partial.
func normalizeStatus(raw string) Status {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "✅"), strings.HasPrefix(s, "✔"):
		return StatusMet
	case strings.HasPrefix(s, "❌"), strings.HasPrefix(s, "✖"):
		return StatusUnmet
	case strings.HasPrefix(s, "⚠"):
		return StatusPartial
	}
	switch strings.ToLower(s) {
	case "met", "pass", "satisfied", "yes":
		return StatusMet
	case "unmet", "not met", "fail", "failed", "no":
		return StatusUnmet
	}
	return StatusPartial
}

// ConditionResult is the verdict for one condition.
type ConditionResult struct {
	Index         int    `json:"index"`
	ConditionText string `json:"condition_text"`
	Status        Status `json:"status"`
	Reason        string `json:"reason"`
	Suggestion    string `json:"suggestion"`
}

// Evaluation is the checklist returned by the model. Score is nil when the
// model did not give one.
type Evaluation struct {
	Conditions []ConditionResult `json:"conditions"`
	Score      *int              `json:"score,omitempty"`
	Summary    string            `json:"summary"`
}

// Counts tallies conditions by status.
func (e *Evaluation) Counts() map[Status]int {
	counts := map[Status]int{StatusMet: 0, StatusPartial: 0, StatusUnmet: 0}
	for _, c := range e.Conditions {
		counts[c.Status]++
	}
	return counts
}

// ValidateEvaluation tidies a parsed evaluation in place: the score is clamped
// to 0..100, conditions are numbered 1..n in order, missing condition text is
// filled from the submitted list and statuses are normalised.
func ValidateEvaluation(ev *Evaluation, conditions []string) {
	if ev == nil {
		return
	}
	if ev.Score != nil {
		score := min(max(*ev.Score, 0), 100)
		ev.Score = &score
	}
	ev.Summary = strings.TrimSpace(ev.Summary)

	for i := range ev.Conditions {
		c := &ev.Conditions[i]
		c.Index = i + 1
		c.ConditionText = strings.TrimSpace(c.ConditionText)
		if c.ConditionText == "" && i < len(conditions) {
			c.ConditionText = conditions[i]
		}
		c.Status = normalizeStatus(string(c.Status))
		c.Reason = strings.TrimSpace(c.Reason)
		c.Suggestion = strings.TrimSpace(c.Suggestion)
	}
}
