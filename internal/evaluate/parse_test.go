package evaluate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"surrounding prose", "Here you go:\n{\"a\":1}\nHope that helps.", `{"a":1}`},
		{"code fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"nested braces", `x {"a":{"b":2}} y`, `{"a":{"b":2}}`},
		{"array", `result: [1,2]`, `[1,2]`},
		{"no json", "  no json here ", "no json here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestParseEvaluation_WellFormed(t *testing.T) {
	raw := "Sure.\n```json\n" + `{
  "conditions": [
    {"index": 7, "condition_text": "Mention Wegener", "status": "✅", "reason": "Named in line 1.", "suggestion": ""},
    {"index": 8, "condition_text": "", "status": "❌", "reason": "No evidence.", "suggestion": "Add sea-floor spreading."}
  ],
  "score": 85.4,
  "summary": "  Good start.  "
}` + "\n```"

	ev, err := ParseEvaluation(raw, []string{"Mention Wegener", "Include scientific evidence"})
	require.NoError(t, err)
	require.Len(t, ev.Conditions, 2)

	assert.Equal(t, 1, ev.Conditions[0].Index)
	assert.Equal(t, StatusMet, ev.Conditions[0].Status)
	assert.Equal(t, 2, ev.Conditions[1].Index)
	assert.Equal(t, "Include scientific evidence", ev.Conditions[1].ConditionText)
	assert.Equal(t, StatusUnmet, ev.Conditions[1].Status)
	require.NotNil(t, ev.Score)
	assert.Equal(t, 85, *ev.Score)
	assert.Equal(t, "Good start.", ev.Summary)
}

func TestParseEvaluation_SingleQuotes(t *testing.T) {
	raw := `{'conditions': [{'condition_text': 'Length', 'status': '⚠️', 'reason': 'Short'}], 'score': 40, 'summary': 'Needs work'}`
	ev, err := ParseEvaluation(raw, nil)
	require.NoError(t, err)
	require.Len(t, ev.Conditions, 1)
	assert.Equal(t, StatusPartial, ev.Conditions[0].Status)
	assert.Equal(t, "Needs work", ev.Summary)
}

func TestParseEvaluation_NormalisesValues(t *testing.T) {
	raw := `{"conditions": [
		{"status": "met"},
		{"status": "⚠"},
		{"status": "maybe"},
		{"status": null, "reason": null}
	], "score": 140}`
	ev, err := ParseEvaluation(raw, []string{"a", "b"})
	require.NoError(t, err)

	var statuses []Status
	for _, c := range ev.Conditions {
		statuses = append(statuses, c.Status)
	}
	assert.Equal(t, []Status{StatusMet, StatusPartial, StatusPartial, StatusPartial}, statuses)
	assert.Equal(t, "a", ev.Conditions[0].ConditionText)
	assert.Equal(t, "", ev.Conditions[2].ConditionText)
	assert.Equal(t, 100, *ev.Score)
}

func TestParseEvaluation_MissingScore(t *testing.T) {
	ev, err := ParseEvaluation(`{"conditions": [], "summary": "ok"}`, nil)
	require.NoError(t, err)
	assert.Nil(t, ev.Score)
	assert.Empty(t, ev.Conditions)
}

func TestParseEvaluation_Rejects(t *testing.T) {
	cases := map[string]string{
		"prose":            "I could not evaluate this draft.",
		"broken json":      `{"conditions": [`,
		"top-level array":  `[{"status": "✅"}]`,
		"wrong types":      `{"conditions": "all good", "score": "high"}`,
		"missing list":     `{"score": 90, "summary": "fine"}`,
		"non-object items": `{"conditions": [1, 2]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			ev, err := ParseEvaluation(raw, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnparseable)
			assert.Nil(t, ev)
		})
	}
}

func TestParseEvaluation_SchemaErrorNamesField(t *testing.T) {
	_, err := ParseEvaluation(`{"conditions": [], "score": "high"}`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score")
}

func TestValidateEvaluation_ClampsNegativeScore(t *testing.T) {
	score := -5
	ev := &Evaluation{Score: &score}
	ValidateEvaluation(ev, nil)
	assert.Equal(t, 0, *ev.Score)

	ValidateEvaluation(nil, nil) // must not panic
}

func TestParseEvaluation_ClampsOutOfRangeScore(t *testing.T) {
	for raw, want := range map[string]int{
		`{"conditions": [], "score": 1e300}`:  100,
		`{"conditions": [], "score": -1e300}`: 0,
		`{"conditions": [], "score": 99.6}`:   100,
		`{"conditions": [], "score": 0.4}`:    0,
	} {
		ev, err := ParseEvaluation(raw, nil)
		require.NoError(t, err, raw)
		require.NotNil(t, ev.Score, raw)
		assert.Equal(t, want, *ev.Score, raw)
	}
}

func TestEvaluation_Counts(t *testing.T) {
	ev := &Evaluation{Conditions: []ConditionResult{
		{Status: StatusMet}, {Status: StatusMet}, {Status: StatusUnmet},
	}}
	counts := ev.Counts()
	assert.Equal(t, 2, counts[StatusMet])
	assert.Equal(t, 0, counts[StatusPartial])
	assert.Equal(t, 1, counts[StatusUnmet])
}

func TestParseConditions(t *testing.T) {
	got := ParseConditions("  800-1200 characters \r\n\n- Mention Wegener\n\t\nInclude evidence")
	assert.Equal(t, []string{"800-1200 characters", "- Mention Wegener", "Include evidence"}, got)
	assert.Empty(t, ParseConditions(" \n\n "))
}

func TestBuildEvaluationPrompt(t *testing.T) {
	p := BuildEvaluationPrompt([]string{"first", "second"}, "Draft body with 100% effort", StrictnessStrict)
	assert.Contains(t, p, "first\nsecond")
	assert.Contains(t, p, "Draft body with 100% effort")
	assert.Contains(t, p, StrictnessStrict.Description())
	assert.Contains(t, p, `"condition_text"`)
	assert.NotContains(t, p, "%!")
	assert.Less(t, strings.Index(p, "[Conditions]"), strings.Index(p, "[Student text]"))
}

func TestBuildCorrectionPrompt(t *testing.T) {
	p := BuildCorrectionPrompt([]string{"c1"}, "original")
	assert.Contains(t, p, "[Conditions]\nc1")
	assert.Contains(t, p, "[Original text]\noriginal")
}

func TestParseStrictness(t *testing.T) {
	for in, want := range map[string]Strictness{"1": StrictnessLenient, "strict": StrictnessStrict, "": StrictnessNormal, " Normal ": StrictnessNormal} {
		got, err := ParseStrictness(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStrictness("4")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.False(t, Strictness(4).Valid())
	assert.Equal(t, "strictness(4)", Strictness(4).String())
}
