package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
)

// MockSummary marks responses produced without calling the API.
const MockSummary = "The OpenAI API key is not configured, so this is a mocked result."

// MockClient answers offline. Every condition is judged partial and a
// correction returns the draft unchanged.
type MockClient struct{}

func (MockClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Task == TaskCorrect {
		return req.Draft, nil
	}

	score := 50
	ev := Evaluation{
		Conditions: make([]ConditionResult, 0, len(req.Conditions)),
		Score:      &score,
		Summary:    MockSummary,
	}
	for i, cond := range req.Conditions {
		ev.Conditions = append(ev.Conditions, ConditionResult{
			Index:         i + 1,
			ConditionText: cond,
			Status:        StatusPartial,
			Reason:        "Related sentences were partly found in the draft.",
			Suggestion:    "Address the condition explicitly and add an example.",
		})
	}
	out, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal mock evaluation: %w", err)
	}
	return string(out), nil
}
