package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dgallion1/checkmate/internal/evaluate"
	"github.com/dgallion1/checkmate/internal/resilience"
)

// maxJSONBody bounds JSON API requests.
const maxJSONBody = 4 << 20

type evaluateRequest struct {
	Conditions []string `json:"conditions" validate:"required,min=1,max=50,dive,required,max=1000"`
	Text       string   `json:"text" validate:"required"`
	Strictness int      `json:"strictness" validate:"omitempty,min=1,max=3"`
}

type evaluateResponse struct {
	Evaluation *evaluate.Evaluation `json:"evaluation"`
	Raw        string               `json:"raw"`
	ParseError string               `json:"parse_error,omitempty"`
	Trimmed    bool                 `json:"trimmed"`
	Cached     bool                 `json:"cached"`
	Mocked     bool                 `json:"mocked"`
}

type correctRequest struct {
	Conditions []string `json:"conditions" validate:"required,min=1,max=50,dive,required,max=1000"`
	Text       string   `json:"text" validate:"required"`
}

// handleAPIEvaluate runs an evaluation. An unparseable model response is still
// a 200: evaluation is null and raw carries the response.
func (s *Server) handleAPIEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	out, err := s.evaluator.Evaluate(r.Context(), evaluate.EvaluateInput{
		Conditions: trimAll(req.Conditions),
		Draft:      req.Text,
		Strictness: evaluate.Strictness(req.Strictness),
	})
	if err != nil {
		jsonError(w, err.Error(), llmErrorStatus(err))
		return
	}
	s.observeVerdicts(out)

	resp := evaluateResponse{
		Evaluation: out.Evaluation,
		Raw:        out.Raw,
		Trimmed:    out.Trimmed,
		Cached:     out.Cached,
		Mocked:     s.evaluator.Mocked(),
	}
	if out.ParseErr != nil {
		resp.ParseError = out.ParseErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAPICorrect(w http.ResponseWriter, r *http.Request) {
	var req correctRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	text, err := s.evaluator.Correct(r.Context(), trimAll(req.Conditions), req.Text)
	if err != nil {
		jsonError(w, err.Error(), llmErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"text":   text,
		"mocked": s.evaluator.Mocked(),
	})
}

// decodeJSON reads and validates a request body, writing the error response
// itself when it returns false.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		jsonError(w, validationMessage(err), http.StatusBadRequest)
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min", "max":
			msgs = append(msgs, field+" must satisfy "+fe.Tag()+"="+fe.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// llmErrorStatus maps an evaluation failure to an HTTP status.
func llmErrorStatus(err error) int {
	switch {
	case errors.Is(err, evaluate.ErrInvalidInput):
		return http.StatusBadRequest
	case resilience.IsOpen(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) observeVerdicts(out *evaluate.Outcome) {
	if out.Evaluation == nil {
		return
	}
	for _, c := range out.Evaluation.Conditions {
		s.metrics.ObserveVerdict(c.Status.Label())
	}
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
