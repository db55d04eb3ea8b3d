package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"model":  s.cfg.OpenAIModel,
		"mocked": s.evaluator.Mocked(),
		"stats":  s.evaluator.Stats().Snapshot(),
	})
}
