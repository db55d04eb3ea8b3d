package api

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/dgallion1/checkmate/internal/config"
	"github.com/dgallion1/checkmate/internal/evaluate"
	"github.com/dgallion1/checkmate/internal/metrics"
	"github.com/dgallion1/checkmate/internal/session"
)

// Server is the HTTP front-end for checkmate: an HTML form for people and a
// small JSON API for scripts.
type Server struct {
	router    chi.Router
	evaluator *evaluate.Service
	sessions  *session.Store
	metrics   *metrics.Metrics
	log       *slog.Logger
	cfg       config.Config
	validate  *validator.Validate
	pages     *template.Template
}

// NewServer creates and configures the HTTP server.
func NewServer(evaluator *evaluate.Service, sessions *session.Store, m *metrics.Metrics, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		evaluator: evaluator,
		sessions:  sessions,
		metrics:   m,
		log:       log,
		cfg:       cfg,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		pages:     parsePages(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(s.metrics.Middleware)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// HTML pages.
	r.Get("/", s.handleIndex)
	r.Post("/evaluate", s.handleSubmit)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", s.handleSession)
		r.Post("/evaluate", s.handleReevaluate)
		r.Post("/correct", s.handleCorrect)
		r.Post("/apply/{index}", s.handleApplySuggestion)
		r.Get("/corrected.txt", s.handleDownloadCorrected)
	})

	// JSON API.
	r.Route("/api", func(r chi.Router) {
		r.Post("/normalize", s.handleNormalize)
		r.Post("/evaluate", s.handleAPIEvaluate)
		r.Post("/correct", s.handleAPICorrect)
		r.Get("/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"mocked": s.evaluator.Mocked(),
	})
}
