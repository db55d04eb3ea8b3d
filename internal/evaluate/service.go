package evaluate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/dgallion1/checkmate/internal/draft"
	"github.com/dgallion1/checkmate/internal/resilience"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// Config holds model and call settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// MaxDraftTokens bounds the draft embedded in an evaluation prompt.
	// Zero disables trimming.
	MaxDraftTokens int
	// CacheTTL keeps responses to identical prompts. Zero disables caching.
	CacheTTL time.Duration

	RequestsPerSecond float64
	Burst             int
}

// Mock reports whether no API key is configured.
func (c Config) Mock() bool {
	return strings.TrimSpace(c.APIKey) == ""
}

// NewCompleter returns the OpenAI client, or MockClient when no key is set.
func NewCompleter(cfg Config) Completer {
	if cfg.Mock() {
		return MockClient{}
	}
	return NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout)
}

// Call outcomes reported to an Observer.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeCached      = "cached"
	OutcomeCircuitOpen = "circuit_open"
)

// Observer receives one notification per model call or cache hit.
type Observer interface {
	ObserveLLMCall(task, outcome string, d time.Duration)
}

type cacheEntry struct {
	text    string
	expires time.Time
}

// Service evaluates and corrects drafts.
type Service struct {
	completer Completer
	cfg       Config
	exec      *resilience.Executor
	limiter   *rate.Limiter
	stats     *LLMStats
	observer  Observer

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]cacheEntry
}

// Option customises a Service.
type Option func(*Service)

func WithExecutor(e *resilience.Executor) Option { return func(s *Service) { s.exec = e } }
func WithStats(st *LLMStats) Option             { return func(s *Service) { s.stats = st } }
func WithObserver(o Observer) Option            { return func(s *Service) { s.observer = o } }

func NewService(c Completer, cfg Config, opts ...Option) *Service {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	s := &Service{
		completer: c,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, max(cfg.Burst, 1)),
		cache:     make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.exec == nil {
		s.exec = resilience.NewExecutor(resilience.Config{})
	}
	if s.stats == nil {
		s.stats = NewLLMStats(time.Hour)
	}
	return s
}

// Stats returns the latency tracker.
func (s *Service) Stats() *LLMStats { return s.stats }

// Mocked reports whether responses come from MockClient.
func (s *Service) Mocked() bool {
	_, ok := s.completer.(MockClient)
	return ok
}

// EvaluateInput is one evaluation request.
type EvaluateInput struct {
	Conditions []string
	Draft      string
	Strictness Strictness
}

// Outcome is the result of an evaluation. When the response cannot be parsed,
// Evaluation is nil, ParseErr says why and Raw holds the response for display.
type Outcome struct {
	Evaluation *Evaluation
	Raw        string
	Prompt     string
	ParseErr   error
	Trimmed    bool
	Cached     bool
}

// Evaluate asks the model for a checklist of in.Conditions against in.Draft.
// A zero Strictness means normal.
func (s *Service) Evaluate(ctx context.Context, in EvaluateInput) (*Outcome, error) {
	if in.Strictness == 0 {
		in.Strictness = StrictnessNormal
	}
	if err := validateInput(in.Conditions, in.Draft); err != nil {
		return nil, err
	}
	if !in.Strictness.Valid() {
		return nil, fmt.Errorf("%w: strictness %d out of range", ErrInvalidInput, in.Strictness)
	}

	text, trimmed := draft.Fit(in.Draft, s.cfg.MaxDraftTokens)
	if trimmed {
		slog.Info("draft trimmed for prompt", "tokens", draft.EstimateTokens(in.Draft), "budget", s.cfg.MaxDraftTokens)
	}

	prompt := BuildEvaluationPrompt(in.Conditions, text, in.Strictness)
	raw, cached, err := s.complete(ctx, Request{
		Task:        TaskEvaluate,
		System:      SystemPrompt,
		Prompt:      prompt,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		Conditions:  in.Conditions,
		Draft:       text,
	})
	if err != nil {
		return nil, err
	}

	out := &Outcome{Raw: raw, Prompt: prompt, Trimmed: trimmed, Cached: cached}
	out.Evaluation, out.ParseErr = ParseEvaluation(raw, in.Conditions)
	if out.ParseErr != nil {
		slog.Warn("evaluation response not parsed", "error", out.ParseErr, "raw", truncate(raw, 200))
	}
	return out, nil
}

// Correct asks the model for the full draft rewritten to satisfy conditions.
func (s *Service) Correct(ctx context.Context, conditions []string, text string) (string, error) {
	if err := validateInput(conditions, text); err != nil {
		return "", err
	}

	raw, _, err := s.complete(ctx, Request{
		Task:        TaskCorrect,
		System:      SystemPrompt,
		Prompt:      BuildCorrectionPrompt(conditions, text),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		Conditions:  conditions,
		Draft:       text,
	})
	if err != nil {
		return "", err
	}

	corrected := strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(corrected); len(m) > 1 {
		corrected = m[1]
	}
	if corrected == "" {
		return "", errors.New("empty correction from model")
	}
	return corrected, nil
}

func validateInput(conditions []string, text string) error {
	if len(conditions) == 0 {
		return fmt.Errorf("%w: no conditions", ErrInvalidInput)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty draft", ErrInvalidInput)
	}
	return nil
}

// complete returns the model's response, serving identical requests from the
// cache and collapsing concurrent duplicates into one call.
func (s *Service) complete(ctx context.Context, req Request) (string, bool, error) {
	key := cacheKey(s.cfg.Model, req)
	if text, ok := s.cached(key); ok {
		s.stats.RecordCacheHit()
		s.observe(req.Task, OutcomeCached, 0)
		return text, true, nil
	}

	// The shared call outlives any single caller; each caller still stops
	// waiting when its own ctx ends.
	ch := s.group.DoChan(key, func() (any, error) {
		timeout := s.cfg.Timeout
		if timeout <= 0 {
			timeout = defaultCallTimeout
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}

		var text string
		start := time.Now()
		err := s.exec.Do(ctx, "llm."+string(req.Task), func(ctx context.Context) error {
			var err error
			text, err = s.completer.Complete(ctx, req)
			return err
		}, classify)
		elapsed := time.Since(start)

		s.stats.Record(req.Task, elapsed, err != nil)
		switch {
		case resilience.IsOpen(err):
			s.observe(req.Task, OutcomeCircuitOpen, elapsed)
		case err != nil:
			s.observe(req.Task, OutcomeError, elapsed)
		default:
			s.observe(req.Task, OutcomeOK, elapsed)
		}
		if err != nil {
			return "", fmt.Errorf("llm %s: %w", req.Task, err)
		}

		slog.Debug("llm call", "task", req.Task, "duration_ms", elapsed.Milliseconds(), "chars", len(text))
		s.store(key, text)
		return text, nil
	})
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", false, r.Err
		}
		return r.Val.(string), false, nil
	}
}

func classify(err error) (retryable, failure bool) {
	return IsRetryable(err), !errors.Is(err, context.Canceled)
}

func (s *Service) observe(task Task, outcome string, d time.Duration) {
	if s.observer != nil {
		s.observer.ObserveLLMCall(string(task), outcome, d)
	}
}

func (s *Service) cached(key string) (string, bool) {
	if s.cfg.CacheTTL <= 0 {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[key]
	if !ok || time.Now().After(e.expires) {
		return "", false
	}
	return e.text, true
}

func (s *Service) store(key, text string) {
	if s.cfg.CacheTTL <= 0 {
		return
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.cache {
		if now.After(e.expires) {
			delete(s.cache, k)
		}
	}
	s.cache[key] = cacheEntry{text: text, expires: now.Add(s.cfg.CacheTTL)}
}

func cacheKey(model string, req Request) string {
	h := sha256.New()
	for _, part := range []string{
		model,
		string(req.Task),
		req.System,
		req.Prompt,
		strconv.FormatFloat(req.Temperature, 'f', -1, 64),
		strconv.Itoa(req.MaxTokens),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
