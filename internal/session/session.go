// Package session keeps per-user evaluation state in memory between requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/checkmate/internal/evaluate"
)

// ErrNoSuggestion is returned when a condition has no suggestion to apply.
var ErrNoSuggestion = errors.New("no suggestion for condition")

// Session tracks one draft through evaluation and correction.
type Session struct {
	mu sync.Mutex

	ID         string
	Conditions []string
	Draft      string
	Strictness evaluate.Strictness
	Filename   string
	Format     string

	evaluation *evaluate.Evaluation
	raw        string
	prompt     string
	parseErr   string
	trimmed    bool
	corrected  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns a session with a fresh random ID.
func New(conditions []string, draft string, strictness evaluate.Strictness) *Session {
	now := time.Now()
	return &Session{
		ID:         uuid.NewString(),
		Conditions: conditions,
		Draft:      draft,
		Strictness: strictness,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SetOutcome records an evaluation result.
func (s *Session) SetOutcome(out *evaluate.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluation = out.Evaluation
	s.raw = out.Raw
	s.prompt = out.Prompt
	s.trimmed = out.Trimmed
	s.parseErr = ""
	if out.ParseErr != nil {
		s.parseErr = out.ParseErr.Error()
	}
	s.UpdatedAt = time.Now()
}

// SetCorrected records the corrected draft.
func (s *Session) SetCorrected(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrected = text
	s.UpdatedAt = time.Now()
}

// ApplySuggestion appends the suggestion for the 1-based condition index to
// the draft and returns the new draft.
func (s *Session) ApplySuggestion(index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.evaluation == nil || index < 1 || index > len(s.evaluation.Conditions) {
		return "", fmt.Errorf("%w %d", ErrNoSuggestion, index)
	}
	suggestion := s.evaluation.Conditions[index-1].Suggestion
	if suggestion == "" {
		return "", fmt.Errorf("%w %d", ErrNoSuggestion, index)
	}
	s.Draft += fmt.Sprintf("\n\n[Revision for condition %d]\n%s", index, suggestion)
	s.UpdatedAt = time.Now()
	return s.Draft, nil
}

// View is a read-only copy of session state.
type View struct {
	ID         string
	Conditions []string
	Draft      string
	Strictness evaluate.Strictness
	Filename   string
	Format     string

	Evaluation *evaluate.Evaluation
	Raw        string
	Prompt     string
	ParseErr   string
	Trimmed    bool
	Corrected  string

	UpdatedAt time.Time
}

// Snapshot returns a copy that is safe to read without locking.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ev *evaluate.Evaluation
	if s.evaluation != nil {
		cp := *s.evaluation
		cp.Conditions = slices.Clone(s.evaluation.Conditions)
		ev = &cp
	}
	return View{
		ID:         s.ID,
		Conditions: slices.Clone(s.Conditions),
		Draft:      s.Draft,
		Strictness: s.Strictness,
		Filename:   s.Filename,
		Format:     s.Format,
		Evaluation: ev,
		Raw:        s.raw,
		Prompt:     s.prompt,
		ParseErr:   s.parseErr,
		Trimmed:    s.trimmed,
		Corrected:  s.corrected,
		UpdatedAt:  s.UpdatedAt,
	}
}

func (s *Session) lastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.UpdatedAt
}

// Store is a thread-safe in-memory session registry with TTL eviction.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

func (s *Store) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// Get returns nil for unknown or expired sessions.
func (s *Store) Get(id string) *Session {
	s.mu.Lock()
	sess := s.sessions[id]
	s.mu.Unlock()
	if sess == nil || s.expired(sess, time.Now()) {
		return nil
	}
	return sess
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup removes expired sessions and returns how many were removed.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastUpdate()) > s.ttl
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Cleanup(); n > 0 {
					slog.Debug("expired sessions removed", "count", n)
				}
			}
		}
	}()
}
