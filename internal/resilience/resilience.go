// Package resilience wraps outbound calls in retry with backoff and a
// per-operation circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config controls retry and breaker behaviour. Zero fields take defaults.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	BreakerDisabled    bool
	BreakerMinRequests uint32
	BreakerFailRatio   float64
	BreakerOpenTimeout time.Duration
	BreakerHalfOpen    uint32
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = 5
	}
	if c.BreakerFailRatio <= 0 || c.BreakerFailRatio > 1 {
		c.BreakerFailRatio = 0.6
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = 30 * time.Second
	}
	if c.BreakerHalfOpen == 0 {
		c.BreakerHalfOpen = 1
	}
	return c
}

// Classifier reports whether err is transient (worth another attempt) and
// whether it should count against the breaker.
type Classifier func(err error) (retryable, failure bool)

// Executor runs operations with retry and circuit breaking.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.withDefaults(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is done. A nil classifier treats every error as permanent.
func (e *Executor) Do(ctx context.Context, op string, fn func(context.Context) error, classify Classifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: nil operation %q", op)
	}
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = func(error) (bool, bool) { return false, true }
	}

	if e.cfg.BreakerDisabled {
		return e.retry(ctx, op, fn, classify)
	}
	_, err := e.breaker(op, classify).Execute(func() (struct{}, error) {
		return struct{}{}, e.retry(ctx, op, fn, classify)
	})
	return err
}

func (e *Executor) retry(ctx context.Context, op string, fn func(context.Context) error, classify Classifier) error {
	var err error
	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		if err = fn(ctx); err == nil {
			return nil
		}
		if retryable, _ := classify(err); !retryable || attempt == e.cfg.MaxAttempts-1 {
			return err
		}

		wait := e.backoff(attempt)
		slog.Warn("retrying operation",
			"operation", op,
			"attempt", attempt+1,
			"max_attempts", e.cfg.MaxAttempts,
			"backoff", wait,
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

// backoff doubles from InitialBackoff with up to 50% jitter, capped at MaxBackoff.
func (e *Executor) backoff(attempt int) time.Duration {
	base := e.cfg.InitialBackoff << uint(attempt)
	if base <= 0 || base > e.cfg.MaxBackoff {
		base = e.cfg.MaxBackoff
	}
	if half := int64(base) / 2; half > 0 {
		base += time.Duration(rand.Int63n(half))
	}
	return min(base, e.cfg.MaxBackoff)
}

func (e *Executor) breaker(op string, classify Classifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[op]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        op,
		MaxRequests: e.cfg.BreakerHalfOpen,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= e.cfg.BreakerFailRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			_, failure := classify(err)
			return !failure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[op] = cb
	return cb
}

// State reports the breaker state for op; closed when op has never run.
func (e *Executor) State(op string) gobreaker.State {
	e.mu.Lock()
	cb, ok := e.breakers[op]
	e.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

// IsOpen reports whether err was returned because a breaker rejected the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
