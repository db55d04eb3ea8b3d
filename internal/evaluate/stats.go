package evaluate

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at       time.Time
	task     Task
	duration time.Duration
	failed   bool
}

// LatencySummary aggregates call latencies in milliseconds.
type LatencySummary struct {
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// StatsSnapshot is a point-in-time view of recent model calls.
type StatsSnapshot struct {
	WindowSeconds int64                   `json:"window_seconds"`
	All           LatencySummary          `json:"all"`
	ByTask        map[Task]LatencySummary `json:"by_task"`
	CacheHits     int64                   `json:"cache_hits"`
}

// LLMStats keeps model call latencies for a rolling window. Cache hits are
// counted for the lifetime of the process.
type LLMStats struct {
	mu        sync.Mutex
	samples   []sample
	maxAge    time.Duration
	cacheHits int64
}

func NewLLMStats(maxAge time.Duration) *LLMStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &LLMStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds one completed call.
func (s *LLMStats) Record(task Task, d time.Duration, failed bool) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, task: task, duration: max(d, 0), failed: failed})
}

// RecordCacheHit counts a response served without calling the model.
func (s *LLMStats) RecordCacheHit() {
	s.mu.Lock()
	s.cacheHits++
	s.mu.Unlock()
}

func (s *LLMStats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	byTask := make(map[Task][]sample)
	for _, sm := range s.samples {
		byTask[sm.task] = append(byTask[sm.task], sm)
	}

	snap := StatsSnapshot{
		WindowSeconds: int64(s.maxAge / time.Second),
		All:           summarize(s.samples),
		ByTask:        make(map[Task]LatencySummary, len(byTask)),
		CacheHits:     s.cacheHits,
	}
	for task, samples := range byTask {
		snap.ByTask[task] = summarize(samples)
	}
	return snap
}

func (s *LLMStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.at.Before(cutoff)
	})
}

func summarize(samples []sample) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}

	values := make([]int64, 0, len(samples))
	var sum int64
	var errs int
	for _, sm := range samples {
		ms := sm.duration.Milliseconds()
		values = append(values, ms)
		sum += ms
		if sm.failed {
			errs++
		}
	}
	slices.Sort(values)

	return LatencySummary{
		Count:  len(values),
		Errors: errs,
		MinMs:  values[0],
		MaxMs:  values[len(values)-1],
		AvgMs:  float64(sum) / float64(len(values)),
		P50Ms:  percentile(values, 50),
		P95Ms:  percentile(values, 95),
		P99Ms:  percentile(values, 99),
	}
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}

	rank := float64(len(sorted)-1) * pct / 100
	lower := int(rank)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(rank-float64(lower))
}
