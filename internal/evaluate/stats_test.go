package evaluate

import (
	"testing"
	"time"
)

func TestLLMStatsSnapshotPercentiles(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		stats.Record(TaskEvaluate, time.Duration(ms)*time.Millisecond, false)
	}

	snap := stats.Snapshot().All
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestLLMStatsSplitsByTask(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	stats.Record(TaskEvaluate, 100*time.Millisecond, false)
	stats.Record(TaskEvaluate, 300*time.Millisecond, true)
	stats.Record(TaskCorrect, 900*time.Millisecond, false)
	stats.RecordCacheHit()

	snap := stats.Snapshot()
	if snap.All.Count != 3 || snap.All.Errors != 1 {
		t.Fatalf("expected 3 calls with 1 error, got %+v", snap.All)
	}
	if got := snap.ByTask[TaskEvaluate]; got.Count != 2 || got.AvgMs != 200 {
		t.Errorf("unexpected evaluate summary %+v", got)
	}
	if got := snap.ByTask[TaskCorrect]; got.Count != 1 || got.MaxMs != 900 {
		t.Errorf("unexpected correct summary %+v", got)
	}
	if snap.CacheHits != 1 {
		t.Errorf("expected 1 cache hit, got %d", snap.CacheHits)
	}
	if snap.WindowSeconds != 3600 {
		t.Errorf("expected 3600s window, got %d", snap.WindowSeconds)
	}
}

func TestLLMStatsPrunesExpiredSamples(t *testing.T) {
	stats := NewLLMStats(10 * time.Millisecond)
	stats.Record(TaskEvaluate, 100*time.Millisecond, false)
	time.Sleep(25 * time.Millisecond)

	if snap := stats.Snapshot(); snap.All.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.All.Count)
	}

	stats.Record(TaskEvaluate, 200*time.Millisecond, false)
	snap := stats.Snapshot().All
	if snap.Count != 1 {
		t.Fatalf("expected count=1 for fresh sample, got %d", snap.Count)
	}
	if snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected min=max=200, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestLLMStatsRecordClampsNegativeDuration(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	stats.Record(TaskCorrect, -10*time.Millisecond, false)
	snap := stats.Snapshot().All
	if snap.Count != 1 {
		t.Fatalf("expected count=1, got %d", snap.Count)
	}
	if snap.MinMs != 0 || snap.MaxMs != 0 {
		t.Fatalf("expected clamped duration=0, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}
