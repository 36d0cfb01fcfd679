// File: internal/genclient/metrics.go
package genclient

import (
	"sync"
	"time"
)

// UsageMetrics is a point-in-time snapshot of backend usage.
type UsageMetrics struct {
	TotalCalls        int64 `json:"total_calls"`
	BatchCalls        int64 `json:"batch_calls"`
	SingleCalls       int64 `json:"single_calls"`
	FailedCalls       int64 `json:"failed_calls"`
	SavedCalls        int64 `json:"saved_calls"`
	CallsInLastMinute int   `json:"calls_in_last_minute"`
}

// CallRecord describes one outbound backend request.
type CallRecord struct {
	Timestamp    time.Time     `json:"timestamp"`
	Batch        bool          `json:"batch"`
	PromptLength int           `json:"prompt_length"`
	Duration     time.Duration `json:"duration"`
	Failed       bool          `json:"failed"`
}

// usageTracker accumulates call counts, a per-call history, and a sliding
// one-minute window. The now func is injectable for tests.
type usageTracker struct {
	mu      sync.Mutex
	now     func() time.Time
	totals  UsageMetrics
	history []CallRecord
	recent  []time.Time
}

func newUsageTracker(now func() time.Time) *usageTracker {
	if now == nil {
		now = time.Now
	}
	return &usageTracker{now: now}
}

// recordCall notes one outbound request. savedCalls is the number of
// individual requests a batch made unnecessary (fields-1 for a batch of
// fields, 0 for a single call).
func (u *usageTracker) recordCall(batch bool, savedCalls, promptLen int, duration time.Duration, failed bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.totals.TotalCalls++
	if batch {
		u.totals.BatchCalls++
	} else {
		u.totals.SingleCalls++
	}
	if failed {
		u.totals.FailedCalls++
	} else if savedCalls > 0 {
		u.totals.SavedCalls += int64(savedCalls)
	}

	ts := u.now()
	u.history = append(u.history, CallRecord{
		Timestamp:    ts,
		Batch:        batch,
		PromptLength: promptLen,
		Duration:     duration,
		Failed:       failed,
	})
	u.recent = append(u.recent, ts)
}

// snapshot returns the current metrics with the minute window pruned.
func (u *usageTracker) snapshot() UsageMetrics {
	u.mu.Lock()
	defer u.mu.Unlock()

	cutoff := u.now().Add(-time.Minute)
	kept := u.recent[:0]
	for _, ts := range u.recent {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	u.recent = kept

	m := u.totals
	m.CallsInLastMinute = len(u.recent)
	return m
}

// callHistory returns a copy of the per-call records in order.
func (u *usageTracker) callHistory() []CallRecord {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]CallRecord, len(u.history))
	copy(out, u.history)
	return out
}
