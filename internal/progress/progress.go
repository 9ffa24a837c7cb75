// Package progress tracks the completion percentage of an export.
package progress

import "sync"

// Complete is the value of a finished export.
const Complete = 100.0

// Tracker is a percentage shared by the orchestrator and its upload tasks.
// It only moves forward and never exceeds Complete.
type Tracker struct {
	mu    sync.Mutex
	value float64
}

// Add increases the value by delta. Negative deltas are ignored.
func (t *Tracker) Add(delta float64) {
	if delta <= 0 {
		return
	}
	t.mu.Lock()
	t.value = min(t.value+delta, Complete)
	t.mu.Unlock()
}

// Value returns the current percentage.
func (t *Tracker) Value() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Finalize marks the export complete.
func (t *Tracker) Finalize() {
	t.mu.Lock()
	t.value = Complete
	t.mu.Unlock()
}

// Spread returns a function that adds total in n equal steps, one per call.
// With n <= 0 the whole amount is added immediately and the function is a no-op.
func (t *Tracker) Spread(total float64, n int) func() {
	if n <= 0 {
		t.Add(total)
		return func() {}
	}
	step := total / float64(n)
	return func() { t.Add(step) }
}
