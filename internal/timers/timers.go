// Package timers provides the one-shot timers driving LED pulses and button
// press classification.
package timers

import (
	"sync"
	"time"
)

// Timer is a restartable one-shot timer. The callback runs on the timer's
// own goroutine with the timer locked, so it must not call back into the
// same Timer. Once Stop or Restart returns, a callback from an earlier arm
// never runs.
type Timer struct {
	name string
	fn   func()

	mu      sync.Mutex
	d       time.Duration
	t       *time.Timer
	gen     uint64
	running bool
}

func New(name string, d time.Duration, fn func()) *Timer {
	return &Timer{name: name, d: d, fn: fn}
}

func (t *Timer) Name() string { return t.name }

// Start arms the timer with its configured duration, discarding any
// pending expiry.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.arm(t.d)
}

// Restart arms the timer for d. The configured duration is left unchanged.
func (t *Timer) Restart(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.arm(d)
}

// Stop disarms the timer. It reports whether the timer was pending.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.running
	t.disarm()
	return was
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Timer) arm(d time.Duration) {
	t.disarm()
	gen := t.gen
	t.running = true
	t.t = time.AfterFunc(d, func() { t.fire(gen) })
}

func (t *Timer) disarm() {
	t.gen++
	t.running = false
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}

func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || !t.running {
		return
	}
	t.running = false
	t.t = nil
	if t.fn != nil {
		t.fn()
	}
}
