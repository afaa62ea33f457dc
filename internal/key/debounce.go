// Package key turns raw button edges into debounced press and release
// events.
package key

import (
	"sync"
	"time"
)

// DefaultWindow is the minimum time between two accepted level changes.
const DefaultWindow = 20 * time.Millisecond

// Debouncer filters contact bounce. The first accepted change is a press;
// from then on a change of the logical level that follows the previous
// accepted change by at least Window is passed on at once. A change inside
// the window is re-checked when the window closes and delivered if the
// level has settled away from the last accepted one.
type Debouncer struct {
	window   time.Duration
	inverted bool
	onChange func(pressed bool)

	mu         sync.Mutex
	lastStable bool
	lastTime   time.Time
	raw        bool
	level      func() (bool, error)
	settle     *time.Timer
	gen        uint64
}

// NewDebouncer returns a debouncer starting in the released state. With
// inverted set a falling edge means pressed (active-low wiring).
func NewDebouncer(window time.Duration, inverted bool, onChange func(pressed bool)) *Debouncer {
	if window < 0 {
		window = 0
	}
	return &Debouncer{window: window, inverted: inverted, onChange: onChange}
}

// Edge feeds one raw edge. It reports whether the edge produced a logical
// change immediately; a change deferred to the settle check reports false.
func (d *Debouncer) Edge(rising bool, at time.Time) bool {
	pressed := pressedFromEdge(rising, d.inverted)

	d.mu.Lock()
	d.raw = pressed
	if pressed == d.lastStable {
		d.mu.Unlock()
		return false
	}
	if !d.lastTime.IsZero() {
		if elapsed := at.Sub(d.lastTime); elapsed < d.window {
			if d.settle == nil {
				gen := d.gen
				d.settle = time.AfterFunc(d.window-elapsed, func() { d.settleCheck(gen) })
			}
			d.mu.Unlock()
			return false
		}
	}
	d.acceptLocked(pressed, at)
	d.mu.Unlock()

	if d.onChange != nil {
		d.onChange(pressed)
	}
	return true
}

// Pressed returns the last accepted logical level.
func (d *Debouncer) Pressed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastStable
}

// Stop cancels a pending settle check.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.settle != nil {
		d.settle.Stop()
		d.settle = nil
	}
}

// setLevel installs a reader of the current logical level, used by the
// settle check in place of the last edge seen.
func (d *Debouncer) setLevel(level func() (bool, error)) {
	d.mu.Lock()
	d.level = level
	d.mu.Unlock()
}

func (d *Debouncer) acceptLocked(pressed bool, at time.Time) {
	d.lastStable = pressed
	d.lastTime = at
	d.gen++
	if d.settle != nil {
		d.settle.Stop()
		d.settle = nil
	}
}

func (d *Debouncer) settleCheck(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.settle = nil

	pressed := d.raw
	if d.level != nil {
		if v, err := d.level(); err == nil {
			pressed = v
			d.raw = v
		}
	}
	if pressed == d.lastStable {
		d.mu.Unlock()
		return
	}
	d.acceptLocked(pressed, d.lastTime.Add(d.window))
	d.mu.Unlock()

	if d.onChange != nil {
		d.onChange(pressed)
	}
}

func pressedFromEdge(rising, inverted bool) bool {
	if inverted {
		return !rising
	}
	return rising
}
