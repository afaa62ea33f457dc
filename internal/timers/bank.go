package timers

import "time"

// Durations configures the bank. ShortPress must be below LongPress.
type Durations struct {
	Greeting   time.Duration
	AlarmBlink time.Duration
	ShortPress time.Duration
	LongPress  time.Duration
}

func DefaultDurations() Durations {
	return Durations{
		Greeting:   5 * time.Second,
		AlarmBlink: 50 * time.Millisecond,
		ShortPress: 1 * time.Second,
		LongPress:  3 * time.Second,
	}
}

// Callbacks are invoked on timer expiry.
type Callbacks struct {
	LEDOff       func()
	ShortExpired func()
	LongExpired  func()
}

// Bank groups the four timers of the beacon.
type Bank struct {
	Greeting   *Timer
	AlarmBlink *Timer
	ShortPress *Timer
	LongPress  *Timer
}

func NewBank(d Durations, cb Callbacks) *Bank {
	return &Bank{
		Greeting:   New("greeting", d.Greeting, cb.LEDOff),
		AlarmBlink: New("alarm_blink", d.AlarmBlink, cb.LEDOff),
		ShortPress: New("short_press", d.ShortPress, cb.ShortExpired),
		LongPress:  New("long_press", d.LongPress, cb.LongExpired),
	}
}

// StartPress (re)arms both press classification timers.
func (b *Bank) StartPress() {
	b.ShortPress.Start()
	b.LongPress.Start()
}

func (b *Bank) StopPress() {
	b.ShortPress.Stop()
	b.LongPress.Stop()
}

func (b *Bank) StopAll() {
	b.Greeting.Stop()
	b.AlarmBlink.Stop()
	b.StopPress()
}
