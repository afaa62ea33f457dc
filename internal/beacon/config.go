package beacon

import (
	"errors"
	"fmt"
	"time"

	"wristbeacon/internal/payload"
	"wristbeacon/internal/radio"
	"wristbeacon/internal/timers"
)

// Config holds the controller parameters. Intervals are in radio ticks.
type Config struct {
	Variant Variant
	MfgID   byte

	DefaultInterval   uint16
	AlarmInterval     uint16
	KeepaliveInterval uint16
	// AlarmTicks is the number of advertising events an alarm lasts.
	AlarmTicks uint8

	Timers timers.Durations

	ShortPulse  time.Duration
	MediumPulse time.Duration
	LongPulse   time.Duration

	QueueSize   int
	QueuePolicy Policy
}

func DefaultConfig() Config {
	return Config{
		Variant:           VariantWristband,
		MfgID:             payload.DefaultMfgID,
		DefaultInterval:   4800,
		AlarmInterval:     1600,
		KeepaliveInterval: 16000,
		AlarmTicks:        60,
		Timers:            timers.DefaultDurations(),
		ShortPulse:        50 * time.Millisecond,
		MediumPulse:       500 * time.Millisecond,
		LongPulse:         2 * time.Second,
		QueueSize:         DefaultQueueSize,
		QueuePolicy:       DropNewest,
	}
}

// AlarmTicksFor returns how many alarm-interval events fit in d.
func AlarmTicksFor(d time.Duration, alarmInterval uint16) (uint8, error) {
	step := radio.TicksToDuration(alarmInterval)
	if step <= 0 || d < step {
		return 0, fmt.Errorf("alarm duration %s shorter than one interval %s", d, step)
	}
	n := d / step
	if n > 255 {
		return 0, fmt.Errorf("alarm duration %s spans %d intervals, max 255", d, n)
	}
	return uint8(n), nil
}

func (c Config) Validate() error {
	var errs []error
	for name, v := range map[string]uint16{
		"default interval":   c.DefaultInterval,
		"alarm interval":     c.AlarmInterval,
		"keepalive interval": c.KeepaliveInterval,
	} {
		if err := radio.ValidateInterval(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.AlarmTicks == 0 {
		errs = append(errs, errors.New("alarm ticks must be > 0"))
	}
	if c.Timers.ShortPress <= 0 || c.Timers.LongPress <= c.Timers.ShortPress {
		errs = append(errs, fmt.Errorf("press thresholds: want 0 < short (%s) < long (%s)", c.Timers.ShortPress, c.Timers.LongPress))
	}
	if c.Timers.AlarmBlink <= 0 || c.Timers.Greeting <= 0 {
		errs = append(errs, errors.New("led durations must be > 0"))
	}
	if c.ShortPulse <= 0 || c.MediumPulse <= 0 || c.LongPulse <= 0 {
		errs = append(errs, errors.New("led pulse durations must be > 0"))
	}
	return errors.Join(errs...)
}
