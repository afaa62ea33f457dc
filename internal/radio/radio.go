// Package radio is the broadcast-only BLE facade used by the beacon
// controller.
package radio

import (
	"errors"
	"fmt"
	"time"
)

// TickUnit is the granularity of advertising intervals.
const TickUnit = 625 * time.Microsecond

const (
	MinInterval uint16 = 32    // 20 ms
	MaxInterval uint16 = 16384 // 10.24 s
)

var ErrInvalidInterval = errors.New("radio: advertising interval out of range")

// Radio is what the controller needs from the BLE stack. Every call is
// bounded in time and must not block on the air.
type Radio interface {
	SetAdvertisingEnabled(enabled bool) error
	// SetAdvertisingInterval applies ticks to all four interval parameters.
	SetAdvertisingInterval(ticks uint16) error
	SetAdvertisementPayload(p []byte) error
	// OnTick registers the callback run after every advertising event.
	OnTick(fn func())
	OnStateChange(fn func(RoleState))
	Address() string
}

// RoleState mirrors the broadcaster role states shown on the display.
type RoleState int

const (
	RoleStarted RoleState = iota
	RoleAdvertising
	RoleWaiting
	RoleError
)

func (s RoleState) String() string {
	switch s {
	case RoleStarted:
		return "Initialized"
	case RoleAdvertising:
		return "Advertising"
	case RoleWaiting:
		return "Waiting"
	case RoleError:
		return "Error"
	default:
		return fmt.Sprintf("RoleState(%d)", int(s))
	}
}

// IntervalParams are the limited and general discoverable interval bounds.
type IntervalParams struct {
	LimMin, LimMax uint16
	GenMin, GenMax uint16
}

func Uniform(ticks uint16) IntervalParams {
	return IntervalParams{LimMin: ticks, LimMax: ticks, GenMin: ticks, GenMax: ticks}
}

func ValidateInterval(ticks uint16) error {
	if ticks < MinInterval || ticks > MaxInterval {
		return fmt.Errorf("%w: %d", ErrInvalidInterval, ticks)
	}
	return nil
}

func TicksToDuration(ticks uint16) time.Duration {
	return time.Duration(ticks) * TickUnit
}

// DurationToTicks rounds d to the nearest tick and validates the result.
func DurationToTicks(d time.Duration) (uint16, error) {
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidInterval, d)
	}
	n := (d + TickUnit/2) / TickUnit
	if n > time.Duration(MaxInterval) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidInterval, d)
	}
	ticks := uint16(n)
	if err := ValidateInterval(ticks); err != nil {
		return 0, err
	}
	return ticks, nil
}
