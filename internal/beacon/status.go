package beacon

import (
	"time"

	"wristbeacon/internal/payload"
	"wristbeacon/internal/radio"
)

// Status is an immutable snapshot of the controller published after every
// dispatch cycle.
type Status struct {
	State          State
	Variant        Variant
	Mode           string
	AlarmCounter   uint8
	Battery        byte
	Payload        payload.Payload
	Ticks          uint64
	Dropped        uint64
	Role           radio.RoleState
	LastRadioError string
	ShortExpired   bool
	LongExpired    bool
	UpdatedAt      time.Time
}

// tryUpdateChannel replaces any pending value so the channel always holds
// the latest one without blocking the sender.
func tryUpdateChannel[T any](ch chan T, value T) {
	select {
	case ch <- value:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- value:
		default:
		}
	}
}
