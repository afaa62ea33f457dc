package beacon

import "wristbeacon/internal/radio"

type Event interface {
	Type() string
}

// KeyEvent is a debounced button level change.
type KeyEvent struct {
	Pressed bool
}

func (e KeyEvent) Type() string { return "key" }

// TickEvent marks one completed advertising event.
type TickEvent struct{}

func (e TickEvent) Type() string { return "advertising_tick" }

type RadioStateEvent struct {
	State radio.RoleState
}

func (e RadioStateEvent) Type() string { return "radio_state" }
