package beacon

import (
	"fmt"
	"strings"
)

// State is the advertising mode of the beacon. An active alarm is not a
// state of its own: it is StateAdvNormal with a non-zero alarm counter.
type State int

const (
	StateWarehouse State = iota
	StateAdvNormal
	StateAdvKeepalive
)

func (s State) String() string {
	switch s {
	case StateWarehouse:
		return "warehouse"
	case StateAdvNormal:
		return "adv_normal"
	case StateAdvKeepalive:
		return "adv_keepalive"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Variant selects the transition table.
type Variant int

const (
	VariantWristband Variant = iota
	VariantKeyring
)

func (v Variant) String() string {
	switch v {
	case VariantWristband:
		return "wristband"
	case VariantKeyring:
		return "keyring"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

func (v Variant) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wristband":
		return VariantWristband, nil
	case "keyring":
		return VariantKeyring, nil
	default:
		return 0, fmt.Errorf("unknown device variant %q", s)
	}
}

// Mode texts shown on the display.
const (
	ModeWarehouse = "Warehouse"
	ModeNormal    = "Normal"
	ModeAlarm     = "Alarm"
	ModeKeepalive = "Keepalive"
)

func modeText(s State, alarmCounter uint8) string {
	switch s {
	case StateWarehouse:
		return ModeWarehouse
	case StateAdvKeepalive:
		return ModeKeepalive
	default:
		if alarmCounter > 0 {
			return ModeAlarm
		}
		return ModeNormal
	}
}
