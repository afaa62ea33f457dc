// Advertisement payload for the beacon. Layout (8 bytes):
// [0] 0x02 flags AD length, [1] 0x01 flags AD type, [2] flag bits,
// [3] 0x04 manufacturer AD length, [4] 0xFF manufacturer AD type, [5] manufacturer id,
// [6] status (bit7 alarm, bits 6:0 battery code), [7] counter (wraps mod 256).
package payload

import (
	"errors"
	"fmt"
)

const (
	Len = 8

	idxFlagsLen = 0
	idxFlagsTyp = 1
	idxFlags    = 2
	idxMfgLen   = 3
	idxMfgTyp   = 4
	IdxMfgID    = 5
	IdxStatus   = 6
	IdxCounter  = 7

	adTypeFlags        = 0x01
	adTypeManufacturer = 0xFF

	// BR/EDR not supported | LE general discoverable.
	DefaultFlags = 0x06
	// Company byte of the wristband firmware.
	DefaultMfgID = 0x41

	AlarmBit    = 0x80
	batteryMask = 0x7F
)

var (
	ErrShortPayload = errors.New("payload too short")
	ErrBadHeader    = errors.New("payload header mismatch")
)

// Payload is the fixed advertisement buffer. Only the status and counter
// bytes change after construction.
type Payload [Len]byte

func New(mfgID byte) Payload {
	return Payload{
		idxFlagsLen: 0x02,
		idxFlagsTyp: adTypeFlags,
		idxFlags:    DefaultFlags,
		idxMfgLen:   0x04,
		idxMfgTyp:   adTypeManufacturer,
		IdxMfgID:    mfgID,
	}
}

// Encode computes the two trailing bytes from the alarm flag, the current
// battery byte and the previous counter byte.
func Encode(alarm bool, battery byte, prevCounter byte) (status, counter byte) {
	if alarm {
		status = AlarmBit
	}
	status |= battery & batteryMask
	counter = prevCounter + 1
	return status, counter
}

// Update rewrites status and counter in place.
func (p *Payload) Update(alarm bool, battery byte) {
	p[IdxStatus], p[IdxCounter] = Encode(alarm, battery, p[IdxCounter])
}

// SetStatus rewrites the status byte without advancing the counter.
func (p *Payload) SetStatus(alarm bool, battery byte) {
	p[IdxStatus], _ = Encode(alarm, battery, 0)
}

func (p *Payload) Alarm() bool   { return p[IdxStatus]&AlarmBit != 0 }
func (p *Payload) Counter() byte { return p[IdxCounter] }

// Bytes returns a copy safe to hand to another goroutine.
func (p *Payload) Bytes() []byte {
	out := make([]byte, Len)
	copy(out, p[:])
	return out
}

// Frame is a decoded advertisement.
type Frame struct {
	MfgID   byte
	Alarm   bool
	Battery byte
	Counter byte
}

// Volts returns the battery voltage encoded in the status byte, integer part
// in bits 6:4 and one decimal digit in bits 3:0.
func (f Frame) Volts() float64 {
	return float64(f.Battery>>4) + float64(f.Battery&0x0F)/10
}

func (f Frame) String() string {
	return fmt.Sprintf("mfg=0x%02X alarm=%t battery=%.1fV counter=%d", f.MfgID, f.Alarm, f.Volts(), f.Counter)
}

// Decode parses a full 8-byte advertisement.
func Decode(b []byte) (Frame, error) {
	if len(b) < Len {
		return Frame{}, fmt.Errorf("%w: %d", ErrShortPayload, len(b))
	}
	if b[idxFlagsLen] != 0x02 || b[idxFlagsTyp] != adTypeFlags ||
		b[idxMfgLen] != 0x04 || b[idxMfgTyp] != adTypeManufacturer {
		return Frame{}, fmt.Errorf("%w: % X", ErrBadHeader, b[:IdxMfgID])
	}
	return DecodeManufacturer(b[IdxMfgID:])
}

// DecodeManufacturer parses the manufacturer part only: [mfgID, status, counter].
func DecodeManufacturer(b []byte) (Frame, error) {
	if len(b) < 3 {
		return Frame{}, fmt.Errorf("%w: %d", ErrShortPayload, len(b))
	}
	return Frame{
		MfgID:   b[0],
		Alarm:   b[1]&AlarmBit != 0,
		Battery: b[1] & batteryMask,
		Counter: b[2],
	}, nil
}
