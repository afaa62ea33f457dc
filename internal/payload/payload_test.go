package payload

import (
	"bytes"
	"errors"
	"testing"
)

func TestNew_Header(t *testing.T) {
	p := New(0x41)
	want := []byte{0x02, 0x01, 0x06, 0x04, 0xFF, 0x41, 0x00, 0x00}
	if !bytes.Equal(p[:], want) {
		t.Fatalf("New() = % X, want % X", p[:], want)
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name        string
		alarm       bool
		battery     byte
		prev        byte
		wantStatus  byte
		wantCounter byte
	}{
		{name: "idle", alarm: false, battery: 0x35, prev: 0, wantStatus: 0x35, wantCounter: 1},
		{name: "alarm", alarm: true, battery: 0x35, prev: 9, wantStatus: 0xB5, wantCounter: 10},
		{name: "counter wraps", alarm: false, battery: 0x20, prev: 0xFF, wantStatus: 0x20, wantCounter: 0},
		{name: "battery cannot set alarm bit", alarm: false, battery: 0xC1, prev: 3, wantStatus: 0x41, wantCounter: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, counter := Encode(tt.alarm, tt.battery, tt.prev)
			if status != tt.wantStatus {
				t.Errorf("status = 0x%02X, want 0x%02X", status, tt.wantStatus)
			}
			if counter != tt.wantCounter {
				t.Errorf("counter = %d, want %d", counter, tt.wantCounter)
			}
		})
	}
}

func TestUpdate_PreservesHeader(t *testing.T) {
	p := New(0x41)
	header := append([]byte(nil), p[:IdxStatus]...)

	p.Update(true, 0x33)
	p.Update(false, 0x12)

	if !bytes.Equal(p[:IdxStatus], header) {
		t.Fatalf("header changed: % X, want % X", p[:IdxStatus], header)
	}
	if p.Alarm() {
		t.Errorf("Alarm() = true after clear")
	}
	if p.Counter() != 2 {
		t.Errorf("Counter() = %d, want 2", p.Counter())
	}
}

func TestUpdate_CounterRoundTrip(t *testing.T) {
	p := New(0x41)
	p[IdxCounter] = 0x7A
	for i := 0; i < 256; i++ {
		p.Update(i%3 == 0, byte(i))
	}
	if p.Counter() != 0x7A {
		t.Fatalf("Counter() after 256 updates = 0x%02X, want 0x7A", p.Counter())
	}
}

func TestSetStatus_KeepsCounter(t *testing.T) {
	p := New(0x41)
	p[IdxCounter] = 5
	p.SetStatus(true, 0x30)
	if p[IdxStatus] != 0xB0 || p.Counter() != 5 {
		t.Fatalf("SetStatus: status=0x%02X counter=%d", p[IdxStatus], p.Counter())
	}
}

func TestBytes_IsCopy(t *testing.T) {
	p := New(0x41)
	b := p.Bytes()
	b[IdxStatus] = 0xFF
	if p[IdxStatus] != 0 {
		t.Fatalf("Bytes() aliases the payload")
	}
}

func TestDecode(t *testing.T) {
	p := New(0x41)
	p.Update(true, 0x37)

	f, err := Decode(p[:])
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if f.MfgID != 0x41 || !f.Alarm || f.Battery != 0x37 || f.Counter != 1 {
		t.Fatalf("Decode() = %+v", f)
	}
	if got := f.Volts(); got < 3.69 || got > 3.71 {
		t.Errorf("Volts() = %v, want 3.7", got)
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode([]byte{0x02, 0x01}); !errors.Is(err, ErrShortPayload) {
		t.Errorf("short: err = %v, want ErrShortPayload", err)
	}
	bad := New(0x41)
	bad[4] = 0x09
	if _, err := Decode(bad[:]); !errors.Is(err, ErrBadHeader) {
		t.Errorf("header: err = %v, want ErrBadHeader", err)
	}
	if _, err := DecodeManufacturer([]byte{0x41}); !errors.Is(err, ErrShortPayload) {
		t.Errorf("manufacturer: err = %v, want ErrShortPayload", err)
	}
}
