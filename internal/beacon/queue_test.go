package beacon

import (
	"testing"
	"time"
)

func TestQueue_Policies(t *testing.T) {
	tests := []struct {
		name        string
		policy      Policy
		wantFirst   bool // Pressed of the head after overflow
		wantLast    bool
		wantDropped uint64
		wantPush    bool
	}{
		{name: "drop newest keeps head", policy: DropNewest, wantFirst: true, wantLast: true, wantDropped: 1, wantPush: false},
		{name: "drop oldest keeps tail", policy: DropOldest, wantFirst: false, wantLast: false, wantDropped: 1, wantPush: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue(3, tt.policy)
			q.Push(KeyEvent{Pressed: true})
			q.Push(KeyEvent{Pressed: false})
			q.Push(KeyEvent{Pressed: true})

			if got := q.Push(KeyEvent{Pressed: false}); got != tt.wantPush {
				t.Errorf("Push() on full queue = %t, want %t", got, tt.wantPush)
			}
			if q.Dropped() != tt.wantDropped {
				t.Errorf("Dropped() = %d, want %d", q.Dropped(), tt.wantDropped)
			}
			if q.Len() != 3 {
				t.Fatalf("Len() = %d, want 3", q.Len())
			}

			var got []bool
			for {
				ev, ok := q.Pop()
				if !ok {
					break
				}
				got = append(got, ev.(KeyEvent).Pressed)
			}
			if got[0] != tt.wantFirst || got[len(got)-1] != tt.wantLast {
				t.Errorf("order = %v", got)
			}
		})
	}
}

func TestQueue_FIFOAndReady(t *testing.T) {
	q := NewQueue(4, DropNewest)
	q.Push(TickEvent{})
	q.Push(KeyEvent{Pressed: true})

	select {
	case <-q.Ready():
	default:
		t.Fatal("Ready() not signalled after Push")
	}

	ev, _ := q.Pop()
	if ev.Type() != "advertising_tick" {
		t.Errorf("first = %s, want advertising_tick", ev.Type())
	}
	ev, _ = q.Pop()
	if ev.Type() != "key" {
		t.Errorf("second = %s, want key", ev.Type())
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() on empty queue ok = true")
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": DropNewest, "drop-newest": DropNewest, "DROP-OLDEST": DropOldest} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("lifo"); err == nil {
		t.Error("ParsePolicy(lifo) error = nil")
	}
}

func TestAlarmTicksFor(t *testing.T) {
	n, err := AlarmTicksFor(time.Minute, 1600)
	if err != nil || n != 60 {
		t.Fatalf("AlarmTicksFor(1m, 1600) = %d, %v, want 60", n, err)
	}
	if _, err := AlarmTicksFor(500*time.Millisecond, 1600); err == nil {
		t.Error("duration below one interval: error = nil")
	}
}
