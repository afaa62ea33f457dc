package radio

import (
	"sync"
)

// Op names a recorded radio call.
type Op string

const (
	OpEnable   Op = "enable"
	OpDisable  Op = "disable"
	OpInterval Op = "interval"
	OpPayload  Op = "payload"
)

// Call is one entry of the stub's call log.
type Call struct {
	Op       Op
	Interval uint16
	Payload  []byte
}

type StubOptions struct {
	Address string
	// AutoTick synthesizes ticks at the configured interval while enabled.
	// Without it ticks are only produced by Tick.
	AutoTick bool
}

// Stub is an in-memory radio for hosts without a BLE controller and for
// tests. It keeps the most recent calls in a bounded log.
type Stub struct {
	opts StubOptions
	tick tickSource

	mu       sync.Mutex
	log      ringBuffer
	enabled  bool
	params   IntervalParams
	payload  []byte
	stateFn  func(RoleState)
	failNext error
}

func NewStub(opts StubOptions) *Stub {
	if opts.Address == "" {
		opts.Address = "00:00:00:00:00:00"
	}
	return &Stub{opts: opts}
}

// Start reports the role as initialized.
func (s *Stub) Start() error {
	s.notify(RoleStarted)
	return nil
}

func (s *Stub) SetAdvertisingEnabled(enabled bool) error {
	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return err
	}
	op := OpDisable
	if enabled {
		op = OpEnable
	}
	s.log.push(Call{Op: op})
	s.enabled = enabled
	interval := s.params.GenMin
	s.mu.Unlock()

	if enabled {
		if s.opts.AutoTick && interval >= MinInterval {
			s.tick.start(TicksToDuration(interval))
		}
		s.notify(RoleAdvertising)
	} else {
		s.tick.halt()
		s.notify(RoleWaiting)
	}
	return nil
}

func (s *Stub) SetAdvertisingInterval(ticks uint16) error {
	if err := ValidateInterval(ticks); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.log.push(Call{Op: OpInterval, Interval: ticks})
	s.params = Uniform(ticks)
	return nil
}

func (s *Stub) SetAdvertisementPayload(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	cp := append([]byte(nil), p...)
	s.log.push(Call{Op: OpPayload, Payload: cp})
	s.payload = cp
	return nil
}

func (s *Stub) OnTick(fn func()) { s.tick.setHandler(fn) }

func (s *Stub) OnStateChange(fn func(RoleState)) {
	s.mu.Lock()
	s.stateFn = fn
	s.mu.Unlock()
}

func (s *Stub) Address() string { return s.opts.Address }

// Tick delivers one advertising event to the registered handler.
func (s *Stub) Tick() { s.tick.fire() }

// FailNext makes the next configuration call return err.
func (s *Stub) FailNext(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

func (s *Stub) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Stub) Params() IntervalParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *Stub) Payload() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.payload...)
}

// Calls returns the logged calls, oldest first.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.snapshot()
}

func (s *Stub) ResetCalls() {
	s.mu.Lock()
	s.log = ringBuffer{}
	s.mu.Unlock()
}

func (s *Stub) Close() error {
	s.tick.halt()
	return nil
}

func (s *Stub) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *Stub) notify(st RoleState) {
	s.mu.Lock()
	fn := s.stateFn
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

const ringCapacity = 256

type ringBuffer struct {
	data  [ringCapacity]Call
	head  int // next pop
	count int
}

func (rb *ringBuffer) push(c Call) {
	tail := (rb.head + rb.count) % ringCapacity
	rb.data[tail] = c
	if rb.count == ringCapacity {
		// overwrite oldest
		rb.head = (rb.head + 1) % ringCapacity
		return
	}
	rb.count++
}

func (rb *ringBuffer) snapshot() []Call {
	out := make([]Call, rb.count)
	for i := range out {
		c := rb.data[(rb.head+i)%ringCapacity]
		c.Payload = append([]byte(nil), c.Payload...)
		out[i] = c
	}
	return out
}
