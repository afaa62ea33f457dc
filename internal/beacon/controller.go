// Package beacon implements the mode controller: the state machine that
// turns button presses and advertising ticks into radio configuration and
// advertisement payloads.
package beacon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"wristbeacon/internal/payload"
	"wristbeacon/internal/radio"
	"wristbeacon/internal/timers"
)

// WarehouseBit is bit0 of the persisted configuration byte.
const WarehouseBit byte = 0x01

// DefaultStoredConfig is written on first boot.
const DefaultStoredConfig = WarehouseBit

// Display lines.
const (
	LineTitle   = 0
	LineAddress = 1
	LineRole    = 2
	LineMode    = 3
)

type LED interface {
	On() error
	Off() error
}

type Display interface {
	Print(line int, text string)
}

// Store persists the configuration byte. ok is false when nothing has been
// stored yet.
type Store interface {
	Read(ctx context.Context) (value byte, ok bool, err error)
	Write(ctx context.Context, value byte) error
}

type BatteryLevel interface {
	Level() byte
}

type Deps struct {
	Radio   radio.Radio
	LED     LED
	Display Display
	Store   Store
	Battery BatteryLevel
	Logger  *slog.Logger
}

// Controller owns the beacon state. All state is mutated on the goroutine
// running Run (and Init before it); other goroutines only Post events or
// set the press flags.
type Controller struct {
	cfg     Config
	radio   radio.Radio
	led     LED
	display Display
	store   Store
	battery BatteryLevel
	log     *slog.Logger

	queue  *Queue
	wake   chan struct{}
	timers *timers.Bank

	shortExpired atomic.Bool
	longExpired  atomic.Bool

	state        State
	alarmCounter uint8
	payload      payload.Payload
	ticks        uint64
	stored       byte
	storedKnown  bool
	shownMode    string
	role         radio.RoleState
	lastRadioErr string
	initialized  bool

	status  atomic.Pointer[Status]
	updates chan Status
}

// New builds a controller and registers its radio callbacks. The radio may
// be started after New returns; role notifications are queued.
func New(cfg Config, deps Deps) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("beacon config: %w", err)
	}
	if deps.Radio == nil {
		return nil, errors.New("beacon: radio is required")
	}
	if deps.Store == nil {
		return nil, errors.New("beacon: store is required")
	}
	if deps.LED == nil {
		deps.LED = nopLED{}
	}
	if deps.Display == nil {
		deps.Display = nopDisplay{}
	}
	if deps.Battery == nil {
		deps.Battery = fixedLevel(0)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	c := &Controller{
		cfg:     cfg,
		radio:   deps.Radio,
		led:     deps.LED,
		display: deps.Display,
		store:   deps.Store,
		battery: deps.Battery,
		log:     deps.Logger.With("component", "beacon"),
		queue:   NewQueue(cfg.QueueSize, cfg.QueuePolicy),
		wake:    make(chan struct{}, 1),
		payload: payload.New(cfg.MfgID),
		state:   StateWarehouse,
		role:    radio.RoleWaiting,
		updates: make(chan Status, 1),
	}
	c.timers = timers.NewBank(cfg.Timers, timers.Callbacks{
		LEDOff: c.ledOff,
		ShortExpired: func() {
			c.shortExpired.Store(true)
			c.signal()
		},
		LongExpired: func() {
			c.longExpired.Store(true)
			c.signal()
		},
	})

	c.radio.OnTick(func() { c.Post(TickEvent{}) })
	c.radio.OnStateChange(func(s radio.RoleState) { c.Post(RadioStateEvent{State: s}) })

	return c, nil
}

// Init restores the persisted mode and configures the radio. It must be
// called once before Run.
func (c *Controller) Init(ctx context.Context) error {
	if c.initialized {
		return errors.New("beacon: already initialized")
	}
	c.initialized = true

	c.display.Print(LineTitle, "BLE Broadcaster")

	c.ledOn()
	c.timers.Greeting.Start()

	c.payload.SetStatus(false, c.battery.Level())
	c.radioCall("set payload", c.radio.SetAdvertisementPayload(c.payload.Bytes()))

	value, ok, err := c.store.Read(ctx)
	if err != nil {
		c.log.Warn("config read failed, using default", "err", err)
		ok = false
	}
	if !ok {
		value = DefaultStoredConfig
		if err := c.store.Write(ctx, value); err != nil {
			c.log.Error("config write failed", "err", err)
		} else {
			c.log.Info("default config written", "value", fmt.Sprintf("0x%02X", value))
		}
	}
	c.stored, c.storedKnown = value, true

	if value&WarehouseBit != 0 {
		c.radioCall("disable advertising", c.radio.SetAdvertisingEnabled(false))
		c.state = StateWarehouse
	} else {
		c.arm(c.cfg.DefaultInterval)
		c.state = StateAdvNormal
	}

	c.log.Info("beacon initialized",
		"state", c.state.String(),
		"variant", c.cfg.Variant.String(),
		"stored", fmt.Sprintf("0x%02X", value),
	)
	c.showMode()
	c.publish()
	return nil
}

// Run dispatches events until ctx is done. It drains every queued event
// before blocking again.
func (c *Controller) Run(ctx context.Context) error {
	if !c.initialized {
		if err := c.Init(ctx); err != nil {
			return err
		}
	}
	c.log.Info("controller started")

	for {
		select {
		case <-ctx.Done():
			c.timers.StopAll()
			c.log.Info("controller stopping")
			return ctx.Err()
		case <-c.queue.Ready():
		case <-c.wake:
		}
		c.drain(ctx)
		c.publish()
	}
}

// Post queues ev for the controller. It never blocks and reports whether
// ev was accepted.
func (c *Controller) Post(ev Event) bool {
	if c.queue.Push(ev) {
		return true
	}
	c.log.Warn("event dropped", "event", ev.Type(), "policy", c.cfg.QueuePolicy.String())
	return false
}

// Status returns the latest snapshot, or nil before Init.
func (c *Controller) Status() *Status {
	return c.status.Load()
}

// Updates delivers the latest snapshot after each change. Slow readers
// only see the most recent one.
func (c *Controller) Updates() <-chan Status {
	return c.updates
}

func (c *Controller) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) drain(ctx context.Context) {
	for {
		ev, ok := c.queue.Pop()
		if !ok {
			return
		}
		c.dispatch(ctx, ev)
	}
}

func (c *Controller) dispatch(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case KeyEvent:
		c.handleKey(ctx, e)
	case TickEvent:
		c.handleTick()
	case RadioStateEvent:
		c.handleRadioState(e.State)
	default:
		c.log.Debug("unhandled event", "event", ev.Type())
	}
	c.showMode()
}

func (c *Controller) handleRadioState(s radio.RoleState) {
	c.role = s
	if s == radio.RoleStarted {
		c.display.Print(LineAddress, c.radio.Address())
	}
	c.display.Print(LineRole, s.String())
	c.log.Debug("radio role changed", "role", s.String())
}

// arm reconfigures advertising: disable, set interval, enable.
func (c *Controller) arm(interval uint16) {
	c.radioCall("disable advertising", c.radio.SetAdvertisingEnabled(false))
	c.radioCall("set interval", c.radio.SetAdvertisingInterval(interval))
	c.radioCall("enable advertising", c.radio.SetAdvertisingEnabled(true))
}

func (c *Controller) radioCall(op string, err error) {
	if err == nil {
		return
	}
	c.lastRadioErr = fmt.Sprintf("%s: %v", op, err)
	c.log.Error("radio call failed", "op", op, "err", err)
}

// pulse lights the LED for d.
func (c *Controller) pulse(d time.Duration) {
	c.ledOn()
	c.timers.AlarmBlink.Restart(d)
}

func (c *Controller) ledOn() {
	if err := c.led.On(); err != nil {
		c.log.Warn("led on failed", "err", err)
	}
}

// ledOff also runs on timer goroutines.
func (c *Controller) ledOff() {
	if err := c.led.Off(); err != nil {
		c.log.Warn("led off failed", "err", err)
	}
}

// persistMode stores the warehouse bit when it differs from the stored one.
func (c *Controller) persistMode(ctx context.Context) {
	want := c.stored &^ WarehouseBit
	if c.state == StateWarehouse {
		want |= WarehouseBit
	}
	if c.storedKnown && want == c.stored {
		return
	}
	if err := c.store.Write(ctx, want); err != nil {
		c.log.Error("config write failed", "err", err)
		return
	}
	c.stored, c.storedKnown = want, true
}

func (c *Controller) showMode() {
	mode := modeText(c.state, c.alarmCounter)
	if mode == c.shownMode {
		return
	}
	c.shownMode = mode
	c.display.Print(LineMode, mode)
}

func (c *Controller) publish() {
	st := Status{
		State:          c.state,
		Variant:        c.cfg.Variant,
		Mode:           modeText(c.state, c.alarmCounter),
		AlarmCounter:   c.alarmCounter,
		Battery:        c.battery.Level(),
		Payload:        c.payload,
		Ticks:          c.ticks,
		Dropped:        c.queue.Dropped(),
		Role:           c.role,
		LastRadioError: c.lastRadioErr,
		ShortExpired:   c.shortExpired.Load(),
		LongExpired:    c.longExpired.Load(),
		UpdatedAt:      time.Now(),
	}
	c.status.Store(&st)
	tryUpdateChannel(c.updates, st)
}

type nopLED struct{}

func (nopLED) On() error  { return nil }
func (nopLED) Off() error { return nil }

type nopDisplay struct{}

func (nopDisplay) Print(int, string) {}

type fixedLevel byte

func (f fixedLevel) Level() byte { return byte(f) }
