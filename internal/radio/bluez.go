package radio

import (
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

const minPayloadLen = 8

// BlueZOptions selects the adapter and the advertised name. A
// non-connectable advertisement has no scan response, so a non-empty
// LocalName is carried in the advertising data itself. Transmit power is
// left to the controller; the stack offers no setting for it.
type BlueZOptions struct {
	Adapter   string // "hci0"; empty for the default adapter
	LocalName string // empty omits the name element
}

// BlueZ advertises through the host's BlueZ stack as a non-connectable
// broadcaster. The advertisement payload is carried as a single
// manufacturer data element: company ID from bytes 5..6, data from byte 7
// onwards, which reproduces the payload bytes on air.
type BlueZ struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	opts    BlueZOptions
	logger  *slog.Logger
	tick    tickSource

	mu         sync.Mutex
	enabled    bool
	advRunning bool
	params     IntervalParams
	payload    []byte
	stateFn    func(RoleState)
	address    string
}

func NewBlueZ(opts BlueZOptions, logger *slog.Logger) *BlueZ {
	if logger == nil {
		logger = slog.Default()
	}
	adapter := bluetooth.DefaultAdapter
	if opts.Adapter != "" {
		adapter = bluetooth.NewAdapter(opts.Adapter)
	}
	return &BlueZ{adapter: adapter, opts: opts, logger: logger, params: Uniform(4800)}
}

// Start enables the adapter and reports the role as initialized.
func (b *BlueZ) Start() error {
	if err := b.adapter.Enable(); err != nil {
		b.notify(RoleError)
		return fmt.Errorf("enable adapter: %w", err)
	}
	b.adv = b.adapter.DefaultAdvertisement()

	if mac, err := b.adapter.Address(); err == nil {
		b.mu.Lock()
		b.address = mac.String()
		b.mu.Unlock()
	} else {
		b.logger.Warn("ble address unavailable", "err", err)
	}

	b.notify(RoleStarted)
	return nil
}

func (b *BlueZ) SetAdvertisingEnabled(enabled bool) error {
	b.mu.Lock()
	if b.adv == nil {
		b.mu.Unlock()
		return fmt.Errorf("ble: adapter not started")
	}
	b.enabled = enabled
	var err error
	if enabled {
		err = b.restartLocked()
	} else {
		err = b.stopLocked()
	}
	interval := b.params.GenMin
	b.mu.Unlock()

	if err != nil {
		b.notify(RoleError)
		return err
	}
	if enabled {
		b.tick.start(TicksToDuration(interval))
		b.notify(RoleAdvertising)
	} else {
		b.tick.halt()
		b.notify(RoleWaiting)
	}
	return nil
}

func (b *BlueZ) SetAdvertisingInterval(ticks uint16) error {
	if err := ValidateInterval(ticks); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params = Uniform(ticks)
	return nil
}

func (b *BlueZ) SetAdvertisementPayload(p []byte) error {
	if len(p) < minPayloadLen {
		return fmt.Errorf("ble: payload too short: %d bytes", len(p))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payload = append(b.payload[:0], p...)
	if !b.enabled || b.adv == nil {
		return nil
	}
	return b.restartLocked()
}

func (b *BlueZ) OnTick(fn func()) { b.tick.setHandler(fn) }

func (b *BlueZ) OnStateChange(fn func(RoleState)) {
	b.mu.Lock()
	b.stateFn = fn
	b.mu.Unlock()
}

func (b *BlueZ) Address() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.address
}

func (b *BlueZ) Close() error {
	b.tick.halt()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = false
	return b.stopLocked()
}

func (b *BlueZ) restartLocked() error {
	if err := b.stopLocked(); err != nil {
		return err
	}
	if err := b.configureLocked(); err != nil {
		return err
	}
	if err := b.adv.Start(); err != nil {
		return fmt.Errorf("ble: start advertising: %w", err)
	}
	b.advRunning = true
	return nil
}

func (b *BlueZ) stopLocked() error {
	if !b.advRunning {
		return nil
	}
	b.advRunning = false
	if err := b.adv.Stop(); err != nil {
		return fmt.Errorf("ble: stop advertising: %w", err)
	}
	return nil
}

// configureLocked applies the current interval and payload. Some stack
// versions refuse to reconfigure an advertisement and panic; that is
// reported as an error.
func (b *BlueZ) configureLocked() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ble: configure advertisement: %v", r)
		}
	}()
	if err := b.adv.Configure(b.options()); err != nil {
		return fmt.Errorf("ble: configure advertisement: %w", err)
	}
	return nil
}

func (b *BlueZ) options() bluetooth.AdvertisementOptions {
	opts := bluetooth.AdvertisementOptions{
		AdvertisementType: bluetooth.AdvertisingTypeNonConnInd,
		LocalName:         b.opts.LocalName,
		Interval:          bluetooth.NewDuration(TicksToDuration(b.params.GenMin)),
	}
	if len(b.payload) >= minPayloadLen {
		companyID, data := manufacturerElement(b.payload)
		opts.ManufacturerData = []bluetooth.ManufacturerDataElement{
			{CompanyID: companyID, Data: data},
		}
	}
	return opts
}

// manufacturerElement splits an AD payload into the company ID and data of
// its manufacturer-specific structure.
func manufacturerElement(p []byte) (uint16, []byte) {
	companyID := uint16(p[5]) | uint16(p[6])<<8
	return companyID, append([]byte(nil), p[7:]...)
}

func (b *BlueZ) notify(st RoleState) {
	b.mu.Lock()
	fn := b.stateFn
	b.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
