package battery

import (
	"context"
	"fmt"
	"math"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// ADSOptions selects the ADS1115 wiring.
type ADSOptions struct {
	Bus     string // "" for the default bus
	Address uint16
	Channel int // single-ended input 0..3
	// Divider scales the measured voltage back to the cell voltage when the
	// input sits behind a resistor divider.
	Divider float64
}

var adsChannels = [...]ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// ADS1x15 reads the battery through an ADS1115 on I2C.
type ADS1x15 struct {
	bus     i2c.BusCloser
	pin     ads1x15.PinADC
	divider float64
}

func OpenADS1x15(opts ADSOptions) (*ADS1x15, error) {
	if opts.Channel < 0 || opts.Channel >= len(adsChannels) {
		return nil, fmt.Errorf("ads1x15: invalid channel %d", opts.Channel)
	}
	if opts.Divider <= 0 {
		opts.Divider = 1
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	bus, err := i2creg.Open(opts.Bus)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", opts.Bus, err)
	}

	adc, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: opts.Address})
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("ads1115 at 0x%02X: %w", opts.Address, err)
	}

	pin, err := adc.PinForChannel(adsChannels[opts.Channel], 4096*physic.MilliVolt, 8*physic.Hertz, ads1x15.BestQuality)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("ads1115 channel %d: %w", opts.Channel, err)
	}

	return &ADS1x15{bus: bus, pin: pin, divider: opts.Divider}, nil
}

// Read converts the measured voltage to a raw code (1/256 V steps).
func (a *ADS1x15) Read(ctx context.Context) (uint16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sample, err := a.pin.Read()
	if err != nil {
		return 0, fmt.Errorf("ads1115 read: %w", err)
	}
	return voltsToRaw(float64(sample.V) / float64(physic.Volt) * a.divider), nil
}

func (a *ADS1x15) Close() error {
	haltErr := a.pin.Halt()
	if err := a.bus.Close(); err != nil {
		return err
	}
	return haltErr
}

func voltsToRaw(v float64) uint16 {
	if v <= 0 {
		return 0
	}
	code := math.Round(v * 256)
	if code > rawMax {
		return rawMax
	}
	return uint16(code)
}
