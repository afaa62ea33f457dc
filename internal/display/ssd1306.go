package display

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

const (
	lineHeight = 16
	baseline   = 12
)

// SSD1306 renders the lines on a 128x64 OLED over I2C. Drawing happens on
// its own goroutine so Print never waits for the bus.
type SSD1306 struct {
	bus    i2c.BusCloser
	dev    *ssd1306.Dev
	logger *slog.Logger

	mu    sync.Mutex
	lines [Lines]string
	dirty chan struct{}
}

func OpenSSD1306(busName string, logger *slog.Logger) (*SSD1306, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", busName, err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("ssd1306: %w", err)
	}
	return &SSD1306{
		bus:    bus,
		dev:    dev,
		logger: logger,
		dirty:  make(chan struct{}, 1),
	}, nil
}

func (s *SSD1306) Print(line int, text string) {
	if line < 0 || line >= Lines {
		return
	}
	s.mu.Lock()
	if s.lines[line] == text {
		s.mu.Unlock()
		return
	}
	s.lines[line] = text
	s.mu.Unlock()

	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Run redraws the panel after changes until ctx is done.
func (s *SSD1306) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.dirty:
			s.mu.Lock()
			lines := s.lines
			s.mu.Unlock()

			img := render(s.dev.Bounds(), lines)
			if err := s.dev.Draw(img.Bounds(), img, image.Point{}); err != nil {
				s.logger.Warn("ssd1306 draw failed", "err", err)
			}
		}
	}
}

func (s *SSD1306) Close() error {
	haltErr := s.dev.Halt()
	if err := s.bus.Close(); err != nil {
		return err
	}
	return haltErr
}

func render(bounds image.Rectangle, lines [Lines]string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(bounds)
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, text := range lines {
		d.Dot = fixed.P(bounds.Min.X, bounds.Min.Y+baseline+i*lineHeight)
		d.DrawString(text)
	}
	return img
}
