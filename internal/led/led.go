// Package led drives the status LED.
package led

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// GPIOOptions selects the output line of the LED.
type GPIOOptions struct {
	Chip      string
	Line      int
	ActiveLow bool
}

// GPIO is an LED on a GPIO output line.
type GPIO struct {
	chip *gpiod.Chip
	line *gpiod.Line
	on   int
	off  int
	lit  atomic.Bool
}

// OpenGPIO requests the line as an output, initially off.
func OpenGPIO(opts GPIOOptions) (*GPIO, error) {
	if opts.Line < 0 {
		return nil, fmt.Errorf("invalid led line %d", opts.Line)
	}
	chip, err := gpiod.NewChip(opts.Chip)
	if err != nil {
		return nil, fmt.Errorf("open chip %s: %w", opts.Chip, err)
	}

	g := &GPIO{chip: chip, on: 1, off: 0}
	if opts.ActiveLow {
		g.on, g.off = 0, 1
	}

	line, err := chip.RequestLine(opts.Line, gpiod.AsOutput(g.off))
	if err != nil {
		_ = chip.Close()
		return nil, fmt.Errorf("request output pin %d: %w", opts.Line, err)
	}
	g.line = line
	return g, nil
}

func (g *GPIO) On() error  { return g.set(true) }
func (g *GPIO) Off() error { return g.set(false) }
func (g *GPIO) Lit() bool  { return g.lit.Load() }

func (g *GPIO) set(lit bool) error {
	v := g.off
	if lit {
		v = g.on
	}
	if err := g.line.SetValue(v); err != nil {
		return fmt.Errorf("set led: %w", err)
	}
	g.lit.Store(lit)
	return nil
}

func (g *GPIO) Close() error {
	var errs []error
	if err := g.line.SetValue(g.off); err != nil {
		errs = append(errs, fmt.Errorf("led off: %w", err))
	}
	if err := g.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close output line: %w", err))
	}
	if err := g.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	return errors.Join(errs...)
}

// Log is an LED for boards without one. It only logs transitions.
type Log struct {
	logger *slog.Logger
	lit    atomic.Bool
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) On() error  { return l.set(true) }
func (l *Log) Off() error { return l.set(false) }
func (l *Log) Lit() bool  { return l.lit.Load() }

func (l *Log) set(lit bool) error {
	if l.lit.Swap(lit) != lit {
		l.logger.Debug("led", "lit", lit)
	}
	return nil
}
