package key

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// ButtonOptions selects the GPIO line of the push button.
type ButtonOptions struct {
	Chip      string // e.g. "gpiochip0"
	Line      int
	ActiveLow bool
	PullUp    bool
	Debounce  time.Duration
}

// Button watches a GPIO input line and reports debounced press changes.
type Button struct {
	chip *gpiod.Chip
	line *gpiod.Line
	deb  *Debouncer
}

// OpenButton requests the line with both-edge detection. onChange runs on
// the gpiocdev event goroutine and must not block.
func OpenButton(opts ButtonOptions, onChange func(pressed bool), logger *slog.Logger) (*Button, error) {
	if opts.Line < 0 {
		return nil, fmt.Errorf("invalid button line %d", opts.Line)
	}
	if logger == nil {
		logger = slog.Default()
	}

	chip, err := gpiod.NewChip(opts.Chip)
	if err != nil {
		return nil, fmt.Errorf("open chip %s: %w", opts.Chip, err)
	}

	b := &Button{chip: chip, deb: NewDebouncer(opts.Debounce, opts.ActiveLow, onChange)}

	reqOpts := []gpiod.LineReqOption{
		gpiod.AsInput,
		gpiod.WithBothEdges,
		gpiod.WithEventHandler(b.handle(logger)),
	}
	if opts.PullUp {
		reqOpts = append(reqOpts, gpiod.WithPullUp)
	}

	line, err := requestInput(chip, opts, reqOpts, logger)
	if err != nil {
		_ = chip.Close()
		return nil, fmt.Errorf("request input pin %d: %w", opts.Line, err)
	}
	b.line = line
	b.deb.setLevel(b.level)

	logger.Info("button ready", "chip", opts.Chip, "line", opts.Line, "active_low", opts.ActiveLow)
	return b, nil
}

// requestInput asks the kernel to debounce the line as well. Kernels older
// than 5.10 reject that, so the request is retried without it.
func requestInput(chip *gpiod.Chip, opts ButtonOptions, reqOpts []gpiod.LineReqOption, logger *slog.Logger) (*gpiod.Line, error) {
	if opts.Debounce <= 0 {
		return chip.RequestLine(opts.Line, reqOpts...)
	}
	withKernel := append(append([]gpiod.LineReqOption{}, reqOpts...), gpiod.WithDebounce(opts.Debounce))
	line, err := chip.RequestLine(opts.Line, withKernel...)
	if err == nil {
		return line, nil
	}
	logger.Warn("kernel debounce unavailable, using software only", "line", opts.Line, "error", err)
	return chip.RequestLine(opts.Line, reqOpts...)
}

func (b *Button) level() (bool, error) {
	v, err := b.line.Value()
	if err != nil {
		return false, err
	}
	return pressedFromEdge(v == 1, b.deb.inverted), nil
}

func (b *Button) handle(logger *slog.Logger) func(gpiod.LineEvent) {
	return func(evt gpiod.LineEvent) {
		rising := evt.Type == gpiod.LineEventRisingEdge
		if b.deb.Edge(rising, time.Now()) {
			logger.Debug("button edge", "rising", rising, "pressed", b.deb.Pressed())
		}
	}
}

func (b *Button) Close() error {
	b.deb.Stop()
	var errs []error
	if b.line != nil {
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input line: %w", err))
		}
	}
	if err := b.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	return errors.Join(errs...)
}
