package battery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Raw codes follow the battery monitor format: bits 9:8 whole volts,
// bits 7:0 the fraction in 1/256 V.
const (
	rawIntMask  = 0x0300
	rawFracMask = 0x00FF
	rawMax      = 0x07FF
)

// Encode reduces a raw code to the payload battery byte: whole volts in
// bits 6:4, one rounded decimal digit in bits 3:0. A digit that rounds up
// to 10 carries into the whole volts.
func Encode(raw uint16) byte {
	intPart := byte((raw & rawIntMask) >> 8)
	hundredths := (uint32(raw&rawFracMask) * 100) / 256
	digit := byte(hundredths / 10)
	if hundredths%10 >= 5 {
		digit++
	}
	if digit == 10 {
		digit = 0
		intPart++
	}
	return intPart<<4 | digit
}

// Source yields raw battery codes.
type Source interface {
	Read(ctx context.Context) (uint16, error)
}

// Static always reports the same code.
type Static uint16

func (s Static) Read(context.Context) (uint16, error) { return uint16(s), nil }

// Sampler refreshes the battery byte on a fixed period. Level may be called
// from any goroutine; it returns the most recently computed value.
type Sampler struct {
	src      Source
	interval time.Duration
	log      *slog.Logger

	level atomic.Uint32
	raw   atomic.Uint32
}

func NewSampler(src Source, interval time.Duration, logger *slog.Logger) (*Sampler, error) {
	if src == nil {
		return nil, errors.New("battery: source required")
	}
	if interval <= 0 {
		return nil, errors.New("battery: interval must be > 0")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{src: src, interval: interval, log: logger}, nil
}

// SampleOnce reads the source and stores the encoded level. On error the
// previous level is kept.
func (s *Sampler) SampleOnce(ctx context.Context) error {
	raw, err := s.src.Read(ctx)
	if err != nil {
		return fmt.Errorf("battery read: %w", err)
	}
	if raw > rawMax {
		raw = rawMax
	}
	level := Encode(raw)
	s.raw.Store(uint32(raw))
	s.level.Store(uint32(level))
	s.log.Debug("battery sampled", "raw", fmt.Sprintf("0x%04X", raw), "level", fmt.Sprintf("0x%02X", level))
	return nil
}

// Run samples immediately and then every interval until ctx is done.
func (s *Sampler) Run(ctx context.Context) {
	if err := s.SampleOnce(ctx); err != nil {
		s.log.Warn("battery sample failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SampleOnce(ctx); err != nil {
				s.log.Warn("battery sample failed", "error", err)
			}
		}
	}
}

func (s *Sampler) Level() byte { return byte(s.level.Load()) }
func (s *Sampler) Raw() uint16 { return uint16(s.raw.Load()) }
