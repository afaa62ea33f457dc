// Package scan listens for beacon advertisements over BlueZ and reports
// decoded frames.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tinygo.org/x/bluetooth"
)

// Match is a single observation of a beacon.
type Match struct {
	Address   string
	RSSI      int16
	LocalName string
	CompanyID uint16
	Data      []byte
	SeenAt    time.Time
}

// Filter selects advertisements. The beacon's manufacturer structure is
// three bytes long, so the 16-bit company ID seen by BlueZ carries the
// manufacturer byte in its low half and the status byte in its high half.
type Filter struct {
	LocalName string
	MfgID     byte
}

func (f Filter) matches(companyID uint16, data []byte) bool {
	return byte(companyID) == f.MfgID && len(data) >= 1
}

type Options struct {
	Adapter string // "hci0" by default
	Filter  Filter
}

// Listener wraps BlueZ scanning with context cancellation.
type Listener struct {
	adapter *bluetooth.Adapter
	opts    Options
	logger  *slog.Logger
}

func NewListener(opts Options, logger *slog.Logger) *Listener {
	if opts.Adapter == "" {
		opts.Adapter = "hci0"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{
		adapter: bluetooth.NewAdapter(opts.Adapter),
		opts:    opts,
		logger:  logger.With("component", "scan"),
	}
}

// Run scans until ctx is done. A canceled ctx is a clean shutdown.
func (l *Listener) Run(ctx context.Context, onMatch func(Match)) error {
	l.logger.Info("enabling adapter", "adapter", l.opts.Adapter)
	if err := l.adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable (%s): %w", l.opts.Adapter, err)
	}

	go func() {
		<-ctx.Done()
		_ = l.adapter.StopScan()
	}()

	l.logger.Info("scanning started",
		"filter_name", l.opts.Filter.LocalName,
		"filter_mfg", fmt.Sprintf("0x%02X", l.opts.Filter.MfgID),
	)

	// adapter.Scan blocks until StopScan() or error.
	err := l.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		if l.opts.Filter.LocalName != "" && r.LocalName() != l.opts.Filter.LocalName {
			return
		}

		for _, md := range r.ManufacturerData() {
			if !l.opts.Filter.matches(md.CompanyID, md.Data) {
				continue
			}
			if onMatch != nil {
				onMatch(Match{
					Address:   r.Address.String(),
					RSSI:      r.RSSI,
					LocalName: r.LocalName(),
					CompanyID: md.CompanyID,
					Data:      append([]byte(nil), md.Data...),
					SeenAt:    time.Now(),
				})
			}
			return
		}
	})

	if ctx.Err() != nil {
		l.logger.Info("scanning stopped (context canceled)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("ble scan: %w", err)
	}

	l.logger.Info("scanning stopped")
	return nil
}
