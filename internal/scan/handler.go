package scan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wristbeacon/internal/mqtt"
	"wristbeacon/internal/utils"
)

// Publisher forwards observations, typically to MQTT.
type Publisher interface {
	PublishObservation(obs mqtt.Observation) error
}

type seenEntry struct {
	counter byte
	alarm   bool
	at      time.Time
}

// Handler decodes matches and drops repeats of the same (address, counter)
// seen within the dedup window.
type Handler struct {
	window    time.Duration
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	seen map[string]seenEntry
}

func NewHandler(window time.Duration, publisher Publisher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		window:    window,
		publisher: publisher,
		logger:    logger.With("component", "scan"),
		now:       time.Now,
		seen:      make(map[string]seenEntry),
	}
}

// HandleMatch reports whether m was a new observation.
func (h *Handler) HandleMatch(m Match) bool {
	frame, err := ParseFrame(m.CompanyID, m.Data)
	if err != nil {
		h.logger.Debug("ignore non-beacon payload", "addr", m.Address, "error", err)
		return false
	}

	now := h.now()
	h.mu.Lock()
	prev, known := h.seen[m.Address]
	if known && prev.counter == frame.Counter && now.Sub(prev.at) < h.window {
		h.mu.Unlock()
		return false
	}
	h.seen[m.Address] = seenEntry{counter: frame.Counter, alarm: frame.Alarm, at: now}
	h.prune(now)
	h.mu.Unlock()

	if known && prev.alarm != frame.Alarm {
		h.logger.Info("alarm changed", "addr", m.Address, "alarm", frame.Alarm)
	}
	h.logger.Info("beacon seen",
		"addr", m.Address,
		"rssi", m.RSSI,
		"alarm", frame.Alarm,
		"battery_v", frame.Volts(),
		"counter", frame.Counter,
		"company", utils.Hex4(m.CompanyID),
		"data", utils.BytesToHex(m.Data),
	)

	if h.publisher != nil {
		obs := mqtt.Observation{
			Address:   m.Address,
			Timestamp: m.SeenAt,
			RSSI:      m.RSSI,
			MfgID:     int(frame.MfgID),
			Alarm:     frame.Alarm,
			BatteryV:  frame.Volts(),
			Counter:   int(frame.Counter),
		}
		if err := h.publisher.PublishObservation(obs); err != nil {
			h.logger.Warn("failed to publish observation", "addr", m.Address, "error", err)
		}
	}
	return true
}

// prune forgets devices not heard from for a full window. Caller holds mu.
func (h *Handler) prune(now time.Time) {
	for addr, e := range h.seen {
		if now.Sub(e.at) >= h.window {
			delete(h.seen, addr)
		}
	}
}

// StartListener runs listener in the background with this handler.
func (h *Handler) StartListener(ctx context.Context, listener *Listener) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- listener.Run(ctx, func(m Match) { h.HandleMatch(m) })
	}()
	return done
}
