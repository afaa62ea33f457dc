package display

import (
	"log/slog"
	"sync"
)

// Publisher sends one display line to the broker.
type Publisher interface {
	PublishDisplay(line int, text string) error
}

// MQTT mirrors display lines to retained MQTT topics. Lines printed while
// the broker is unreachable are sent by Replay.
type MQTT struct {
	pub    Publisher
	logger *slog.Logger

	mu    sync.Mutex
	lines [Lines]string
	set   [Lines]bool
}

func NewMQTT(pub Publisher, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTT{pub: pub, logger: logger}
}

func (m *MQTT) Print(line int, text string) {
	if line < 0 || line >= Lines {
		return
	}
	m.mu.Lock()
	m.lines[line], m.set[line] = text, true
	m.mu.Unlock()

	if err := m.pub.PublishDisplay(line, text); err != nil {
		m.logger.Debug("display publish failed", "line", line, "err", err)
	}
}

// Replay republishes every line printed so far.
func (m *MQTT) Replay() {
	m.mu.Lock()
	lines, set := m.lines, m.set
	m.mu.Unlock()

	for i := range lines {
		if !set[i] {
			continue
		}
		if err := m.pub.PublishDisplay(i, lines[i]); err != nil {
			m.logger.Debug("display replay failed", "line", i, "err", err)
			return
		}
	}
}
