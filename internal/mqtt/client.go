package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Options struct {
	Broker      string
	Port        int
	ClientID    string
	TopicPrefix string
	// DeviceID scopes the device topics: <prefix>/<device>/...
	DeviceID string
}

type Client struct {
	client    mqtt.Client
	opts      Options
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	buttonHandler func(pressed bool)
	connectHooks  []func()

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Status is the retained device state document.
type Status struct {
	DeviceID     string    `json:"device_id"`
	Timestamp    time.Time `json:"timestamp"`
	State        string    `json:"state"`
	Variant      string    `json:"variant"`
	Mode         string    `json:"mode"`
	AlarmCounter int       `json:"alarm_counter"`
	BatteryV     float64   `json:"battery_v"`
	Counter      int       `json:"counter"`
	Payload      string    `json:"payload"`
	Radio        string    `json:"radio"`
	RadioError   string    `json:"radio_error,omitempty"`
	Dropped      uint64    `json:"dropped_events"`
}

// Observation is one decoded advertisement seen by the scanner.
type Observation struct {
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
	RSSI      int16     `json:"rssi"`
	MfgID     int       `json:"mfg_id"`
	Alarm     bool      `json:"alarm"`
	BatteryV  float64   `json:"battery_v"`
	Counter   int       `json:"counter"`
}

func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts.TopicPrefix = strings.Trim(opts.TopicPrefix, "/")

	c := &Client{
		opts:   opts,
		logger: logger.With("component", "mqtt"),
		stopCh: make(chan struct{}),
	}

	po := mqtt.NewClientOptions()
	po.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Broker, opts.Port))
	po.SetClientID(opts.ClientID)

	po.SetCleanSession(true)

	po.SetAutoReconnect(true)
	po.SetConnectRetry(true)
	po.SetConnectRetryInterval(5 * time.Second)
	po.SetMaxReconnectInterval(60 * time.Second)

	po.SetKeepAlive(30 * time.Second)
	po.SetPingTimeout(10 * time.Second)

	if opts.DeviceID != "" {
		po.SetWill(c.deviceTopic("online"), "false", 1, true)
	}

	po.SetOnConnectHandler(func(cl mqtt.Client) {
		c.setConnected(true)
		c.logger.Info("mqtt connected", "broker", opts.Broker, "port", opts.Port)
		c.onConnect(cl)
	})

	po.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		c.logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(po)
	return c, nil
}

// OnButton registers a handler for <prefix>/<device>/button commands
// ("press", "release", "1", "0", "true", "false"). Call before Connect.
func (c *Client) OnButton(fn func(pressed bool)) {
	c.mu.Lock()
	c.buttonHandler = fn
	c.mu.Unlock()
}

// OnConnected registers fn to run after every (re)connect, on its own
// goroutine. Call before Connect.
func (c *Client) OnConnected(fn func()) {
	c.mu.Lock()
	c.connectHooks = append(c.connectHooks, fn)
	c.mu.Unlock()
}

// onConnect runs on every (re)connect: it restores the online flag and
// subscriptions, which a clean session drops.
func (c *Client) onConnect(cl mqtt.Client) {
	c.mu.RLock()
	handler := c.buttonHandler
	hooks := c.connectHooks
	c.mu.RUnlock()

	for _, fn := range hooks {
		go fn()
	}

	if c.opts.DeviceID == "" {
		return
	}
	cl.Publish(c.deviceTopic("online"), 1, true, "true")
	if handler == nil {
		return
	}

	topic := c.deviceTopic("button")
	cl.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		pressed, err := parseButton(string(msg.Payload()))
		if err != nil {
			c.logger.Warn("invalid button command", "topic", msg.Topic(), "error", err)
			return
		}
		handler(pressed)
	})
	c.logger.Info("mqtt subscribed", "topic", topic)
}

// Connect waits for the initial connection, respecting ctx and Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// PublishStatus publishes the retained device status document.
func (c *Client) PublishStatus(st Status) error {
	if st.DeviceID == "" {
		st.DeviceID = c.opts.DeviceID
	}
	if st.Timestamp.IsZero() {
		st.Timestamp = time.Now()
	}
	return c.publishJSON(c.deviceTopic("status"), true, st)
}

// PublishDisplay publishes a display line without waiting for the broker.
func (c *Client) PublishDisplay(line int, text string) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	c.client.Publish(c.deviceTopic("display/"+strconv.Itoa(line)), 0, true, text)
	return nil
}

// PublishObservation publishes a scanned beacon under its address.
func (c *Client) PublishObservation(obs Observation) error {
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now()
	}
	topic := c.opts.TopicPrefix + "/" + topicSafe(obs.Address) + "/observation"
	return c.publishJSON(topic, false, obs)
}

func (c *Client) publishJSON(topic string, retained bool, v any) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	token := c.client.Publish(topic, 1, retained, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	c.logger.Debug("published", "topic", topic, "bytes", len(data))
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect is idempotent. After it, Connect returns "client stopped".
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil {
		if c.IsConnected() && c.opts.DeviceID != "" {
			c.client.Publish(c.deviceTopic("online"), 1, true, "false").WaitTimeout(time.Second)
		}
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Client) deviceTopic(suffix string) string {
	return c.opts.TopicPrefix + "/" + topicSafe(c.opts.DeviceID) + "/" + suffix
}

// topicSafe replaces characters that would split or wildcard a topic level.
func topicSafe(s string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_", ":", "").Replace(s)
}

func parseButton(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "press", "pressed", "1", "true", "on":
		return true, nil
	case "release", "released", "0", "false", "off":
		return false, nil
	default:
		return false, fmt.Errorf("unknown button command %q", s)
	}
}
