package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"wristbeacon/internal/beacon"
	"wristbeacon/internal/radio"
	"wristbeacon/internal/timers"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	DeviceID string

	Variant beacon.Variant
	MfgID   byte

	RadioBackend string // "bluez" or "stub"
	BLEAdapter   string
	LocalName    string

	DefaultInterval   time.Duration
	AlarmInterval     time.Duration
	KeepaliveInterval time.Duration
	AlarmDuration     time.Duration

	ShortPress       time.Duration
	LongPress        time.Duration
	GreetingDuration time.Duration
	LEDBlink         time.Duration
	ShortPulse       time.Duration
	MediumPulse      time.Duration
	LongPulse        time.Duration

	BatterySource         string // "static" or "ads1x15"
	BatteryStaticRaw      uint16
	BatteryI2CBus         string
	BatteryI2CAddr        uint16
	BatteryChannel        int
	BatteryDivider        float64
	BatterySampleInterval time.Duration

	GPIOChip        string
	ButtonLine      int // negative disables the button
	ButtonActiveLow bool
	ButtonDebounce  time.Duration
	LEDLine         int // negative logs LED changes instead

	StorePath   string
	QueueSize   int
	QueuePolicy beacon.Policy

	MQTTEnabled     bool
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string

	Displays      []string // any of "log", "mqtt", "ssd1306"
	DisplayI2CBus string

	HTTPAddr string // "off" in the environment disables the HTTP API
}

func LoadFromEnv() (Config, error) {
	var (
		cfg Config
		err error
	)

	if cfg.AppEnv, cfg.LogLevel, err = loadCommon(); err != nil {
		return Config{}, err
	}

	cfg.DeviceID = envString("DEVICE_ID", "")
	if cfg.DeviceID == "" {
		host, herr := os.Hostname()
		if herr != nil || host == "" {
			host = "beacon"
		}
		cfg.DeviceID = host
	}

	if cfg.Variant, err = beacon.ParseVariant(envString("DEVICE_VARIANT", "wristband")); err != nil {
		return Config{}, fmt.Errorf("invalid DEVICE_VARIANT: %w", err)
	}
	mfgID, err := envUint("MFG_ID", "0x41", 8)
	if err != nil {
		return Config{}, err
	}
	cfg.MfgID = byte(mfgID)

	cfg.RadioBackend = strings.ToLower(envString("RADIO_BACKEND", "bluez"))
	switch cfg.RadioBackend {
	case "bluez", "stub":
	default:
		return Config{}, fmt.Errorf("invalid RADIO_BACKEND %q (allowed: bluez, stub)", cfg.RadioBackend)
	}
	cfg.BLEAdapter = envString("BLE_ADAPTER", "hci0")
	cfg.LocalName = envString("LOCAL_NAME", "SimpleBLEBroadcaster")

	durations := []struct {
		name string
		def  string
		dst  *time.Duration
	}{
		{"ADV_DEFAULT_INTERVAL", "3s", &cfg.DefaultInterval},
		{"ADV_ALARM_INTERVAL", "1s", &cfg.AlarmInterval},
		{"ADV_KEEPALIVE_INTERVAL", "10s", &cfg.KeepaliveInterval},
		{"ALARM_DURATION", "1m", &cfg.AlarmDuration},
		{"SHORT_PRESS", "1s", &cfg.ShortPress},
		{"LONG_PRESS", "3s", &cfg.LongPress},
		{"GREETING_DURATION", "5s", &cfg.GreetingDuration},
		{"LED_BLINK", "50ms", &cfg.LEDBlink},
		{"LED_PULSE_SHORT", "50ms", &cfg.ShortPulse},
		{"LED_PULSE_MEDIUM", "500ms", &cfg.MediumPulse},
		{"LED_PULSE_LONG", "2s", &cfg.LongPulse},
		{"BATTERY_SAMPLE_INTERVAL", "60s", &cfg.BatterySampleInterval},
		{"BUTTON_DEBOUNCE", "20ms", &cfg.ButtonDebounce},
	}
	for _, d := range durations {
		if *d.dst, err = envPositiveDuration(d.name, d.def); err != nil {
			return Config{}, err
		}
	}

	cfg.BatterySource = strings.ToLower(envString("BATTERY_SOURCE", "static"))
	switch cfg.BatterySource {
	case "static", "ads1x15":
	default:
		return Config{}, fmt.Errorf("invalid BATTERY_SOURCE %q (allowed: static, ads1x15)", cfg.BatterySource)
	}
	raw, err := envUint("BATTERY_STATIC_RAW", "0x0300", 16)
	if err != nil {
		return Config{}, err
	}
	cfg.BatteryStaticRaw = uint16(raw)
	cfg.BatteryI2CBus = envString("BATTERY_I2C_BUS", "")
	addr, err := envUint("BATTERY_I2C_ADDR", "0x48", 16)
	if err != nil {
		return Config{}, err
	}
	cfg.BatteryI2CAddr = uint16(addr)
	if cfg.BatteryChannel, err = envInt("BATTERY_CHANNEL", "0"); err != nil {
		return Config{}, err
	}
	if cfg.BatteryChannel < 0 || cfg.BatteryChannel > 3 {
		return Config{}, fmt.Errorf("BATTERY_CHANNEL must be 0..3, got %d", cfg.BatteryChannel)
	}
	dividerStr := envString("BATTERY_DIVIDER", "1")
	if cfg.BatteryDivider, err = strconv.ParseFloat(dividerStr, 64); err != nil {
		return Config{}, fmt.Errorf("invalid BATTERY_DIVIDER %q: %w", dividerStr, err)
	}
	if cfg.BatteryDivider <= 0 {
		return Config{}, fmt.Errorf("BATTERY_DIVIDER must be positive, got %v", cfg.BatteryDivider)
	}

	cfg.GPIOChip = envString("GPIO_CHIP", "gpiochip0")
	if cfg.ButtonLine, err = envInt("BUTTON_LINE", "-1"); err != nil {
		return Config{}, err
	}
	if cfg.ButtonActiveLow, err = envBool("BUTTON_ACTIVE_LOW", "true"); err != nil {
		return Config{}, err
	}
	if cfg.LEDLine, err = envInt("LED_LINE", "-1"); err != nil {
		return Config{}, err
	}

	cfg.StorePath = envString("STORE_PATH", "/var/lib/wristbeacon/nv.db")
	if cfg.QueueSize, err = envInt("QUEUE_SIZE", "16"); err != nil {
		return Config{}, err
	}
	if cfg.QueueSize <= 0 {
		return Config{}, fmt.Errorf("QUEUE_SIZE must be positive, got %d", cfg.QueueSize)
	}
	if cfg.QueuePolicy, err = beacon.ParsePolicy(envString("QUEUE_POLICY", "drop-newest")); err != nil {
		return Config{}, fmt.Errorf("invalid QUEUE_POLICY: %w", err)
	}

	if cfg.MQTTEnabled, err = envBool("MQTT_ENABLED", "false"); err != nil {
		return Config{}, err
	}
	if cfg.MQTTBroker, cfg.MQTTPort, err = loadMQTTBroker(); err != nil {
		return Config{}, err
	}
	cfg.MQTTClientID = envString("MQTT_CLIENT_ID", "wristbeacon-"+cfg.DeviceID)
	cfg.MQTTTopicPrefix = strings.TrimSuffix(envString("MQTT_TOPIC_PREFIX", "wristbeacon"), "/")

	for _, d := range strings.Split(envString("DISPLAY", "log"), ",") {
		d = strings.ToLower(strings.TrimSpace(d))
		switch d {
		case "":
			continue
		case "log", "mqtt", "ssd1306":
			cfg.Displays = append(cfg.Displays, d)
		default:
			return Config{}, fmt.Errorf("invalid DISPLAY entry %q (allowed: log, mqtt, ssd1306)", d)
		}
	}
	cfg.DisplayI2CBus = envString("DISPLAY_I2C_BUS", "")

	cfg.HTTPAddr = envString("HTTP_ADDR", ":8080")
	if strings.EqualFold(cfg.HTTPAddr, "off") {
		cfg.HTTPAddr = ""
	}

	if _, err := cfg.Beacon(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Beacon converts the timing settings into controller parameters.
func (c Config) Beacon() (beacon.Config, error) {
	var errs []error
	ticks := func(name string, d time.Duration) uint16 {
		t, err := radio.DurationToTicks(d)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return t
	}

	bc := beacon.Config{
		Variant:           c.Variant,
		MfgID:             c.MfgID,
		DefaultInterval:   ticks("ADV_DEFAULT_INTERVAL", c.DefaultInterval),
		AlarmInterval:     ticks("ADV_ALARM_INTERVAL", c.AlarmInterval),
		KeepaliveInterval: ticks("ADV_KEEPALIVE_INTERVAL", c.KeepaliveInterval),
		Timers: timers.Durations{
			Greeting:   c.GreetingDuration,
			AlarmBlink: c.LEDBlink,
			ShortPress: c.ShortPress,
			LongPress:  c.LongPress,
		},
		ShortPulse:  c.ShortPulse,
		MediumPulse: c.MediumPulse,
		LongPulse:   c.LongPulse,
		QueueSize:   c.QueueSize,
		QueuePolicy: c.QueuePolicy,
	}
	if err := errors.Join(errs...); err != nil {
		return beacon.Config{}, err
	}

	n, err := beacon.AlarmTicksFor(c.AlarmDuration, bc.AlarmInterval)
	if err != nil {
		return beacon.Config{}, fmt.Errorf("ALARM_DURATION: %w", err)
	}
	bc.AlarmTicks = n

	if err := bc.Validate(); err != nil {
		return beacon.Config{}, err
	}
	return bc, nil
}

// ScanConfig configures the beaconscan tool.
type ScanConfig struct {
	AppEnv   string
	LogLevel slog.Level

	BLEAdapter  string
	MfgID       byte
	DedupWindow time.Duration

	MQTTEnabled     bool
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string
}

func LoadScanFromEnv() (ScanConfig, error) {
	var (
		cfg ScanConfig
		err error
	)
	if cfg.AppEnv, cfg.LogLevel, err = loadCommon(); err != nil {
		return ScanConfig{}, err
	}

	cfg.BLEAdapter = envString("BLE_ADAPTER", "hci0")
	mfgID, err := envUint("MFG_ID", "0x41", 8)
	if err != nil {
		return ScanConfig{}, err
	}
	cfg.MfgID = byte(mfgID)
	if cfg.DedupWindow, err = envPositiveDuration("SCAN_DEDUP_WINDOW", "5m"); err != nil {
		return ScanConfig{}, err
	}

	if cfg.MQTTEnabled, err = envBool("MQTT_ENABLED", "false"); err != nil {
		return ScanConfig{}, err
	}
	if cfg.MQTTBroker, cfg.MQTTPort, err = loadMQTTBroker(); err != nil {
		return ScanConfig{}, err
	}
	cfg.MQTTClientID = envString("MQTT_CLIENT_ID", "wristbeacon-scan")
	cfg.MQTTTopicPrefix = strings.TrimSuffix(envString("MQTT_TOPIC_PREFIX", "wristbeacon"), "/")
	return cfg, nil
}

func loadCommon() (string, slog.Level, error) {
	appEnv := envString("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return "", 0, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envString("LOG_LEVEL", "info"))
	if err != nil {
		return "", 0, err
	}
	return appEnv, level, nil
}

func loadMQTTBroker() (string, int, error) {
	broker := envString("MQTT_BROKER", "localhost")
	port, err := envInt("MQTT_PORT", "1883")
	if err != nil {
		return "", 0, err
	}
	if port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("MQTT_PORT out of range: %d", port)
	}
	return broker, port, nil
}

func envString(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func envInt(name, def string) (int, error) {
	s := envString(name, def)
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}

func envUint(name, def string, bits int) (uint64, error) {
	s := envString(name, def)
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}

func envBool(name, def string) (bool, error) {
	s := envString(name, def)
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}

func envPositiveDuration(name, def string) (time.Duration, error) {
	s := envString(name, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", name, d)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
