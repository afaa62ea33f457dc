package config

import (
	"log/slog"
	"testing"
	"time"

	"wristbeacon/internal/beacon"
)

// clearEnv resets every variable read by LoadFromEnv so host settings do
// not leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"APP_ENV", "LOG_LEVEL", "DEVICE_ID", "DEVICE_VARIANT", "MFG_ID",
		"RADIO_BACKEND", "BLE_ADAPTER", "LOCAL_NAME",
		"ADV_DEFAULT_INTERVAL", "ADV_ALARM_INTERVAL", "ADV_KEEPALIVE_INTERVAL", "ALARM_DURATION",
		"SHORT_PRESS", "LONG_PRESS", "GREETING_DURATION", "LED_BLINK",
		"LED_PULSE_SHORT", "LED_PULSE_MEDIUM", "LED_PULSE_LONG",
		"BATTERY_SOURCE", "BATTERY_STATIC_RAW", "BATTERY_I2C_BUS", "BATTERY_I2C_ADDR",
		"BATTERY_CHANNEL", "BATTERY_DIVIDER", "BATTERY_SAMPLE_INTERVAL",
		"GPIO_CHIP", "BUTTON_LINE", "BUTTON_ACTIVE_LOW", "BUTTON_DEBOUNCE", "LED_LINE",
		"STORE_PATH", "QUEUE_SIZE", "QUEUE_POLICY",
		"MQTT_ENABLED", "MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID", "MQTT_TOPIC_PREFIX",
		"DISPLAY", "DISPLAY_I2C_BUS", "HTTP_ADDR", "SCAN_DEDUP_WINDOW",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEVICE_ID", "wb-01")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want dev", got.AppEnv)
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", got.LogLevel)
	}
	if got.Variant != beacon.VariantWristband {
		t.Errorf("Variant = %v, want wristband", got.Variant)
	}
	if got.MfgID != 0x41 {
		t.Errorf("MfgID = 0x%02X, want 0x41", got.MfgID)
	}
	if got.RadioBackend != "bluez" || got.LocalName != "SimpleBLEBroadcaster" {
		t.Errorf("radio = %q/%q", got.RadioBackend, got.LocalName)
	}
	if got.ButtonLine != -1 || got.LEDLine != -1 || !got.ButtonActiveLow {
		t.Errorf("gpio = button %d (active low %t), led %d", got.ButtonLine, got.ButtonActiveLow, got.LEDLine)
	}
	if got.QueueSize != 16 || got.QueuePolicy != beacon.DropNewest {
		t.Errorf("queue = %d/%v", got.QueueSize, got.QueuePolicy)
	}
	if got.MQTTEnabled || got.MQTTClientID != "wristbeacon-wb-01" {
		t.Errorf("mqtt = enabled %t, client %q", got.MQTTEnabled, got.MQTTClientID)
	}
	if len(got.Displays) != 1 || got.Displays[0] != "log" {
		t.Errorf("Displays = %v, want [log]", got.Displays)
	}
	if got.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", got.HTTPAddr)
	}
	if got.BatteryStaticRaw != 0x0300 || got.BatteryI2CAddr != 0x48 {
		t.Errorf("battery = raw 0x%04X addr 0x%02X", got.BatteryStaticRaw, got.BatteryI2CAddr)
	}
}

func TestConfig_BeaconDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	bc, err := cfg.Beacon()
	if err != nil {
		t.Fatalf("Beacon() error = %v", err)
	}

	if bc.DefaultInterval != 4800 || bc.AlarmInterval != 1600 || bc.KeepaliveInterval != 16000 {
		t.Errorf("intervals = %d/%d/%d, want 4800/1600/16000", bc.DefaultInterval, bc.AlarmInterval, bc.KeepaliveInterval)
	}
	if bc.AlarmTicks != 60 {
		t.Errorf("AlarmTicks = %d, want 60", bc.AlarmTicks)
	}
	if bc.Timers.AlarmBlink != 50*time.Millisecond || bc.Timers.Greeting != 5*time.Second {
		t.Errorf("timers = %+v", bc.Timers)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEVICE_VARIANT", "keyring")
	t.Setenv("MFG_ID", "0x7A")
	t.Setenv("RADIO_BACKEND", "stub")
	t.Setenv("ADV_ALARM_INTERVAL", "500ms")
	t.Setenv("ALARM_DURATION", "30s")
	t.Setenv("QUEUE_POLICY", "drop-oldest")
	t.Setenv("DISPLAY", "log, mqtt")
	t.Setenv("HTTP_ADDR", "off")
	t.Setenv("LOG_LEVEL", "debug")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if got.Variant != beacon.VariantKeyring || got.MfgID != 0x7A || got.RadioBackend != "stub" {
		t.Errorf("got variant %v mfg 0x%02X backend %q", got.Variant, got.MfgID, got.RadioBackend)
	}
	if got.QueuePolicy != beacon.DropOldest {
		t.Errorf("QueuePolicy = %v", got.QueuePolicy)
	}
	if len(got.Displays) != 2 || got.Displays[1] != "mqtt" {
		t.Errorf("Displays = %v", got.Displays)
	}
	if got.HTTPAddr != "" {
		t.Errorf("HTTPAddr = %q, want disabled", got.HTTPAddr)
	}
	if got.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", got.LogLevel)
	}

	bc, err := got.Beacon()
	if err != nil {
		t.Fatalf("Beacon() error = %v", err)
	}
	if bc.AlarmInterval != 800 || bc.AlarmTicks != 60 {
		t.Errorf("alarm = %d ticks x %d, want 800 x 60", bc.AlarmInterval, bc.AlarmTicks)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "app env", key: "APP_ENV", value: "staging"},
		{name: "log level", key: "LOG_LEVEL", value: "verbose"},
		{name: "variant", key: "DEVICE_VARIANT", value: "pendant"},
		{name: "mfg id overflow", key: "MFG_ID", value: "0x141"},
		{name: "radio backend", key: "RADIO_BACKEND", value: "hci"},
		{name: "interval too long", key: "ADV_KEEPALIVE_INTERVAL", value: "20s"},
		{name: "interval too short", key: "ADV_ALARM_INTERVAL", value: "5ms"},
		{name: "negative duration", key: "SHORT_PRESS", value: "-1s"},
		{name: "bad duration", key: "LONG_PRESS", value: "soon"},
		{name: "alarm too long", key: "ALARM_DURATION", value: "10m"},
		{name: "battery source", key: "BATTERY_SOURCE", value: "magic"},
		{name: "battery channel", key: "BATTERY_CHANNEL", value: "4"},
		{name: "battery divider", key: "BATTERY_DIVIDER", value: "0"},
		{name: "button line", key: "BUTTON_LINE", value: "x"},
		{name: "active low", key: "BUTTON_ACTIVE_LOW", value: "maybe"},
		{name: "queue size", key: "QUEUE_SIZE", value: "0"},
		{name: "queue policy", key: "QUEUE_POLICY", value: "lifo"},
		{name: "mqtt port", key: "MQTT_PORT", value: "70000"},
		{name: "display", key: "DISPLAY", value: "lcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() with %s=%q error = nil, want non-nil", tt.key, tt.value)
			}
		})
	}
}

func TestLoadFromEnv_PressOrder(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHORT_PRESS", "3s")
	t.Setenv("LONG_PRESS", "1s")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("LoadFromEnv() error = nil with short press >= long press")
	}
}

func TestLoadScanFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MFG_ID", "65")
	t.Setenv("MQTT_ENABLED", "true")

	got, err := LoadScanFromEnv()
	if err != nil {
		t.Fatalf("LoadScanFromEnv() error = %v", err)
	}
	if got.MfgID != 0x41 || !got.MQTTEnabled || got.MQTTClientID != "wristbeacon-scan" {
		t.Errorf("got %+v", got)
	}
	if got.DedupWindow != 5*time.Minute {
		t.Errorf("DedupWindow = %v", got.DedupWindow)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}
