package app

import (
	"context"
	"log/slog"
	"time"

	"wristbeacon/internal/config"
	"wristbeacon/internal/mqtt"
	"wristbeacon/internal/scan"
	"wristbeacon/internal/utils"
)

// RunScan listens for beacons and logs (and optionally publishes) every new
// observation until ctx is done.
func RunScan(ctx context.Context, cfg config.ScanConfig) error {
	logger := slog.Default()
	slog.Info("initializing scanner",
		"adapter", cfg.BLEAdapter,
		"mfg_id", "0x"+utils.Hex2(cfg.MfgID),
		"dedup_window", cfg.DedupWindow,
		"mqtt_enabled", cfg.MQTTEnabled,
		"mqtt_broker", cfg.MQTTBroker,
		"mqtt_port", cfg.MQTTPort,
	)

	var publisher scan.Publisher
	if cfg.MQTTEnabled {
		client, err := mqtt.NewClient(mqtt.Options{
			Broker:      cfg.MQTTBroker,
			Port:        cfg.MQTTPort,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, logger)
		if err != nil {
			return err
		}
		defer client.Disconnect()

		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = client.Connect(connectCtx)
		cancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing, retrying in background)", "error", err)
		}
		publisher = client
	}

	listener := scan.NewListener(scan.Options{
		Adapter: cfg.BLEAdapter,
		Filter:  scan.Filter{MfgID: cfg.MfgID},
	}, logger)
	handler := scan.NewHandler(cfg.DedupWindow, publisher, logger)

	if err := <-handler.StartListener(ctx, listener); err != nil {
		return err
	}

	slog.Info("scanner shutting down")
	return ctx.Err()
}
