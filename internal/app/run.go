package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"wristbeacon/internal/battery"
	"wristbeacon/internal/beacon"
	"wristbeacon/internal/config"
	"wristbeacon/internal/display"
	"wristbeacon/internal/httpapi"
	"wristbeacon/internal/key"
	"wristbeacon/internal/led"
	"wristbeacon/internal/mqtt"
	"wristbeacon/internal/payload"
	"wristbeacon/internal/radio"
	"wristbeacon/internal/store"
	"wristbeacon/internal/utils"
)

// hostRadio is a radio backend owned by the app.
type hostRadio interface {
	radio.Radio
	Start() error
	Close() error
}

// closer runs deferred cleanups in reverse order.
type closer []func()

func (c *closer) add(fn func()) { *c = append(*c, fn) }

func (c closer) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"deviceID", cfg.DeviceID,
		"variant", cfg.Variant.String(),
		"mfgID", "0x"+utils.Hex2(cfg.MfgID),
		"radioBackend", cfg.RadioBackend,
		"bleAdapter", cfg.BLEAdapter,
		"batterySource", cfg.BatterySource,
		"storePath", cfg.StorePath,
		"displays", cfg.Displays,
		"buttonLine", cfg.ButtonLine,
		"ledLine", cfg.LEDLine,
		"mqttEnabled", cfg.MQTTEnabled,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"httpAddr", cfg.HTTPAddr,
	)

	bcfg, err := cfg.Beacon()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		cleanup closer
		wg      sync.WaitGroup
	)
	defer func() {
		cancel()
		wg.Wait()
		cleanup.run()
	}()

	dbConn, err := store.Open(store.Options{Path: cfg.StorePath, Logger: logger})
	if err != nil {
		return err
	}
	cleanup.add(func() {
		if err := dbConn.Close(); err != nil {
			slog.Error("store close", "error", err)
		}
	})
	nv := store.NewNV(dbConn, store.ConfigItemID)
	slog.Info("store ready", "path", cfg.StorePath)

	sampler, err := openBattery(cfg, logger, &cleanup)
	if err != nil {
		return err
	}
	if err := sampler.SampleOnce(ctx); err != nil {
		slog.Warn("initial battery sample failed", "error", err)
	}
	wg.Go(func() { sampler.Run(ctx) })

	var mqttClient *mqtt.Client
	if cfg.MQTTEnabled {
		mqttClient, err = mqtt.NewClient(mqtt.Options{
			Broker:      cfg.MQTTBroker,
			Port:        cfg.MQTTPort,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			DeviceID:    cfg.DeviceID,
		}, logger)
		if err != nil {
			return err
		}
		cleanup.add(mqttClient.Disconnect)
	}

	ledDev, err := openLED(cfg, logger, &cleanup)
	if err != nil {
		return err
	}

	disp, err := openDisplays(ctx, cfg, mqttClient, logger, &wg, &cleanup)
	if err != nil {
		return err
	}

	rad := openRadio(cfg, logger)
	cleanup.add(func() {
		if err := rad.Close(); err != nil {
			slog.Warn("radio close", "error", err)
		}
	})

	ctrl, err := beacon.New(bcfg, beacon.Deps{
		Radio:   rad,
		LED:     ledDev,
		Display: disp,
		Store:   nv,
		Battery: sampler,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	// The radio reports its role through the controller queue, so the
	// controller must exist before the radio starts.
	if err := rad.Start(); err != nil {
		return fmt.Errorf("radio start: %w", err)
	}
	if err := ctrl.Init(ctx); err != nil {
		return err
	}

	ctrlErr := make(chan error, 1)
	wg.Go(func() { ctrlErr <- ctrl.Run(ctx) })

	post := func(pressed bool) { ctrl.Post(beacon.KeyEvent{Pressed: pressed}) }

	if cfg.ButtonLine >= 0 {
		btn, err := key.OpenButton(key.ButtonOptions{
			Chip:      cfg.GPIOChip,
			Line:      cfg.ButtonLine,
			ActiveLow: cfg.ButtonActiveLow,
			PullUp:    cfg.ButtonActiveLow,
			Debounce:  cfg.ButtonDebounce,
		}, post, logger)
		if err != nil {
			return err
		}
		cleanup.add(func() { _ = btn.Close() })
		slog.Info("button ready", "chip", cfg.GPIOChip, "line", cfg.ButtonLine)
	}

	if mqttClient != nil {
		mqttClient.OnButton(post)

		// A short initial connect keeps startup going when the broker is
		// down; paho keeps retrying in the background.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err := mqttClient.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing, retrying in background)", "error", err)
		}
		wg.Go(func() { publishStatus(ctx, mqttClient, cfg.DeviceID, ctrl.Updates(), logger) })
	}

	var (
		srv   *http.Server
		errCh = make(chan error, 1)
	)
	if cfg.HTTPAddr != "" {
		mux := httpapi.NewMux(httpapi.Deps{Beacon: ctrl, Store: nv, History: nv})
		srv = httpapi.NewServer(cfg.HTTPAddr, mux, logger)
		go func() {
			slog.Info("http listening", "addr", cfg.HTTPAddr)
			errCh <- srv.ListenAndServe()
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-ctrlErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("controller: %w", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		slog.Info("http shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	return ctx.Err()
}

func openBattery(cfg config.Config, logger *slog.Logger, cleanup *closer) (*battery.Sampler, error) {
	var src battery.Source
	switch cfg.BatterySource {
	case "ads1x15":
		adc, err := battery.OpenADS1x15(battery.ADSOptions{
			Bus:     cfg.BatteryI2CBus,
			Address: cfg.BatteryI2CAddr,
			Channel: cfg.BatteryChannel,
			Divider: cfg.BatteryDivider,
		})
		if err != nil {
			return nil, err
		}
		cleanup.add(func() { _ = adc.Close() })
		src = adc
	default:
		src = battery.Static(cfg.BatteryStaticRaw)
	}
	return battery.NewSampler(src, cfg.BatterySampleInterval, logger)
}

func openLED(cfg config.Config, logger *slog.Logger, cleanup *closer) (beacon.LED, error) {
	if cfg.LEDLine < 0 {
		return led.NewLog(logger), nil
	}
	g, err := led.OpenGPIO(led.GPIOOptions{Chip: cfg.GPIOChip, Line: cfg.LEDLine})
	if err != nil {
		return nil, err
	}
	cleanup.add(func() { _ = g.Close() })
	return g, nil
}

func openDisplays(ctx context.Context, cfg config.Config, client *mqtt.Client, logger *slog.Logger, wg *sync.WaitGroup, cleanup *closer) (display.Display, error) {
	var out display.Multi
	for _, name := range cfg.Displays {
		switch name {
		case "log":
			out = append(out, display.NewLog(logger))
		case "mqtt":
			if client == nil {
				slog.Warn("mqtt display requested but MQTT_ENABLED is false; skipping")
				continue
			}
			d := display.NewMQTT(client, logger)
			client.OnConnected(d.Replay)
			out = append(out, d)
		case "ssd1306":
			oled, err := display.OpenSSD1306(cfg.DisplayI2CBus, logger)
			if err != nil {
				return nil, err
			}
			cleanup.add(func() { _ = oled.Close() })
			wg.Go(func() { oled.Run(ctx) })
			out = append(out, oled)
		}
	}
	return out, nil
}

func openRadio(cfg config.Config, logger *slog.Logger) hostRadio {
	if cfg.RadioBackend == "stub" {
		return radio.NewStub(radio.StubOptions{AutoTick: true})
	}
	return radio.NewBlueZ(radio.BlueZOptions{Adapter: cfg.BLEAdapter, LocalName: cfg.LocalName}, logger)
}

// publishStatus mirrors controller snapshots to MQTT. A snapshot that could
// not be sent is retried periodically until a newer one replaces it.
func publishStatus(ctx context.Context, client *mqtt.Client, deviceID string, updates <-chan beacon.Status, logger *slog.Logger) {
	retry := time.NewTicker(5 * time.Second)
	defer retry.Stop()

	var pending *mqtt.Status
	send := func() {
		if pending == nil || !client.IsConnected() {
			return
		}
		if err := client.PublishStatus(*pending); err != nil {
			logger.Warn("status publish failed", "error", err)
			return
		}
		pending = nil
	}

	for {
		select {
		case <-ctx.Done():
			return
		case st := <-updates:
			msg := statusMessage(deviceID, st)
			pending = &msg
			send()
		case <-retry.C:
			send()
		}
	}
}

func statusMessage(deviceID string, st beacon.Status) mqtt.Status {
	return mqtt.Status{
		DeviceID:     deviceID,
		Timestamp:    st.UpdatedAt,
		State:        st.State.String(),
		Variant:      st.Variant.String(),
		Mode:         st.Mode,
		AlarmCounter: int(st.AlarmCounter),
		BatteryV:     payload.Frame{Battery: st.Battery}.Volts(),
		Counter:      int(st.Payload.Counter()),
		Payload:      utils.BytesToHex(st.Payload[:]),
		Radio:        st.Role.String(),
		RadioError:   st.LastRadioError,
		Dropped:      st.Dropped,
	}
}
