// Command vending-controller runs a vending machine controller: it reads the
// front-panel switches, takes operator commands over MQTT and publishes the
// outcome of every event.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/vending-controller/internal/config"
	"github.com/sweeney/vending-controller/internal/gpio"
	"github.com/sweeney/vending-controller/internal/hsm"
	"github.com/sweeney/vending-controller/internal/inventory"
	"github.com/sweeney/vending-controller/internal/logger"
	"github.com/sweeney/vending-controller/internal/mqtt"
	"github.com/sweeney/vending-controller/internal/panel"
	"github.com/sweeney/vending-controller/internal/status"
	"github.com/sweeney/vending-controller/internal/vending"
	"github.com/sweeney/vending-controller/internal/web"
)

const (
	sourcePanel = "panel"
	sourceMQTT  = "mqtt"
)

func main() {
	envFile := flag.String("env-file", "", "Load environment from this file instead of ./.env")
	poll := flag.Duration("poll", 0, "GPIO polling interval (overrides POLL_INTERVAL)")
	debounce := flag.Duration("debounce", 0, "Debounce duration (overrides DEBOUNCE)")
	heartbeat := flag.Duration("heartbeat", 0, "Heartbeat interval, 0 disables (overrides HEARTBEAT)")
	broker := flag.String("broker", "", "MQTT broker address (overrides MQTT_BROKER)")
	httpAddr := flag.String("http", "", "HTTP status address, \"off\" disables (overrides HTTP_ADDR)")
	inventoryFile := flag.String("inventory", "", "YAML inventory seed file (overrides INVENTORY_FILE)")
	printState := flag.Bool("print-state", false, "Print the panel switch positions and exit")
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	// Only flags given on the command line override the environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "poll":
			cfg.PollInterval = *poll
		case "debounce":
			cfg.Debounce = *debounce
		case "heartbeat":
			cfg.Heartbeat = *heartbeat
		case "broker":
			cfg.Broker = *broker
		case "http":
			cfg.HTTPAddr = *httpAddr
		case "inventory":
			cfg.InventoryFile = *inventoryFile
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *printState); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, printState bool) error {
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	reader, err := gpio.NewRealReader(cfg.PinPower, cfg.PinService)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	if printState {
		power, service, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("POWER: %s, SERVICE: %s\n", stateString(power), stateString(service))
		return nil
	}

	ledger := inventory.New()
	if cfg.InventoryFile != "" {
		if ledger, err = inventory.LoadFile(cfg.InventoryFile); err != nil {
			return err
		}
		log.Info("inventory loaded", slog.String("file", cfg.InventoryFile), slog.Int("total_count", ledger.TotalCount()))
	}
	machine := vending.New(vending.WithLedger(ledger), vending.WithLogger(log))

	client, err := mqtt.NewRealClient(mqtt.ClientOptions{
		Broker:    cfg.Broker,
		MachineID: cfg.MachineID,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	startTime := time.Now()
	tracker := status.NewTracker(startTime, status.Config{
		MachineID:   cfg.MachineID,
		PollMs:      cfg.PollInterval.Milliseconds(),
		DebounceMs:  cfg.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTPAddr,
	})
	tracker.UpdateMachine(machine)
	tracker.SetMQTTConnected(client.IsConnected())

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := client.PublishSystem(startup); err != nil {
		log.Error("failed to publish startup event", logger.Error(err))
	}

	if cfg.HTTPAddr != "" && cfg.HTTPAddr != "off" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", logger.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", slog.String("addr", cfg.HTTPAddr))
	}

	log.Info("started",
		slog.String("machine_id", cfg.MachineID),
		slog.Duration("poll", cfg.PollInterval),
		slog.Duration("debounce", cfg.Debounce),
		slog.Duration("heartbeat", cfg.Heartbeat),
		slog.String("broker", cfg.Broker),
		logger.State(machine.Configuration()))

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(deps{
		reader:     reader,
		machine:    machine,
		detector:   panel.NewDetector(cfg.Debounce, cfg.ServiceKeyCode, startTime),
		publisher:  client,
		mqttStatus: client,
		tracker:    tracker,
		heartbeat:  cfg.Heartbeat,
		now:        time.Now,
		logger:     log,
	}, ticker.C, client.Commands(), sigCh)
}

// deps is everything the event loop touches.
type deps struct {
	reader     gpio.Reader
	machine    *vending.Controller
	detector   *panel.Detector
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // may be nil
	tracker    *status.Tracker
	heartbeat  time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// runLoop is the only goroutine that calls into the controller: panel edges
// and MQTT commands are processed one at a time, in arrival order.
func runLoop(d deps, tick <-chan time.Time, commands <-chan hsm.Event, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			reason := signalName(s)
			d.logger.Info("shutting down", slog.String("signal", reason))
			d.refreshConnection()
			event := mqtt.SystemEvent{
				Timestamp:  d.now(),
				Event:      "SHUTDOWN",
				Reason:     reason,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(d.tracker.Snapshot(), "SHUTDOWN", reason),
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				d.logger.Error("failed to publish shutdown event", logger.Error(err))
			}
			return nil

		case ev, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			d.process(ev, sourceMQTT, d.now())

		case <-tick:
			t := d.now()
			power, service, err := d.reader.Read()
			if err != nil {
				d.logger.Warn("gpio read error", logger.Error(err))
				continue
			}

			edges := d.detector.Process(panel.Input{Power: power, Service: service, Time: t})
			for _, e := range edges {
				d.logger.Info("panel edge", slog.String("switch", string(e.Switch)), slog.String("position", string(e.State)))
				d.process(e.Event, sourcePanel, e.Timestamp)
			}

			powerState, serviceState := d.detector.CurrentState()
			d.tracker.UpdatePanel(powerState, serviceState, d.detector.IsBaselined(), d.detector.Counts())
			d.refreshConnection()

			if hb := d.detector.CheckHeartbeat(t, d.heartbeat); hb != nil {
				d.logger.Info("heartbeat", slog.Duration("uptime", hb.Uptime), slog.Uint64("events", d.machine.Stats().Total()))
				event := mqtt.SystemEvent{
					Timestamp:  hb.Timestamp,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(d.tracker.Snapshot(), "HEARTBEAT", ""),
				}
				if err := d.publisher.PublishSystem(event); err != nil {
					d.logger.Warn("heartbeat publish error", logger.Error(err))
				}
			}
		}
	}
}

// process hands one event to the controller and reports the outcome.
func (d deps) process(ev hsm.Event, source string, at time.Time) {
	outcome := d.machine.ProcessEvent(ev)

	d.tracker.UpdateMachine(d.machine)
	d.tracker.RecordEvent(status.LastEvent{Tag: ev.Tag(), Source: source, Outcome: outcome, At: at})

	result := mqtt.Result{
		Timestamp:     at,
		Event:         ev.Tag(),
		Source:        source,
		Outcome:       outcome,
		State:         d.machine.Configuration(),
		TotalCount:    d.machine.TotalCount(),
		PricesCorrect: d.machine.PricesCorrect(),
	}
	if err := d.publisher.Publish(result); err != nil {
		d.logger.Warn("publish error", logger.Event(string(ev.Tag())), logger.Error(err))
	}
}

func (d deps) refreshConnection() {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
