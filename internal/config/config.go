// Package config loads the daemon configuration from the environment,
// optionally seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/sweeney/vending-controller/internal/gpio"
	"github.com/sweeney/vending-controller/internal/logger"
	"github.com/sweeney/vending-controller/internal/vending"
)

var (
	ErrParsingConfig = errors.New("failed to parse configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the daemon configuration.
type Config struct {
	MachineID      string        `env:"MACHINE_ID"`
	Broker         string        `env:"MQTT_BROKER" envDefault:"tcp://localhost:1883"`
	HTTPAddr       string        `env:"HTTP_ADDR" envDefault:":8080"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"100ms"`
	Debounce       time.Duration `env:"DEBOUNCE" envDefault:"250ms"`
	Heartbeat      time.Duration `env:"HEARTBEAT" envDefault:"15m"`
	PinPower       int           `env:"PIN_POWER"`
	PinService     int           `env:"PIN_SERVICE"`
	ServiceKeyCode int           `env:"SERVICE_KEY_CODE"`
	InventoryFile  string        `env:"INVENTORY_FILE"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"json"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Broker:         "tcp://localhost:1883",
		HTTPAddr:       ":8080",
		PollInterval:   100 * time.Millisecond,
		Debounce:       250 * time.Millisecond,
		Heartbeat:      15 * time.Minute,
		PinPower:       gpio.DefaultPinPower,
		PinService:     gpio.DefaultPinService,
		ServiceKeyCode: vending.FactoryCode,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Load reads envFiles (or ./.env if none are given and it exists) into the
// process environment and parses it. Variables already set win over files.
// An empty MACHINE_ID gets a random UUID.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		// ./.env is optional
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}

	cfg := Default()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if cfg.MachineID == "" {
		cfg.MachineID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.MachineID == "" {
		errs = append(errs, errors.New("machine id is empty"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval %v must be positive", c.PollInterval))
	}
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce %v must not be negative", c.Debounce))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat %v must not be negative", c.Heartbeat))
	}
	if c.PinPower == c.PinService {
		errs = append(errs, fmt.Errorf("power and service share pin %d", c.PinPower))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := logger.ParseFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}

// Logger builds the logger described by LogLevel and LogFormat.
func (c Config) Logger() (*slog.Logger, error) {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logger.ParseFormat(c.LogFormat)
	if err != nil {
		return nil, err
	}
	return logger.New(
		logger.WithLevel(level),
		logger.WithFormat(format),
		logger.WithAttr(slog.String("machine_id", c.MachineID)),
	), nil
}
