package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/vending-controller/internal/vending"
)

var envVars = []string{
	"MACHINE_ID", "MQTT_BROKER", "HTTP_ADDR", "POLL_INTERVAL", "DEBOUNCE",
	"HEARTBEAT", "PIN_POWER", "PIN_SERVICE", "SERVICE_KEY_CODE",
	"INVENTORY_FILE", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv unsets every variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	_, err = uuid.Parse(cfg.MachineID)
	assert.NoError(t, err, "machine id defaults to a uuid")
	assert.Equal(t, "tcp://localhost:1883", cfg.Broker)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	assert.Equal(t, 15*time.Minute, cfg.Heartbeat)
	assert.Equal(t, 26, cfg.PinPower)
	assert.Equal(t, 16, cfg.PinService)
	assert.Equal(t, vending.FactoryCode, cfg.ServiceKeyCode)
	assert.Empty(t, cfg.InventoryFile)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("MACHINE_ID", "lobby-1")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("POLL_INTERVAL", "50ms")
	t.Setenv("HEARTBEAT", "0s")
	t.Setenv("PIN_POWER", "5")
	t.Setenv("SERVICE_KEY_CODE", "1234")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "lobby-1", cfg.MachineID)
	assert.Equal(t, "tcp://broker:1883", cfg.Broker)
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, time.Duration(0), cfg.Heartbeat)
	assert.Equal(t, 5, cfg.PinPower)
	assert.Equal(t, 1234, cfg.ServiceKeyCode)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "vending.env")
	require.NoError(t, os.WriteFile(path, []byte("MACHINE_ID=from-file\nINVENTORY_FILE=/etc/vending/stock.yaml\nHTTP_ADDR=:9090\n"), 0o600))
	t.Setenv("HTTP_ADDR", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.MachineID)
	assert.Equal(t, "/etc/vending/stock.yaml", cfg.InventoryFile)
	assert.Equal(t, ":7070", cfg.HTTPAddr, "environment wins over file")

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadParseError(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEBOUNCE", "soon")

	_, err := Load()
	assert.ErrorIs(t, err, ErrParsingConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty machine id", func(c *Config) { c.MachineID = "" }},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }},
		{"negative debounce", func(c *Config) { c.Debounce = -time.Second }},
		{"negative heartbeat", func(c *Config) { c.Heartbeat = -time.Second }},
		{"shared pin", func(c *Config) { c.PinService = c.PinPower }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.MachineID = "m1"
			require.NoError(t, cfg.Validate())

			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLogger(t *testing.T) {
	cfg := Default()
	cfg.MachineID = "m1"
	cfg.LogLevel = "debug"

	log, err := cfg.Logger()
	require.NoError(t, err)
	assert.NotNil(t, log)

	cfg.LogLevel = "loud"
	_, err = cfg.Logger()
	assert.Error(t, err)
}
