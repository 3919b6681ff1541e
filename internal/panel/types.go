// Package panel turns raw front-panel switch samples into vending events.
// It has no I/O of its own; time is always passed in with the sample.
package panel

import (
	"time"

	"github.com/sweeney/vending-controller/internal/hsm"
)

// State is the debounced position of a switch.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// Switch names a front-panel input.
type Switch string

const (
	SwitchPower   Switch = "POWER"
	SwitchService Switch = "SERVICE"
)

// Input is a single sample of both switches.
type Input struct {
	Power   bool // true = ON
	Service bool // true = key turned
	Time    time.Time
}

// Edge is a debounced switch change and the event it maps to.
type Edge struct {
	Timestamp time.Time
	Switch    Switch
	State     State
	Event     hsm.Event
}

// channel tracks debounce state for a single switch.
type channel struct {
	stable       State
	pending      State
	pendingSince time.Time
	baselined    bool
}

// EdgeCounts tracks debounced edges since startup.
type EdgeCounts struct {
	PowerOn    int `json:"power_on"`
	PowerOff   int `json:"power_off"`
	ServiceOn  int `json:"service_on"`
	ServiceOff int `json:"service_off"`
}

// Heartbeat is emitted periodically once the panel has a baseline.
type Heartbeat struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EdgeCounts
}
