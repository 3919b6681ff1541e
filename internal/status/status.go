// Package status provides a thread-safe status tracker for the vending
// controller daemon. The event loop writes it, HTTP handlers and the MQTT
// heartbeat read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/vending-controller/internal/hsm"
	"github.com/sweeney/vending-controller/internal/inventory"
	"github.com/sweeney/vending-controller/internal/panel"
	"github.com/sweeney/vending-controller/internal/vending"
)

// Config contains daemon configuration for display.
type Config struct {
	MachineID   string
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Machine is the read side of a vending controller.
type Machine interface {
	Configuration() hsm.Path
	Slots() []inventory.Entry
	TotalCount() int
	PricesCorrect() bool
	Stats() vending.Stats
}

// LastEvent describes the most recently processed event.
type LastEvent struct {
	Tag     hsm.EventTag
	Source  string
	Outcome hsm.Outcome
	At      time.Time
}

// Snapshot is a point-in-time view of daemon state. It shares no memory
// with the tracker.
type Snapshot struct {
	State         hsm.Path
	Slots         []inventory.Entry
	TotalCount    int
	PricesCorrect bool
	Stats         vending.Stats
	LastEvent     *LastEvent

	Power     panel.State
	Service   panel.State
	Baselined bool
	Edges     panel.EdgeCounts

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Powered reports whether the machine is in state on.
func (s Snapshot) Powered() bool {
	return s.State.Contains(vending.StateOn)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// UpdateMachine copies the controller state. Called from the event loop only.
func (t *Tracker) UpdateMachine(m Machine) {
	state := m.Configuration()
	slots := m.Slots()
	total := m.TotalCount()
	priced := m.PricesCorrect()
	stats := m.Stats()

	t.mu.Lock()
	t.snap.State = state
	t.snap.Slots = slots
	t.snap.TotalCount = total
	t.snap.PricesCorrect = priced
	t.snap.Stats = stats
	t.mu.Unlock()
}

// UpdatePanel sets the debounced switch positions and edge counters.
func (t *Tracker) UpdatePanel(power, service panel.State, baselined bool, edges panel.EdgeCounts) {
	t.mu.Lock()
	t.snap.Power = power
	t.snap.Service = service
	t.snap.Baselined = baselined
	t.snap.Edges = edges
	t.mu.Unlock()
}

// RecordEvent remembers the last processed event.
func (t *Tracker) RecordEvent(ev LastEvent) {
	t.mu.Lock()
	t.snap.LastEvent = &ev
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a copy of the daemon state with Now set to the current time.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.State = append(hsm.Path(nil), t.snap.State...)
	s.Slots = append([]inventory.Entry(nil), t.snap.Slots...)
	if t.snap.LastEvent != nil {
		last := *t.snap.LastEvent
		s.LastEvent = &last
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
