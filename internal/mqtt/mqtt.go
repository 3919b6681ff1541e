// Package mqtt connects the controller to a broker: it receives commands,
// publishes the outcome of every processed event and system lifecycle events.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/vending-controller/internal/hsm"
)

// Topics are the per-machine MQTT topics.
type Topics struct {
	Commands string // inbound JSON commands
	Events   string // outcome of every processed event
	System   string // STARTUP, SHUTDOWN, HEARTBEAT, RECONNECTED
}

// NewTopics returns the topics of one machine.
func NewTopics(machineID string) Topics {
	base := "vending/" + machineID
	return Topics{
		Commands: base + "/commands",
		Events:   base + "/events",
		System:   base + "/system",
	}
}

// Publisher publishes results and system events.
type Publisher interface {
	// Publish sends the result of one processed event.
	// Errors are reported but must not stop the caller.
	Publish(result Result) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Result is what the controller did with one event.
type Result struct {
	Timestamp     time.Time
	Event         hsm.EventTag
	Source        string // "panel" or "mqtt"
	Outcome       hsm.Outcome
	State         hsm.Path
	TotalCount    int
	PricesCorrect bool
}

// Payload is the JSON document published on the events topic.
type Payload struct {
	Vending VendingPayload `json:"vending"`
}

// VendingPayload contains the result details.
type VendingPayload struct {
	Timestamp     string `json:"timestamp"`
	Event         string `json:"event"`
	Source        string `json:"source,omitempty"`
	Outcome       string `json:"outcome"`
	State         string `json:"state"`
	TotalCount    int    `json:"total_count"`
	PricesCorrect bool   `json:"prices_correct"`
}

// FormatPayload creates the JSON payload for a result.
func FormatPayload(r Result) ([]byte, error) {
	return json.Marshal(Payload{
		Vending: VendingPayload{
			Timestamp:     r.Timestamp.UTC().Format(time.RFC3339),
			Event:         string(r.Event),
			Source:        r.Source,
			Outcome:       r.Outcome.String(),
			State:         r.State.String(),
			TotalCount:    r.TotalCount,
			PricesCorrect: r.PricesCorrect,
		},
	})
}

// SystemEvent is a lifecycle event such as startup, shutdown or heartbeat.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // "STARTUP", "SHUTDOWN", "HEARTBEAT", "RECONNECTED"
	Reason     string // shutdown only, e.g. "SIGTERM"
	RawPayload []byte // pre-formatted payload, returned as-is by FormatSystemPayload
	Retained   bool
}

// SystemPayload is the payload for events without a status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
