package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	MachineID     string         `json:"machine_id"`
	State         string         `json:"state"`
	Powered       bool           `json:"powered"`
	Ready         bool           `json:"ready"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	Inventory     InventoryJSON  `json:"inventory"`
	Outcomes      OutcomesJSON   `json:"outcomes"`
	LastEvent     *LastEventJSON `json:"last_event,omitempty"`
	Panel         PanelJSON      `json:"panel"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Config        ConfigJSON     `json:"config"`
}

// InventoryJSON is the JSON representation of the ledger.
type InventoryJSON struct {
	TotalCount    int        `json:"total_count"`
	PricesCorrect bool       `json:"prices_correct"`
	Slots         []SlotJSON `json:"slots"`
}

// SlotJSON is one ledger slot. Price is omitted while unset.
type SlotJSON struct {
	Slot     int     `json:"slot"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price,omitempty"`
}

// OutcomesJSON counts processed events by outcome.
type OutcomesJSON struct {
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
	Refused  uint64 `json:"refused"`
}

// LastEventJSON describes the most recently processed event.
type LastEventJSON struct {
	Event     string `json:"event"`
	Source    string `json:"source"`
	Outcome   string `json:"outcome"`
	Timestamp string `json:"timestamp"`
}

// PanelJSON reports the front-panel switches.
type PanelJSON struct {
	Power   string    `json:"power"`
	Service string    `json:"service"`
	Edges   EdgesJSON `json:"edge_counts"`
}

// EdgesJSON is the JSON representation of panel edge counts.
type EdgesJSON struct {
	PowerOn    int `json:"power_on"`
	PowerOff   int `json:"power_off"`
	ServiceOn  int `json:"service_on"`
	ServiceOff int `json:"service_off"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	slots := make([]SlotJSON, 0, len(snap.Slots))
	for _, e := range snap.Slots {
		slots = append(slots, SlotJSON{Slot: int(e.ID), Quantity: e.Quantity, Price: e.Price})
	}

	inner := StatusInner{
		MachineID:     snap.Config.MachineID,
		State:         orUnknown(snap.State.String()),
		Powered:       snap.Powered(),
		Ready:         snap.Baselined,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Inventory: InventoryJSON{
			TotalCount:    snap.TotalCount,
			PricesCorrect: snap.PricesCorrect,
			Slots:         slots,
		},
		Outcomes: OutcomesJSON{
			Accepted: snap.Stats.Accepted,
			Rejected: snap.Stats.Rejected,
			Refused:  snap.Stats.Refused,
		},
		Panel: PanelJSON{
			Power:   orUnknown(string(snap.Power)),
			Service: orUnknown(string(snap.Service)),
			Edges: EdgesJSON{
				PowerOn:    snap.Edges.PowerOn,
				PowerOff:   snap.Edges.PowerOff,
				ServiceOn:  snap.Edges.ServiceOn,
				ServiceOff: snap.Edges.ServiceOff,
			},
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if le := snap.LastEvent; le != nil {
		inner.LastEvent = &LastEventJSON{
			Event:     string(le.Tag),
			Source:    le.Source,
			Outcome:   le.Outcome.String(),
			Timestamp: le.At.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
