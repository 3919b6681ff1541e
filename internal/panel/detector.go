package panel

import (
	"time"

	"github.com/sweeney/vending-controller/internal/hsm"
	"github.com/sweeney/vending-controller/internal/vending"
)

// Detector debounces the power switch and the service key.
//
// No edges are reported until both switches have held a value for one full
// debounce window: the position at startup is the baseline, not a change.
type Detector struct {
	debounce      time.Duration
	serviceCode   int
	power         channel
	service       channel
	baselined     bool
	startTime     time.Time
	counts        EdgeCounts
	lastHeartbeat time.Time
}

// NewDetector creates a detector. serviceCode is sent with StartMaintenance
// when the service key is turned.
func NewDetector(debounce time.Duration, serviceCode int, startTime time.Time) *Detector {
	return &Detector{
		debounce:      debounce,
		serviceCode:   serviceCode,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes a sample and returns the debounced edges it completes.
// When both switches change on the same sample the power edge comes first.
func (d *Detector) Process(in Input) []Edge {
	powerChanged := d.step(&d.power, toState(in.Power), in.Time)
	serviceChanged := d.step(&d.service, toState(in.Service), in.Time)

	if !d.baselined {
		d.baselined = d.power.baselined && d.service.baselined
		return nil
	}

	var edges []Edge
	if powerChanged {
		edges = append(edges, d.powerEdge(in.Time))
	}
	if serviceChanged {
		edges = append(edges, d.serviceEdge(in.Time))
	}
	return edges
}

func (d *Detector) powerEdge(now time.Time) Edge {
	e := Edge{Timestamp: now, Switch: SwitchPower, State: d.power.stable}
	if e.State == StateOn {
		e.Event = vending.PowerOn{}
		d.counts.PowerOn++
	} else {
		e.Event = vending.PowerOff{}
		d.counts.PowerOff++
	}
	return e
}

func (d *Detector) serviceEdge(now time.Time) Edge {
	e := Edge{Timestamp: now, Switch: SwitchService, State: d.service.stable}
	if e.State == StateOn {
		e.Event = vending.StartMaintenance{Code: d.serviceCode}
		d.counts.ServiceOn++
	} else {
		e.Event = vending.EndMaintenance{}
		d.counts.ServiceOff++
	}
	return e
}

// step advances one channel and reports whether its stable state changed.
func (d *Detector) step(ch *channel, s State, now time.Time) bool {
	if !ch.baselined {
		if ch.pending != s {
			ch.pending = s
			ch.pendingSince = now
			return false
		}
		if now.Sub(ch.pendingSince) >= d.debounce {
			ch.stable = s
			ch.baselined = true
			ch.pending = ""
		}
		return false
	}

	if s == ch.stable {
		ch.pending = ""
		return false
	}
	if ch.pending != s {
		ch.pending = s
		ch.pendingSince = now
		return false
	}
	if now.Sub(ch.pendingSince) >= d.debounce {
		ch.stable = s
		ch.pending = ""
		return true
	}
	return false
}

func toState(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// Events returns the vending events carried by edges, in order.
func Events(edges []Edge) []hsm.Event {
	events := make([]hsm.Event, 0, len(edges))
	for _, e := range edges {
		events = append(events, e.Event)
	}
	return events
}

// IsBaselined reports whether both switches have a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns the debounced switch positions.
func (d *Detector) CurrentState() (power State, service State) {
	return d.power.stable, d.service.stable
}

// Counts returns the edge counters.
func (d *Detector) Counts() EdgeCounts {
	return d.counts
}

// CheckHeartbeat returns a heartbeat if interval has elapsed since the last
// one (or startup). It returns nil before baseline or when interval <= 0.
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *Heartbeat {
	if interval <= 0 || !d.baselined {
		return nil
	}
	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}
	d.lastHeartbeat = now
	return &Heartbeat{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.counts,
	}
}
