package internal

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/vending-controller/internal/gpio"
	"github.com/sweeney/vending-controller/internal/hsm"
	"github.com/sweeney/vending-controller/internal/inventory"
	"github.com/sweeney/vending-controller/internal/mqtt"
	"github.com/sweeney/vending-controller/internal/panel"
	"github.com/sweeney/vending-controller/internal/status"
	"github.com/sweeney/vending-controller/internal/vending"
	"github.com/sweeney/vending-controller/internal/web"
)

const pollInterval = 100 * time.Millisecond

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// rig wires the fakes together the way the daemon wires the real parts.
type rig struct {
	reader    *gpio.FakeReader
	detector  *panel.Detector
	machine   *vending.Controller
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
	tick      int
}

func newRig(t *testing.T, samples []gpio.Sample, ledger *inventory.Ledger) *rig {
	t.Helper()
	if ledger == nil {
		ledger = inventory.New()
	}
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	r := &rig{
		reader:    gpio.NewFakeReader(samples),
		detector:  panel.NewDetector(250*time.Millisecond, vending.FactoryCode, startTime),
		machine:   vending.New(vending.WithLedger(ledger), vending.WithLogger(log)),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(startTime, status.Config{MachineID: "it", Broker: "tcp://broker:1883"}),
	}
	r.tracker.UpdateMachine(r.machine)
	return r
}

func (r *rig) now() time.Time {
	return startTime.Add(time.Duration(r.tick) * pollInterval)
}

func (r *rig) process(t *testing.T, ev hsm.Event, source string) hsm.Outcome {
	t.Helper()
	outcome := r.machine.ProcessEvent(ev)
	r.tracker.UpdateMachine(r.machine)
	r.tracker.RecordEvent(status.LastEvent{Tag: ev.Tag(), Source: source, Outcome: outcome, At: r.now()})
	require.NoError(t, r.publisher.Publish(mqtt.Result{
		Timestamp:     r.now(),
		Event:         ev.Tag(),
		Source:        source,
		Outcome:       outcome,
		State:         r.machine.Configuration(),
		TotalCount:    r.machine.TotalCount(),
		PricesCorrect: r.machine.PricesCorrect(),
	}))
	return outcome
}

// poll reads n samples through the detector and processes the edges.
func (r *rig) poll(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		power, service, err := r.reader.Read()
		require.NoError(t, err)
		for _, e := range r.detector.Process(panel.Input{Power: power, Service: service, Time: r.now()}) {
			r.process(t, e.Event, "panel")
		}
		p, s := r.detector.CurrentState()
		r.tracker.UpdatePanel(p, s, r.detector.IsBaselined(), r.detector.Counts())
		r.tick++
	}
}

// command round-trips ev through the MQTT command encoding.
func (r *rig) command(t *testing.T, ev hsm.Event) hsm.Outcome {
	t.Helper()
	data, err := mqtt.EncodeCommand(ev)
	require.NoError(t, err)
	decoded, err := mqtt.DecodeCommand(data)
	require.NoError(t, err)
	return r.process(t, decoded, "mqtt")
}

func repeat(s gpio.Sample, n int) []gpio.Sample {
	out := make([]gpio.Sample, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestIntegrationRestockSession(t *testing.T) {
	var samples []gpio.Sample
	samples = append(samples, repeat(gpio.Sample{}, 4)...)                           // baseline
	samples = append(samples, repeat(gpio.Sample{Power: true}, 4)...)                // power on
	samples = append(samples, repeat(gpio.Sample{Power: true, Service: true}, 4)...) // key in
	r := newRig(t, samples, nil)

	r.poll(t, len(samples))
	require.True(t, r.machine.IsInState(vending.StateIdle))

	assert.Equal(t, hsm.Accepted, r.command(t, vending.LoadGoods{Slot: 0, Qty: 10}))
	assert.Equal(t, hsm.Accepted, r.command(t, vending.LoadGoods{Slot: 1, Qty: 100}))
	assert.Equal(t, hsm.Rejected, r.command(t, vending.EndMaintenance{}), "goods are unpriced")
	assert.Equal(t, hsm.Accepted, r.command(t, vending.SetPrice{Slot: 0, Price: 15}))
	assert.Equal(t, hsm.Accepted, r.command(t, vending.SetPrice{Slot: 1, Price: 5}))
	assert.Equal(t, hsm.Accepted, r.command(t, vending.EndMaintenance{}))

	assert.Equal(t, hsm.Path{vending.StateOn, vending.StateServing}, r.machine.Configuration())
	assert.Equal(t, 110, r.machine.TotalCount())

	// Power edge, service edge, then six commands.
	require.Len(t, r.publisher.Results, 8)
	for i, payload := range r.publisher.Payloads {
		var parsed mqtt.Payload
		require.NoError(t, json.Unmarshal(payload, &parsed), "payload %d", i)
		assert.NotEmpty(t, parsed.Vending.Timestamp)
		assert.NotEmpty(t, parsed.Vending.Event)
		assert.NotEmpty(t, parsed.Vending.Outcome)
	}
	last := r.publisher.Results[len(r.publisher.Results)-1]
	assert.Equal(t, "mqtt", last.Source)
	assert.True(t, last.PricesCorrect)
}

func TestIntegrationNoEventsAtStartup(t *testing.T) {
	samples := repeat(gpio.Sample{Power: true, Service: true}, 3)
	r := newRig(t, samples, nil)

	r.poll(t, len(samples))

	assert.Empty(t, r.publisher.Results, "the startup position is a baseline, not an edge")
	assert.True(t, r.machine.IsInState(vending.StateOff))
}

func TestIntegrationBounceRejection(t *testing.T) {
	samples := append(repeat(gpio.Sample{}, 4), gpio.Sample{Power: true})
	samples = append(samples, repeat(gpio.Sample{}, 3)...)
	r := newRig(t, samples, nil)

	r.poll(t, len(samples))

	assert.Empty(t, r.publisher.Results)
}

func TestIntegrationSimultaneousSwitches(t *testing.T) {
	samples := append(repeat(gpio.Sample{}, 4), repeat(gpio.Sample{Power: true, Service: true}, 4)...)
	ledger, err := inventory.NewFromSlots(map[inventory.SlotID]inventory.Slot{0: {Quantity: 1, Price: 2}})
	require.NoError(t, err)
	r := newRig(t, samples, ledger)

	r.poll(t, len(samples))

	require.Len(t, r.publisher.Results, 2)
	assert.Equal(t, vending.TagPowerOn, r.publisher.Results[0].Event, "power is handled first")
	assert.Equal(t, hsm.Path{vending.StateOn, vending.StateServing}, r.publisher.Results[0].State)
	assert.Equal(t, vending.TagStartMaintenance, r.publisher.Results[1].Event)
	assert.Equal(t, hsm.Accepted, r.publisher.Results[1].Outcome)
}

func TestIntegrationHistoryAcrossPowerCycle(t *testing.T) {
	var samples []gpio.Sample
	samples = append(samples, repeat(gpio.Sample{}, 4)...)
	samples = append(samples, repeat(gpio.Sample{Power: true}, 4)...)
	samples = append(samples, repeat(gpio.Sample{Power: true, Service: true}, 4)...)
	samples = append(samples, repeat(gpio.Sample{Service: true}, 4)...)
	samples = append(samples, repeat(gpio.Sample{Power: true, Service: true}, 4)...)
	r := newRig(t, samples, nil)

	r.poll(t, len(samples))

	// Powering back on resumes maintenance, not the stock-based choice.
	assert.Equal(t, hsm.Path{vending.StateOn, vending.StateMaintenance, vending.StateIdle}, r.machine.Configuration())
	counts := r.detector.Counts()
	assert.Equal(t, 2, counts.PowerOn)
	assert.Equal(t, 1, counts.PowerOff)
}

func TestIntegrationStatusEndpoint(t *testing.T) {
	samples := append(repeat(gpio.Sample{}, 4), repeat(gpio.Sample{Power: true}, 4)...)
	r := newRig(t, samples, nil)
	r.poll(t, len(samples))

	srv := httptest.NewServer(web.New(":0", r.tracker).Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/index.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed status.StatusJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	assert.Equal(t, "on/out_of_service", parsed.Status.State)
	assert.True(t, parsed.Status.Powered)
	assert.Equal(t, "ON", parsed.Status.Panel.Power)
	require.NotNil(t, parsed.Status.LastEvent)
	assert.Equal(t, "power_on", parsed.Status.LastEvent.Event)
	assert.Equal(t, "panel", parsed.Status.LastEvent.Source)
}
