// Package vending binds the hsm engine to the vending machine domain: the
// state hierarchy, the maintenance code check and the inventory ledger.
//
//	off
//	on (history; initial child picked by stock)
//	  serving
//	  out_of_service
//	  maintenance
//	    idle
//
// A Controller is not safe for concurrent use. The daemon drives it from a
// single goroutine.
package vending

import (
	"log/slog"

	"github.com/sweeney/vending-controller/internal/hsm"
	"github.com/sweeney/vending-controller/internal/inventory"
	"github.com/sweeney/vending-controller/internal/logger"
)

// States of the vending machine.
const (
	StateOff          hsm.StateID = "off"
	StateOn           hsm.StateID = "on"
	StateServing      hsm.StateID = "serving"
	StateOutOfService hsm.StateID = "out_of_service"
	StateMaintenance  hsm.StateID = "maintenance"
	StateIdle         hsm.StateID = "idle"
)

// FactoryCode is the only code that opens maintenance mode.
const FactoryCode = 2147483647

// Stats counts processed events by outcome.
type Stats struct {
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
	Refused  uint64 `json:"refused"`
}

// Total returns the number of processed events.
func (s Stats) Total() uint64 {
	return s.Accepted + s.Rejected + s.Refused
}

// Controller is a vending machine: an engine instance plus the ledger its
// guards read and its actions write.
type Controller struct {
	machine *hsm.Machine[*Controller]
	ledger  *inventory.Ledger
	logger  *slog.Logger
	stats   Stats
}

// Option configures a Controller.
type Option func(*Controller)

// WithLedger seeds the controller with a pre-populated ledger. The controller
// takes ownership of it.
func WithLedger(l *inventory.Ledger) Option {
	return func(c *Controller) {
		if l != nil {
			c.ledger = l
		}
	}
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

var definition = newDefinition()

// New creates a controller in state off, with an empty ledger unless
// WithLedger is given.
func New(opts ...Option) *Controller {
	c := &Controller{
		ledger: inventory.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("vending"))

	m, err := definition.Build(c, hsm.WithLogger(c.logger))
	if err != nil {
		panic(err)
	}
	c.machine = m
	return c
}

// ProcessEvent runs one event to completion.
func (c *Controller) ProcessEvent(ev hsm.Event) hsm.Outcome {
	before := c.machine.Configuration()
	outcome := c.machine.ProcessEvent(ev)

	switch outcome {
	case hsm.Accepted:
		c.stats.Accepted++
		c.logger.Info("event accepted",
			logger.Event(string(ev.Tag())),
			slog.String("from", before.String()),
			logger.State(c.machine.Configuration()))
	case hsm.Rejected:
		c.stats.Rejected++
		if err := c.eventError(ev); err != nil {
			c.logger.Warn("malformed event rejected",
				logger.Event(string(ev.Tag())),
				logger.State(before),
				logger.Error(err))
		} else {
			c.logger.Info("event rejected", logger.Event(string(ev.Tag())), logger.State(before))
		}
	default:
		c.stats.Refused++
		c.logger.Debug("event refused", logger.Event(string(ev.Tag())), logger.State(before))
	}
	return outcome
}

// Configuration returns the active state path, outermost first.
func (c *Controller) Configuration() hsm.Path {
	return c.machine.Configuration()
}

// IsInState reports whether id is active at any level.
func (c *Controller) IsInState(id hsm.StateID) bool {
	return c.machine.IsInState(id)
}

// History returns the child of on that will be resumed on the next power on.
func (c *Controller) History() (hsm.StateID, bool) {
	return c.machine.History(StateOn)
}

// TotalCount returns the number of items in all slots.
func (c *Controller) TotalCount() int { return c.ledger.TotalCount() }

// IsEmpty reports whether no slot holds any item.
func (c *Controller) IsEmpty() bool { return c.ledger.IsEmpty() }

// PricesCorrect reports whether every stocked slot has a price.
func (c *Controller) PricesCorrect() bool { return c.ledger.PricesCorrect() }

// Slots returns a slot-ordered snapshot of the ledger.
func (c *Controller) Slots() []inventory.Entry { return c.ledger.Slots() }

// Ledger returns a copy of the ledger.
func (c *Controller) Ledger() *inventory.Ledger { return c.ledger.Clone() }

// Stats returns the outcome counters.
func (c *Controller) Stats() Stats { return c.stats }

func newDefinition() *hsm.Definition[*Controller] {
	d := hsm.NewDefinition[*Controller]()

	d.State(StateOff)
	d.State(StateOn).History().Choose(stockedChild)
	d.State(StateServing).Parent(StateOn)
	d.State(StateOutOfService).Parent(StateOn)
	d.State(StateMaintenance).Parent(StateOn).Initial(StateIdle)
	d.State(StateIdle).Parent(StateMaintenance)

	factoryCode := hsm.WithGuard(func(_ *Controller, ev hsm.Event) bool {
		e, ok := ev.(StartMaintenance)
		return ok && e.Code == FactoryCode
	})

	d.Transition(StateOff, TagPowerOn, StateOn).
		Transition(StateOn, TagPowerOff, StateOff).
		Transition(StateServing, TagStartMaintenance, StateMaintenance, factoryCode).
		Transition(StateOutOfService, TagStartMaintenance, StateMaintenance, factoryCode).
		Transition(StateIdle, TagEndMaintenance, "",
			hsm.WithGuard(func(c *Controller, _ hsm.Event) bool { return c.ledger.PricesCorrect() }),
			hsm.WithTarget(stockedChild)).
		Internal(StateIdle, TagLoadGoods,
			hsm.WithGuard(wellFormed),
			hsm.WithAction(loadGoods)).
		Internal(StateIdle, TagSetPrice,
			hsm.WithGuard(wellFormed),
			hsm.WithAction(setPrice)).
		Initial(StateOff)

	return d
}

// stockedChild picks the operating child of on from the ledger.
func stockedChild(c *Controller) hsm.StateID {
	if c.ledger.IsEmpty() {
		return StateOutOfService
	}
	return StateServing
}

func wellFormed(c *Controller, ev hsm.Event) bool {
	return c.eventError(ev) == nil
}

// eventError reports a payload that is malformed or that the ledger cannot
// take in its current state.
func (c *Controller) eventError(ev hsm.Event) error {
	if err := payloadError(ev); err != nil {
		return err
	}
	if e, ok := ev.(LoadGoods); ok {
		return c.ledger.CheckLoad(e.Slot, e.Qty)
	}
	return nil
}

func loadGoods(c *Controller, ev hsm.Event) {
	e := ev.(LoadGoods)
	if err := c.ledger.Load(e.Slot, e.Qty); err != nil {
		c.logger.Error("load goods", logger.Error(err))
	}
}

func setPrice(c *Controller, ev hsm.Event) {
	e := ev.(SetPrice)
	if err := c.ledger.SetPrice(e.Slot, e.Price); err != nil {
		c.logger.Error("set price", logger.Error(err))
	}
}
