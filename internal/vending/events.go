package vending

import (
	"fmt"

	"github.com/sweeney/vending-controller/internal/hsm"
	"github.com/sweeney/vending-controller/internal/inventory"
)

// Event tags, also used as the command names on the wire.
const (
	TagPowerOn          hsm.EventTag = "power_on"
	TagPowerOff         hsm.EventTag = "power_off"
	TagStartMaintenance hsm.EventTag = "start_maintenance"
	TagEndMaintenance   hsm.EventTag = "end_maintenance"
	TagLoadGoods        hsm.EventTag = "load_goods"
	TagSetPrice         hsm.EventTag = "set_price"
)

// Tags lists every event tag the controller understands.
var Tags = []hsm.EventTag{
	TagPowerOn,
	TagPowerOff,
	TagStartMaintenance,
	TagEndMaintenance,
	TagLoadGoods,
	TagSetPrice,
}

// PowerOn switches the machine on.
type PowerOn struct{}

// PowerOff switches the machine off.
type PowerOff struct{}

// StartMaintenance asks to enter maintenance mode with an access code.
type StartMaintenance struct {
	Code int
}

// EndMaintenance asks to leave maintenance mode.
type EndMaintenance struct{}

// LoadGoods adds Qty items to a slot.
type LoadGoods struct {
	Slot inventory.SlotID
	Qty  int
}

// SetPrice assigns a price to a slot.
type SetPrice struct {
	Slot  inventory.SlotID
	Price float64
}

func (PowerOn) Tag() hsm.EventTag          { return TagPowerOn }
func (PowerOff) Tag() hsm.EventTag         { return TagPowerOff }
func (StartMaintenance) Tag() hsm.EventTag { return TagStartMaintenance }
func (EndMaintenance) Tag() hsm.EventTag   { return TagEndMaintenance }
func (LoadGoods) Tag() hsm.EventTag        { return TagLoadGoods }
func (SetPrice) Tag() hsm.EventTag         { return TagSetPrice }

// payloadError reports a malformed event payload. Events without a payload
// are always well formed.
func payloadError(ev hsm.Event) error {
	switch e := ev.(type) {
	case LoadGoods:
		return inventory.CheckQuantity(e.Qty)
	case SetPrice:
		return inventory.CheckPrice(e.Price)
	case StartMaintenance:
		return nil
	}
	switch ev.Tag() {
	case TagLoadGoods, TagSetPrice, TagStartMaintenance:
		return fmt.Errorf("unexpected payload type %T for %q", ev, ev.Tag())
	}
	return nil
}
