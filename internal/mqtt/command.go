package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sweeney/vending-controller/internal/hsm"
	"github.com/sweeney/vending-controller/internal/inventory"
	"github.com/sweeney/vending-controller/internal/vending"
)

var (
	// ErrUnknownCommand is returned for an event name the controller does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMissingField is returned when a command lacks a required field.
	ErrMissingField = errors.New("missing field")
)

// Command is the JSON form of a vending event, e.g.
//
//	{"event":"load_goods","slot":0,"qty":10}
type Command struct {
	Event string   `json:"event"`
	Code  *int     `json:"code,omitempty"`
	Slot  *int     `json:"slot,omitempty"`
	Qty   *int     `json:"qty,omitempty"`
	Price *float64 `json:"price,omitempty"`
}

// DecodeCommand parses a command message into a vending event. Range checks
// on qty and price are left to the controller, which rejects bad values.
func DecodeCommand(data []byte) (hsm.Event, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	return c.toEvent()
}

func (c Command) toEvent() (hsm.Event, error) {
	switch hsm.EventTag(c.Event) {
	case vending.TagPowerOn:
		return vending.PowerOn{}, nil
	case vending.TagPowerOff:
		return vending.PowerOff{}, nil
	case vending.TagEndMaintenance:
		return vending.EndMaintenance{}, nil
	case vending.TagStartMaintenance:
		if c.Code == nil {
			return nil, fmt.Errorf("%s: %w code", c.Event, ErrMissingField)
		}
		return vending.StartMaintenance{Code: *c.Code}, nil
	case vending.TagLoadGoods:
		if c.Slot == nil || c.Qty == nil {
			return nil, fmt.Errorf("%s: %w slot or qty", c.Event, ErrMissingField)
		}
		return vending.LoadGoods{Slot: inventory.SlotID(*c.Slot), Qty: *c.Qty}, nil
	case vending.TagSetPrice:
		if c.Slot == nil || c.Price == nil {
			return nil, fmt.Errorf("%s: %w slot or price", c.Event, ErrMissingField)
		}
		return vending.SetPrice{Slot: inventory.SlotID(*c.Slot), Price: *c.Price}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, c.Event)
	}
}

// EncodeCommand is the inverse of DecodeCommand.
func EncodeCommand(ev hsm.Event) ([]byte, error) {
	c := Command{Event: string(ev.Tag())}
	switch e := ev.(type) {
	case vending.PowerOn, vending.PowerOff, vending.EndMaintenance:
	case vending.StartMaintenance:
		c.Code = &e.Code
	case vending.LoadGoods:
		slot := int(e.Slot)
		c.Slot, c.Qty = &slot, &e.Qty
	case vending.SetPrice:
		slot := int(e.Slot)
		c.Slot, c.Price = &slot, &e.Price
	default:
		return nil, fmt.Errorf("%w %T", ErrUnknownCommand, ev)
	}
	return json.Marshal(c)
}
