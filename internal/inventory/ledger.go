// Package inventory holds the goods ledger of a vending machine: quantities and
// prices per slot, plus the derived queries the controller guards rely on.
package inventory

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// SlotID identifies a goods slot within one machine.
type SlotID int

// Slot is the quantity/price record of a single slot.
// A zero Price means no price has been assigned yet.
type Slot struct {
	Quantity int
	Price    float64
}

// Priced reports whether the slot has a price assigned.
func (s Slot) Priced() bool {
	return s.Price > 0
}

// Entry is a slot record together with its id, used for ordered snapshots.
type Entry struct {
	ID SlotID
	Slot
}

var (
	// ErrNegativeQuantity is returned when loading a negative amount of goods.
	ErrNegativeQuantity = errors.New("inventory: quantity must not be negative")
	// ErrInvalidPrice is returned for zero, negative or non-finite prices.
	ErrInvalidPrice = errors.New("inventory: price must be a positive finite number")
	// ErrQuantityOverflow is returned when a load would push the ledger total
	// past math.MaxInt.
	ErrQuantityOverflow = errors.New("inventory: quantity overflow")
)

// Ledger maps slot ids to slot records.
// Not safe for concurrent use; it is owned by exactly one controller.
type Ledger struct {
	slots map[SlotID]Slot
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{slots: make(map[SlotID]Slot)}
}

// NewFromSlots creates a ledger pre-seeded with a copy of the given slots.
// Negative quantities and negative prices are rejected.
func NewFromSlots(slots map[SlotID]Slot) (*Ledger, error) {
	l := New()
	total := 0
	for id, s := range slots {
		if s.Quantity < 0 {
			return nil, fmt.Errorf("slot %d: %w", id, ErrNegativeQuantity)
		}
		if s.Quantity > math.MaxInt-total {
			return nil, fmt.Errorf("slot %d: %w", id, ErrQuantityOverflow)
		}
		total += s.Quantity
		if s.Price < 0 || math.IsNaN(s.Price) || math.IsInf(s.Price, 0) {
			return nil, fmt.Errorf("slot %d: %w", id, ErrInvalidPrice)
		}
		l.slots[id] = s
	}
	return l, nil
}

// CheckQuantity validates an amount of goods to load.
func CheckQuantity(qty int) error {
	if qty < 0 {
		return ErrNegativeQuantity
	}
	return nil
}

// CheckPrice validates a price to assign.
func CheckPrice(price float64) error {
	if !(price > 0) || math.IsInf(price, 0) {
		return ErrInvalidPrice
	}
	return nil
}

// CheckLoad reports whether Load(id, qty) would succeed. The ledger total,
// and with it every slot quantity, must stay within int range.
func (l *Ledger) CheckLoad(id SlotID, qty int) error {
	if err := CheckQuantity(qty); err != nil {
		return err
	}
	if qty > math.MaxInt-l.TotalCount() {
		return fmt.Errorf("slot %d: %w", id, ErrQuantityOverflow)
	}
	return nil
}

// Load adds qty goods to the slot, creating it unpriced if absent.
func (l *Ledger) Load(id SlotID, qty int) error {
	if err := l.CheckLoad(id, qty); err != nil {
		return err
	}
	s := l.slots[id]
	s.Quantity += qty
	l.slots[id] = s
	return nil
}

// SetPrice assigns a price to the slot. A slot that was never loaded is
// created with zero quantity.
func (l *Ledger) SetPrice(id SlotID, price float64) error {
	if err := CheckPrice(price); err != nil {
		return err
	}
	s := l.slots[id]
	s.Price = price
	l.slots[id] = s
	return nil
}

// Slot returns the record for id.
func (l *Ledger) Slot(id SlotID) (Slot, bool) {
	s, ok := l.slots[id]
	return s, ok
}

// Len returns the number of known slots, including empty ones.
func (l *Ledger) Len() int {
	return len(l.slots)
}

// TotalCount returns the sum of all slot quantities.
func (l *Ledger) TotalCount() int {
	total := 0
	for _, s := range l.slots {
		total += s.Quantity
	}
	return total
}

// IsEmpty reports whether there are no goods at all.
func (l *Ledger) IsEmpty() bool {
	return l.TotalCount() == 0
}

// PricesCorrect reports whether every stocked slot has a price.
// Empty slots are ignored.
func (l *Ledger) PricesCorrect() bool {
	for _, s := range l.slots {
		if s.Quantity > 0 && !s.Priced() {
			return false
		}
	}
	return true
}

// Slots returns a snapshot of all slots ordered by id.
func (l *Ledger) Slots() []Entry {
	entries := make([]Entry, 0, len(l.slots))
	for id, s := range l.slots {
		entries = append(entries, Entry{ID: id, Slot: s})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// Clone returns an independent copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	c := New()
	for id, s := range l.slots {
		c.slots[id] = s
	}
	return c
}

// Equal reports whether both ledgers hold identical records.
func (l *Ledger) Equal(other *Ledger) bool {
	if len(l.slots) != len(other.slots) {
		return false
	}
	for id, s := range l.slots {
		if o, ok := other.slots[id]; !ok || o != s {
			return false
		}
	}
	return true
}
