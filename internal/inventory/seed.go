package inventory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk layout of an inventory seed document.
type seedFile struct {
	Slots []seedSlot `yaml:"slots"`
}

type seedSlot struct {
	Slot     SlotID  `yaml:"slot"`
	Quantity int     `yaml:"quantity"`
	Price    float64 `yaml:"price,omitempty"`
}

// ParseYAML builds a ledger from a YAML seed document:
//
//	slots:
//	  - slot: 0
//	    quantity: 10
//	    price: 15.0
//
// A missing price leaves the slot unpriced.
func ParseYAML(data []byte) (*Ledger, error) {
	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse inventory: %w", err)
	}

	slots := make(map[SlotID]Slot, len(doc.Slots))
	for _, s := range doc.Slots {
		if _, dup := slots[s.Slot]; dup {
			return nil, fmt.Errorf("parse inventory: duplicate slot %d", s.Slot)
		}
		slots[s.Slot] = Slot{Quantity: s.Quantity, Price: s.Price}
	}

	l, err := NewFromSlots(slots)
	if err != nil {
		return nil, fmt.Errorf("parse inventory: %w", err)
	}
	return l, nil
}

// LoadFile reads and parses a YAML seed file.
func LoadFile(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory file: %w", err)
	}
	return ParseYAML(data)
}

// MarshalYAML renders the ledger in the seed file layout.
func (l *Ledger) MarshalYAML() (any, error) {
	doc := seedFile{Slots: make([]seedSlot, 0, len(l.slots))}
	for _, e := range l.Slots() {
		doc.Slots = append(doc.Slots, seedSlot{Slot: e.ID, Quantity: e.Quantity, Price: e.Price})
	}
	return doc, nil
}
