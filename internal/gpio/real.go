//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the panel switches through the GPIO character device.
type RealReader struct {
	chip    *gpiocdev.Chip
	power   *gpiocdev.Line
	service *gpiocdev.Line
}

// NewRealReader requests both switch lines on gpiochip0.
func NewRealReader(pinPower, pinService int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	power, err := chip.RequestLine(pinPower, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request power pin %d: %w", pinPower, err)
	}

	service, err := chip.RequestLine(pinService, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		power.Close()
		chip.Close()
		return nil, fmt.Errorf("request service pin %d: %w", pinService, err)
	}

	return &RealReader{chip: chip, power: power, service: service}, nil
}

// Read returns the logical switch positions. A closed switch reads 0.
func (r *RealReader) Read() (bool, bool, error) {
	powerRaw, err := r.power.Value()
	if err != nil {
		return false, false, fmt.Errorf("read power pin: %w", err)
	}
	serviceRaw, err := r.service.Value()
	if err != nil {
		return false, false, fmt.Errorf("read service pin: %w", err)
	}
	return powerRaw == 0, serviceRaw == 0, nil
}

// Close puts both lines back to input with pull-down, the Pi boot default,
// and releases the chip.
func (r *RealReader) Close() error {
	var errs []error
	for name, line := range map[string]*gpiocdev.Line{"power": r.power, "service": r.service} {
		if line == nil {
			continue
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
