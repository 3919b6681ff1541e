// Package gpio reads the front-panel switches.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the panel switch positions.
type Reader interface {
	// Read returns the logical positions of the power switch and the
	// service key. Both switches pull their line low when closed, so raw
	// inactive = logical ON.
	Read() (power bool, service bool, err error)

	// Close releases GPIO resources.
	Close() error
}

// Default pins (BCM numbering)
const (
	DefaultPinPower   = 26
	DefaultPinService = 16
)
