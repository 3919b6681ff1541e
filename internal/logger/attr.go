package logger

import (
	"fmt"
	"log/slog"
)

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Outcome records a processing outcome under the key "outcome".
func Outcome(o fmt.Stringer) slog.Attr {
	return slog.String("outcome", o.String())
}

// State records an active configuration under the key "state".
func State(s fmt.Stringer) slog.Attr {
	return slog.String("state", s.String())
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}
