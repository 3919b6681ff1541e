// Package hsm is a small synchronous hierarchical state machine engine:
// composite states, shallow history, guarded initial-child selection and
// guard-gated transitions looked up by (state, event tag).
//
// A Machine processes one event at a time to completion and is not safe for
// concurrent use; callers that share one must serialize ProcessEvent calls.
package hsm

import "strings"

// StateID is a unique identifier for a state.
type StateID string

// EventTag names an event kind. Transitions are keyed by tag, payloads are
// inspected by guards and actions.
type EventTag string

// Event is an immutable input to the machine.
type Event interface {
	Tag() EventTag
}

// Guard decides whether a transition may fire. It must not have side effects.
type Guard[C any] func(data C, ev Event) bool

// Action runs when a transition fires, before states are exited and entered.
type Action[C any] func(data C, ev Event)

// Selector picks a state at runtime: the initial child of a composite state
// or the target of a transition.
type Selector[C any] func(data C) StateID

// Outcome classifies the result of one ProcessEvent call.
type Outcome int

const (
	// Refused means no transition is defined for the event in the active
	// configuration.
	Refused Outcome = iota
	// Rejected means a transition is defined but its guard evaluated false.
	Rejected
	// Accepted means the transition fired.
	Accepted
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case Refused:
		return "refused"
	case Rejected:
		return "rejected"
	case Accepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// Completed reports whether the event was recognized by the active
// configuration, whatever its guard decided.
func (o Outcome) Completed() bool {
	return o != Refused
}

// Succeeded reports whether the event produced its intended effect.
func (o Outcome) Succeeded() bool {
	return o == Accepted
}

// Path is an active configuration: states from the outermost down to the leaf.
type Path []StateID

// Leaf returns the innermost state, or "" for an empty path.
func (p Path) Leaf() StateID {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Contains reports whether id is on the path.
func (p Path) Contains(id StateID) bool {
	for _, s := range p {
		if s == id {
			return true
		}
	}
	return false
}

// Equal reports whether both paths name the same states in the same order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// String joins the path with "/", e.g. "on/maintenance/idle".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = string(s)
	}
	return strings.Join(parts, "/")
}
