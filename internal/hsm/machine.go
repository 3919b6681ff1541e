package hsm

import (
	"fmt"
	"log/slog"
)

// Logger is the default logger used when none is provided.
var Logger = slog.Default()

// MachineOption is a functional option for configuring a Machine.
type MachineOption func(*machineConfig)

type machineConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger for the machine. Nil keeps the default.
func WithLogger(logger *slog.Logger) MachineOption {
	return func(c *machineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Machine is the runtime instance of a Definition.
type Machine[C any] struct {
	def      *Definition[C]
	data     C
	children map[StateID][]StateID
	path     Path
	history  map[StateID]StateID // composite -> last active child at exit
	logger   *slog.Logger
}

// Configuration returns a copy of the active path, outermost state first.
func (m *Machine[C]) Configuration() Path {
	return append(Path(nil), m.path...)
}

// IsInState reports whether id is active, as the leaf or as an ancestor.
func (m *Machine[C]) IsInState(id StateID) bool {
	return m.path.Contains(id)
}

// History returns the child recorded the last time the composite state id
// was exited. ok is false if it was never exited or keeps no history.
func (m *Machine[C]) History(id StateID) (StateID, bool) {
	child, ok := m.history[id]
	return child, ok
}

// ProcessEvent runs one event to completion and classifies the result.
//
// The active path is searched from the leaf outward; the first state that
// defines a transition for the event tag wins. If none does the event is
// Refused. A false guard makes it Rejected with nothing changed. Otherwise the
// action runs, the states being left are exited innermost first (recording
// history), the target is entered outermost first and the event is Accepted.
func (m *Machine[C]) ProcessEvent(ev Event) Outcome {
	tag := ev.Tag()
	t := m.resolve(tag)
	if t == nil {
		m.logger.Debug("no transition defined", "event", tag, "state", m.path.String())
		return Refused
	}

	if t.Guard != nil && !t.Guard(m.data, ev) {
		m.logger.Debug("guard rejected transition", "event", tag, "from", t.From, "state", m.path.String())
		return Rejected
	}

	if t.Action != nil {
		t.Action(m.data, ev)
	}

	if t.Internal() {
		m.logger.Debug("internal transition", "event", tag, "from", t.From)
		return Accepted
	}

	target := t.To
	if t.Target != nil {
		target = t.Target(m.data)
		if _, ok := m.def.states[target]; !ok {
			panic(fmt.Sprintf("hsm: transition from %q on %q selected unknown state %q", t.From, tag, target))
		}
	}

	from := m.path.String()
	m.transit(t.From, target)
	m.logger.Debug("transition", "event", tag, "from", from, "to", m.path.String())
	return Accepted
}

// resolve finds the innermost transition defined for tag on the active path.
func (m *Machine[C]) resolve(tag EventTag) *Transition[C] {
	for i := len(m.path) - 1; i >= 0; i-- {
		if t, ok := m.def.transitions[TransitionKey{From: m.path[i], Event: tag}]; ok {
			return t
		}
	}
	return nil
}

// transit leaves every active state below the transition domain and enters
// target. The domain is the innermost proper ancestor shared by source and
// target, so a transition into its own source or an ancestor re-enters it.
func (m *Machine[C]) transit(source, target StateID) {
	domain := m.domain(source, target)

	keep := 0
	if domain != "" {
		for i, s := range m.path {
			if s == domain {
				keep = i + 1
				break
			}
		}
	}
	m.exitTo(keep)

	chain := m.ancestry(target, domain)
	for _, id := range chain[:len(chain)-1] {
		m.enterOnly(id)
	}
	m.enter(target)
}

// domain returns the innermost proper ancestor of source that is also a
// proper ancestor of target, or "" for the root.
func (m *Machine[C]) domain(source, target StateID) StateID {
	for a := m.parent(source); a != ""; a = m.parent(a) {
		if m.isProperAncestor(a, target) {
			return a
		}
	}
	return ""
}

func (m *Machine[C]) isProperAncestor(ancestor, id StateID) bool {
	for p := m.parent(id); p != ""; p = m.parent(p) {
		if p == ancestor {
			return true
		}
	}
	return false
}

func (m *Machine[C]) parent(id StateID) StateID {
	if s := m.def.states[id]; s != nil {
		return s.Parent
	}
	return ""
}

// ancestry returns the states from just below ancestor down to id.
func (m *Machine[C]) ancestry(id, ancestor StateID) []StateID {
	var chain []StateID
	for s := id; s != "" && s != ancestor; s = m.parent(s) {
		chain = append([]StateID{s}, chain...)
	}
	return chain
}

// exitTo exits active states innermost first until only keep remain.
func (m *Machine[C]) exitTo(keep int) {
	for i := len(m.path) - 1; i >= keep; i-- {
		id := m.path[i]
		s := m.def.states[id]
		if s.History && i+1 < len(m.path) {
			m.history[id] = m.path[i+1]
			m.logger.Debug("history recorded", "state", id, "child", m.path[i+1])
		}
		if s.OnExit != nil {
			s.OnExit(m.data)
		}
		m.logger.Debug("exited state", "state", id)
		m.path = m.path[:i]
	}
}

// enterOnly activates a state without descending into its children.
func (m *Machine[C]) enterOnly(id StateID) {
	m.path = append(m.path, id)
	if s := m.def.states[id]; s.OnEnter != nil {
		s.OnEnter(m.data)
	}
	m.logger.Debug("entered state", "state", id)
}

// enter activates a state and, for composites, its initial descendants.
func (m *Machine[C]) enter(id StateID) {
	m.enterOnly(id)
	if len(m.children[id]) == 0 {
		return
	}
	m.enter(m.initialChild(id))
}

// initialChild picks the child to enter: remembered history first, then the
// selector, then the declared default.
func (m *Machine[C]) initialChild(id StateID) StateID {
	s := m.def.states[id]
	if s.History {
		if child, ok := m.history[id]; ok {
			m.logger.Debug("history restored", "state", id, "child", child)
			return child
		}
	}
	if s.Choose != nil {
		child := s.Choose(m.data)
		if m.parent(child) != id {
			panic(fmt.Sprintf("hsm: initial selector of %q chose %q, which is not its child", id, child))
		}
		return child
	}
	return s.Initial
}
