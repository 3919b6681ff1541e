package hsm

import (
	"errors"
	"fmt"
)

// Definition errors, wrapped with details by Validate.
var (
	ErrNoInitialState      = errors.New("no initial state defined")
	ErrUnknownState        = errors.New("unknown state")
	ErrDuplicateState      = errors.New("duplicate state")
	ErrDuplicateTransition = errors.New("duplicate transition")
	ErrParentCycle         = errors.New("cycle in parent hierarchy")
	ErrNoInitialChild      = errors.New("composite state has no initial child")
	ErrNoTarget            = errors.New("external transition has no target")
)

// State defines one node of the hierarchy.
type State[C any] struct {
	ID      StateID
	Parent  StateID // empty for top-level states
	Initial StateID // default child of a composite state

	// Choose, when set, picks the initial child on entry instead of Initial.
	Choose Selector[C]

	// History makes the state remember its last active child on exit and
	// resume it on the next entry.
	History bool

	OnEnter func(data C)
	OnExit  func(data C)
}

// TransitionKey identifies the transition a state defines for an event tag.
type TransitionKey struct {
	From  StateID
	Event EventTag
}

// Transition is a guard-gated rule. Internal transitions, added with
// Definition.Internal, run the action without exiting or entering a state.
type Transition[C any] struct {
	TransitionKey
	To     StateID
	Target Selector[C] // evaluated after the action, overrides To
	Guard  Guard[C]
	Action Action[C]

	internal bool
}

// Internal reports whether the transition leaves the configuration unchanged.
func (t *Transition[C]) Internal() bool {
	return t.internal
}

// TransitionOption configures a Transition.
type TransitionOption[C any] func(*Transition[C])

// WithGuard sets the guard of a transition.
func WithGuard[C any](g Guard[C]) TransitionOption[C] {
	return func(t *Transition[C]) {
		t.Guard = g
	}
}

// WithGuards sets several guards that must all pass.
func WithGuards[C any](guards ...Guard[C]) TransitionOption[C] {
	return func(t *Transition[C]) {
		t.Guard = func(data C, ev Event) bool {
			for _, g := range guards {
				if !g(data, ev) {
					return false
				}
			}
			return true
		}
	}
}

// WithAction sets the action run when the transition fires.
func WithAction[C any](a Action[C]) TransitionOption[C] {
	return func(t *Transition[C]) {
		t.Action = a
	}
}

// WithTarget selects the target state at runtime.
func WithTarget[C any](sel Selector[C]) TransitionOption[C] {
	return func(t *Transition[C]) {
		t.Target = sel
	}
}

// Definition holds the machine structure before building a Machine.
type Definition[C any] struct {
	states      map[StateID]*State[C]
	order       []StateID
	transitions map[TransitionKey]*Transition[C]
	initial     StateID
	errs        []error
}

// NewDefinition creates an empty definition.
func NewDefinition[C any]() *Definition[C] {
	return &Definition[C]{
		states:      make(map[StateID]*State[C]),
		transitions: make(map[TransitionKey]*Transition[C]),
	}
}

// StateBuilder configures a state added with Definition.State.
type StateBuilder[C any] struct {
	d     *Definition[C]
	state *State[C]
}

// State adds a state and returns a builder for it.
func (d *Definition[C]) State(id StateID) *StateBuilder[C] {
	if _, dup := d.states[id]; dup {
		d.errs = append(d.errs, fmt.Errorf("%w %q", ErrDuplicateState, id))
	} else {
		d.order = append(d.order, id)
	}
	s := &State[C]{ID: id}
	d.states[id] = s
	return &StateBuilder[C]{d: d, state: s}
}

// Parent nests the state under parent.
func (sb *StateBuilder[C]) Parent(parent StateID) *StateBuilder[C] {
	sb.state.Parent = parent
	return sb
}

// Initial sets the default child entered when no history or selector applies.
func (sb *StateBuilder[C]) Initial(child StateID) *StateBuilder[C] {
	sb.state.Initial = child
	return sb
}

// Choose sets a selector deciding the initial child on entry.
func (sb *StateBuilder[C]) Choose(sel Selector[C]) *StateBuilder[C] {
	sb.state.Choose = sel
	return sb
}

// History enables shallow history for the state.
func (sb *StateBuilder[C]) History() *StateBuilder[C] {
	sb.state.History = true
	return sb
}

// OnEnter sets the entry callback.
func (sb *StateBuilder[C]) OnEnter(fn func(C)) *StateBuilder[C] {
	sb.state.OnEnter = fn
	return sb
}

// OnExit sets the exit callback.
func (sb *StateBuilder[C]) OnExit(fn func(C)) *StateBuilder[C] {
	sb.state.OnExit = fn
	return sb
}

// Transition adds an external transition from a state on an event tag.
func (d *Definition[C]) Transition(from StateID, event EventTag, to StateID, opts ...TransitionOption[C]) *Definition[C] {
	t := &Transition[C]{
		TransitionKey: TransitionKey{From: from, Event: event},
		To:            to,
	}
	for _, opt := range opts {
		opt(t)
	}
	return d.add(t)
}

// Internal adds an internal transition: the action runs, the configuration
// stays as it is.
func (d *Definition[C]) Internal(from StateID, event EventTag, opts ...TransitionOption[C]) *Definition[C] {
	t := &Transition[C]{TransitionKey: TransitionKey{From: from, Event: event}, internal: true}
	for _, opt := range opts {
		opt(t)
	}
	return d.add(t)
}

func (d *Definition[C]) add(t *Transition[C]) *Definition[C] {
	if _, dup := d.transitions[t.TransitionKey]; dup {
		d.errs = append(d.errs, fmt.Errorf("%w from %q on %q", ErrDuplicateTransition, t.From, t.Event))
		return d
	}
	d.transitions[t.TransitionKey] = t
	return d
}

// Initial sets the top-level state the machine starts in.
func (d *Definition[C]) Initial(id StateID) *Definition[C] {
	d.initial = id
	return d
}

// Validate checks the definition for errors.
func (d *Definition[C]) Validate() error {
	if len(d.errs) > 0 {
		return errors.Join(d.errs...)
	}

	if d.initial == "" {
		return ErrNoInitialState
	}
	if _, ok := d.states[d.initial]; !ok {
		return fmt.Errorf("initial state %q: %w", d.initial, ErrUnknownState)
	}

	children := d.children()
	for _, id := range d.order {
		s := d.states[id]
		if s.Parent != "" {
			if _, ok := d.states[s.Parent]; !ok {
				return fmt.Errorf("state %q parent %q: %w", id, s.Parent, ErrUnknownState)
			}
		}
		if err := d.checkParentCycle(id); err != nil {
			return err
		}
		if len(children[id]) == 0 {
			continue
		}
		if s.Initial == "" && s.Choose == nil {
			return fmt.Errorf("state %q: %w", id, ErrNoInitialChild)
		}
		if s.Initial != "" {
			child, ok := d.states[s.Initial]
			if !ok {
				return fmt.Errorf("state %q initial %q: %w", id, s.Initial, ErrUnknownState)
			}
			if child.Parent != id {
				return fmt.Errorf("state %q initial %q is not its child", id, s.Initial)
			}
		}
	}
	if d.states[d.initial].Parent != "" {
		return fmt.Errorf("initial state %q must be top-level", d.initial)
	}

	for key, t := range d.transitions {
		if _, ok := d.states[key.From]; !ok {
			return fmt.Errorf("transition from %q on %q: %w", key.From, key.Event, ErrUnknownState)
		}
		if t.internal {
			if t.To != "" || t.Target != nil {
				return fmt.Errorf("internal transition from %q on %q has a target", key.From, key.Event)
			}
			continue
		}
		if t.To == "" && t.Target == nil {
			return fmt.Errorf("transition from %q on %q: %w", key.From, key.Event, ErrNoTarget)
		}
		if t.To != "" {
			if _, ok := d.states[t.To]; !ok {
				return fmt.Errorf("transition from %q on %q to %q: %w", key.From, key.Event, t.To, ErrUnknownState)
			}
		}
	}

	return nil
}

func (d *Definition[C]) checkParentCycle(id StateID) error {
	visited := make(map[StateID]bool)
	current := id
	for current != "" {
		if visited[current] {
			return fmt.Errorf("%w at state %q", ErrParentCycle, current)
		}
		visited[current] = true
		s := d.states[current]
		if s == nil {
			break
		}
		current = s.Parent
	}
	return nil
}

func (d *Definition[C]) children() map[StateID][]StateID {
	children := make(map[StateID][]StateID)
	for _, id := range d.order {
		if p := d.states[id].Parent; p != "" {
			children[p] = append(children[p], id)
		}
	}
	return children
}

// Build validates the definition and creates a Machine bound to data, the
// domain state handed to every guard, action and selector. The machine
// starts in the initial configuration with entry callbacks already run.
func (d *Definition[C]) Build(data C, opts ...MachineOption) (*Machine[C], error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}

	cfg := machineConfig{logger: Logger}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Machine[C]{
		def:      d,
		data:     data,
		children: d.children(),
		history:  make(map[StateID]StateID),
		logger:   cfg.logger,
	}
	m.enter(d.initial)
	return m, nil
}
