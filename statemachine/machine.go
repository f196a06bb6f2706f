package statemachine

import (
	"errors"
	"fmt"

	"github.com/jaivgar/workflow-executor/logger"
	"go.uber.org/zap"
)

var ErrInvalidStateMachine = errors.New("invalid state machine")

type UpdateAction int

const (
	NoTransition UpdateAction = iota
	TransitionFired
	End
)

func (a UpdateAction) String() string {
	switch a {
	case NoTransition:
		return "NO_TRANSITION"
	case TransitionFired:
		return "TRANSITION"
	case End:
		return "END"
	}
	return fmt.Sprintf("UpdateAction(%d)", int(a))
}

type UpdateResult struct {
	Action          UpdateAction
	StateIndex      int
	State           State
	TransitionIndex int
	Transition      *Transition
}

type Option func(*StateMachine)

func WithInitialState(index int) Option {
	return func(sm *StateMachine) {
		sm.initial = index
	}
}

// WithStrict makes ill-formed expressions fail the update instead of being
// treated as a non matching transition.
func WithStrict(strict bool) Option {
	return func(sm *StateMachine) {
		sm.strict = strict
	}
}

// StateMachine is a Mealy machine: actions run on transitions. The live event
// set and the environment are owned by a single goroutine at a time.
type StateMachine struct {
	states      []State
	transitions []Transition
	initial     int
	current     int
	strict      bool
	events      Events
	env         Environment
}

func New(states []State, transitions []Transition, opts ...Option) (*StateMachine, error) {
	sm := &StateMachine{
		states:      append([]State(nil), states...),
		transitions: append([]Transition(nil), transitions...),
		events:      make(Events),
		env:         make(Environment),
	}
	for _, opt := range opts {
		opt(sm)
	}
	if err := check(sm.states, sm.transitions, sm.initial); err != nil {
		return nil, err
	}
	sm.current = sm.initial
	return sm, nil
}

func MustNew(states []State, transitions []Transition, opts ...Option) *StateMachine {
	sm, err := New(states, transitions, opts...)
	if err != nil {
		panic(err)
	}
	return sm
}

func check(states []State, transitions []Transition, initial int) error {
	if len(states) == 0 {
		return fmt.Errorf("%w: can not be created without a state", ErrInvalidStateMachine)
	}
	if len(transitions) == 0 {
		return fmt.Errorf("%w: can not be created without a transition", ErrInvalidStateMachine)
	}
	names := make(map[string]int, len(states))
	for i, s := range states {
		for _, t := range s.Transitions {
			if t < 0 || t >= len(transitions) {
				return fmt.Errorf("%w: state %q points to nonexistent transition %d", ErrInvalidStateMachine, s.Name, t)
			}
		}
		if prev, ok := names[s.Name]; ok {
			return fmt.Errorf("%w: states %d and %d have the same name %q", ErrInvalidStateMachine, prev, i, s.Name)
		}
		names[s.Name] = i
	}
	for i, t := range transitions {
		if t.Target < 0 || t.Target >= len(states) {
			return fmt.Errorf("%w: transition %d targets nonexistent state %d", ErrInvalidStateMachine, i, t.Target)
		}
	}
	if initial < 0 || initial >= len(states) {
		return fmt.Errorf("%w: initial state %d out of range", ErrInvalidStateMachine, initial)
	}
	return nil
}

// Instantiate returns a machine sharing the immutable state and transition
// tables, with an empty environment, no events and the initial state active.
func (sm *StateMachine) Instantiate() *StateMachine {
	return &StateMachine{
		states:      sm.states,
		transitions: sm.transitions,
		initial:     sm.initial,
		current:     sm.initial,
		strict:      sm.strict,
		events:      make(Events),
		env:         make(Environment),
	}
}

func (sm *StateMachine) CurrentState() int {
	return sm.current
}

func (sm *StateMachine) InitialState() int {
	return sm.initial
}

func (sm *StateMachine) ActiveState() State {
	return sm.states[sm.current]
}

func (sm *StateMachine) SetCurrentState(index int) error {
	if index < 0 || index >= len(sm.states) {
		return fmt.Errorf("state number %d out of range, state machine only has index until %d", index, len(sm.states)-1)
	}
	sm.current = index
	return nil
}

func (sm *StateMachine) States() []State {
	return append([]State(nil), sm.states...)
}

func (sm *StateMachine) Transitions() []Transition {
	return append([]Transition(nil), sm.transitions...)
}

func (sm *StateMachine) Strict() bool {
	return sm.strict
}

// Events returns the live event set.
func (sm *StateMachine) Events() Events {
	return sm.events
}

// Environment returns the live environment.
func (sm *StateMachine) Environment() Environment {
	return sm.env
}

func (sm *StateMachine) SetEvent(name string) {
	sm.events.Add(NewEvent(name))
}

func (sm *StateMachine) SetVariable(name string, value Value) {
	sm.env.Set(name, value)
}

// Update evaluates the transitions of the active state and fires at most one.
// Ill-formed expressions never fail it: in strict mode the error is logged and
// reported as NoTransition.
func (sm *StateMachine) Update() UpdateResult {
	res, err := sm.UpdateE()
	if err != nil {
		logger.Error("state machine update failed", zap.Int("state", sm.current), zap.Error(err))
	}
	return res
}

// UpdateE is Update returning evaluation errors when the machine is strict.
func (sm *StateMachine) UpdateE() (UpdateResult, error) {
	state := sm.states[sm.current]
	if state.IsTerminal() {
		return sm.result(End, -1), nil
	}
	for _, index := range state.Transitions {
		t := &sm.transitions[index]
		if t.Event != nil {
			ok, err := t.Event.Evaluate(sm.events)
			if err != nil {
				if sm.strict {
					return sm.result(NoTransition, -1), fmt.Errorf("transition %d: %w", index, err)
				}
				logger.Warn("ill-formed event expression, transition skipped", zap.Int("transition", index), zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
		}
		if t.Guard != nil {
			ok, err := t.Guard.Evaluate(sm.env)
			if err != nil {
				if sm.strict {
					return sm.result(NoTransition, -1), fmt.Errorf("transition %d: %w", index, err)
				}
				logger.Warn("ill-formed guard expression, transition skipped", zap.Int("transition", index), zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
		}
		sm.events.Clear()
		if t.Action != nil {
			t.Action.Trigger(sm.env, sm.events)
		}
		sm.current = t.Target
		return sm.result(TransitionFired, index), nil
	}
	return sm.result(NoTransition, -1), nil
}

func (sm *StateMachine) result(action UpdateAction, transition int) UpdateResult {
	res := UpdateResult{
		Action:          action,
		StateIndex:      sm.current,
		State:           sm.states[sm.current],
		TransitionIndex: transition,
	}
	if transition >= 0 {
		res.Transition = &sm.transitions[transition]
	}
	return res
}
