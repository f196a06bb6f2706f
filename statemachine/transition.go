package statemachine

// Action runs when a transition fires. It may change the environment and push
// events for the next update. Both handles belong to the caller of Update and
// must not be retained after Trigger returns.
type Action interface {
	Trigger(env Environment, events Events)
}

type ActionFunc func(env Environment, events Events)

func (f ActionFunc) Trigger(env Environment, events Events) {
	f(env, events)
}

type State struct {
	Name        string
	Transitions []int
}

func NewState(name string, transitions ...int) State {
	ts := make([]int, len(transitions))
	copy(ts, transitions)
	return State{
		Name:        name,
		Transitions: ts,
	}
}

// IsTerminal reports whether the state has no outgoing transitions.
func (s State) IsTerminal() bool {
	return len(s.Transitions) == 0
}

// Transition moves the machine to Target when both expressions hold. A nil
// expression always holds and a nil Action does nothing.
type Transition struct {
	Event  *EventExpression
	Guard  *GuardExpression
	Action Action
	Target int
}

func NewTransition(event *EventExpression, guard *GuardExpression, action Action, target int) Transition {
	return Transition{
		Event:  event,
		Guard:  guard,
		Action: action,
		Target: target,
	}
}
