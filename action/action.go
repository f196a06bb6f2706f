package action

import (
	"fmt"

	"github.com/jaivgar/workflow-executor/logger"
	"github.com/jaivgar/workflow-executor/statemachine"
	"github.com/jaivgar/workflow-executor/util"
	"github.com/jaivgar/workflow-executor/workflow"
	"go.uber.org/zap"
)

// Validator is implemented by actions whose configuration can be checked
// before a workflow is registered.
type Validator interface {
	Validate() error
}

// Validate checks a if it is a Validator.
func Validate(a statemachine.Action) error {
	if v, ok := a.(Validator); ok {
		return v.Validate()
	}
	return nil
}

var _ statemachine.Action = new(setAction)

type setAction struct {
	vars map[string]any
}

// Set assigns variables. String values may hold {$.path} tokens resolved
// against the environment before the assignment.
func Set(vars map[string]any) statemachine.Action {
	return &setAction{vars: vars}
}

func (s *setAction) Trigger(env statemachine.Environment, events statemachine.Events) {
	resolved := util.ResolveParams(env.Plain(), s.vars)
	for k, v := range resolved {
		env.Set(k, statemachine.ValueOf(v))
	}
}

type emitAction struct {
	events []string
}

func Emit(events ...string) statemachine.Action {
	return &emitAction{events: events}
}

func (e *emitAction) Trigger(env statemachine.Environment, events statemachine.Events) {
	events.Emit(e.events...)
}

func (e *emitAction) Validate() error {
	if len(e.events) == 0 {
		return fmt.Errorf("emit action needs at least one event")
	}
	return nil
}

type sequence []statemachine.Action

// Sequence triggers the actions in order on the same environment.
func Sequence(actions ...statemachine.Action) statemachine.Action {
	return sequence(actions)
}

func (s sequence) Trigger(env statemachine.Environment, events statemachine.Events) {
	for _, a := range s {
		if a != nil {
			a.Trigger(env, events)
		}
	}
}

func (s sequence) Validate() error {
	for i, a := range s {
		if err := Validate(a); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

type resultAction struct {
	success bool
	message string
}

// SetResult writes the outcome of the workflow into the environment. The
// message may hold {$.path} tokens.
func SetResult(success bool, message string) statemachine.Action {
	return &resultAction{success: success, message: message}
}

func (r *resultAction) Trigger(env statemachine.Environment, events statemachine.Events) {
	if r.success {
		workflow.SetSuccess(env)
		return
	}
	msg := fmt.Sprintf("%v", util.ResolveString(env.Plain(), r.message))
	logger.Debug("workflow reports failure", zap.String("message", msg))
	workflow.SetFailure(env, msg)
}
