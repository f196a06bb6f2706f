package workflows

import (
	"github.com/jaivgar/workflow-executor/action"
	"github.com/jaivgar/workflow-executor/statemachine"
	"github.com/jaivgar/workflow-executor/workflow"
)

const EchoWorkflowName = "echo"

// Echo copies its optional "message" parameter into "Output" and succeeds.
func Echo() (*workflow.Workflow, error) {
	sm, err := statemachine.New(
		[]statemachine.State{
			statemachine.NewState("Start", 0),
			statemachine.NewState("End"),
		},
		[]statemachine.Transition{
			statemachine.NewTransition(nil, nil, action.Sequence(
				action.Set(map[string]any{"Output": "{$.message}"}),
				action.SetResult(true, ""),
			), 1),
		},
	)
	if err != nil {
		return nil, err
	}
	w, err := workflow.New(EchoWorkflowName, workflow.ConfigSchema{"message": {"String"}}, sm)
	if err != nil {
		return nil, err
	}
	w.Description = "Replies with its input message"
	return w, nil
}
