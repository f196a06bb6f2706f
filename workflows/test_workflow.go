package workflows

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jaivgar/workflow-executor/arrowhead"
	"github.com/jaivgar/workflow-executor/logger"
	"github.com/jaivgar/workflow-executor/statemachine"
	"github.com/jaivgar/workflow-executor/workflow"
	"go.uber.org/zap"
)

const (
	TestWorkflowName = "testWorkflowExecutor"

	ProvideWorkflowsType        = "provide-workflows-type"
	ProvideWorkflowsInExecution = "provide-workflows-in-execution"
	ExecuteWorkflow             = "execute-workflow"
)

// Environment variables used by the test workflow.
const (
	servicesAddressKey = "ServicesAddress"
	availableKey       = "AvailableWorkflows"
	inExecutionKey     = "InExecutionWorkflows"
	workResultKey      = "WorkResult"
	testErrorKey       = "Error"
	testOutputKey      = "OutputStateMachine"
	testServicesParam  = "Services"
	testScheduleParam  = "scheduleTime"
	initSuccessEvent   = "Init-Success"
	initFailEvent      = "Init-Fail"
	moreWorkEvent      = "More-Work"
	workOngoingEvent   = "Work-ongoing"
	workDoneEvent      = "Work-done"
	workErrorEvent     = "Work-error"
)

// TestWorkflow exercises the executor through its own arrowhead services:
// it discovers the configured services, then asks the executor which
// workflows exist and which are in execution until it sees one running.
// scheduleTime, when set, is the pause between two polls.
func TestWorkflow(client *arrowhead.Client) (*workflow.Workflow, error) {
	t := &testWorkflow{client: client}
	sm, err := statemachine.New(
		[]statemachine.State{
			statemachine.NewState("Start", 0),
			statemachine.NewState("Init", 1, 3),
			statemachine.NewState("Work", 3, 2),
			statemachine.NewState("End"),
		},
		[]statemachine.Transition{
			statemachine.NewTransition(nil, nil, statemachine.ActionFunc(t.init), 1),
			statemachine.NewTransition(statemachine.AnyEvent(initSuccessEvent, moreWorkEvent), nil,
				statemachine.ActionFunc(t.work), 2),
			statemachine.NewTransition(statemachine.OnEvent(workOngoingEvent), statemachine.Unless(workResultKey, 1),
				statemachine.ActionFunc(t.again), 1),
			statemachine.NewTransition(statemachine.AnyEvent(initFailEvent, workErrorEvent, workDoneEvent), nil,
				statemachine.ActionFunc(t.end), 3),
		},
	)
	if err != nil {
		return nil, err
	}
	w, err := workflow.New(TestWorkflowName, workflow.ConfigSchema{
		testScheduleParam: {"String"},
		testServicesParam: {"List", "String"},
	}, sm)
	if err != nil {
		return nil, err
	}
	w.Description = "Polls the executor services until a workflow is in execution"
	return w, nil
}

type testWorkflow struct {
	client *arrowhead.Client
}

func (t *testWorkflow) init(env statemachine.Environment, events statemachine.Events) {
	definitions := configuredServices(env)
	if len(definitions) == 0 {
		env.Set(testErrorKey, statemachine.String("No Services provided for initial configuration"))
		events.Emit(initFailEvent)
		return
	}
	found, err := orchestrateAll(t.client, definitions)
	if err != nil {
		logger.Warn("test workflow could not find its services", zap.Error(err))
		env.Set(testErrorKey, statemachine.String(err.Error()))
		events.Emit(initFailEvent)
		return
	}
	env.Set(servicesAddressKey, statemachine.Any(found))
	events.Emit(initSuccessEvent)
}

func configuredServices(env statemachine.Environment) []string {
	v, ok := env.Get(testServicesParam)
	if !ok {
		return nil
	}
	if list, ok := v.AsStringList(); ok {
		return list
	}
	if s, ok := v.AsString(); ok && s != "" {
		return []string{s}
	}
	return nil
}

func (t *testWorkflow) work(env statemachine.Environment, events statemachine.Events) {
	found, err := servicesIn(env, servicesAddressKey)
	if err != nil {
		t.fail(env, events, err)
		return
	}

	available, err := t.list(found, ProvideWorkflowsType)
	if err != nil {
		t.fail(env, events, err)
		return
	}
	env.Set(availableKey, statemachine.Any(available))
	if len(available) == 0 {
		t.fail(env, events, fmt.Errorf("the list of workflows available is empty"))
		return
	}

	running, err := t.list(found, ProvideWorkflowsInExecution)
	if err != nil {
		t.fail(env, events, err)
		return
	}
	env.Set(inExecutionKey, statemachine.Any(running))
	if len(running) == 0 {
		events.Emit(workOngoingEvent)
		return
	}
	env.Set(workResultKey, statemachine.Int(1))
	events.Emit(workDoneEvent)
}

func (t *testWorkflow) list(found services, definition string) ([]any, error) {
	res, ok := found[definition]
	if !ok {
		return nil, fmt.Errorf("service %q was not configured", definition)
	}
	var out []any
	if err := consume(t.client, res, arrowhead.ConsumeRequest{Method: http.MethodGet}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *testWorkflow) fail(env statemachine.Environment, events statemachine.Events, err error) {
	env.Set(testErrorKey, statemachine.String(err.Error()))
	events.Emit(workErrorEvent)
}

func (t *testWorkflow) again(env statemachine.Environment, events statemachine.Events) {
	if v, ok := env.Get(testScheduleParam); ok {
		if d, err := time.ParseDuration(v.String()); err == nil && d > 0 {
			time.Sleep(d)
		}
	}
	events.Emit(moreWorkEvent)
}

func (t *testWorkflow) end(env statemachine.Environment, events statemachine.Events) {
	if msg, ok := env.Get(testErrorKey); ok {
		env.Set(testOutputKey, statemachine.Int(500))
		workflow.SetFailure(env, msg.String())
		return
	}
	env.Set(testOutputKey, statemachine.Int(200))
	workflow.SetSuccess(env)
}
