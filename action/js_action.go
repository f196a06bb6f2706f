package action

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
	"github.com/jaivgar/workflow-executor/logger"
	"github.com/jaivgar/workflow-executor/statemachine"
	"github.com/jaivgar/workflow-executor/workflow"
	"go.uber.org/zap"
)

const ScriptErrorEvent = "script-error"

var _ statemachine.Action = new(jsAction)

// jsAction runs a JavaScript snippet. The environment is available as $ and
// emit(name) raises an event; whatever $ holds afterwards becomes the new
// environment.
type jsAction struct {
	expression string
}

func Script(expression string) *jsAction {
	return &jsAction{expression: expression}
}

func (d *jsAction) Validate() error {
	if len(d.expression) == 0 {
		return fmt.Errorf("javascript expression can not be empty")
	}
	if _, err := goja.Compile("", d.expression, false); err != nil {
		return fmt.Errorf("invalid javascript expression: %w", err)
	}
	return nil
}

func (d *jsAction) Trigger(env statemachine.Environment, events statemachine.Events) {
	output, err := d.run(env, events)
	if err != nil {
		logger.Warn("error executing javascript", zap.Error(err))
		env.Set(workflow.ErrorMessageKey, statemachine.String(err.Error()))
		events.Emit(ScriptErrorEvent)
		return
	}
	for k := range env {
		if _, ok := output[k]; !ok {
			env.Delete(k)
		}
	}
	for k, v := range output {
		env.Set(k, statemachine.ValueOf(v))
	}
}

func (d *jsAction) run(env statemachine.Environment, events statemachine.Events) (map[string]any, error) {
	data, err := json.Marshal(env.Plain())
	if err != nil {
		return nil, err
	}
	vm := goja.New()
	emitted := []string{}
	if err := vm.Set("emit", func(name string) {
		emitted = append(emitted, name)
	}); err != nil {
		return nil, err
	}
	expression := fmt.Sprintf("var $ = %s;\n", data) + d.expression
	if _, err := vm.RunString(expression); err != nil {
		return nil, fmt.Errorf("error executing javascript %w", err)
	}
	val, err := vm.RunString("$")
	if err != nil {
		return nil, fmt.Errorf("error executing javascript %w", err)
	}
	res, err := json.Marshal(val.Export())
	if err != nil {
		return nil, err
	}
	var output map[string]any
	if err := json.Unmarshal(res, &output); err != nil {
		return nil, fmt.Errorf("javascript $ must stay an object: %w", err)
	}
	events.Emit(emitted...)
	return output, nil
}
