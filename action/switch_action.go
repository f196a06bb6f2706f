package action

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jaivgar/workflow-executor/logger"
	"github.com/jaivgar/workflow-executor/statemachine"
	"github.com/oliveagle/jsonpath"
	"go.uber.org/zap"
)

const DefaultSwitchEvent = "default"

var _ statemachine.Action = new(switchAction)

// switchAction emits an event named after the value its jsonpath expression
// selects in the environment, or "default" when it selects nothing.
type switchAction struct {
	expression string
}

func Switch(expression string) *switchAction {
	return &switchAction{expression: expression}
}

func (d *switchAction) path() string {
	return strings.TrimSuffix(strings.TrimPrefix(d.expression, "{"), "}")
}

func (d *switchAction) Validate() error {
	if len(d.expression) == 0 {
		return fmt.Errorf("switch expression can not be empty")
	}
	if !strings.HasPrefix(d.expression, "{") || !strings.HasSuffix(d.expression, "}") {
		return fmt.Errorf("switch expression %s should be enclosed in {}", d.expression)
	}
	if _, err := jsonpath.Compile(d.path()); err != nil {
		return fmt.Errorf("switch expression %s should be a valid jsonpath expression", d.expression)
	}
	return nil
}

func (d *switchAction) Trigger(env statemachine.Environment, events statemachine.Events) {
	expressionValue, err := jsonpath.JsonPathLookup(env.Plain(), d.path())
	if err != nil {
		logger.Debug("switch expression selects nothing", zap.String("expression", d.expression), zap.Error(err))
		events.Emit(DefaultSwitchEvent)
		return
	}
	event := DefaultSwitchEvent
	switch v := expressionValue.(type) {
	case int:
		event = strconv.Itoa(v)
	case int64:
		event = strconv.FormatInt(v, 10)
	case float64:
		event = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		event = strconv.FormatBool(v)
	case string:
		event = v
	}
	events.Emit(event)
}
