package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jaivgar/workflow-executor/action"
	"github.com/jaivgar/workflow-executor/arrowhead"
	"github.com/jaivgar/workflow-executor/logger"
	"github.com/jaivgar/workflow-executor/statemachine"
	"github.com/jaivgar/workflow-executor/workflow"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var ErrInvalidDefinition = errors.New("invalid workflow definition")

type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, true
	case ".json":
		return JSON, true
	}
	return "", false
}

// Loader compiles definitions into workflow templates. The client is used by
// service call actions.
type Loader struct {
	client *arrowhead.Client
}

func NewLoader(client *arrowhead.Client) *Loader {
	return &Loader{client: client}
}

func (l *Loader) Parse(data []byte, format Format) (*workflow.Workflow, error) {
	var doc Document
	var err error
	switch format {
	case YAML:
		err = yaml.Unmarshal(data, &doc)
	case JSON:
		err = json.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidDefinition, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	return l.Compile(doc)
}

func (l *Loader) Load(path string) (*workflow.Workflow, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file %s", ErrInvalidDefinition, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	w, err := l.Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// LoadDir loads every yaml and json file of dir in name order.
func (l *Loader) LoadDir(dir string) ([]*workflow.Workflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if _, ok := FormatOf(e.Name()); ok && !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	out := make([]*workflow.Workflow, 0, len(names))
	for _, name := range names {
		w, err := l.Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		logger.Info("workflow definition loaded", zap.String("workflow", w.Name), zap.String("file", name))
		out = append(out, w)
	}
	return out, nil
}

// Compile builds the template described by doc.
func (l *Loader) Compile(doc Document) (*workflow.Workflow, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidDefinition, doc.Name, fmt.Sprintf(format, args...))
	}
	names := make(map[string]int, len(doc.States))
	states := make([]statemachine.State, len(doc.States))
	for i, s := range doc.States {
		names[s.Name] = i
		states[i] = statemachine.NewState(s.Name, s.Transitions...)
	}
	transitions := make([]statemachine.Transition, len(doc.Transitions))
	for i, t := range doc.Transitions {
		tr, err := l.transition(t, names)
		if err != nil {
			return nil, invalid("transition %d: %v", i, err)
		}
		transitions[i] = tr
	}
	opts := []statemachine.Option{statemachine.WithStrict(doc.Strict)}
	if doc.Initial != nil {
		initial, err := stateIndex(doc.Initial, names)
		if err != nil {
			return nil, invalid("initial state: %v", err)
		}
		opts = append(opts, statemachine.WithInitialState(initial))
	}
	sm, err := statemachine.New(states, transitions, opts...)
	if err != nil {
		return nil, invalid("%v", err)
	}
	w, err := workflow.New(doc.Name, workflow.ConfigSchema(doc.Config), sm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	w.Description = doc.Description
	return w, nil
}

func stateIndex(ref any, names map[string]int) (int, error) {
	switch v := ref.(type) {
	case int:
		return v, nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("state index %v is not an integer", v)
		}
		return int(v), nil
	case string:
		i, ok := names[v]
		if !ok {
			return 0, fmt.Errorf("unknown state %q", v)
		}
		return i, nil
	}
	return 0, fmt.Errorf("state reference %v must be a name or an index", ref)
}

func (l *Loader) transition(t TransitionDoc, names map[string]int) (statemachine.Transition, error) {
	var tr statemachine.Transition
	target, err := stateIndex(t.Target, names)
	if err != nil {
		return tr, err
	}
	var events *statemachine.EventExpression
	if t.Events != nil {
		operands := make([]statemachine.Event, len(t.Events.Names))
		for i, name := range t.Events.Names {
			operands[i] = statemachine.NewEvent(name)
		}
		if events, err = statemachine.NewEventExpression(t.Events.Op, operands...); err != nil {
			return tr, fmt.Errorf("events: %w", err)
		}
	}
	var guards *statemachine.GuardExpression
	if t.Guards != nil {
		operands := make([]statemachine.Guard, len(t.Guards.Conditions))
		for i, c := range t.Guards.Conditions {
			operands[i] = statemachine.NewGuard(c.Variable, c.Value)
		}
		if guards, err = statemachine.NewGuardExpression(t.Guards.Op, operands...); err != nil {
			return tr, fmt.Errorf("guards: %w", err)
		}
	}
	actions := make([]statemachine.Action, 0, len(t.Actions))
	for i, a := range t.Actions {
		act, err := l.action(a)
		if err != nil {
			return tr, fmt.Errorf("action %d: %w", i, err)
		}
		if err := action.Validate(act); err != nil {
			return tr, fmt.Errorf("action %d: %w", i, err)
		}
		actions = append(actions, act)
	}
	var act statemachine.Action
	switch len(actions) {
	case 0:
	case 1:
		act = actions[0]
	default:
		act = action.Sequence(actions...)
	}
	return statemachine.NewTransition(events, guards, act, target), nil
}

func (l *Loader) action(a ActionDoc) (statemachine.Action, error) {
	var found []statemachine.Action
	if a.Set != nil {
		found = append(found, action.Set(a.Set))
	}
	if a.Emit != nil {
		found = append(found, action.Emit(a.Emit...))
	}
	if a.Script != "" {
		found = append(found, action.Script(a.Script))
	}
	if a.Switch != "" {
		found = append(found, action.Switch(a.Switch))
	}
	if a.Result != nil {
		found = append(found, action.SetResult(a.Result.Success, a.Result.Message))
	}
	if a.Call != nil {
		found = append(found, &action.ServiceCall{
			Client:     l.client,
			Definition: a.Call.Service,
			Method:     strings.ToUpper(a.Call.Method),
			Path:       a.Call.Path,
			Query:      a.Call.Query,
			Payload:    a.Call.Payload,
			PayloadKey: a.Call.PayloadKey,
			ResultKey:  a.Call.ResultKey,
			OnSuccess:  a.Call.OnSuccess,
			OnFailure:  a.Call.OnFailure,
		})
	}
	if len(found) != 1 {
		return nil, fmt.Errorf("expected exactly one of set, emit, script, switch, result or call, got %d", len(found))
	}
	return found[0], nil
}
