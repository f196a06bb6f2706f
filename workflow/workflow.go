package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jaivgar/workflow-executor/statemachine"
)

var ErrInvalidConfig = errors.New("invalid workflow configuration")

// ConfigSchema maps each configuration parameter to the type names it accepts:
// String, Integer, Boolean, List or Map.
type ConfigSchema map[string][]string

func (c ConfigSchema) Clone() ConfigSchema {
	cp := make(ConfigSchema, len(c))
	for k, v := range c {
		cp[k] = append([]string(nil), v...)
	}
	return cp
}

func (c ConfigSchema) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Check reports type names no value could ever match.
func (c ConfigSchema) Check() error {
	for _, key := range c.Keys() {
		for _, t := range c[key] {
			switch strings.ToLower(t) {
			case "string", "integer", "int", "boolean", "bool", "list", "map":
			default:
				return fmt.Errorf("%w: parameter %q declares unknown type %q", ErrInvalidConfig, key, t)
			}
		}
	}
	return nil
}

// Validate checks the declared types of the given values. Parameters the schema
// does not describe are accepted, and strings are accepted for scalar types as
// long as they parse.
func (c ConfigSchema) Validate(config map[string]any) error {
	for key, raw := range config {
		types, ok := c[key]
		if !ok || len(types) == 0 {
			continue
		}
		if !accepts(types, raw) {
			return fmt.Errorf("%w: parameter %q expects %s", ErrInvalidConfig, key, strings.Join(types, " or "))
		}
	}
	return nil
}

func accepts(types []string, raw any) bool {
	v := statemachine.ValueOf(raw)
	s, isString := v.AsString()
	for _, t := range types {
		switch strings.ToLower(t) {
		case "string":
			if isString {
				return true
			}
		case "integer", "int":
			if v.Kind() == statemachine.KindInt {
				return true
			}
			if _, err := strconv.ParseInt(s, 10, 64); isString && err == nil {
				return true
			}
		case "boolean", "bool":
			if v.Kind() == statemachine.KindBool {
				return true
			}
			if _, err := strconv.ParseBool(s); isString && err == nil {
				return true
			}
		case "list":
			if v.Kind() == statemachine.KindStringList {
				return true
			}
		case "map":
			if v.Kind() == statemachine.KindMap {
				return true
			}
		}
	}
	return false
}

// Workflow is a registered template. Its state machine is never run directly,
// every execution works on an instantiated copy.
type Workflow struct {
	Name        string
	Description string
	Config      ConfigSchema
	Logic       *statemachine.StateMachine
}

func New(name string, config ConfigSchema, logic *statemachine.StateMachine) (*Workflow, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("workflow name can not be empty")
	}
	if logic == nil {
		return nil, fmt.Errorf("workflow %s has no state machine", name)
	}
	if config == nil {
		config = ConfigSchema{}
	}
	if err := config.Check(); err != nil {
		return nil, fmt.Errorf("workflow %s: %w", name, err)
	}
	return &Workflow{
		Name:   name,
		Config: config,
		Logic:  logic,
	}, nil
}

func (w *Workflow) Status() WStatus {
	return IDLE
}
