package definition

import "github.com/jaivgar/workflow-executor/statemachine"

// Document is the declarative form of a workflow. States and targets may be
// referenced by index or by name.
type Document struct {
	Name        string              `json:"name" yaml:"name"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Config      map[string][]string `json:"config,omitempty" yaml:"config,omitempty"`
	Initial     any                 `json:"initial,omitempty" yaml:"initial,omitempty"`
	Strict      bool                `json:"strict,omitempty" yaml:"strict,omitempty"`
	States      []StateDoc          `json:"states" yaml:"states"`
	Transitions []TransitionDoc     `json:"transitions" yaml:"transitions"`
}

type StateDoc struct {
	Name        string `json:"name" yaml:"name"`
	Transitions []int  `json:"transitions,omitempty" yaml:"transitions,omitempty"`
}

type TransitionDoc struct {
	Events  *EventsDoc  `json:"events,omitempty" yaml:"events,omitempty"`
	Guards  *GuardsDoc  `json:"guards,omitempty" yaml:"guards,omitempty"`
	Actions []ActionDoc `json:"actions,omitempty" yaml:"actions,omitempty"`
	Target  any         `json:"target" yaml:"target"`
}

type EventsDoc struct {
	Op    statemachine.LogicOperator `json:"op,omitempty" yaml:"op,omitempty"`
	Names []string                   `json:"names" yaml:"names"`
}

type GuardsDoc struct {
	Op         statemachine.LogicOperator `json:"op,omitempty" yaml:"op,omitempty"`
	Conditions []ConditionDoc             `json:"conditions" yaml:"conditions"`
}

type ConditionDoc struct {
	Variable string `json:"variable" yaml:"variable"`
	Value    any    `json:"value" yaml:"value"`
}

// ActionDoc holds exactly one action.
type ActionDoc struct {
	Set    map[string]any `json:"set,omitempty" yaml:"set,omitempty"`
	Emit   []string       `json:"emit,omitempty" yaml:"emit,omitempty"`
	Script string         `json:"script,omitempty" yaml:"script,omitempty"`
	Switch string         `json:"switch,omitempty" yaml:"switch,omitempty"`
	Result *ResultDoc     `json:"result,omitempty" yaml:"result,omitempty"`
	Call   *CallDoc       `json:"call,omitempty" yaml:"call,omitempty"`
}

type ResultDoc struct {
	Success bool   `json:"success" yaml:"success"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

type CallDoc struct {
	Service    string            `json:"service" yaml:"service"`
	Method     string            `json:"method,omitempty" yaml:"method,omitempty"`
	Path       string            `json:"path,omitempty" yaml:"path,omitempty"`
	Query      map[string]string `json:"query,omitempty" yaml:"query,omitempty"`
	Payload    map[string]any    `json:"payload,omitempty" yaml:"payload,omitempty"`
	PayloadKey string            `json:"payloadKey,omitempty" yaml:"payloadKey,omitempty"`
	ResultKey  string            `json:"resultKey,omitempty" yaml:"resultKey,omitempty"`
	OnSuccess  string            `json:"onSuccess,omitempty" yaml:"onSuccess,omitempty"`
	OnFailure  string            `json:"onFailure" yaml:"onFailure"`
}
