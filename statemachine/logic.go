package statemachine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidOperandCount = errors.New("invalid operand count")
	ErrIllFormedExpression = errors.New("ill-formed expression")
	ErrUnknownOperator     = errors.New("unknown logic operator")
)

type LogicOperator int

// NoOperator stands for an expression without operator, it passes its single
// operand through.
const (
	NoOperator LogicOperator = iota
	NOT
	AND
	OR
	XOR
)

func (op LogicOperator) String() string {
	switch op {
	case NOT:
		return "NOT"
	case AND:
		return "AND"
	case OR:
		return "OR"
	case XOR:
		return "XOR"
	case NoOperator:
		return ""
	}
	return fmt.Sprintf("LogicOperator(%d)", int(op))
}

func ParseLogicOperator(s string) (LogicOperator, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return NoOperator, nil
	case "NOT":
		return NOT, nil
	case "AND":
		return AND, nil
	case "OR":
		return OR, nil
	case "XOR":
		return XOR, nil
	}
	return NoOperator, fmt.Errorf("%w: %q", ErrUnknownOperator, s)
}

func (op LogicOperator) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

func (op *LogicOperator) UnmarshalText(text []byte) error {
	parsed, err := ParseLogicOperator(string(text))
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

type IllegalNumberOfOperandsError struct {
	Operator LogicOperator
	Got      int
}

func (e IllegalNumberOfOperandsError) Error() string {
	switch e.Operator {
	case NOT:
		return fmt.Sprintf("the operator NOT only accepts one operand, got %d", e.Got)
	case AND, OR:
		return fmt.Sprintf("the operator %s only accepts two or more operands, got %d", e.Operator, e.Got)
	case XOR:
		return fmt.Sprintf("the operator XOR only accepts two operands, got %d", e.Got)
	}
	return fmt.Sprintf("an expression without operator needs exactly one operand, got %d", e.Got)
}

func (e IllegalNumberOfOperandsError) Is(target error) bool {
	return target == ErrInvalidOperandCount
}

// Validate checks that n operands are acceptable for the operator.
func (op LogicOperator) Validate(n int) error {
	var ok bool
	switch op {
	case NoOperator, NOT:
		ok = n == 1
	case AND, OR:
		ok = n >= 2
	case XOR:
		ok = n == 2
	default:
		return fmt.Errorf("%w: %d", ErrUnknownOperator, int(op))
	}
	if !ok {
		return IllegalNumberOfOperandsError{Operator: op, Got: n}
	}
	return nil
}

// Apply reduces the operands to one boolean. The operand count must have been
// validated before.
func (op LogicOperator) Apply(operands []bool) bool {
	switch op {
	case NOT:
		return !operands[0]
	case AND:
		for _, o := range operands {
			if !o {
				return false
			}
		}
		return true
	case OR:
		for _, o := range operands {
			if o {
				return true
			}
		}
		return false
	case XOR:
		return operands[0] != operands[1]
	}
	return operands[0]
}

type Evaluable[C any] interface {
	Evaluate(ctx C) bool
}

// LogicExpression groups operands of the same kind under one operator. Operands
// are evaluated against a context of type C: the live event set for events,
// the environment for guards.
type LogicExpression[E Evaluable[C], C any] struct {
	operator LogicOperator
	operands []E
}

type (
	EventExpression = LogicExpression[Event, Events]
	GuardExpression = LogicExpression[Guard, Environment]
)

func NewLogicExpression[E Evaluable[C], C any](op LogicOperator, operands ...E) (*LogicExpression[E, C], error) {
	if err := op.Validate(len(operands)); err != nil {
		return nil, err
	}
	ops := make([]E, len(operands))
	copy(ops, operands)
	return &LogicExpression[E, C]{
		operator: op,
		operands: ops,
	}, nil
}

func MustLogicExpression[E Evaluable[C], C any](op LogicOperator, operands ...E) *LogicExpression[E, C] {
	exp, err := NewLogicExpression[E, C](op, operands...)
	if err != nil {
		panic(err)
	}
	return exp
}

func (l *LogicExpression[E, C]) Operator() LogicOperator {
	return l.operator
}

func (l *LogicExpression[E, C]) Operands() []E {
	ops := make([]E, len(l.operands))
	copy(ops, l.operands)
	return ops
}

// Evaluate checks every operand in ctx and combines the results. It fails only
// when the expression was not built through NewLogicExpression and its operand
// count does not fit the operator.
func (l *LogicExpression[E, C]) Evaluate(ctx C) (bool, error) {
	if err := l.operator.Validate(len(l.operands)); err != nil {
		return false, fmt.Errorf("%w: %v", ErrIllFormedExpression, err)
	}
	evaluated := make([]bool, len(l.operands))
	for i, operand := range l.operands {
		evaluated[i] = operand.Evaluate(ctx)
	}
	return l.operator.Apply(evaluated), nil
}

func (l *LogicExpression[E, C]) String() string {
	parts := make([]string, len(l.operands))
	for i, operand := range l.operands {
		parts[i] = fmt.Sprintf("%v", operand)
	}
	if l.operator == NoOperator {
		return strings.Join(parts, " ")
	}
	return l.operator.String() + "(" + strings.Join(parts, ", ") + ")"
}

func NewEventExpression(op LogicOperator, events ...Event) (*EventExpression, error) {
	return NewLogicExpression[Event, Events](op, events...)
}

func NewGuardExpression(op LogicOperator, guards ...Guard) (*GuardExpression, error) {
	return NewLogicExpression[Guard, Environment](op, guards...)
}

// OnEvent matches when the named event is present.
func OnEvent(name string) *EventExpression {
	return MustLogicExpression[Event, Events](NoOperator, NewEvent(name))
}

// AnyEvent matches when at least one of the named events is present.
// A single name behaves like OnEvent.
func AnyEvent(names ...string) *EventExpression {
	return eventsWith(OR, names)
}

// AllEvents matches when every named event is present.
func AllEvents(names ...string) *EventExpression {
	return eventsWith(AND, names)
}

func eventsWith(op LogicOperator, names []string) *EventExpression {
	if len(names) == 1 {
		return OnEvent(names[0])
	}
	events := make([]Event, len(names))
	for i, name := range names {
		events[i] = NewEvent(name)
	}
	return MustLogicExpression[Event, Events](op, events...)
}

// When matches when variable equals value in the environment.
func When(variable string, value any) *GuardExpression {
	return MustLogicExpression[Guard, Environment](NoOperator, NewGuard(variable, value))
}

// Unless matches when variable is absent or differs from value.
func Unless(variable string, value any) *GuardExpression {
	return MustLogicExpression[Guard, Environment](NOT, NewGuard(variable, value))
}
