package statemachine

import "fmt"

// Guard is a condition on one environment variable. It holds when the variable
// is present and equals the expected value.
type Guard struct {
	variable string
	expected Value
}

func NewGuard(variable string, expected any) Guard {
	return Guard{
		variable: variable,
		expected: ValueOf(expected),
	}
}

func (g Guard) Variable() string {
	return g.variable
}

func (g Guard) Expected() Value {
	return g.expected
}

func (g Guard) Evaluate(env Environment) bool {
	v, ok := env[g.variable]
	if !ok {
		return false
	}
	return v.Equal(g.expected)
}

func (g Guard) String() string {
	return fmt.Sprintf("%s==%s", g.variable, g.expected)
}
