package workflow

import "github.com/jaivgar/workflow-executor/statemachine"

// Environment keys through which a state machine reports its outcome.
const (
	ResultKey       = "State machine result"
	ErrorMessageKey = "Error message"

	Success = "success"
	Error   = "error"
)

const MissingResultMessage = "workflow finished without reporting a result"

type Outcome struct {
	Success      bool
	ErrorMessage string
}

func SetSuccess(env statemachine.Environment) {
	env.Set(ResultKey, statemachine.String(Success))
	env.Delete(ErrorMessageKey)
}

func SetFailure(env statemachine.Environment, message string) {
	env.Set(ResultKey, statemachine.String(Error))
	env.Set(ErrorMessageKey, statemachine.String(message))
}

// OutcomeOf reads the result convention. A missing or unknown marker counts
// as a failure.
func OutcomeOf(env statemachine.Environment) Outcome {
	v, ok := env.Get(ResultKey)
	if !ok {
		return Outcome{ErrorMessage: MissingResultMessage}
	}
	marker, _ := v.AsString()
	switch marker {
	case Success:
		return Outcome{Success: true}
	case Error:
		msg := "workflow reported an error"
		if m, ok := env.Get(ErrorMessageKey); ok {
			msg = m.String()
		}
		return Outcome{ErrorMessage: msg}
	}
	return Outcome{ErrorMessage: "workflow reported an unknown result " + v.String()}
}
