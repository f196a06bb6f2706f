package action

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jaivgar/workflow-executor/arrowhead"
	"github.com/jaivgar/workflow-executor/logger"
	"github.com/jaivgar/workflow-executor/statemachine"
	"github.com/jaivgar/workflow-executor/util"
	"github.com/jaivgar/workflow-executor/workflow"
	"go.uber.org/zap"
)

const defaultServiceTimeout = 30 * time.Second

var _ statemachine.Action = new(ServiceCall)

// ServiceCall consumes a service found through orchestration. The reply is
// stored under ResultKey and OnSuccess is emitted; any failure stores its
// message under the error message key and emits OnFailure instead.
type ServiceCall struct {
	Client     *arrowhead.Client
	Definition string
	Method     string
	Path       string
	// Query and Payload values may hold {$.path} tokens.
	Query   map[string]string
	Payload map[string]any
	// PayloadKey names an environment variable sent as body. It wins over
	// Payload.
	PayloadKey string
	ResultKey  string
	OnSuccess  string
	OnFailure  string
	Timeout    time.Duration
}

func (s *ServiceCall) Validate() error {
	if s.Client == nil {
		return fmt.Errorf("service call %s has no arrowhead client", s.Definition)
	}
	if s.Definition == "" {
		return fmt.Errorf("service call needs a service definition")
	}
	if s.OnFailure == "" {
		return fmt.Errorf("service call %s needs a failure event", s.Definition)
	}
	return nil
}

func (s *ServiceCall) Trigger(env statemachine.Environment, events statemachine.Events) {
	out, err := s.call(env)
	if err != nil {
		logger.Warn("service call failed", zap.String("service", s.Definition), zap.Error(err))
		env.Set(workflow.ErrorMessageKey, statemachine.String(err.Error()))
		events.Emit(s.OnFailure)
		return
	}
	logger.Debug("service call succeeded", zap.String("service", s.Definition), zap.Any("reply", out))
	if s.ResultKey != "" && out != nil {
		env.Set(s.ResultKey, statemachine.ValueOf(out))
	}
	if s.OnSuccess != "" {
		events.Emit(s.OnSuccess)
	}
}

func (s *ServiceCall) call(env statemachine.Environment) (any, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	timeout := s.Timeout
	if timeout == 0 {
		timeout = defaultServiceTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := s.Client.Orchestrate(ctx, s.Definition)
	if err != nil {
		return nil, err
	}
	data := env.Plain()
	req := arrowhead.ConsumeRequest{Method: s.Method, Path: s.Path}
	if len(s.Query) > 0 {
		req.Query = url.Values{}
		for k, v := range s.Query {
			req.Query.Set(k, fmt.Sprintf("%v", util.ResolveString(data, v)))
		}
	}
	switch {
	case s.PayloadKey != "":
		v, ok := env.Get(s.PayloadKey)
		if !ok {
			return nil, fmt.Errorf("payload variable %q is not set", s.PayloadKey)
		}
		req.Payload = v.Interface()
	case s.Payload != nil:
		req.Payload = util.ResolveParams(data, s.Payload)
	}
	var out any
	if err := s.Client.Consume(ctx, res, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}
