// Package workflows holds the workflow templates compiled into the executor.
package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/jaivgar/workflow-executor/arrowhead"
	"github.com/jaivgar/workflow-executor/statemachine"
	"github.com/jaivgar/workflow-executor/workflow"
)

const serviceTimeout = 10 * time.Second

// BuiltIn returns every compiled-in template. Templates that consume
// arrowhead services are skipped when client is nil.
func BuiltIn(client *arrowhead.Client) ([]*workflow.Workflow, error) {
	echo, err := Echo()
	if err != nil {
		return nil, err
	}
	all := []*workflow.Workflow{echo}
	if client == nil {
		return all, nil
	}
	test, err := TestWorkflow(client)
	if err != nil {
		return nil, err
	}
	mill, err := Milling(client)
	if err != nil {
		return nil, err
	}
	return append(all, test, mill), nil
}

// services maps a service definition to the provider the orchestrator
// returned for it. It is kept in the environment as an opaque value.
type services map[string]*arrowhead.OrchestrationResult

func orchestrateAll(client *arrowhead.Client, definitions []string) (services, error) {
	ctx, cancel := context.WithTimeout(context.Background(), serviceTimeout)
	defer cancel()
	found := make(services, len(definitions))
	for _, def := range definitions {
		res, err := client.Orchestrate(ctx, def)
		if err != nil {
			return nil, err
		}
		found[def] = res
	}
	return found, nil
}

func servicesIn(env statemachine.Environment, key string) (services, error) {
	v, ok := env.Get(key)
	if !ok {
		return nil, fmt.Errorf("no services found in environment")
	}
	raw, _ := v.AsAny()
	found, ok := raw.(services)
	if !ok {
		return nil, fmt.Errorf("environment variable %q does not hold services", key)
	}
	return found, nil
}

func consume(client *arrowhead.Client, res *arrowhead.OrchestrationResult, req arrowhead.ConsumeRequest, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), serviceTimeout)
	defer cancel()
	return client.Consume(ctx, res, req, out)
}
