package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jaivgar/workflow-executor/analytics"
	"github.com/jaivgar/workflow-executor/arrowhead"
	"github.com/jaivgar/workflow-executor/config"
	"github.com/jaivgar/workflow-executor/workflows"
	"github.com/stretchr/testify/require"
)

func baseConfig(t *testing.T) config.Config {
	return config.Config{
		CacheTTL:       time.Minute,
		StatusInterval: 10 * time.Millisecond,
		RetryInterval:  time.Millisecond,
		LogLevel:       "debug",
	}
}

func templateNames(a *Agent) []string {
	var names []string
	for _, w := range a.workflowExecutionService.ListTemplates() {
		names = append(names, w.Name)
	}
	return names
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	conf := baseConfig(t)
	conf.HistoryStorage = "cassandra"
	_, err := New(conf)
	require.Error(t, err)
}

func TestAgentRunsWorkflowsIntoHistory(t *testing.T) {
	conf := baseConfig(t)
	conf.DefinitionsDir = filepath.Join("..", "definition", "testdata")
	conf.HistoryStorage = config.STORAGE_TYPE_SQLITE
	conf.SQLiteConfig.Path = filepath.Join(t.TempDir(), "executions.db")
	conf.ReporterConfig.Types = []analytics.ReporterType{analytics.SQLITE_REPORTER}

	a, err := New(conf)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"approve", "counter", workflows.EchoWorkflowName}, templateNames(a))
	require.NoError(t, a.Start())

	queued, err := a.workflowExecutionService.Submit("approve", map[string]any{"approved": true, "user": "ann"})
	require.NoError(t, err)
	store := a.stores[config.STORAGE_TYPE_SQLITE]
	require.Eventually(t, func() bool {
		exec, err := store.Get(context.Background(), queued.ID())
		return err == nil && exec.Success
	}, 5*time.Second, 5*time.Millisecond)

	history, err := a.workflowExecutionService.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)

	require.NoError(t, a.Shutdown())
	require.NoError(t, a.Shutdown())
	select {
	case <-a.Done():
	default:
		t.Fatal("agent not marked as shut down")
	}
	_, err = a.workflowExecutionService.Submit("approve", nil)
	require.Error(t, err)
}

// registry fakes the service registry and orchestrator of a local cloud.
type registry struct {
	mu           sync.Mutex
	registered   []string
	unregistered []string
}

func (r *registry) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/serviceregistry/echo", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("Got it!"))
	})
	mux.HandleFunc("/serviceregistry/register", func(w http.ResponseWriter, req *http.Request) {
		var body arrowhead.ServiceRegistryRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		r.mu.Lock()
		r.registered = append(r.registered, body.ServiceDefinition)
		r.mu.Unlock()
		json.NewEncoder(w).Encode(arrowhead.ServiceRegistryResponse{
			ServiceDefinition: arrowhead.ServiceDefinition{ServiceDefinition: body.ServiceDefinition},
			ServiceURI:        body.ServiceURI,
		})
	})
	mux.HandleFunc("/serviceregistry/unregister", func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.unregistered = append(r.unregistered, req.URL.Query().Get("service_definition"))
		r.mu.Unlock()
	})
	return mux
}

func TestAgentRegistersServices(t *testing.T) {
	reg := &registry{}
	core := httptest.NewServer(reg.handler(t))
	t.Cleanup(core.Close)

	conf := baseConfig(t)
	conf.ArrowheadConfig = config.ArrowheadConfig{
		Enabled:      true,
		ReadyTimeout: time.Second,
		Config: arrowhead.Config{
			OrchestratorURL:    core.URL,
			ServiceRegistryURL: core.URL,
			SystemName:         "workflow-executor",
			Address:            "127.0.0.1",
		},
	}
	a, err := New(conf)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{workflows.EchoWorkflowName, workflows.TestWorkflowName, workflows.MillingWorkflowName}, templateNames(a))

	require.NoError(t, a.Start())
	want := []string{workflows.ProvideWorkflowsType, workflows.ProvideWorkflowsInExecution, workflows.ExecuteWorkflow}
	reg.mu.Lock()
	require.Equal(t, want, reg.registered)
	reg.mu.Unlock()

	require.NoError(t, a.Shutdown())
	reg.mu.Lock()
	defer reg.mu.Unlock()
	require.Len(t, reg.unregistered, 2*len(want))
	require.Equal(t, want, reg.unregistered[len(want):])
}
