package arrowhead

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func hostPort(t *testing.T, srv *httptest.Server) (string, int) {
	t.Helper()
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p
}

func orchestrator(t *testing.T, results ...OrchestrationResult) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, orchestrationPath, r.URL.Path)
		var form OrchestrationForm
		require.NoError(t, json.NewDecoder(r.Body).Decode(&form))
		require.True(t, form.OrchestrationFlags["matchmaking"])
		require.True(t, form.OrchestrationFlags["overrideStore"])
		require.Equal(t, []string{INTERFACE_INSECURE}, form.RequestedService.InterfaceRequirements)
		json.NewEncoder(w).Encode(OrchestrationResponse{Response: results})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func result(definition, iface string) OrchestrationResult {
	return OrchestrationResult{
		Provider:   System{SystemName: "provider", Address: "127.0.0.1", Port: 1},
		Service:    ServiceDefinition{ServiceDefinition: definition},
		ServiceURI: "/sensor",
		Interfaces: []ServiceInterface{{InterfaceName: iface}},
	}
}

func TestOrchestrate(t *testing.T) {
	for scenario, tc := range map[string]struct {
		results []OrchestrationResult
		err     error
	}{
		"first match returned":    {results: []OrchestrationResult{result("sensorvalue", INTERFACE_INSECURE), result("other", INTERFACE_INSECURE)}},
		"no provider":             {err: ErrOrchestration},
		"definition mismatch":     {results: []OrchestrationResult{result("other", INTERFACE_INSECURE)}, err: ErrInvalidResult},
		"interface mismatch":      {results: []OrchestrationResult{result("sensorvalue", INTERFACE_SECURE)}, err: ErrInvalidResult},
		"definition ignores case": {results: []OrchestrationResult{result("SensorValue", INTERFACE_INSECURE)}},
	} {
		t.Run(scenario, func(t *testing.T) {
			srv := orchestrator(t, tc.results...)
			c := NewClient(Config{OrchestratorURL: srv.URL, SystemName: "executor"}, nil)
			res, err := c.Orchestrate(context.Background(), "sensorvalue")
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "/sensor", res.ServiceURI)
		})
	}
}

func TestConsume(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/actuator/set", r.URL.Path)
		require.Equal(t, "secret", r.URL.Query().Get("token"))
		require.Equal(t, "m1", r.URL.Query().Get("name"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]any{"echo": body["value"]})
	}))
	defer provider.Close()
	host, port := hostPort(t, provider)

	c := NewClient(Config{}, provider.Client())
	res := &OrchestrationResult{
		Provider:            System{Address: host, Port: port},
		ServiceURI:          "/actuator",
		AuthorizationTokens: map[string]string{INTERFACE_INSECURE: "secret"},
	}
	var out map[string]any
	err := c.Consume(context.Background(), res, ConsumeRequest{
		Method:  http.MethodPost,
		Path:    "/set",
		Query:   map[string][]string{"name": {"m1"}},
		Payload: map[string]any{"value": true},
	}, &out)
	require.NoError(t, err)
	require.Equal(t, true, out["echo"])
}

func TestConsumeErrorStatus(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer provider.Close()
	host, port := hostPort(t, provider)
	c := NewClient(Config{}, nil)
	err := c.Consume(context.Background(), &OrchestrationResult{Provider: System{Address: host, Port: port}}, ConsumeRequest{}, nil)
	require.ErrorIs(t, err, ErrUnexpectedReply)
}

func TestRegisterReplacesPreviousRegistration(t *testing.T) {
	var unregistered, registered atomic.Int32
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case unregisterPath:
			unregistered.Add(1)
			require.Equal(t, "execute-workflow", r.URL.Query().Get("service_definition"))
			w.WriteHeader(http.StatusNotFound)
		case registerPath:
			registered.Add(1)
			var req ServiceRegistryRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "POST", req.Metadata[HTTP_METHOD])
			require.Equal(t, "workflow", req.Metadata["request-object"])
			require.Equal(t, "NOT_SECURE", req.Secure)
			json.NewEncoder(w).Encode(ServiceRegistryResponse{
				ServiceDefinition: ServiceDefinition{ServiceDefinition: req.ServiceDefinition},
				Provider:          System{SystemName: req.ProviderSystem.SystemName},
			})
		}
	}))
	defer registry.Close()

	c := NewClient(Config{ServiceRegistryURL: registry.URL, SystemName: "executor", Address: "localhost", Port: 8080}, nil)
	res, err := c.Register(context.Background(), "execute-workflow", "/workflow-executor/execute", http.MethodPost,
		map[string]string{"request-object": "workflow"})
	require.NoError(t, err)
	require.Equal(t, "execute-workflow", res.ServiceDefinition.ServiceDefinition)
	require.Equal(t, int32(1), unregistered.Load())
	require.Equal(t, int32(1), registered.Load())
}

func TestWaitReady(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("Got it!"))
	}))
	defer srv.Close()

	c := NewClient(Config{}, nil)
	require.NoError(t, c.WaitReady(context.Background(), srv.URL+EchoPath, time.Millisecond, time.Second))
	require.GreaterOrEqual(t, calls.Load(), int32(3))

	srv.Close()
	require.Error(t, c.WaitReady(context.Background(), srv.URL+EchoPath, time.Millisecond, 20*time.Millisecond))
}
