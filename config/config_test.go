package config

import (
	"testing"

	"github.com/jaivgar/workflow-executor/analytics"
	"github.com/jaivgar/workflow-executor/arrowhead"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	arrowheadOn := ArrowheadConfig{Enabled: true, Config: arrowhead.Config{
		OrchestratorURL:    "http://localhost:8441",
		ServiceRegistryURL: "http://localhost:8443",
		SystemName:         "workflow-executor",
	}}
	for scenario, tc := range map[string]struct {
		conf  Config
		valid bool
	}{
		"defaults":               {conf: Config{HttpPort: 8080}, valid: true},
		"bad port":               {conf: Config{HttpPort: 70000}},
		"negative capacity":      {conf: Config{QueueCapacity: -1}},
		"unknown history":        {conf: Config{HistoryStorage: "cassandra"}},
		"sqlite history":         {conf: Config{HistoryStorage: STORAGE_TYPE_SQLITE}, valid: true},
		"arrowhead without urls": {conf: Config{ArrowheadConfig: ArrowheadConfig{Enabled: true}}},
		"arrowhead complete":     {conf: Config{ArrowheadConfig: arrowheadOn}, valid: true},
		"http reporter discovers manager": {conf: Config{
			ReporterConfig: analytics.ReporterConfig{Types: []analytics.ReporterType{analytics.HTTP_REPORTER}},
		}},
		"http reporter with url": {conf: Config{
			ReporterConfig: analytics.ReporterConfig{
				Types: []analytics.ReporterType{analytics.HTTP_REPORTER},
				HTTP:  analytics.HTTPReporterConfig{URL: "http://manager/results"},
			},
		}, valid: true},
	} {
		t.Run(scenario, func(t *testing.T) {
			err := tc.conf.Validate()
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestServiceRegistryEcho(t *testing.T) {
	a := ArrowheadConfig{Config: arrowhead.Config{ServiceRegistryURL: "http://localhost:8443"}}
	require.Equal(t, "http://localhost:8443/serviceregistry/echo", a.ServiceRegistryEcho())
}
