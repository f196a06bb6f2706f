package config

import (
	"fmt"
	"time"

	"github.com/jaivgar/workflow-executor/analytics"
	"github.com/jaivgar/workflow-executor/arrowhead"
)

type StorageType string

const (
	STORAGE_TYPE_INMEM  StorageType = "memory"
	STORAGE_TYPE_REDIS  StorageType = "redis"
	STORAGE_TYPE_SQLITE StorageType = "sqlite"
)

type Config struct {
	HttpPort       int
	QueueCapacity  int
	RetryInterval  time.Duration
	ReportTimeout  time.Duration
	StatusInterval time.Duration
	CacheTTL       time.Duration
	DefinitionsDir string
	LogLevel       string
	// HistoryStorage backs lookups of executions that left the cache.
	HistoryStorage  StorageType
	RedisConfig     RedisStorageConfig
	SQLiteConfig    SQLiteStorageConfig
	ArrowheadConfig ArrowheadConfig
	ReporterConfig  analytics.ReporterConfig
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
	Password  string
	PoolSize  int
}

type SQLiteStorageConfig struct {
	Path string
}

type ArrowheadConfig struct {
	Enabled bool
	arrowhead.Config
	// ReadyTimeout bounds the wait for the service registry at startup.
	ReadyTimeout time.Duration
}

// ServiceRegistryEcho is polled until the local cloud answers.
func (a ArrowheadConfig) ServiceRegistryEcho() string {
	return a.ServiceRegistryURL + arrowhead.EchoPath
}

// Validate reports settings that can not work together.
func (c Config) Validate() error {
	if c.HttpPort < 0 || c.HttpPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.HttpPort)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue capacity can not be negative")
	}
	switch c.HistoryStorage {
	case "", STORAGE_TYPE_INMEM, STORAGE_TYPE_REDIS, STORAGE_TYPE_SQLITE:
	default:
		return fmt.Errorf("unknown history storage %q", c.HistoryStorage)
	}
	needsArrowhead := false
	for _, t := range c.ReporterConfig.Types {
		if t == analytics.HTTP_REPORTER && c.ReporterConfig.HTTP.URL == "" {
			needsArrowhead = true
		}
	}
	if needsArrowhead && !c.ArrowheadConfig.Enabled {
		return fmt.Errorf("http reporter without url needs arrowhead to be enabled")
	}
	if c.ArrowheadConfig.Enabled {
		if c.ArrowheadConfig.OrchestratorURL == "" || c.ArrowheadConfig.ServiceRegistryURL == "" {
			return fmt.Errorf("arrowhead needs orchestrator and service registry urls")
		}
		if c.ArrowheadConfig.SystemName == "" {
			return fmt.Errorf("arrowhead needs a system name")
		}
	}
	return nil
}
