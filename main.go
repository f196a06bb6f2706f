package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jaivgar/workflow-executor/agent"
	"github.com/jaivgar/workflow-executor/analytics"
	"github.com/jaivgar/workflow-executor/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().Int("queue-capacity", 0, "maximum number of queued workflows, 0 for unbounded")
	cmd.Flags().Duration("retry-interval", 0, "pause before updating a workflow that fired no transition")
	cmd.Flags().Duration("report-timeout", 0, "timeout for reporting a finished workflow")
	cmd.Flags().Duration("status-interval", 0, "interval of the status log")
	cmd.Flags().Duration("cache-ttl", 0, "how long finished workflows stay in memory")
	cmd.Flags().String("definitions-dir", "", "directory of yaml or json workflow definitions")
	cmd.Flags().String("log-level", "info", "log level")
	cmd.Flags().String("history-storage", "memory", "storage of finished workflows: memory, redis or sqlite")
	cmd.Flags().String("reporters", "LOG_FILE", "comma separated list of result reporters: LOG_FILE, HTTP, REDIS, SQLITE, NOOP")
	cmd.Flags().String("report-file", "workflow-results.log", "file of the LOG_FILE reporter")
	cmd.Flags().String("report-url", "", "results endpoint of the HTTP reporter, discovered through orchestration when empty")
	cmd.Flags().Uint64("report-retries", 3, "retries of the HTTP reporter")
	cmd.Flags().Duration("report-retry-interval", 0, "pause between retries of the HTTP reporter")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("redis-password", "", "redis password")
	cmd.Flags().Int("redis-pool-size", 0, "redis connection pool size")
	cmd.Flags().String("namespace", "workflow-executor", "namespace used in redis")
	cmd.Flags().String("sqlite-path", "workflow-executor.db", "sqlite database file")
	cmd.Flags().Bool("arrowhead-enabled", false, "register in and consume services of an arrowhead local cloud")
	cmd.Flags().String("orchestrator-url", "http://localhost:8441", "base url of the orchestrator")
	cmd.Flags().String("service-registry-url", "http://localhost:8443", "base url of the service registry")
	cmd.Flags().String("system-name", "workflow-executor", "system name used in the local cloud")
	cmd.Flags().String("address", "localhost", "address this system is reachable at")
	cmd.Flags().Int("port", 0, "port registered in the local cloud, http port when 0")
	cmd.Flags().Bool("secure", false, "use the secure arrowhead interface")
	cmd.Flags().Duration("arrowhead-timeout", 0, "http timeout of arrowhead calls")
	cmd.Flags().Duration("ready-timeout", 0, "maximum wait for the service registry at startup")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err = viper.ReadInConfig(); err != nil {
			// it's ok if config file doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}
	viper.SetEnvPrefix("WEXECUTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.QueueCapacity = viper.GetInt("queue-capacity")
	c.cfg.RetryInterval = viper.GetDuration("retry-interval")
	c.cfg.ReportTimeout = viper.GetDuration("report-timeout")
	c.cfg.StatusInterval = viper.GetDuration("status-interval")
	c.cfg.CacheTTL = viper.GetDuration("cache-ttl")
	c.cfg.DefinitionsDir = viper.GetString("definitions-dir")
	c.cfg.LogLevel = viper.GetString("log-level")
	c.cfg.HistoryStorage = config.StorageType(viper.GetString("history-storage"))

	c.cfg.ReporterConfig.Types = nil
	for _, t := range strings.Split(viper.GetString("reporters"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			c.cfg.ReporterConfig.Types = append(c.cfg.ReporterConfig.Types, analytics.ReporterType(strings.ToUpper(t)))
		}
	}
	c.cfg.ReporterConfig.FileName = viper.GetString("report-file")
	c.cfg.ReporterConfig.HTTP.URL = viper.GetString("report-url")
	c.cfg.ReporterConfig.HTTP.MaxRetries = viper.GetUint64("report-retries")
	c.cfg.ReporterConfig.HTTP.RetryInterval = viper.GetDuration("report-retry-interval")

	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Password = viper.GetString("redis-password")
	c.cfg.RedisConfig.PoolSize = viper.GetInt("redis-pool-size")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.SQLiteConfig.Path = viper.GetString("sqlite-path")

	c.cfg.ArrowheadConfig.Enabled = viper.GetBool("arrowhead-enabled")
	c.cfg.ArrowheadConfig.OrchestratorURL = viper.GetString("orchestrator-url")
	c.cfg.ArrowheadConfig.ServiceRegistryURL = viper.GetString("service-registry-url")
	c.cfg.ArrowheadConfig.SystemName = viper.GetString("system-name")
	c.cfg.ArrowheadConfig.Address = viper.GetString("address")
	c.cfg.ArrowheadConfig.Port = viper.GetInt("port")
	c.cfg.ArrowheadConfig.Secure = viper.GetBool("secure")
	c.cfg.ArrowheadConfig.Timeout = viper.GetDuration("arrowhead-timeout")
	c.cfg.ArrowheadConfig.ReadyTimeout = viper.GetDuration("ready-timeout")
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		return err
	}
	if err = agent.Start(); err != nil {
		_ = agent.Shutdown()
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-agent.Done():
	}
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "workflow-executor",
		Short:   "Runs workflows one at a time in arrival order",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
