package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jaivgar/workflow-executor/analytics"
	"github.com/jaivgar/workflow-executor/arrowhead"
	"github.com/jaivgar/workflow-executor/cache"
	"github.com/jaivgar/workflow-executor/config"
	"github.com/jaivgar/workflow-executor/definition"
	"github.com/jaivgar/workflow-executor/logger"
	"github.com/jaivgar/workflow-executor/persistence"
	"github.com/jaivgar/workflow-executor/persistence/memory"
	"github.com/jaivgar/workflow-executor/persistence/redis"
	"github.com/jaivgar/workflow-executor/persistence/sqlite"
	"github.com/jaivgar/workflow-executor/rest"
	"github.com/jaivgar/workflow-executor/service"
	"github.com/jaivgar/workflow-executor/util"
	"github.com/jaivgar/workflow-executor/workflows"
	"go.uber.org/zap"
)

const (
	defaultStatusInterval = time.Minute
	defaultReadyTimeout   = 2 * time.Minute
	registrationTimeout   = 10 * time.Second
)

// provided are the services this system registers in the local cloud.
var provided = []struct {
	definition string
	uri        string
	method     string
	metadata   map[string]string
}{
	{workflows.ProvideWorkflowsType, rest.WorkflowsURI, http.MethodGet, nil},
	{workflows.ProvideWorkflowsInExecution, rest.InExecutionURI, http.MethodGet, nil},
	{workflows.ExecuteWorkflow, rest.ExecuteURI, http.MethodPost, map[string]string{"request-object": "workflow"}},
}

type Agent struct {
	Config                   config.Config
	client                   *arrowhead.Client
	stores                   map[config.StorageType]persistence.ExecutionStore
	reporter                 analytics.Reporter
	executionCache           *cache.ExecutionCache
	workflowExecutionService *service.WorkflowExecutionService
	httpServer               *rest.Server
	statusWorker             *util.TickWorker
	cancel                   context.CancelFunc
	shutdown                 bool
	shutdowns                chan struct{}
	shutdownLock             sync.Mutex
	wg                       sync.WaitGroup
}

func New(conf config.Config) (*Agent, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		Config:    conf,
		stores:    make(map[config.StorageType]persistence.ExecutionStore),
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupLogger,
		a.setupArrowhead,
		a.setupStores,
		a.setupReporter,
		a.setupCache,
		a.setupWorkflowExecutionService,
		a.setupHttpServer,
		a.setupStatusWorker,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			a.closeStores()
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupLogger() error {
	if a.Config.LogLevel == "" {
		return nil
	}
	return logger.SetLevel(a.Config.LogLevel)
}

func (a *Agent) setupArrowhead() error {
	conf := a.Config.ArrowheadConfig
	if !conf.Enabled {
		return nil
	}
	if conf.Port == 0 {
		conf.Port = a.Config.HttpPort
	}
	a.client = arrowhead.NewClient(conf.Config, nil)
	timeout := conf.ReadyTimeout
	if timeout == 0 {
		timeout = defaultReadyTimeout
	}
	return a.client.WaitReady(context.Background(), conf.ServiceRegistryEcho(), time.Second, timeout)
}

func (a *Agent) storageUsed(st config.StorageType, rt analytics.ReporterType) bool {
	if a.Config.HistoryStorage == st {
		return true
	}
	for _, t := range a.Config.ReporterConfig.Types {
		if t == rt {
			return true
		}
	}
	return false
}

func (a *Agent) setupStores() error {
	if a.storageUsed(config.STORAGE_TYPE_REDIS, analytics.REDIS_REPORTER) {
		rc := a.Config.RedisConfig
		a.stores[config.STORAGE_TYPE_REDIS] = redis.NewRedisExecutionDao(redis.Config{
			Addrs:     rc.Addrs,
			Namespace: rc.Namespace,
			Password:  rc.Password,
			PoolSize:  rc.PoolSize,
		})
	}
	if a.storageUsed(config.STORAGE_TYPE_SQLITE, analytics.SQLITE_REPORTER) {
		store, err := sqlite.Open(a.Config.SQLiteConfig.Path)
		if err != nil {
			return err
		}
		a.stores[config.STORAGE_TYPE_SQLITE] = store
	}
	return nil
}

func (a *Agent) setupReporter() error {
	deps := analytics.Dependencies{
		Client: a.client,
		Stores: make(map[analytics.ReporterType]persistence.ExecutionStore),
	}
	if store, ok := a.stores[config.STORAGE_TYPE_REDIS]; ok {
		deps.Stores[analytics.REDIS_REPORTER] = store
	}
	if store, ok := a.stores[config.STORAGE_TYPE_SQLITE]; ok {
		deps.Stores[analytics.SQLITE_REPORTER] = store
	}
	var err error
	a.reporter, err = analytics.NewReporter(a.Config.ReporterConfig, deps)
	return err
}

func (a *Agent) setupCache() error {
	a.executionCache = cache.NewExecutionCache(a.Config.CacheTTL)
	return nil
}

func (a *Agent) setupWorkflowExecutionService() error {
	opts := []service.Option{service.WithFinishedStore(a.executionCache)}
	if a.Config.RetryInterval > 0 {
		opts = append(opts, service.WithRetryInterval(a.Config.RetryInterval))
	}
	if a.Config.ReportTimeout > 0 {
		opts = append(opts, service.WithReportTimeout(a.Config.ReportTimeout))
	}
	if store, ok := a.stores[a.Config.HistoryStorage]; ok {
		opts = append(opts, service.WithHistory(store))
	}
	a.workflowExecutionService = service.NewWorkflowExecutionService(memory.NewQueue(a.Config.QueueCapacity), a.reporter, opts...)

	templates, err := workflows.BuiltIn(a.client)
	if err != nil {
		return err
	}
	if a.Config.DefinitionsDir != "" {
		loaded, err := definition.NewLoader(a.client).LoadDir(a.Config.DefinitionsDir)
		if err != nil {
			return err
		}
		templates = append(templates, loaded...)
	}
	for _, w := range templates {
		if err := a.workflowExecutionService.Register(w); err != nil {
			return err
		}
		logger.Info("workflow registered", zap.String("workflow", w.Name))
	}
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.workflowExecutionService)
	return err
}

func (a *Agent) setupStatusWorker() error {
	interval := a.Config.StatusInterval
	if interval == 0 {
		interval = defaultStatusInterval
	}
	a.statusWorker = util.NewTickWorker("status", interval, func() {
		logger.Info("workflow executor status",
			zap.Int("queueLength", a.workflowExecutionService.QueueLength()),
			zap.Int("finishedCached", a.executionCache.Len()))
	}, &a.wg)
	return nil
}

func (a *Agent) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if err := a.workflowExecutionService.Start(ctx); err != nil {
		return err
	}
	a.statusWorker.Start()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server failed", zap.Error(err))
			go a.Shutdown()
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		select {
		case err := <-a.workflowExecutionService.Fatal():
			logger.Error("workflow executor failed, shutting down", zap.Error(err))
			go a.Shutdown()
		case <-a.shutdowns:
		}
	}()

	return a.registerServices()
}

func (a *Agent) registerServices() error {
	if a.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), registrationTimeout)
	defer cancel()
	for _, p := range provided {
		if _, err := a.client.Register(ctx, p.definition, p.uri, p.method, p.metadata); err != nil {
			return fmt.Errorf("could not register service %s: %w", p.definition, err)
		}
	}
	return nil
}

func (a *Agent) unregisterServices() error {
	if a.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), registrationTimeout)
	defer cancel()
	var errs []error
	for _, p := range provided {
		errs = append(errs, a.client.Unregister(ctx, p.definition))
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("services not unregistered", zap.Error(err))
	}
	return nil
}

// Done is closed once the agent has started shutting down.
func (a *Agent) Done() <-chan struct{} {
	return a.shutdowns
}

func (a *Agent) closeStores() {
	for st, store := range a.stores {
		if err := store.Close(); err != nil {
			logger.Error("error closing store", zap.String("storage", string(st)), zap.Error(err))
		}
	}
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.unregisterServices,
		a.httpServer.Stop,
		a.workflowExecutionService.Stop,
		func() error {
			a.statusWorker.Stop()
			if a.cancel != nil {
				a.cancel()
			}
			return nil
		},
	}
	var errs []error
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	a.closeStores()
	_ = logger.Sync()
	return errors.Join(errs...)
}
