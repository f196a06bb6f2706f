package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaivgar/workflow-executor/arrowhead"
	"github.com/jaivgar/workflow-executor/persistence"
	"github.com/jaivgar/workflow-executor/workflow"
)

type ReporterType string

const (
	LOG_FILE_REPORTER ReporterType = "LOG_FILE"
	HTTP_REPORTER     ReporterType = "HTTP"
	REDIS_REPORTER    ReporterType = "REDIS"
	SQLITE_REPORTER   ReporterType = "SQLITE"
	NOOP_REPORTER     ReporterType = "NOOP"
)

// Reporter receives the outcome of every finished execution. Errors are
// informative only, the outcome itself is final.
type Reporter interface {
	Report(ctx context.Context, exec workflow.Execution) error
}

// ReporterConfig selects and configures the reporters to build.
type ReporterConfig struct {
	Types    []ReporterType
	FileName string
	HTTP     HTTPReporterConfig
}

// Dependencies are the collaborators some reporters need. Store is used by
// the REDIS and SQLITE reporters, Client by HTTP when the results endpoint is
// discovered.
type Dependencies struct {
	Client *arrowhead.Client
	Stores map[ReporterType]persistence.ExecutionStore
}

// NewReporter builds one reporter per configured type and fans out to all of
// them. No type means NOOP.
func NewReporter(conf ReporterConfig, deps Dependencies) (Reporter, error) {
	var reporters []Reporter
	for _, t := range conf.Types {
		switch t {
		case LOG_FILE_REPORTER:
			r, err := NewLogFileReporter(conf.FileName)
			if err != nil {
				return nil, err
			}
			reporters = append(reporters, r)
		case HTTP_REPORTER:
			reporters = append(reporters, NewHTTPReporter(conf.HTTP, deps.Client, nil))
		case REDIS_REPORTER, SQLITE_REPORTER:
			store, ok := deps.Stores[t]
			if !ok {
				return nil, fmt.Errorf("reporter %s has no execution store", t)
			}
			reporters = append(reporters, NewStoreReporter(store))
		case NOOP_REPORTER:
		default:
			return nil, fmt.Errorf("unknown reporter type %q", t)
		}
	}
	switch len(reporters) {
	case 0:
		return Noop{}, nil
	case 1:
		return reporters[0], nil
	}
	return Multi(reporters), nil
}

type Noop struct{}

func (Noop) Report(context.Context, workflow.Execution) error {
	return nil
}

// Multi reports to every reporter and joins their errors.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, exec workflow.Execution) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, exec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StoreReporter saves outcomes in an execution store.
type StoreReporter struct {
	store persistence.ExecutionStore
}

func NewStoreReporter(store persistence.ExecutionStore) *StoreReporter {
	return &StoreReporter{store: store}
}

func (s *StoreReporter) Report(ctx context.Context, exec workflow.Execution) error {
	return s.store.Save(ctx, exec)
}
