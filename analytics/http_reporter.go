package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jaivgar/workflow-executor/arrowhead"
	"github.com/jaivgar/workflow-executor/logger"
	"github.com/jaivgar/workflow-executor/model"
	"github.com/jaivgar/workflow-executor/workflow"
	"go.uber.org/zap"
)

const WMANAGER_RESULT_SERVICE_DEFINITION = "wmanager-operation-results"

type HTTPReporterConfig struct {
	// URL of the results endpoint. When empty the endpoint is discovered
	// through orchestration of ServiceDefinition.
	URL               string
	ServiceDefinition string
	RetryInterval     time.Duration
	MaxRetries        uint64
}

// HTTPReporter posts a FinishWorkflowDTO to the workflow manager.
type HTTPReporter struct {
	conf       HTTPReporterConfig
	client     *arrowhead.Client
	httpClient *http.Client
}

func NewHTTPReporter(conf HTTPReporterConfig, client *arrowhead.Client, httpClient *http.Client) *HTTPReporter {
	if conf.ServiceDefinition == "" {
		conf.ServiceDefinition = WMANAGER_RESULT_SERVICE_DEFINITION
	}
	if conf.RetryInterval == 0 {
		conf.RetryInterval = time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPReporter{conf: conf, client: client, httpClient: httpClient}
}

func (r *HTTPReporter) Report(ctx context.Context, exec workflow.Execution) error {
	dto := model.NewFinishWorkflowDTO(exec)
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(r.conf.RetryInterval), r.conf.MaxRetries), ctx)
	attempt := 0
	op := func() error {
		attempt++
		err := r.send(ctx, dto)
		if err != nil {
			logger.Warn("reporting workflow result failed", zap.Int64("id", exec.ID), zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}
	return backoff.Retry(op, b)
}

func (r *HTTPReporter) send(ctx context.Context, dto model.FinishWorkflowDTO) error {
	if r.conf.URL == "" {
		if r.client == nil {
			return backoff.Permanent(fmt.Errorf("no results endpoint configured"))
		}
		res, err := r.client.Orchestrate(ctx, r.conf.ServiceDefinition)
		if err != nil {
			return err
		}
		return r.client.Consume(ctx, res, arrowhead.ConsumeRequest{Method: http.MethodPost, Payload: dto}, nil)
	}
	body, err := json.Marshal(dto)
	if err != nil {
		return backoff.Permanent(err)
	}
	if _, err := url.Parse(r.conf.URL); err != nil {
		return backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.conf.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("results endpoint returned %d", resp.StatusCode)
	}
	return nil
}
