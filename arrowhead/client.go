package arrowhead

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jaivgar/workflow-executor/logger"
	"go.uber.org/zap"
)

const (
	INTERFACE_SECURE   = "HTTP-SECURE-JSON"
	INTERFACE_INSECURE = "HTTP-INSECURE-JSON"
	HTTP_METHOD        = "http-method"

	orchestrationPath = "/orchestrator/orchestration"
	registerPath      = "/serviceregistry/register"
	unregisterPath    = "/serviceregistry/unregister"
	EchoPath          = "/serviceregistry/echo"
)

var (
	ErrOrchestration   = errors.New("unsuccessful orchestration")
	ErrInvalidResult   = errors.New("invalid orchestration result")
	ErrUnexpectedReply = errors.New("unexpected reply")
)

type Config struct {
	OrchestratorURL    string
	ServiceRegistryURL string
	SystemName         string
	Address            string
	Port               int
	Secure             bool
	Timeout            time.Duration
}

// Client talks to the orchestrator and the service registry and consumes the
// services they point to.
type Client struct {
	conf       Config
	httpClient *http.Client
}

func NewClient(conf Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := conf.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{conf: conf, httpClient: httpClient}
}

func (c *Client) Interface() string {
	if c.conf.Secure {
		return INTERFACE_SECURE
	}
	return INTERFACE_INSECURE
}

func (c *Client) securityType() string {
	if c.conf.Secure {
		return "CERTIFICATE"
	}
	return "NOT_SECURE"
}

func (c *Client) system() SystemRequest {
	return SystemRequest{
		SystemName: c.conf.SystemName,
		Address:    c.conf.Address,
		Port:       c.conf.Port,
	}
}

// Orchestrate asks the orchestrator for a provider of serviceDefinition and
// returns the first match.
func (c *Client) Orchestrate(ctx context.Context, serviceDefinition string) (*OrchestrationResult, error) {
	form := OrchestrationForm{
		RequesterSystem: c.system(),
		RequestedService: ServiceQueryForm{
			ServiceDefinitionRequirement: serviceDefinition,
			InterfaceRequirements:        []string{c.Interface()},
		},
		OrchestrationFlags: map[string]bool{
			"matchmaking":   true,
			"overrideStore": true,
		},
	}
	var res OrchestrationResponse
	if err := c.do(ctx, http.MethodPost, c.conf.OrchestratorURL+orchestrationPath, form, &res); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOrchestration, serviceDefinition, err)
	}
	if len(res.Response) == 0 {
		logger.Error("no provider found during the orchestration", zap.String("service", serviceDefinition))
		return nil, fmt.Errorf("%w: %s: no provider found", ErrOrchestration, serviceDefinition)
	}
	result := res.Response[0]
	if err := c.validate(&result, serviceDefinition); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) validate(result *OrchestrationResult, serviceDefinition string) error {
	if !strings.EqualFold(result.Service.ServiceDefinition, serviceDefinition) {
		return fmt.Errorf("%w: requested and orchestrated service definition do not match", ErrInvalidResult)
	}
	for _, i := range result.Interfaces {
		if strings.EqualFold(i.InterfaceName, c.Interface()) {
			return nil
		}
	}
	return fmt.Errorf("%w: requested and orchestrated interface do not match", ErrInvalidResult)
}

// ConsumeRequest describes one call to an orchestrated service. Path is
// appended to the service uri and Query is sent as url parameters.
type ConsumeRequest struct {
	Method  string
	Path    string
	Query   url.Values
	Payload any
}

// Consume calls the provider of result and decodes the JSON reply into out
// when out is not nil.
func (c *Client) Consume(ctx context.Context, result *OrchestrationResult, req ConsumeRequest, out any) error {
	scheme := "http"
	if c.conf.Secure {
		scheme = "https"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   result.Provider.Address + ":" + strconv.Itoa(result.Provider.Port),
		Path:   result.ServiceURI + req.Path,
	}
	query := url.Values{}
	for k, v := range req.Query {
		query[k] = append([]string(nil), v...)
	}
	if token := result.AuthorizationTokens[c.Interface()]; token != "" {
		query.Set("token", token)
	}
	u.RawQuery = query.Encode()
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return c.do(ctx, method, u.String(), req.Payload, out)
}

// Register registers one service of this system, replacing a previous
// registration with the same definition.
func (c *Client) Register(ctx context.Context, serviceDefinition, serviceURI, method string, metadata map[string]string) (*ServiceRegistryResponse, error) {
	if err := c.Unregister(ctx, serviceDefinition); err != nil {
		logger.Debug("no previous registration removed", zap.String("service", serviceDefinition), zap.Error(err))
	}
	meta := map[string]string{HTTP_METHOD: method}
	for k, v := range metadata {
		meta[k] = v
	}
	req := ServiceRegistryRequest{
		ServiceDefinition: serviceDefinition,
		ProviderSystem:    c.system(),
		ServiceURI:        serviceURI,
		Secure:            c.securityType(),
		Metadata:          meta,
		Interfaces:        []string{c.Interface()},
	}
	var res ServiceRegistryResponse
	if err := c.do(ctx, http.MethodPost, c.conf.ServiceRegistryURL+registerPath, req, &res); err != nil {
		return nil, fmt.Errorf("register %s: %w", serviceDefinition, err)
	}
	logger.Info("service registered", zap.String("system", res.Provider.SystemName),
		zap.String("service", res.ServiceDefinition.ServiceDefinition))
	return &res, nil
}

func (c *Client) Unregister(ctx context.Context, serviceDefinition string) error {
	query := url.Values{}
	query.Set("service_definition", serviceDefinition)
	query.Set("system_name", c.conf.SystemName)
	query.Set("address", c.conf.Address)
	query.Set("port", strconv.Itoa(c.conf.Port))
	if err := c.do(ctx, http.MethodDelete, c.conf.ServiceRegistryURL+unregisterPath+"?"+query.Encode(), nil, nil); err != nil {
		return fmt.Errorf("unregister %s: %w", serviceDefinition, err)
	}
	logger.Info("service unregistered", zap.String("service", serviceDefinition))
	return nil
}

// WaitReady polls echoURL until it answers with a 2xx status or maxElapsed
// has passed.
func (c *Client) WaitReady(ctx context.Context, echoURL string, interval, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = maxElapsed
	op := func() error {
		err := c.do(ctx, http.MethodGet, echoURL, nil, nil)
		if err != nil {
			logger.Info("waiting for core system to be available", zap.String("url", echoURL), zap.Error(err))
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("core system %s not reachable: %w", echoURL, err)
	}
	logger.Info("core system is reachable", zap.String("url", echoURL))
	return nil
}

func (c *Client) do(ctx context.Context, method, target string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUnexpectedReply, method, target, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode reply of %s: %w", ErrUnexpectedReply, target, err)
	}
	return nil
}
