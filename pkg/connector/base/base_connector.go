// Package base provides the BaseConnector that the REST and GraphQL
// connectors embed. It owns everything that does not depend on the backend
// protocol: the HTTP client, authentication, the per-call timeout, default
// headers, tracing, metrics and the conversion of failures into ERROR
// envelopes.
//
// # Usage
//
// Connectors embed BaseConnector and pass their pure formatting functions
// to Process:
//
//	type Connector struct {
//	    *base.BaseConnector
//	    // protocol-specific registries
//	}
//
//	func (c *Connector) ProcessRequest(ctx context.Context, req *mcp.Message) (*mcp.Message, error) {
//	    return c.Process(ctx, req, c.FormatRequest, c.FormatResponse)
//	}
//
// # Guarantees
//
// Process returns exactly one envelope for every request, carrying the
// request's correlation ID. The only exception is a configuration error,
// which is returned as a Go error with a nil envelope. Panics raised by the
// formatting functions are recovered into PROCESSING_ERROR envelopes.
package base

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ajitpratap0/mcpbridge/pkg/auth"
	"github.com/ajitpratap0/mcpbridge/pkg/clients"
	"github.com/ajitpratap0/mcpbridge/pkg/connector/core"
	"github.com/ajitpratap0/mcpbridge/pkg/errors"
	jsonpool "github.com/ajitpratap0/mcpbridge/pkg/json"
	"github.com/ajitpratap0/mcpbridge/pkg/logger"
	"github.com/ajitpratap0/mcpbridge/pkg/mcp"
	"github.com/ajitpratap0/mcpbridge/pkg/metrics"
	"github.com/ajitpratap0/mcpbridge/pkg/observability"
	"github.com/ajitpratap0/mcpbridge/pkg/pool"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every backend call unless overridden
const DefaultTimeout = 30 * time.Second

// Options configures a connector
type Options struct {
	Timeout    time.Duration
	Headers    map[string]string
	Auth       auth.Config
	HTTPConfig *clients.HTTPConfig
	Client     *clients.HTTPClient
	Logger     *zap.Logger
}

// Option mutates Options
type Option func(*Options)

// WithTimeout sets the per-call timeout. It must be positive.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithHeaders adds headers sent with every call
func WithHeaders(h map[string]string) Option {
	return func(o *Options) {
		if o.Headers == nil {
			o.Headers = make(map[string]string, len(h))
		}
		for k, v := range h {
			o.Headers[k] = v
		}
	}
}

// WithAuth sets the initial authentication configuration
func WithAuth(cfg auth.Config) Option {
	return func(o *Options) { o.Auth = cfg }
}

// WithHTTPConfig tunes the connector's own HTTP client
func WithHTTPConfig(cfg *clients.HTTPConfig) Option {
	return func(o *Options) { o.HTTPConfig = cfg }
}

// WithHTTPClient shares an existing HTTP client instead of creating one
func WithHTTPClient(c *clients.HTTPClient) Option {
	return func(o *Options) { o.Client = c }
}

// WithLogger sets the logger; the global logger is used otherwise
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// BaseConnector holds the protocol-independent state of a connector.
type BaseConnector struct {
	name    string
	apiType core.APIType
	baseURL string
	timeout time.Duration
	headers map[string]string

	logger       *zap.Logger
	client       *clients.HTTPClient
	ownsClient   bool
	tracer       *observability.ConnectorTracer
	errorHandler *ErrorHandler

	authMu sync.RWMutex
	auth   *auth.Authenticator
}

// NewBaseConnector validates the connector settings and builds its HTTP
// client. Invalid settings are configuration errors.
func NewBaseConnector(name string, apiType core.APIType, baseURL string, opts ...Option) (*BaseConnector, error) {
	o := Options{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	if name == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "connector name is required")
	}
	if o.Timeout <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "connector %s: timeout must be positive, got %s", name, o.Timeout)
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "connector %s: invalid base URL %q", name, baseURL)
	}

	log := o.Logger
	if log == nil {
		log = logger.Get()
	}
	log = log.With(zap.String("connector", name), zap.String("api_type", string(apiType)))

	authenticator, err := auth.New(o.Auth)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("connector %s: invalid auth", name))
	}

	bc := &BaseConnector{
		name:         name,
		apiType:      apiType,
		baseURL:      strings.TrimRight(baseURL, "/"),
		timeout:      o.Timeout,
		headers:      o.Headers,
		logger:       log,
		client:       o.Client,
		tracer:       observability.NewConnectorTracer(string(apiType), name),
		errorHandler: NewErrorHandler(log),
		auth:         authenticator,
	}
	if bc.client == nil {
		bc.client = clients.NewHTTPClient(o.HTTPConfig, log)
		bc.ownsClient = true
	}
	return bc, nil
}

// Name returns the connector name
func (bc *BaseConnector) Name() string { return bc.name }

// APIType returns the backend kind
func (bc *BaseConnector) APIType() core.APIType { return bc.apiType }

// BaseURL returns the backend base URL without a trailing slash
func (bc *BaseConnector) BaseURL() string { return bc.baseURL }

// Timeout returns the per-call timeout
func (bc *BaseConnector) Timeout() time.Duration { return bc.timeout }

// Logger returns the connector logger
func (bc *BaseConnector) Logger() *zap.Logger { return bc.logger }

// ErrorHandler returns the connector error handler
func (bc *BaseConnector) ErrorHandler() *ErrorHandler { return bc.errorHandler }

// HTTPStats returns statistics of the connector's HTTP client
func (bc *BaseConnector) HTTPStats() clients.HTTPStats { return bc.client.GetStats() }

// SetAuth replaces the authentication configuration for subsequent calls.
// Calls already in flight keep the configuration they started with.
func (bc *BaseConnector) SetAuth(cfg auth.Config) error {
	a, err := auth.New(cfg)
	if err != nil {
		return err
	}

	bc.authMu.Lock()
	bc.auth = a
	bc.authMu.Unlock()

	bc.logger.Info("authentication configured", zap.String("scheme", string(a.Scheme())))
	return nil
}

func (bc *BaseConnector) authenticator() *auth.Authenticator {
	bc.authMu.RLock()
	defer bc.authMu.RUnlock()
	return bc.auth
}

// PrepareCall adds the default headers, the configured headers and static
// credentials to call. It performs no I/O.
func (bc *BaseConnector) PrepareCall(call *core.HTTPCall) {
	if call.Header == nil {
		call.Header = make(http.Header)
	}
	if call.Query == nil {
		call.Query = make(url.Values)
	}
	call.Header.Set("Accept", "application/json")
	if call.Body != nil {
		call.Header.Set("Content-Type", "application/json")
	}
	for k, v := range bc.headers {
		call.Header.Set(k, v)
	}
	bc.authenticator().ApplyStatic(call.Header, call.Query)
}

// Execute performs call with the connector timeout and returns the raw
// response. Every status code is returned as a response; only transport
// failures and authentication failures are errors.
func (bc *BaseConnector) Execute(ctx context.Context, call *core.HTTPCall) (*core.RawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, bc.timeout)
	defer cancel()

	req, err := bc.newRequest(ctx, call)
	if err != nil {
		return nil, err
	}
	if err := bc.authenticator().Authorize(req); err != nil {
		return nil, err
	}

	inflight := metrics.InFlightRequests.WithLabelValues(bc.name)
	inflight.Inc()
	defer inflight.Dec()

	resp, err := bc.client.Fetch(req)
	if err != nil {
		logger.FromContext(ctx, bc.logger).Debug("backend call failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err))
		return nil, err
	}
	return &core.RawResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

func (bc *BaseConnector) newRequest(ctx context.Context, call *core.HTTPCall) (*http.Request, error) {
	var body []byte
	if call.Body != nil {
		buf, err := jsonpool.MarshalToBuffer(call.Body)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode request body")
		}
		body = make([]byte, buf.Len())
		copy(body, buf.Bytes())
		pool.PutBuffer(buf)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, call.Method, call.URL(), bytes.NewReader(body))
	} else {
		req, err = http.NewRequestWithContext(ctx, call.Method, call.URL(), http.NoBody)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to build request")
	}
	for k, vs := range call.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// StatusError describes a completed exchange with a non-2xx status.
func StatusError(raw *core.RawResponse) *errors.Error {
	return errors.Newf(errors.ErrorTypeHTTPStatus, "API returned status %d %s",
		raw.StatusCode, http.StatusText(raw.StatusCode)).
		WithDetail("status_code", raw.StatusCode).
		WithDetail("response_body", string(raw.Body))
}

// FormatFunc builds the backend call for a request
type FormatFunc func(req *mcp.Message) (*core.HTTPCall, error)

// RespondFunc maps a raw response onto an envelope
type RespondFunc func(raw *core.RawResponse, req *mcp.Message) (*mcp.Message, error)

// Process runs the shared request pipeline: format, execute, respond. It
// guarantees one envelope per request except for configuration errors.
func (bc *BaseConnector) Process(ctx context.Context, req *mcp.Message, format FormatFunc, respond RespondFunc) (resp *mcp.Message, err error) {
	if req == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "nil request")
	}

	intent := req.Payload.Intent
	timer := metrics.NewTimer(bc.name + "." + intent)
	ctx, span := bc.tracer.StartSpan(ctx, intent, req.CorrelationID)
	ctx = logger.WithCorrelation(ctx, req.CorrelationID, bc.name, intent)
	log := logger.FromContext(ctx, bc.logger)

	defer func() {
		if r := recover(); r != nil {
			resp, err = bc.errorHandler.Recover(req, r), nil
		}
		bc.finish(span, timer, intent, resp, err)
		log.Debug("request processed",
			zap.Duration("duration", timer.Stop()),
			zap.String("message_type", messageType(resp)))
	}()

	call, err := format(req)
	if err != nil {
		return bc.errorHandler.HandleError(req, err)
	}

	log.Debug("calling backend", zap.String("method", call.Method), zap.String("path", call.Path))
	raw, err := bc.Execute(ctx, call)
	if err != nil {
		return bc.errorHandler.HandleError(req, err)
	}

	resp, err = respond(raw, req)
	if err != nil {
		return bc.errorHandler.HandleError(req, err)
	}
	return resp, nil
}

func (bc *BaseConnector) finish(span *observability.Span, timer *metrics.Timer, intent string, resp *mcp.Message, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = metrics.OutcomeConfigError
		intent = metrics.UnregisteredIntent
		span.Fail("CONFIG_ERROR", err.Error())
	case resp.IsError():
		outcome = metrics.OutcomeError
		span.Fail(string(resp.Payload.ErrorCode), resp.Payload.ErrorMessage)
	default:
		span.Succeed()
	}
	span.End()
	metrics.ObserveConnectorCall(bc.name, string(bc.apiType), intent, outcome, timer.Stop())
}

func messageType(m *mcp.Message) string {
	if m == nil {
		return "none"
	}
	return string(m.MessageType)
}

// Close releases the HTTP client when the connector created it
func (bc *BaseConnector) Close() error {
	if bc.ownsClient {
		return bc.client.Close()
	}
	return nil
}
