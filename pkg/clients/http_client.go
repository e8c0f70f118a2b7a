// Package clients provides the shared HTTP client used by connectors
package clients

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/ajitpratap0/mcpbridge/pkg/errors"
	"github.com/ajitpratap0/mcpbridge/pkg/observability"
	"github.com/ajitpratap0/mcpbridge/pkg/pool"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// DefaultUserAgent is sent when a request sets no User-Agent
const DefaultUserAgent = "mcpbridge/1.0"

// HTTPClient executes backend calls over a tuned transport. It is safe for
// concurrent use. Call deadlines come from the request context; the client
// sets no overall timeout of its own.
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport
	metrics    *HTTPMetrics
}

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host" json:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout" json:"idle_conn_timeout"`
	DisableKeepAlives   bool          `yaml:"disable_keep_alives" json:"disable_keep_alives"`

	// HTTP/2 settings
	EnableHTTP2 bool `yaml:"http2" json:"enable_http2"`

	// Timeouts
	DialTimeout           time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout" json:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout" json:"response_header_timeout"`
	KeepAlive             time.Duration `yaml:"keep_alive" json:"keep_alive"`

	// TLS settings
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
	TLSMinVersion      uint16 `yaml:"-" json:"tls_min_version"`

	UserAgent string `yaml:"user_agent" json:"user_agent"`

	// MaxResponseBytes caps the response body size; a larger body fails the call
	MaxResponseBytes int64 `yaml:"max_response_bytes" json:"max_response_bytes"`
}

// DefaultHTTPConfig returns the default configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       0,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 0,
		KeepAlive:             30 * time.Second,
		TLSMinVersion:         tls.VersionTLS12,
		UserAgent:             DefaultUserAgent,
		MaxResponseBytes:      32 << 20,
	}
}

// Response is a fully read backend response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewHTTPClient creates a new HTTP client. A nil config uses the defaults.
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &HTTPClient{
		config:  config,
		logger:  logger.With(zap.String("component", "http_client")),
		metrics: NewHTTPMetrics(),
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		DisableKeepAlives:     config.DisableKeepAlives,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify, //nolint:gosec // opt-in for test backends
			MinVersion:         config.TLSMinVersion,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	client.httpClient = &http.Client{
		Transport: client.transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return client
}

// Do sends req, adding the user agent and the trace context of the request
// context. Transport failures are returned as timeout, canceled or
// connection errors.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	observability.InjectHeaders(req.Context(), req.Header)

	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			c.metrics.RecordConnectionReuse(info.Reused)
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		classified := classifyTransportError(err)
		c.metrics.RecordRequest(req.Method, req.URL.Host, 0, duration, string(classified.Type))
		c.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("host", req.URL.Host),
			zap.Duration("duration", duration),
			zap.Error(err))
		return nil, classified
	}

	c.metrics.RecordRequest(req.Method, req.URL.Host, resp.StatusCode, duration, "")
	return resp, nil
}

// Fetch sends req and reads the whole response body. A body larger than
// MaxResponseBytes is an http_status error carrying the status code.
func (c *HTTPClient) Fetch(req *http.Request) (*Response, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	limit := c.config.MaxResponseBytes
	var body io.Reader = resp.Body
	if limit > 0 {
		body = io.LimitReader(resp.Body, limit+1)
	}
	n, err := buf.ReadFrom(body)
	if err != nil {
		return nil, classifyTransportError(err).
			WithDetail("status_code", resp.StatusCode)
	}
	if limit > 0 && n > limit {
		c.logger.Warn("response body exceeds limit",
			zap.String("host", req.URL.Host),
			zap.Int64("max_response_bytes", limit))
		return nil, errors.Newf(errors.ErrorTypeHTTPStatus, "response body exceeds %d bytes", limit).
			WithDetail("status_code", resp.StatusCode).
			WithDetail("max_response_bytes", limit)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       out,
	}, nil
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	return c.metrics.Snapshot()
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

func classifyTransportError(err error) *errors.Error {
	var netErr net.Error
	switch {
	case stderrors.Is(err, context.Canceled):
		return errors.Wrap(err, errors.ErrorTypeCanceled, "request canceled")
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.ErrorTypeTimeout, "request timed out")
	case stderrors.As(err, &netErr) && netErr.Timeout():
		return errors.Wrap(err, errors.ErrorTypeTimeout, "request timed out")
	default:
		return errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
	}
}
