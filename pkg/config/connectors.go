package config

import (
	"net/url"
	"time"

	"github.com/ajitpratap0/mcpbridge/pkg/auth"
	"github.com/ajitpratap0/mcpbridge/pkg/clients"
	"github.com/ajitpratap0/mcpbridge/pkg/connector/core"
	"github.com/ajitpratap0/mcpbridge/pkg/errors"
)

// ConnectorConfig describes one backend API.
type ConnectorConfig struct {
	// Name is the API name; the connector is reachable as api.<name>
	Name string `yaml:"name" json:"name"`
	// Type selects the connector implementation (rest, graphql)
	Type core.APIType `yaml:"type" json:"type"`
	// BaseURL is the REST base URL or the GraphQL endpoint
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Headers are sent with every call
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`

	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// HTTP2 enables HTTP/2 on the connector's transport
	HTTP2 *bool `yaml:"http2" json:"http2,omitempty"`

	Auth auth.Config `yaml:"auth" json:"auth"`

	// REST endpoints
	Endpoints []core.Endpoint `yaml:"endpoints" json:"endpoints,omitempty"`

	// GraphQL operations
	Queries   []core.Operation `yaml:"queries" json:"queries,omitempty"`
	Mutations []core.Operation `yaml:"mutations" json:"mutations,omitempty"`
}

// TimeoutConfig contains the connector timeouts.
type TimeoutConfig struct {
	// Request bounds a whole backend call
	Request time.Duration `yaml:"request" json:"request"`
	// Dial bounds establishing a TCP connection
	Dial time.Duration `yaml:"dial" json:"dial"`
	// TLSHandshake bounds the TLS handshake
	TLSHandshake time.Duration `yaml:"tls_handshake" json:"tls_handshake"`
	// ResponseHeader bounds waiting for response headers; zero means no limit
	ResponseHeader time.Duration `yaml:"response_header" json:"response_header"`
	// IdleConn is how long an idle keep-alive connection is kept
	IdleConn time.Duration `yaml:"idle_conn" json:"idle_conn"`
}

// NewConnectorConfig creates a connector configuration with default
// timeouts and no authentication.
func NewConnectorConfig(name string, apiType core.APIType, baseURL string) *ConnectorConfig {
	cc := &ConnectorConfig{
		Name:    name,
		Type:    apiType,
		BaseURL: baseURL,
		Auth:    auth.Config{Scheme: auth.SchemeNone},
	}
	cc.applyDefaults()
	return cc
}

func (cc *ConnectorConfig) applyDefaults() {
	defaults := clients.DefaultHTTPConfig()
	if cc.Timeouts.Request == 0 {
		cc.Timeouts.Request = 30 * time.Second
	}
	if cc.Timeouts.Dial == 0 {
		cc.Timeouts.Dial = defaults.DialTimeout
	}
	if cc.Timeouts.TLSHandshake == 0 {
		cc.Timeouts.TLSHandshake = defaults.TLSHandshakeTimeout
	}
	if cc.Timeouts.IdleConn == 0 {
		cc.Timeouts.IdleConn = defaults.IdleConnTimeout
	}
	if cc.Auth.Scheme == "" {
		cc.Auth.Scheme = auth.SchemeNone
	}
}

// Validate checks the connector configuration. Failures are configuration
// errors naming the connector.
func (cc *ConnectorConfig) Validate() error {
	if cc.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "connector name is required")
	}
	if !cc.Type.Valid() {
		return errors.Newf(errors.ErrorTypeConfig, "connector %s: unknown type %q", cc.Name, cc.Type)
	}
	u, err := url.Parse(cc.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Newf(errors.ErrorTypeConfig, "connector %s: base_url must be an absolute http(s) URL, got %q", cc.Name, cc.BaseURL)
	}
	if cc.Timeouts.Request <= 0 {
		return errors.Newf(errors.ErrorTypeConfig, "connector %s: timeouts.request must be positive", cc.Name)
	}
	if _, err := auth.New(cc.Auth); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "connector "+cc.Name+": invalid auth")
	}

	for _, ep := range cc.Endpoints {
		if ep.Intent == "" || ep.Path == "" {
			return errors.Newf(errors.ErrorTypeConfig, "connector %s: endpoint needs intent and path", cc.Name)
		}
	}
	for _, op := range append(append([]core.Operation(nil), cc.Queries...), cc.Mutations...) {
		if op.Intent == "" || op.Document == "" {
			return errors.Newf(errors.ErrorTypeConfig, "connector %s: operation needs intent and document", cc.Name)
		}
	}
	if cc.Type == core.APITypeREST && (len(cc.Queries) > 0 || len(cc.Mutations) > 0) {
		return errors.Newf(errors.ErrorTypeConfig, "connector %s: rest connectors take endpoints, not queries", cc.Name)
	}
	if cc.Type == core.APITypeGraphQL && len(cc.Endpoints) > 0 {
		return errors.Newf(errors.ErrorTypeConfig, "connector %s: graphql connectors take queries and mutations, not endpoints", cc.Name)
	}
	return nil
}

// HTTPConfig derives the HTTP client settings from the connector timeouts.
func (cc *ConnectorConfig) HTTPConfig() *clients.HTTPConfig {
	hc := clients.DefaultHTTPConfig()
	if cc.Timeouts.Dial > 0 {
		hc.DialTimeout = cc.Timeouts.Dial
	}
	if cc.Timeouts.TLSHandshake > 0 {
		hc.TLSHandshakeTimeout = cc.Timeouts.TLSHandshake
	}
	if cc.Timeouts.ResponseHeader > 0 {
		hc.ResponseHeaderTimeout = cc.Timeouts.ResponseHeader
	}
	if cc.Timeouts.IdleConn > 0 {
		hc.IdleConnTimeout = cc.Timeouts.IdleConn
	}
	if cc.HTTP2 != nil {
		hc.EnableHTTP2 = *cc.HTTP2
	}
	return hc
}
