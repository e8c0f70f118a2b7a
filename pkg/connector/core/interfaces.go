// Package core defines the contract every API connector implements and the
// value types that flow between request formatting, execution and response
// formatting.
package core

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ajitpratap0/mcpbridge/pkg/auth"
	"github.com/ajitpratap0/mcpbridge/pkg/mcp"
)

// APIType represents the kind of backend a connector speaks to
type APIType string

const (
	APITypeREST    APIType = "rest"
	APITypeGraphQL APIType = "graphql"
	APITypeSOAP    APIType = "soap"
	APITypeCustom  APIType = "custom"
)

// Valid reports whether t is a known API type
func (t APIType) Valid() bool {
	switch t {
	case APITypeREST, APITypeGraphQL, APITypeSOAP, APITypeCustom:
		return true
	}
	return false
}

// Connector translates MCP request envelopes into backend calls and maps
// every outcome back into a single RESPONSE or ERROR envelope.
type Connector interface {
	// Name returns the API name the connector was registered under
	Name() string
	// APIType returns the backend kind
	APIType() APIType

	// ProcessRequest executes req and returns exactly one terminal envelope
	// carrying the request's correlation ID. The error is non-nil only for
	// configuration defects, in which case the message is nil.
	ProcessRequest(ctx context.Context, req *mcp.Message) (*mcp.Message, error)

	// FormatRequest builds the backend call for req without doing any I/O
	FormatRequest(req *mcp.Message) (*HTTPCall, error)
	// FormatResponse maps a raw backend response into an envelope
	FormatResponse(raw *RawResponse, req *mcp.Message) (*mcp.Message, error)

	// SetAuth replaces the connector's authentication configuration
	SetAuth(cfg auth.Config) error
}

// HTTPCall is a fully formatted backend request. Body is encoded as JSON
// when non-nil.
type HTTPCall struct {
	Method  string
	BaseURL string
	Path    string
	Query   url.Values
	Header  http.Header
	Body    interface{}
}

// URL renders the absolute request URL. Path is appended to the base path
// as given, so it must already be escaped, and Query is merged with any
// query the base URL carries.
func (c *HTTPCall) URL() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		// left for http.NewRequest to reject
		return c.BaseURL
	}

	escaped := strings.TrimRight(u.EscapedPath(), "/")
	if c.Path != "" {
		escaped += "/" + strings.TrimLeft(c.Path, "/")
	}
	if p, err := url.PathUnescape(escaped); err == nil {
		u.Path, u.RawPath = p, escaped
	} else {
		u.Path, u.RawPath = escaped, ""
	}

	if len(c.Query) > 0 {
		q := u.Query()
		for k, vs := range c.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	u.Fragment, u.RawFragment = "", ""
	return u.String()
}

// RawResponse is what came back from the backend
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Success reports a 2xx status
func (r *RawResponse) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Endpoint binds an intent to a REST path and method.
type Endpoint struct {
	Intent        string            `yaml:"intent" json:"intent"`
	Path          string            `yaml:"path" json:"path"`
	Method        string            `yaml:"method" json:"method"`
	ParamsMapping map[string]string `yaml:"params_mapping" json:"params_mapping,omitempty"`
}

// OperationKind distinguishes GraphQL queries from mutations
type OperationKind string

const (
	OperationQuery    OperationKind = "query"
	OperationMutation OperationKind = "mutation"
)

// Operation binds an intent to a GraphQL document.
type Operation struct {
	Intent        string            `yaml:"intent" json:"intent"`
	Kind          OperationKind     `yaml:"kind" json:"kind"`
	Document      string            `yaml:"document" json:"document"`
	ParamsMapping map[string]string `yaml:"params_mapping" json:"params_mapping,omitempty"`
}
