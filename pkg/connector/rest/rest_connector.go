// Package rest provides the REST connector. Each intent is registered
// against a path template, an HTTP method and an optional parameter name
// mapping; requests are translated into query strings or JSON bodies and
// backend responses into RESPONSE or ERROR envelopes.
package rest

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/ajitpratap0/mcpbridge/pkg/config"
	"github.com/ajitpratap0/mcpbridge/pkg/connector/base"
	"github.com/ajitpratap0/mcpbridge/pkg/connector/core"
	"github.com/ajitpratap0/mcpbridge/pkg/errors"
	jsonpool "github.com/ajitpratap0/mcpbridge/pkg/json"
	"github.com/ajitpratap0/mcpbridge/pkg/mcp"
	"go.uber.org/zap"
)

// Connector is the REST implementation of core.Connector.
type Connector struct {
	*base.BaseConnector

	mu        sync.RWMutex
	endpoints map[string]core.Endpoint
}

var _ core.Connector = (*Connector)(nil)

// New creates a REST connector for the API rooted at baseURL.
func New(name, baseURL string, opts ...base.Option) (*Connector, error) {
	bc, err := base.NewBaseConnector(name, core.APITypeREST, baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Connector{
		BaseConnector: bc,
		endpoints:     make(map[string]core.Endpoint),
	}, nil
}

// NewFromConfig creates a REST connector and registers every configured
// endpoint.
func NewFromConfig(cc *config.ConnectorConfig, opts ...base.Option) (core.Connector, error) {
	c, err := New(cc.Name, cc.BaseURL, base.OptionsFromConfig(cc, opts...)...)
	if err != nil {
		return nil, err
	}
	for _, ep := range cc.Endpoints {
		c.RegisterEndpoint(ep.Intent, ep.Path, ep.Method, ep.ParamsMapping)
	}
	return c, nil
}

// RegisterEndpoint binds intent to a backend path and method. An empty
// method means GET. Registering an intent again replaces the previous
// binding. Safe to call while requests are in flight.
func (c *Connector) RegisterEndpoint(intent, path, method string, mapping map[string]string) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}

	ep := core.Endpoint{
		Intent:        intent,
		Path:          path,
		Method:        method,
		ParamsMapping: make(map[string]string, len(mapping)),
	}
	for k, v := range mapping {
		ep.ParamsMapping[k] = v
	}

	c.mu.Lock()
	_, replaced := c.endpoints[intent]
	c.endpoints[intent] = ep
	c.mu.Unlock()

	c.Logger().Info("endpoint registered",
		zap.String("intent", intent),
		zap.String("method", method),
		zap.String("path", path),
		zap.Bool("replaced", replaced))
}

// Endpoints returns the registered endpoints sorted by intent.
func (c *Connector) Endpoints() []core.Endpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]core.Endpoint, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Intent < out[j].Intent })
	return out
}

// Intents lists the registered intents in sorted order.
func (c *Connector) Intents() []string {
	eps := c.Endpoints()
	out := make([]string, len(eps))
	for i, ep := range eps {
		out[i] = ep.Intent
	}
	return out
}

func (c *Connector) endpoint(intent string) (core.Endpoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ep, ok := c.endpoints[intent]
	return ep, ok
}

// ProcessRequest executes req against the backend.
func (c *Connector) ProcessRequest(ctx context.Context, req *mcp.Message) (*mcp.Message, error) {
	return c.Process(ctx, req, c.FormatRequest, c.FormatResponse)
}

// FormatRequest builds the backend call for req. An unregistered intent is
// a configuration error and a path placeholder with no parameter is a
// validation error.
func (c *Connector) FormatRequest(req *mcp.Message) (*core.HTTPCall, error) {
	ep, ok := c.endpoint(req.Payload.Intent)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"no endpoint registered for intent %q on API %s", req.Payload.Intent, c.Name()).
			WithDetail("registered_intents", c.Intents())
	}

	params := base.MapParams(req.Payload.Parameters, ep.ParamsMapping)
	path, err := base.ExpandPath(ep.Path, params)
	if err != nil {
		return nil, err
	}

	call := &core.HTTPCall{
		Method:  ep.Method,
		BaseURL: c.BaseURL(),
		Path:    path,
	}
	if sendsQuery(ep.Method) {
		call.Query = make(url.Values, len(params))
		for _, name := range params.Names() {
			for _, v := range params[name].QueryValues() {
				call.Query.Add(name, v)
			}
		}
	} else {
		call.Body = params.ToMap()
	}

	c.PrepareCall(call)
	return call, nil
}

// FormatResponse maps a backend response onto an envelope. Non-2xx
// statuses become API_REQUEST_ERROR; JSON bodies are decoded and anything
// else is returned as {"text": body}.
func (c *Connector) FormatResponse(raw *core.RawResponse, req *mcp.Message) (*mcp.Message, error) {
	if !raw.Success() {
		return c.ErrorHandler().HandleError(req, base.StatusError(raw))
	}

	return mcp.CreateResponse(req, decodeBody(raw.Body), map[string]interface{}{
		"api_name":    c.Name(),
		"api_type":    string(c.APIType()),
		"status_code": raw.StatusCode,
	}), nil
}

func decodeBody(body []byte) interface{} {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	var data interface{}
	if err := jsonpool.Unmarshal(body, &data); err != nil {
		return map[string]interface{}{"text": string(body)}
	}
	return data
}

func sendsQuery(method string) bool {
	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodHead:
		return true
	}
	return false
}
