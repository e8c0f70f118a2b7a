// Package graphql provides the GraphQL connector. Intents are registered as
// query or mutation documents; every call is a POST of the document and its
// variables to a single endpoint.
package graphql

import (
	"context"
	"fmt"
	"net/http"
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

// Request is the JSON body of a GraphQL call.
type Request struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// Connector is the GraphQL implementation of core.Connector.
type Connector struct {
	*base.BaseConnector

	// an intent is in at most one of queries and mutations
	mu        sync.RWMutex
	queries   map[string]core.Operation
	mutations map[string]core.Operation
}

var _ core.Connector = (*Connector)(nil)

// New creates a GraphQL connector for endpointURL.
func New(name, endpointURL string, opts ...base.Option) (*Connector, error) {
	bc, err := base.NewBaseConnector(name, core.APITypeGraphQL, endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Connector{
		BaseConnector: bc,
		queries:       make(map[string]core.Operation),
		mutations:     make(map[string]core.Operation),
	}, nil
}

// NewFromConfig creates a GraphQL connector and registers every configured
// query and mutation.
func NewFromConfig(cc *config.ConnectorConfig, opts ...base.Option) (core.Connector, error) {
	c, err := New(cc.Name, cc.BaseURL, base.OptionsFromConfig(cc, opts...)...)
	if err != nil {
		return nil, err
	}
	for _, op := range cc.Queries {
		c.RegisterQuery(op.Intent, op.Document, op.ParamsMapping)
	}
	for _, op := range cc.Mutations {
		c.RegisterMutation(op.Intent, op.Document, op.ParamsMapping)
	}
	return c, nil
}

// RegisterQuery binds intent to a query document, replacing any query or
// mutation previously registered for it.
func (c *Connector) RegisterQuery(intent, query string, mapping map[string]string) {
	c.register(core.OperationQuery, intent, query, mapping)
}

// RegisterMutation binds intent to a mutation document, replacing any query
// or mutation previously registered for it.
func (c *Connector) RegisterMutation(intent, mutation string, mapping map[string]string) {
	c.register(core.OperationMutation, intent, mutation, mapping)
}

func (c *Connector) register(kind core.OperationKind, intent, document string, mapping map[string]string) {
	op := core.Operation{
		Intent:        intent,
		Kind:          kind,
		Document:      document,
		ParamsMapping: make(map[string]string, len(mapping)),
	}
	for k, v := range mapping {
		op.ParamsMapping[k] = v
	}

	c.mu.Lock()
	_, wasQuery := c.queries[intent]
	_, wasMutation := c.mutations[intent]
	delete(c.queries, intent)
	delete(c.mutations, intent)
	if kind == core.OperationMutation {
		c.mutations[intent] = op
	} else {
		c.queries[intent] = op
	}
	c.mu.Unlock()

	c.Logger().Info("operation registered",
		zap.String("intent", intent),
		zap.String("kind", string(kind)),
		zap.Bool("replaced", wasQuery || wasMutation))
}

// Operations returns every registered operation sorted by intent.
func (c *Connector) Operations() []core.Operation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]core.Operation, 0, len(c.queries)+len(c.mutations))
	for _, op := range c.queries {
		out = append(out, op)
	}
	for _, op := range c.mutations {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Intent < out[j].Intent })
	return out
}

// Intents lists the registered intents in sorted order.
func (c *Connector) Intents() []string {
	ops := c.Operations()
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.Intent
	}
	return out
}

func (c *Connector) operation(intent string) (core.Operation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if op, ok := c.queries[intent]; ok {
		return op, true
	}
	op, ok := c.mutations[intent]
	return op, ok
}

// ProcessRequest executes req against the GraphQL endpoint.
func (c *Connector) ProcessRequest(ctx context.Context, req *mcp.Message) (*mcp.Message, error) {
	return c.Process(ctx, req, c.FormatRequest, c.FormatResponse)
}

// FormatRequest builds the POST carrying the operation document and its
// variables. An unregistered intent is a configuration error.
func (c *Connector) FormatRequest(req *mcp.Message) (*core.HTTPCall, error) {
	op, ok := c.operation(req.Payload.Intent)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"no query or mutation registered for intent %q on API %s", req.Payload.Intent, c.Name()).
			WithDetail("registered_intents", c.Intents())
	}

	variables := base.MapParams(req.Payload.Parameters, op.ParamsMapping)
	call := &core.HTTPCall{
		Method:  http.MethodPost,
		BaseURL: c.BaseURL(),
		Body: Request{
			Query:     op.Document,
			Variables: variables.ToMap(),
		},
	}
	c.PrepareCall(call)
	return call, nil
}

// FormatResponse maps the GraphQL response onto an envelope. A body whose
// top-level errors member is non-empty is a GRAPHQL_ERROR; a non-2xx status
// or an undecodable body is an API_REQUEST_ERROR.
func (c *Connector) FormatResponse(raw *core.RawResponse, req *mcp.Message) (*mcp.Message, error) {
	if !raw.Success() {
		return c.ErrorHandler().HandleError(req, base.StatusError(raw))
	}

	var body map[string]interface{}
	if err := jsonpool.Unmarshal(raw.Body, &body); err != nil || body == nil {
		undecodable := errors.New(errors.ErrorTypeHTTPStatus, "GraphQL endpoint returned an undecodable body").
			WithDetail("status_code", raw.StatusCode).
			WithDetail("response_body", string(raw.Body))
		return c.ErrorHandler().HandleError(req, undecodable)
	}

	if errs, ok := body["errors"]; ok && hasErrors(errs) {
		queryErr := errors.New(errors.ErrorTypeQuery, "GraphQL operation failed: "+errorMessages(errs)).
			WithDetail("errors", errs).
			WithDetail("response", body)
		return c.ErrorHandler().HandleError(req, queryErr)
	}

	return mcp.CreateResponse(req, body["data"], map[string]interface{}{
		"api_name":    c.Name(),
		"api_type":    string(c.APIType()),
		"status_code": raw.StatusCode,
	}), nil
}

func hasErrors(v interface{}) bool {
	switch e := v.(type) {
	case nil:
		return false
	case []interface{}:
		return len(e) > 0
	case map[string]interface{}:
		return len(e) > 0
	case string:
		return e != ""
	default:
		return true
	}
}

// errorMessages joins the message members of a GraphQL errors value.
func errorMessages(v interface{}) string {
	items, ok := v.([]interface{})
	if !ok {
		items = []interface{}{v}
	}
	msgs := make([]string, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			if s, ok := m["message"].(string); ok {
				msgs = append(msgs, s)
				continue
			}
		}
		msgs = append(msgs, fmt.Sprint(item))
	}
	return strings.Join(msgs, "; ")
}
