// Package client is the caller-facing side of the bridge. A Client builds
// request envelopes addressed to api.<name>, routes them and always hands
// back an envelope.
package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/ajitpratap0/mcpbridge/pkg/connector/registry"
	"github.com/ajitpratap0/mcpbridge/pkg/logger"
	"github.com/ajitpratap0/mcpbridge/pkg/mcp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds CallMany when no limit is given
const DefaultConcurrency = 8

// Client sends requests to registered APIs through a router.
type Client struct {
	router *mcp.Router
	source string
	logger *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithSource overrides the generated source identifier
func WithSource(source string) Option {
	return func(c *Client) { c.source = source }
}

// WithLogger sets the logger; the global logger is used otherwise
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client that routes through router. Its source identifier
// is client.<8 hex digits> unless WithSource says otherwise.
func New(router *mcp.Router, opts ...Option) *Client {
	c := &Client{
		router: router,
		source: "client." + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get()
	}
	c.logger = c.logger.With(zap.String("component", "api_client"), zap.String("source", c.source))
	return c
}

// Source returns the source identifier stamped on every request
func (c *Client) Source() string { return c.source }

// CallAPI sends intent with params to the named API and returns its
// envelope. When routing produces nothing the result is a NO_RESPONSE
// error envelope. The error is non-nil only for configuration errors.
func (c *Client) CallAPI(ctx context.Context, api, intent string, params mcp.Params, metadata map[string]interface{}) (*mcp.Message, error) {
	req := mcp.CreateRequest(c.source, registry.Destination(api), intent, params, mcp.WithMetadata(metadata))
	return c.Send(ctx, req)
}

// Send routes a prepared request envelope.
func (c *Client) Send(ctx context.Context, req *mcp.Message) (*mcp.Message, error) {
	resp, err := c.router.Route(ctx, req)
	if err != nil {
		c.logger.Error("request failed",
			zap.String("destination", req.Destination),
			zap.String("intent", req.Payload.Intent),
			zap.String("correlation_id", req.CorrelationID),
			zap.Error(err))
		return nil, err
	}
	if resp == nil {
		resp = mcp.CreateError(req, mcp.CodeNoResponse,
			fmt.Sprintf("No response received from '%s'", req.Destination), nil)
	}
	return resp, nil
}

// Call describes one request of a CallMany batch
type Call struct {
	API      string
	Intent   string
	Params   mcp.Params
	Metadata map[string]interface{}
}

// CallMany sends calls with at most limit in flight and returns their
// envelopes in call order. A configuration error stops the batch: pending
// calls are canceled and the first such error is returned alongside the
// envelopes collected so far.
func (c *Client) CallMany(ctx context.Context, calls []Call, limit int) ([]*mcp.Message, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]*mcp.Message, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			resp, err := c.CallAPI(gctx, call.API, call.Intent, call.Params, call.Metadata)
			if err != nil {
				return err
			}
			results[i] = resp
			return nil
		})
	}

	err := g.Wait()
	return results, err
}
