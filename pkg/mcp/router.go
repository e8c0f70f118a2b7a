package mcp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ajitpratap0/mcpbridge/pkg/logger"
	"github.com/ajitpratap0/mcpbridge/pkg/metrics"
	"go.uber.org/zap"
)

// WildcardIntent matches every intent of a destination.
const WildcardIntent = "*"

// Handler processes a routed envelope. A non-nil error is reserved for
// setup defects such as an unregistered intent; runtime failures are
// returned as ERROR envelopes.
type Handler interface {
	Handle(ctx context.Context, msg *Message) (*Message, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) (*Message, error)

// Handle calls f(ctx, msg).
func (f HandlerFunc) Handle(ctx context.Context, msg *Message) (*Message, error) {
	return f(ctx, msg)
}

// Middleware runs before routing. It returns the message to route, possibly
// rewritten. Returning an error or a nil message rejects the message.
type Middleware func(ctx context.Context, msg *Message) (*Message, error)

// Router delivers envelopes to handlers keyed by destination and intent.
// It is safe for concurrent use; handlers may be added while routing.
type Router struct {
	routes     map[string]map[string]Handler
	middleware []Middleware
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewRouter creates an empty router. A nil logger uses the global logger.
func NewRouter(log *zap.Logger) *Router {
	if log == nil {
		log = logger.Get()
	}
	return &Router{
		routes: make(map[string]map[string]Handler),
		logger: log.With(zap.String("component", "mcp_router")),
	}
}

// Handle registers h for destination and intent, replacing any previous
// handler. Use WildcardIntent to receive every intent.
func (r *Router) Handle(destination, intent string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.routes[destination] == nil {
		r.routes[destination] = make(map[string]Handler)
	}
	r.routes[destination][intent] = h
	r.logger.Debug("route registered",
		zap.String("destination", destination),
		zap.String("intent", intent))
}

// HandleFunc registers a handler function.
func (r *Router) HandleFunc(destination, intent string, f func(ctx context.Context, msg *Message) (*Message, error)) {
	r.Handle(destination, intent, HandlerFunc(f))
}

// Remove drops every handler of destination.
func (r *Router) Remove(destination string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.routes, destination)
}

// Use appends middleware. Middleware runs in registration order.
func (r *Router) Use(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw)
}

// Destinations returns the registered destinations in sorted order.
func (r *Router) Destinations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.routes))
	for d := range r.routes {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Route delivers msg to its handler. A REQUEST always produces an envelope
// unless the handler reports a setup error; other message types with no
// route return nil.
func (r *Router) Route(ctx context.Context, msg *Message) (*Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("mcp: cannot route nil message")
	}

	r.mu.RLock()
	mws := make([]Middleware, len(r.middleware))
	copy(mws, r.middleware)
	r.mu.RUnlock()

	original := msg
	for _, mw := range mws {
		out, err := mw(ctx, msg)
		if err != nil || out == nil {
			reason := "rejected by middleware"
			if err != nil {
				reason = err.Error()
			}
			r.logger.Debug("message rejected",
				zap.String("message_id", original.MessageID),
				zap.String("reason", reason))
			metrics.RoutedMessages.WithLabelValues(unmatchedDestination, "rejected").Inc()
			if original.IsRequest() {
				return CreateError(original, CodeMessageRejected, reason, nil), nil
			}
			return nil, nil
		}
		msg = out
	}

	h, ok := r.lookup(msg.Destination, msg.Payload.Intent)
	if !ok {
		metrics.RoutedMessages.WithLabelValues(unmatchedDestination, "not_found").Inc()
		if !msg.IsRequest() {
			return nil, nil
		}
		return CreateError(msg, CodeRouteNotFound,
			fmt.Sprintf("No handler found for destination '%s' and intent '%s'", msg.Destination, msg.Payload.Intent),
			map[string]interface{}{"available_destinations": r.Destinations()}), nil
	}

	resp, err := h.Handle(ctx, msg)
	metrics.RoutedMessages.WithLabelValues(msg.Destination, routeResult(resp, err)).Inc()
	return resp, err
}

// unmatchedDestination labels metrics for messages that reached no handler,
// keeping caller-controlled destinations out of label values.
const unmatchedDestination = "unmatched"

func routeResult(resp *Message, err error) string {
	switch {
	case err != nil:
		return "failed"
	case resp == nil:
		return "no_response"
	default:
		return string(resp.MessageType)
	}
}

func (r *Router) lookup(destination, intent string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	intents, ok := r.routes[destination]
	if !ok {
		return nil, false
	}
	if h, ok := intents[intent]; ok {
		return h, true
	}
	h, ok := intents[WildcardIntent]
	return h, ok
}
