// Package registry keeps the connector factories and the named connectors
// of a running bridge. Connector packages register a factory for their API
// type from init; a Registry builds connectors from configuration and binds
// each one to the router as the destination api.<name>.
package registry

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/ajitpratap0/mcpbridge/pkg/config"
	"github.com/ajitpratap0/mcpbridge/pkg/connector/base"
	"github.com/ajitpratap0/mcpbridge/pkg/connector/core"
	"github.com/ajitpratap0/mcpbridge/pkg/errors"
	"github.com/ajitpratap0/mcpbridge/pkg/logger"
	"github.com/ajitpratap0/mcpbridge/pkg/mcp"
	"go.uber.org/zap"
)

// DestinationPrefix prefixes connector names to form router destinations
const DestinationPrefix = "api."

// Factory is a function that creates connector instances from a
// connector configuration. Extra options are applied after the configured
// ones.
type Factory func(cfg *config.ConnectorConfig, opts ...base.Option) (core.Connector, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[core.APIType]Factory)
)

// RegisterFactory registers the factory for an API type. Registering a
// type twice is a configuration error.
func RegisterFactory(apiType core.APIType, factory Factory) error {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if _, exists := factories[apiType]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector factory for %s already registered", apiType))
	}
	factories[apiType] = factory
	return nil
}

// Factories lists the API types that have a factory
func Factories() []core.APIType {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	out := make([]core.APIType, 0, len(factories))
	for t := range factories {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewConnector validates cfg and creates a connector with the factory
// registered for its type.
func NewConnector(cfg *config.ConnectorConfig, opts ...base.Option) (core.Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factoriesMu.RLock()
	factory, exists := factories[cfg.Type]
	factoriesMu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("no connector factory for type %s", cfg.Type))
	}

	conn, err := factory(cfg, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create connector %s", cfg.Name))
	}
	return conn, nil
}

// Destination returns the router destination of the named connector
func Destination(name string) string {
	return DestinationPrefix + name
}

// Registry manages the named connectors of a bridge
type Registry struct {
	connectors map[string]core.Connector
	router     *mcp.Router
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewRegistry creates a registry that binds connectors to router. A nil
// router gets a fresh one.
func NewRegistry(router *mcp.Router) *Registry {
	log := logger.Get().With(zap.String("component", "connector_registry"))
	if router == nil {
		router = mcp.NewRouter(log)
	}
	return &Registry{
		connectors: make(map[string]core.Connector),
		router:     router,
		logger:     log,
	}
}

// Router returns the router connectors are bound to
func (r *Registry) Router() *mcp.Router {
	return r.router
}

// Register adds conn under its name and routes every intent addressed to
// api.<name> to it. A connector already registered under that name is
// replaced and closed.
func (r *Registry) Register(conn core.Connector) {
	name := conn.Name()

	r.mu.Lock()
	previous, exists := r.connectors[name]
	r.connectors[name] = conn
	r.router.Handle(Destination(name), mcp.WildcardIntent,
		mcp.HandlerFunc(func(ctx context.Context, msg *mcp.Message) (*mcp.Message, error) {
			return conn.ProcessRequest(ctx, msg)
		}))
	r.mu.Unlock()

	if exists && previous != conn {
		r.logger.Warn("connector replaced", zap.String("name", name))
		closeConnector(previous)
	}

	r.logger.Info("connector registered",
		zap.String("name", name),
		zap.String("api_type", string(conn.APIType())),
		zap.String("destination", Destination(name)))
}

// Unregister removes the named connector and its route
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	conn, exists := r.connectors[name]
	if exists {
		delete(r.connectors, name)
		r.router.Remove(Destination(name))
	}
	r.mu.Unlock()

	if !exists {
		return false
	}
	closeConnector(conn)
	r.logger.Info("connector unregistered", zap.String("name", name))
	return true
}

// Get returns the named connector
func (r *Registry) Get(name string) (core.Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, exists := r.connectors[name]
	return conn, exists
}

// List returns the registered connector names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates and registers every connector in cfg. Nothing is
// registered when any connector fails to build.
func (r *Registry) Build(cfg *config.Config, opts ...base.Option) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	built := make([]core.Connector, 0, len(cfg.Connectors))
	for i := range cfg.Connectors {
		conn, err := NewConnector(&cfg.Connectors[i], opts...)
		if err != nil {
			for _, c := range built {
				closeConnector(c)
			}
			return err
		}
		built = append(built, conn)
	}

	for _, conn := range built {
		r.Register(conn)
	}
	return nil
}

// Close unregisters and closes every connector
func (r *Registry) Close() error {
	r.mu.Lock()
	conns := r.connectors
	r.connectors = make(map[string]core.Connector)
	r.mu.Unlock()

	var errs []error
	for name, conn := range conns {
		r.router.Remove(Destination(name))
		if c, ok := conn.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close connector %s: %w", name, err))
			}
		}
	}
	return stderrors.Join(errs...)
}

func closeConnector(conn core.Connector) {
	if c, ok := conn.(io.Closer); ok {
		_ = c.Close()
	}
}
