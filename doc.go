// Package mcpbridge is an API integration layer for MCP style messaging.
//
// Agents exchange envelopes (mcp.Message) addressed to a destination and an
// intent. mcpbridge binds configured REST and GraphQL backends to
// api.<name> destinations, translates each request envelope into an HTTP
// call and answers with exactly one RESPONSE or ERROR envelope carrying the
// request's correlation ID.
//
// # Quick Start
//
//	cfg, err := config.LoadConfig("mcpbridge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	reg := registry.NewRegistry(nil)
//	if err := reg.Build(cfg); err != nil {
//	    log.Fatal(err)
//	}
//	defer reg.Close()
//
//	c := client.New(reg.Router())
//	resp, err := c.CallAPI(ctx, "weather", "get_current_weather",
//	    mcp.Params{"city": mcp.String("London")}, nil)
//
// # Key Packages
//
//	pkg/mcp                 - Envelope, typed parameters and the router
//	pkg/connector/core      - Connector contract and HTTP call types
//	pkg/connector/base      - Shared execution, parameter mapping, error classification
//	pkg/connector/rest      - REST connector
//	pkg/connector/graphql   - GraphQL connector
//	pkg/connector/registry  - Connector factories and api.<name> bindings
//	pkg/client              - Request/reply helper with fan-out
//	pkg/transport/redisbus  - Envelope transport over Redis lists
//	pkg/auth                - API key, bearer, basic and OAuth2 credentials
//	pkg/config              - YAML configuration
//
// The mcpbridge command (cmd/mcpbridge) lists connectors, sends single
// requests and serves envelopes from Redis.
package mcpbridge
