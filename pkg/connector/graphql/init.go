package graphql

import (
	"github.com/ajitpratap0/mcpbridge/pkg/connector/core"
	"github.com/ajitpratap0/mcpbridge/pkg/connector/registry"
)

func init() {
	// Register the GraphQL connector factory in the global registry
	_ = registry.RegisterFactory(core.APITypeGraphQL, NewFromConfig)
}
