package base

import (
	"github.com/ajitpratap0/mcpbridge/pkg/config"
)

// OptionsFromConfig translates a connector configuration into options.
// Extra options are applied after the configured ones.
func OptionsFromConfig(cc *config.ConnectorConfig, extra ...Option) []Option {
	opts := []Option{
		WithHTTPConfig(cc.HTTPConfig()),
		WithAuth(cc.Auth),
	}
	if cc.Timeouts.Request > 0 {
		opts = append(opts, WithTimeout(cc.Timeouts.Request))
	}
	if len(cc.Headers) > 0 {
		opts = append(opts, WithHeaders(cc.Headers))
	}
	return append(opts, extra...)
}
