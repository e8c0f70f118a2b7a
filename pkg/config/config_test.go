package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ajitpratap0/mcpbridge/pkg/auth"
	"github.com/ajitpratap0/mcpbridge/pkg/connector/core"
	"github.com/ajitpratap0/mcpbridge/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
service:
  name: bridge
connectors:
  - name: weather
    type: rest
    base_url: https://api.example.com/data/2.5
    headers:
      X-Client: mcpbridge
    timeouts:
      request: 5s
      response_header: 2s
    http2: false
    auth:
      scheme: api_key
      key_name: appid
      key_location: query
      key_value: ${WEATHER_KEY}
    endpoints:
      - intent: query
        path: /weather
        method: GET
        params_mapping:
          city: q
      - intent: forecast
        path: /forecast/{city}
  - name: countries
    type: graphql
    base_url: https://countries.example.com/graphql
    queries:
      - intent: query
        document: "query($code: ID!) { country(code: $code) { name } }"
    mutations:
      - intent: create
        document: "mutation($n: String!) { add(name: $n) { id } }"
transport:
  addr: redis:6379
  workers: 2
`

func TestLoadConfig(t *testing.T) {
	t.Setenv("WEATHER_KEY", "secret")
	path := filepath.Join(t.TempDir(), "mcpbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "bridge", cfg.Service.Name)
	assert.Equal(t, "bridge", cfg.Observability.ServiceName)
	assert.Equal(t, "redis:6379", cfg.Transport.Addr)
	assert.Equal(t, 2, cfg.Transport.Workers)
	assert.Equal(t, "mcpbridge:requests", cfg.Transport.Queue, "unset fields keep defaults")
	require.Len(t, cfg.Connectors, 2)

	weather, ok := cfg.Connector("weather")
	require.True(t, ok)
	assert.Equal(t, core.APITypeREST, weather.Type)
	assert.Equal(t, 5*time.Second, weather.Timeouts.Request)
	assert.Equal(t, 10*time.Second, weather.Timeouts.Dial)
	assert.Equal(t, "secret", weather.Auth.KeyValue)
	assert.Equal(t, auth.KeyInQuery, weather.Auth.KeyLocation)
	require.Len(t, weather.Endpoints, 2)
	assert.Equal(t, map[string]string{"city": "q"}, weather.Endpoints[0].ParamsMapping)

	hc := weather.HTTPConfig()
	assert.False(t, hc.EnableHTTP2)
	assert.Equal(t, 2*time.Second, hc.ResponseHeaderTimeout)

	countries, ok := cfg.Connector("countries")
	require.True(t, ok)
	assert.Equal(t, auth.SchemeNone, countries.Auth.Scheme)
	assert.Len(t, countries.Queries, 1)
	assert.Len(t, countries.Mutations, 1)
	assert.True(t, countries.HTTPConfig().EnableHTTP2)

	_, ok = cfg.Connector("missing")
	assert.False(t, ok)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("MCPB_SET", "value")
	t.Setenv("MCPB_LOOP", "${MCPB_SET}")

	assert.Equal(t, "a value b", substituteEnvVars("a ${MCPB_SET} b"))
	assert.Equal(t, "x=", substituteEnvVars("x=${MCPB_UNSET_VARIABLE}"))
	assert.Equal(t, "x=fallback", substituteEnvVars("x=${MCPB_UNSET_VARIABLE:-fallback}"))
	assert.Equal(t, "x=value", substituteEnvVars("x=${MCPB_SET:-fallback}"))
	assert.Equal(t, "${MCPB_SET}", substituteEnvVars("${MCPB_LOOP}"), "values are not expanded twice")
	assert.Equal(t, "cost $5", substituteEnvVars("cost $5"))
}

func TestConnectorValidate(t *testing.T) {
	valid := func() *ConnectorConfig {
		return NewConnectorConfig("api", core.APITypeREST, "https://api.example.com")
	}

	tests := []struct {
		name   string
		mutate func(*ConnectorConfig)
	}{
		{"missing name", func(c *ConnectorConfig) { c.Name = "" }},
		{"unknown type", func(c *ConnectorConfig) { c.Type = "grpc" }},
		{"relative url", func(c *ConnectorConfig) { c.BaseURL = "/api" }},
		{"bad scheme", func(c *ConnectorConfig) { c.BaseURL = "ftp://api.example.com" }},
		{"zero timeout", func(c *ConnectorConfig) { c.Timeouts.Request = 0 }},
		{"bad auth", func(c *ConnectorConfig) { c.Auth = auth.Config{Scheme: auth.SchemeBasic} }},
		{"endpoint without path", func(c *ConnectorConfig) { c.Endpoints = []core.Endpoint{{Intent: "query"}} }},
		{"rest with queries", func(c *ConnectorConfig) {
			c.Queries = []core.Operation{{Intent: "query", Document: "{ a }"}}
		}},
		{"graphql with endpoints", func(c *ConnectorConfig) {
			c.Type = core.APITypeGraphQL
			c.Endpoints = []core.Endpoint{{Intent: "query", Path: "/x"}}
		}},
		{"operation without document", func(c *ConnectorConfig) {
			c.Type = core.APITypeGraphQL
			c.Mutations = []core.Operation{{Intent: "create"}}
		}},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc := valid()
			tt.mutate(cc)
			err := cc.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	cfg.Service.Name = ""
	assert.True(t, errors.IsType(cfg.Validate(), errors.ErrorTypeConfig))

	cfg = NewConfig()
	cfg.Transport.Workers = -1
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Transport.Compression = "brotli"
	assert.True(t, errors.IsType(cfg.Validate(), errors.ErrorTypeConfig))

	cfg = NewConfig()
	cfg.Connectors = []ConnectorConfig{*NewConnectorConfig("", core.APITypeREST, "https://x")}
	assert.Error(t, cfg.Validate())
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("connectors: [unterminated"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
