// Package config provides configuration management for mcpbridge.
//
// # Key Features
//
// - Config: One structure for the service, its connectors and its transport
// - ConnectorConfig: Base URL, headers, timeouts, auth and the intent registry of one API
// - Environment variable substitution with ${VAR_NAME} and ${VAR_NAME:-default} syntax
// - Automatic defaults and validation returning configuration errors
//
// # Usage
//
// ## Loading a Configuration File
//
//	cfg, err := config.LoadConfig("mcpbridge.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// ## Building Configurations in Code
//
//	cc := config.NewConnectorConfig("weather", core.APITypeREST, "https://api.openweathermap.org/data/2.5")
//	cc.Endpoints = []core.Endpoint{
//		{Intent: "query", Path: "/weather", Method: "GET", ParamsMapping: map[string]string{"city": "q"}},
//	}
//
// ## Environment Variable Substitution
//
//	# mcpbridge.yaml
//	connectors:
//	  - name: weather
//	    type: rest
//	    base_url: https://api.openweathermap.org/data/2.5
//	    auth:
//	      scheme: api_key
//	      key_name: appid
//	      key_location: query
//	      key_value: ${OPENWEATHER_API_KEY}
//	    endpoints:
//	      - intent: query
//	        path: /weather
//	        method: GET
//	        params_mapping:
//	          city: q
//
// # Configuration Structure
//
//	service:        name, environment, metrics_addr
//	connectors:     list of ConnectorConfig
//	transport:      addr, password, db, queue, reply_ttl, poll_timeout, workers,
//	                compression, compress_threshold
//	logging:        level, development, encoding, output_paths
//	observability:  service_name, exporter, sampling_rate, batch_timeout
//
// Durations use Go syntax ("30s", "1m"). Every connector gets a 30s request
// timeout unless timeouts.request says otherwise.
package config
