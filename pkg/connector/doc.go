// Package connector groups the backend connectors of mcpbridge.
//
// # Architecture Overview
//
//   - core: The Connector interface, API types, endpoint and operation
//     descriptions and the HTTPCall/RawResponse pair that separates request
//     formatting from I/O.
//
//   - base: BaseConnector, embedded by every connector. It owns the HTTP
//     client, credentials, default headers and the request timeout, applies
//     parameter mappings and turns failures into ERROR envelopes.
//
//   - rest: Maps intents to method and path templates. Parameters travel in
//     the query string for GET, DELETE and HEAD and as a JSON body otherwise.
//
//   - graphql: Maps intents to query or mutation documents posted to a single
//     endpoint.
//
//   - registry: Connector factories keyed by API type, and the Registry that
//     binds connectors to api.<name> router destinations.
//
// # Outcomes
//
// ProcessRequest answers every request with one envelope. Backend, transport
// and decoding failures become ERROR envelopes (API_REQUEST_ERROR,
// GRAPHQL_ERROR or PROCESSING_ERROR). Only configuration defects, such as an
// intent with no registered endpoint, are returned as Go errors.
package connector
