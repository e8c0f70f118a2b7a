// Package mcp defines the message envelope exchanged between mcpbridge
// components and the router that delivers envelopes to their handlers.
//
// Every request carries a correlation ID generated when the request is
// created. Responses and errors built with CreateResponse and CreateError
// copy it from the request they answer, so a whole exchange can be traced
// through logs by a single identifier.
//
//	req := mcp.CreateRequest("client.ui", "api.weather", mcp.IntentQuery,
//	    mcp.Params{"city": mcp.String("London")})
//	resp, err := router.Route(ctx, req)
package mcp

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType is the kind of envelope.
type MessageType string

const (
	MessageTypeRequest  MessageType = "request"
	MessageTypeResponse MessageType = "response"
	MessageTypeError    MessageType = "error"
)

// ErrorCode classifies ERROR envelopes.
type ErrorCode string

const (
	// CodeAPIRequestError is a transport-level failure: connection refused,
	// timeout, cancellation, non-2xx status or an undecodable body.
	CodeAPIRequestError ErrorCode = "API_REQUEST_ERROR"
	// CodeGraphQLError is a successful HTTP exchange whose body reports errors.
	CodeGraphQLError ErrorCode = "GRAPHQL_ERROR"
	// CodeProcessingError is an unexpected local fault.
	CodeProcessingError ErrorCode = "PROCESSING_ERROR"
	// CodeRouteNotFound means no handler is registered for the destination.
	CodeRouteNotFound ErrorCode = "ROUTE_NOT_FOUND"
	// CodeMessageRejected means router middleware refused the message.
	CodeMessageRejected ErrorCode = "MESSAGE_REJECTED"
	// CodeNoResponse means a handler produced nothing for a request.
	CodeNoResponse ErrorCode = "NO_RESPONSE"
)

// Common intents. Connectors accept any registered intent name.
const (
	IntentQuery        = "query"
	IntentCreate       = "create"
	IntentUpdate       = "update"
	IntentDelete       = "delete"
	IntentList         = "list"
	IntentAuthenticate = "authenticate"
	IntentCustom       = "custom"
)

// Payload carries the type-dependent part of an envelope.
//
// REQUEST uses Intent, Parameters and Metadata. RESPONSE uses Data and
// Metadata. ERROR uses ErrorCode, ErrorMessage and Details. Replies echo the
// request intent.
type Payload struct {
	Intent       string                 `json:"intent,omitempty"`
	Parameters   Params                 `json:"parameters,omitempty"`
	Data         interface{}            `json:"data,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	ErrorCode    ErrorCode              `json:"error_code,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// Message is the envelope. Treat a Message as immutable once it has been
// handed to a router, connector or transport.
type Message struct {
	MessageID     string      `json:"message_id"`
	MessageType   MessageType `json:"message_type"`
	Source        string      `json:"source"`
	Destination   string      `json:"destination"`
	CorrelationID string      `json:"correlation_id"`
	Timestamp     time.Time   `json:"timestamp"`
	Payload       Payload     `json:"payload"`
}

type requestOptions struct {
	correlationID string
	metadata      map[string]interface{}
}

// RequestOption customizes CreateRequest.
type RequestOption func(*requestOptions)

// WithCorrelationID continues an existing exchange instead of starting a new one.
func WithCorrelationID(id string) RequestOption {
	return func(o *requestOptions) { o.correlationID = id }
}

// WithMetadata attaches request metadata.
func WithMetadata(md map[string]interface{}) RequestOption {
	return func(o *requestOptions) { o.metadata = md }
}

// CreateRequest builds a REQUEST with a fresh message ID and correlation ID.
func CreateRequest(source, destination, intent string, params Params, opts ...RequestOption) *Message {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.correlationID == "" {
		o.correlationID = uuid.NewString()
	}
	if params == nil {
		params = Params{}
	}

	return &Message{
		MessageID:     uuid.NewString(),
		MessageType:   MessageTypeRequest,
		Source:        source,
		Destination:   destination,
		CorrelationID: o.correlationID,
		Timestamp:     time.Now().UTC(),
		Payload: Payload{
			Intent:     intent,
			Parameters: params.Clone(),
			Metadata:   copyMap(o.metadata),
		},
	}
}

// CreateResponse builds the RESPONSE answering original.
func CreateResponse(original *Message, data interface{}, metadata map[string]interface{}) *Message {
	msg := reply(original, MessageTypeResponse)
	msg.Payload.Data = data
	msg.Payload.Metadata = copyMap(metadata)
	return msg
}

// CreateError builds the ERROR answering original. It never fails; a nil
// original yields an uncorrelated error envelope.
func CreateError(original *Message, code ErrorCode, message string, details map[string]interface{}) *Message {
	msg := reply(original, MessageTypeError)
	msg.Payload.ErrorCode = code
	msg.Payload.ErrorMessage = message
	msg.Payload.Details = copyMap(details)
	if msg.Payload.Details == nil {
		msg.Payload.Details = map[string]interface{}{}
	}
	return msg
}

func reply(original *Message, typ MessageType) *Message {
	msg := &Message{
		MessageID:   uuid.NewString(),
		MessageType: typ,
		Source:      "unknown",
		Timestamp:   time.Now().UTC(),
	}
	if original != nil {
		msg.Source = original.Destination
		msg.Destination = original.Source
		msg.CorrelationID = original.CorrelationID
		msg.Payload.Intent = original.Payload.Intent
	}
	return msg
}

// IsRequest reports whether m is a REQUEST.
func (m *Message) IsRequest() bool { return m != nil && m.MessageType == MessageTypeRequest }

// IsResponse reports whether m is a RESPONSE.
func (m *Message) IsResponse() bool { return m != nil && m.MessageType == MessageTypeResponse }

// IsError reports whether m is an ERROR.
func (m *Message) IsError() bool { return m != nil && m.MessageType == MessageTypeError }

// Validate checks the structural rules of an envelope.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("mcp: nil message")
	}
	if m.MessageID == "" {
		return fmt.Errorf("mcp: message_id is required")
	}
	switch m.MessageType {
	case MessageTypeRequest:
		if m.Payload.Intent == "" {
			return fmt.Errorf("mcp: request %s has no intent", m.MessageID)
		}
		if m.Source == "" || m.Destination == "" {
			return fmt.Errorf("mcp: request %s needs source and destination", m.MessageID)
		}
	case MessageTypeResponse:
	case MessageTypeError:
		if m.Payload.ErrorCode == "" {
			return fmt.Errorf("mcp: error %s has no error_code", m.MessageID)
		}
	default:
		return fmt.Errorf("mcp: unknown message_type %q", m.MessageType)
	}
	return nil
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
