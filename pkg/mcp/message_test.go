package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCreateRequestAssignsIdentifiers(t *testing.T) {
	params := Params{"city": String("London")}
	req := CreateRequest("client.ui", "api.weather", IntentQuery, params,
		WithMetadata(map[string]interface{}{"user": "u1"}))

	assert.Equal(t, MessageTypeRequest, req.MessageType)
	assert.NotEmpty(t, req.MessageID)
	assert.NotEmpty(t, req.CorrelationID)
	assert.NotEqual(t, req.MessageID, req.CorrelationID)
	assert.Equal(t, "u1", req.Payload.Metadata["user"])
	assert.False(t, req.Timestamp.IsZero())
	require.NoError(t, req.Validate())

	// the envelope owns its parameters
	params["city"] = String("Paris")
	assert.Equal(t, String("London"), req.Payload.Parameters["city"])
}

func TestCreateRequestWithCorrelationID(t *testing.T) {
	req := CreateRequest("a", "b", IntentList, nil, WithCorrelationID("chain-7"))
	assert.Equal(t, "chain-7", req.CorrelationID)
	assert.NotNil(t, req.Payload.Parameters)
}

func TestCreateResponseSwapsEndpoints(t *testing.T) {
	req := CreateRequest("client.ui", "api.weather", IntentQuery, nil)
	resp := CreateResponse(req, map[string]interface{}{"temp": 20.5}, map[string]interface{}{"api_name": "weather"})

	assert.Equal(t, MessageTypeResponse, resp.MessageType)
	assert.Equal(t, "api.weather", resp.Source)
	assert.Equal(t, "client.ui", resp.Destination)
	assert.Equal(t, req.CorrelationID, resp.CorrelationID)
	assert.NotEqual(t, req.MessageID, resp.MessageID)
	assert.Equal(t, IntentQuery, resp.Payload.Intent)
	assert.True(t, resp.IsResponse())
}

func TestCreateErrorAlwaysConstructible(t *testing.T) {
	req := CreateRequest("client.ui", "api.weather", IntentQuery, nil)
	errMsg := CreateError(req, CodeAPIRequestError, "boom", nil)

	assert.True(t, errMsg.IsError())
	assert.Equal(t, req.CorrelationID, errMsg.CorrelationID)
	assert.NotNil(t, errMsg.Payload.Details)
	require.NoError(t, errMsg.Validate())

	orphan := CreateError(nil, CodeProcessingError, "no request", nil)
	assert.True(t, orphan.IsError())
	assert.Empty(t, orphan.CorrelationID)
	assert.Equal(t, "unknown", orphan.Source)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{"nil", nil},
		{"no id", &Message{MessageType: MessageTypeRequest}},
		{"no intent", &Message{MessageID: "1", MessageType: MessageTypeRequest, Source: "a", Destination: "b"}},
		{"no route", &Message{MessageID: "1", MessageType: MessageTypeRequest, Payload: Payload{Intent: "q"}}},
		{"error without code", &Message{MessageID: "1", MessageType: MessageTypeError}},
		{"unknown type", &Message{MessageID: "1", MessageType: "event"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.msg.Validate())
		})
	}
}

func TestCodecRoundTrip(t *testing.T) {
	req := CreateRequest("client.ui", "api.weather", IntentQuery, Params{
		"city":  String("Tokyo"),
		"days":  Int(3),
		"ratio": Float(0.5),
		"tags":  List(String("a"), String("b")),
		"opts":  Object(Params{"metric": Bool(true)}),
	})

	data, err := Encode(req)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, req.MessageID, decoded.MessageID)
	assert.Equal(t, req.CorrelationID, decoded.CorrelationID)
	assert.True(t, req.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, req.Payload.Parameters, decoded.Payload.Parameters)
}

func TestDecodeRejectsInvalidEnvelope(t *testing.T) {
	_, err := Decode([]byte(`{"message_id":"1","message_type":"request"}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = Encode(nil)
	assert.Error(t, err)
}

func TestRepliesCarryRequestCorrelation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "source")
		dst := rapid.StringMatching(`api\.[a-z]{1,8}`).Draw(t, "destination")
		intent := rapid.StringMatching(`[a-z_]{1,10}`).Draw(t, "intent")
		asError := rapid.Bool().Draw(t, "error")

		req := CreateRequest(src, dst, intent, nil)
		var out *Message
		if asError {
			out = CreateError(req, CodeProcessingError, "x", nil)
		} else {
			out = CreateResponse(req, nil, nil)
		}

		if out.CorrelationID != req.CorrelationID {
			t.Fatalf("correlation changed: %s != %s", out.CorrelationID, req.CorrelationID)
		}
		if out.Source != dst || out.Destination != src {
			t.Fatalf("endpoints not swapped: %s -> %s", out.Source, out.Destination)
		}
	})
}
