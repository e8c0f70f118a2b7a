package graphql

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ajitpratap0/mcpbridge/pkg/config"
	"github.com/ajitpratap0/mcpbridge/pkg/connector/base"
	"github.com/ajitpratap0/mcpbridge/pkg/connector/core"
	"github.com/ajitpratap0/mcpbridge/pkg/errors"
	jsonpool "github.com/ajitpratap0/mcpbridge/pkg/json"
	"github.com/ajitpratap0/mcpbridge/pkg/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const countryQuery = `query($code: ID!) { country(code: $code) { name capital } }`

func newBackend(t *testing.T, status int, reply string, got *Request) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		if got != nil {
			assert.NoError(t, jsonpool.Unmarshal(data, got))
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newConnector(t *testing.T, endpoint string, opts ...base.Option) *Connector {
	t.Helper()
	opts = append([]base.Option{base.WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := New("countries", endpoint, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func request(intent string, params mcp.Params) *mcp.Message {
	return mcp.CreateRequest("client.test", "api.countries", intent, params)
}

func TestQuerySuccess(t *testing.T) {
	var got Request
	srv := newBackend(t, http.StatusOK, `{"data":{"country":{"name":"Japan","capital":"Tokyo"}}}`, &got)
	c := newConnector(t, srv.URL+"/graphql")
	c.RegisterQuery(mcp.IntentQuery, countryQuery, map[string]string{"country_code": "code"})

	req := request(mcp.IntentQuery, mcp.Params{"country_code": mcp.String("JP"), "lang": mcp.String("en")})
	resp, err := c.ProcessRequest(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.IsResponse(), "got %+v", resp.Payload)

	assert.Equal(t, countryQuery, got.Query)
	assert.Equal(t, map[string]interface{}{"code": "JP", "lang": "en"}, got.Variables)

	assert.Equal(t, req.CorrelationID, resp.CorrelationID)
	assert.Equal(t, map[string]interface{}{
		"country": map[string]interface{}{"name": "Japan", "capital": "Tokyo"},
	}, resp.Payload.Data)
	assert.Equal(t, "graphql", resp.Payload.Metadata["api_type"])
	assert.Equal(t, "countries", resp.Payload.Metadata["api_name"])
}

func TestMutationSendsVariablesObject(t *testing.T) {
	var got Request
	srv := newBackend(t, http.StatusOK, `{"data":{"addCountry":{"id":"1"}}}`, &got)
	c := newConnector(t, srv.URL)
	c.RegisterMutation(mcp.IntentCreate, `mutation { addCountry { id } }`, nil)

	resp, err := c.ProcessRequest(context.Background(), request(mcp.IntentCreate, nil))
	require.NoError(t, err)
	require.True(t, resp.IsResponse())
	assert.NotNil(t, got.Variables, "variables is always an object")
	assert.Empty(t, got.Variables)
}

func TestGraphQLErrors(t *testing.T) {
	reply := `{"data":null,"errors":[{"message":"Unknown field 'capitol'"},{"message":"Variable $code is required"}]}`
	srv := newBackend(t, http.StatusOK, reply, nil)
	c := newConnector(t, srv.URL)
	c.RegisterQuery(mcp.IntentQuery, countryQuery, nil)

	req := request(mcp.IntentQuery, nil)
	resp, err := c.ProcessRequest(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.IsError())
	assert.Equal(t, mcp.CodeGraphQLError, resp.Payload.ErrorCode)
	assert.Equal(t, req.CorrelationID, resp.CorrelationID)
	assert.Equal(t,
		"GraphQL operation failed: Unknown field 'capitol'; Variable $code is required",
		resp.Payload.ErrorMessage)

	errs, ok := resp.Payload.Details["errors"].([]interface{})
	require.True(t, ok)
	assert.Len(t, errs, 2)
	response, ok := resp.Payload.Details["response"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, response, "data")
}

func TestEmptyErrorsIsSuccess(t *testing.T) {
	for _, reply := range []string{
		`{"data":{"ok":true},"errors":[]}`,
		`{"data":{"ok":true},"errors":null}`,
	} {
		srv := newBackend(t, http.StatusOK, reply, nil)
		c := newConnector(t, srv.URL)
		c.RegisterQuery(mcp.IntentQuery, `{ ok }`, nil)

		resp, err := c.ProcessRequest(context.Background(), request(mcp.IntentQuery, nil))
		require.NoError(t, err)
		require.True(t, resp.IsResponse(), reply)
		assert.Equal(t, map[string]interface{}{"ok": true}, resp.Payload.Data)
	}
}

func TestHTTPFailureIsAPIRequestError(t *testing.T) {
	srv := newBackend(t, http.StatusBadGateway, `upstream down`, nil)
	c := newConnector(t, srv.URL)
	c.RegisterQuery(mcp.IntentQuery, `{ ok }`, nil)

	resp, err := c.ProcessRequest(context.Background(), request(mcp.IntentQuery, nil))
	require.NoError(t, err)
	require.True(t, resp.IsError())
	assert.Equal(t, mcp.CodeAPIRequestError, resp.Payload.ErrorCode)
	assert.Equal(t, http.StatusBadGateway, resp.Payload.Details["status_code"])
	assert.Equal(t, "upstream down", resp.Payload.Details["response_body"])
}

func TestGraphQLErrorsOnNon2xxAreAPIRequestErrors(t *testing.T) {
	srv := newBackend(t, http.StatusBadRequest, `{"errors":[{"message":"syntax"}]}`, nil)
	c := newConnector(t, srv.URL)
	c.RegisterQuery(mcp.IntentQuery, `{ ok `, nil)

	resp, err := c.ProcessRequest(context.Background(), request(mcp.IntentQuery, nil))
	require.NoError(t, err)
	assert.Equal(t, mcp.CodeAPIRequestError, resp.Payload.ErrorCode)
}

func TestUndecodableBodyIsAPIRequestError(t *testing.T) {
	srv := newBackend(t, http.StatusOK, `<html>maintenance</html>`, nil)
	c := newConnector(t, srv.URL)
	c.RegisterQuery(mcp.IntentQuery, `{ ok }`, nil)

	resp, err := c.ProcessRequest(context.Background(), request(mcp.IntentQuery, nil))
	require.NoError(t, err)
	require.True(t, resp.IsError())
	assert.Equal(t, mcp.CodeAPIRequestError, resp.Payload.ErrorCode)
	assert.Equal(t, `<html>maintenance</html>`, resp.Payload.Details["response_body"])
}

func TestRegistrationMovesIntentBetweenKinds(t *testing.T) {
	c := newConnector(t, "http://api.example.com/graphql")
	c.RegisterQuery("upsert", `query { a }`, nil)
	c.RegisterMutation("upsert", `mutation { b }`, nil)
	c.RegisterQuery(mcp.IntentQuery, `query { c }`, nil)
	c.RegisterQuery(mcp.IntentQuery, `query { d }`, nil)

	ops := c.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, core.Operation{Intent: mcp.IntentQuery, Kind: core.OperationQuery,
		Document: `query { d }`, ParamsMapping: map[string]string{}}, ops[0])
	assert.Equal(t, core.OperationMutation, ops[1].Kind)
	assert.Equal(t, `mutation { b }`, ops[1].Document)

	call, err := c.FormatRequest(request("upsert", nil))
	require.NoError(t, err)
	assert.Equal(t, `mutation { b }`, call.Body.(Request).Query)
	assert.Equal(t, http.MethodPost, call.Method)
	assert.Equal(t, "http://api.example.com/graphql", call.URL())
}

func TestUnregisteredIntentIsConfigError(t *testing.T) {
	c := newConnector(t, "http://api.example.com/graphql")

	resp, err := c.ProcessRequest(context.Background(), request("missing", nil))
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestNewFromConfig(t *testing.T) {
	cc := config.NewConnectorConfig("countries", core.APITypeGraphQL, "https://countries.example.com/graphql")
	cc.Queries = []core.Operation{{Intent: mcp.IntentQuery, Document: countryQuery}}
	cc.Mutations = []core.Operation{{Intent: mcp.IntentCreate, Document: `mutation { x }`}}

	conn, err := NewFromConfig(cc, base.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	c := conn.(*Connector)
	defer c.Close()

	assert.Equal(t, []string{mcp.IntentCreate, mcp.IntentQuery}, c.Intents())
	assert.Equal(t, core.APITypeGraphQL, c.APIType())
}
