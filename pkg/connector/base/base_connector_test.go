package base

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ajitpratap0/mcpbridge/pkg/auth"
	"github.com/ajitpratap0/mcpbridge/pkg/connector/core"
	"github.com/ajitpratap0/mcpbridge/pkg/errors"
	"github.com/ajitpratap0/mcpbridge/pkg/mcp"
	"github.com/ajitpratap0/mcpbridge/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newTestBase(t *testing.T, baseURL string, opts ...Option) *BaseConnector {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	bc, err := NewBaseConnector("test", core.APITypeREST, baseURL, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bc.Close() })
	return bc
}

func TestNewBaseConnectorValidation(t *testing.T) {
	_, err := NewBaseConnector("", core.APITypeREST, "http://api")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewBaseConnector("x", core.APITypeREST, "ftp://api")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewBaseConnector("x", core.APITypeREST, "http://api", WithTimeout(0))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewBaseConnector("x", core.APITypeREST, "http://api", WithAuth(auth.Config{Scheme: "kerberos"}))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	bc, err := NewBaseConnector("x", core.APITypeREST, "http://api/")
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, bc.Timeout())
	assert.Equal(t, "http://api", bc.BaseURL())
}

func TestPrepareCallHeadersAndAuth(t *testing.T) {
	bc := newTestBase(t, "http://api",
		WithHeaders(map[string]string{"X-Client": "mcpbridge"}),
		WithAuth(auth.Config{Scheme: auth.SchemeAPIKey, KeyName: "appid", KeyValue: "k", KeyLocation: auth.KeyInQuery}))

	call := &core.HTTPCall{Method: http.MethodPost, BaseURL: bc.BaseURL(), Path: "/x", Body: map[string]interface{}{}}
	bc.PrepareCall(call)

	assert.Equal(t, "application/json", call.Header.Get("Accept"))
	assert.Equal(t, "application/json", call.Header.Get("Content-Type"))
	assert.Equal(t, "mcpbridge", call.Header.Get("X-Client"))
	assert.Equal(t, "k", call.Query.Get("appid"))
	assert.Equal(t, "http://api/x?appid=k", call.URL())
}

func TestExecuteSendsBodyAndBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "u", user)
		assert.Equal(t, "p", pass)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name":"x"}`, string(body))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("queued"))
	}))
	defer srv.Close()

	bc := newTestBase(t, srv.URL)
	require.NoError(t, bc.SetAuth(auth.Config{Scheme: auth.SchemeBasic, Username: "u", Password: "p"}))

	call := &core.HTTPCall{Method: http.MethodPost, BaseURL: bc.BaseURL(), Path: "/jobs",
		Body: map[string]interface{}{"name": "x"}}
	bc.PrepareCall(call)

	raw, err := bc.Execute(context.Background(), call)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, raw.StatusCode)
	assert.Equal(t, "queued", string(raw.Body))
	assert.True(t, raw.Success())
}

func TestExecuteHonorsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	bc := newTestBase(t, srv.URL, WithTimeout(50*time.Millisecond))
	start := time.Now()
	_, err := bc.Execute(context.Background(), &core.HTTPCall{Method: http.MethodGet, BaseURL: bc.BaseURL()})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSetAuthRejectsInvalidConfig(t *testing.T) {
	bc := newTestBase(t, "http://api", WithAuth(auth.Config{Scheme: auth.SchemeBearer, Token: "t"}))
	err := bc.SetAuth(auth.Config{Scheme: auth.SchemeBearer})
	require.Error(t, err)

	// previous configuration stays in force
	call := &core.HTTPCall{Method: http.MethodGet, BaseURL: bc.BaseURL()}
	bc.PrepareCall(call)
	assert.Equal(t, "Bearer t", call.Header.Get("Authorization"))
}

func TestProcessRecoversPanics(t *testing.T) {
	bc := newTestBase(t, "http://api")
	req := mcp.CreateRequest("client", "api.test", mcp.IntentQuery, nil)

	resp, err := bc.Process(context.Background(), req,
		func(*mcp.Message) (*core.HTTPCall, error) { panic("boom") },
		nil)
	require.NoError(t, err)
	require.True(t, resp.IsError())
	assert.Equal(t, mcp.CodeProcessingError, resp.Payload.ErrorCode)
	assert.Equal(t, req.CorrelationID, resp.CorrelationID)
	assert.Equal(t, "panic", resp.Payload.Details["exception_type"])
}

func TestProcessPropagatesConfigErrors(t *testing.T) {
	bc := newTestBase(t, "http://api")
	req := mcp.CreateRequest("client", "api.test", "unknown", nil)

	resp, err := bc.Process(context.Background(), req,
		func(*mcp.Message) (*core.HTTPCall, error) {
			return nil, errors.New(errors.ErrorTypeConfig, "intent not registered")
		}, nil)
	assert.Nil(t, resp)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestConfigErrorsUseBoundedIntentLabel(t *testing.T) {
	bc, err := NewBaseConnector("labels", core.APITypeREST, "http://api", WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer bc.Close()

	unregistered := func(*mcp.Message) (*core.HTTPCall, error) {
		return nil, errors.New(errors.ErrorTypeConfig, "intent not registered")
	}
	for _, intent := range []string{"made_up_1", "made_up_2", "made_up_3"} {
		_, err := bc.Process(context.Background(), mcp.CreateRequest("client", "api.labels", intent, nil), unregistered, nil)
		require.Error(t, err)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.ConnectorRequests.WithLabelValues(
		"labels", "rest", metrics.UnregisteredIntent, metrics.OutcomeConfigError)))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ConnectorRequests.WithLabelValues(
		"labels", "rest", "made_up_1", metrics.OutcomeConfigError)))
}

func TestProcessMapsValidationToProcessingError(t *testing.T) {
	bc := newTestBase(t, "http://api")
	req := mcp.CreateRequest("client", "api.test", mcp.IntentQuery, nil)

	resp, err := bc.Process(context.Background(), req,
		func(*mcp.Message) (*core.HTTPCall, error) {
			return nil, errors.New(errors.ErrorTypeValidation, "unresolved placeholder")
		}, nil)
	require.NoError(t, err)
	assert.Equal(t, mcp.CodeProcessingError, resp.Payload.ErrorCode)
	assert.Equal(t, "validation", resp.Payload.Details["exception_type"])
	assert.Equal(t, "*errors.Error", resp.Payload.Details["error_class"])
	assert.Equal(t, "unresolved placeholder", resp.Payload.ErrorMessage)
}

func TestExecuteLogsCarryCorrelation(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	observed, logs := observer.New(zap.DebugLevel)
	bc, err := NewBaseConnector("correlated", core.APITypeREST, baseURL, WithLogger(zap.New(observed)))
	require.NoError(t, err)
	defer bc.Close()

	req := mcp.CreateRequest("client", "api.correlated", mcp.IntentQuery, nil)
	resp, err := bc.Process(context.Background(), req,
		func(*mcp.Message) (*core.HTTPCall, error) {
			return &core.HTTPCall{Method: http.MethodGet, BaseURL: bc.BaseURL(), Path: "/x"}, nil
		}, nil)
	require.NoError(t, err)
	require.True(t, resp.IsError())

	failed := logs.FilterMessage("backend call failed").All()
	require.Len(t, failed, 1)
	fields := failed[0].ContextMap()
	assert.Equal(t, req.CorrelationID, fields["correlation_id"])
	assert.Equal(t, "correlated", fields["connector"])
	assert.Equal(t, mcp.IntentQuery, fields["intent"])
	assert.Equal(t, "/x", fields["path"])
}
