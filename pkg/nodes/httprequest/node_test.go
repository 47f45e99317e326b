package httprequest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
)

func testNodeContext() protocol.NodeContext {
	return protocol.NodeContext{
		Execution: &models.Execution{
			ID:        "e-1",
			FlowID:    "f-1",
			TicketID:  "t-1",
			CompanyID: "c-1",
			Variables: map[string]any{"city": "campinas"},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestExecuteCapturesJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather/campinas", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"temp": 27}`))
	}))
	defer server.Close()

	node, err := NewHTTPRequestNode("api-1", map[string]any{
		"url":             server.URL + "/weather/{{.variables.city}}",
		"result_variable": "weather",
	})
	require.NoError(t, err)

	outcome, err := node.Execute(context.Background(), testNodeContext())
	require.NoError(t, err)

	result, ok := outcome.Variables["weather"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, result["status_code"])
	assert.Equal(t, map[string]any{"temp": float64(27)}, result["json"])
}

func TestExecuteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		_, _ = w.Write([]byte(`ok`))
	}))
	defer server.Close()

	node, err := NewHTTPRequestNode("api-1", map[string]any{
		"url":     server.URL,
		"retries": map[string]any{"attempts": float64(3), "delay": float64(0)},
	})
	require.NoError(t, err)

	outcome, err := node.Execute(context.Background(), testNodeContext())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "api call succeeded", outcome.Summary)
}

func TestExecuteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	node, err := NewHTTPRequestNode("api-1", map[string]any{
		"url":     server.URL,
		"retries": map[string]any{"attempts": float64(5), "delay": float64(0)},
	})
	require.NoError(t, err)

	_, err = node.Execute(context.Background(), testNodeContext())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestNewHTTPRequestNodeRequiresURL(t *testing.T) {
	_, err := NewHTTPRequestNode("api-1", map[string]any{})
	require.Error(t, err)
}
