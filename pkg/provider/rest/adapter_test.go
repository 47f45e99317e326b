package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/provider"
)

type nopSink struct{}

func (nopSink) InboundMessage(context.Context, string, string, provider.RawInbound) {}
func (nopSink) DeliveryAck(context.Context, string, string, string, time.Time)      {}
func (nopSink) Presence(context.Context, string, string, string, string)            {}
func (nopSink) QRCode(context.Context, string, string, string)                      {}

func newTestAdapter(t *testing.T, handler http.Handler) (provider.Adapter, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	factory := NewFactory(server.Client())

	adapter, err := factory.Create(
		&models.ProviderConfig{
			ID:        "provider-rest",
			CompanyID: "company-1",
			Kind:      models.ProviderKindRest,
			Credentials: map[string]any{
				"base_url":  server.URL,
				"api_token": "secret-token",
			},
		},
		provider.Dependencies{Logger: slog.Default(), Events: nopSink{}},
	)
	require.NoError(t, err)

	return adapter, server
}

func healthOK(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdapter_ConnectChecksHealth(t *testing.T) {
	mux := http.NewServeMux()

	var gotAuth string

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		w.WriteHeader(http.StatusOK)
	})

	adapter, _ := newTestAdapter(t, mux)

	require.NoError(t, adapter.Connect(context.Background()))
	assert.True(t, adapter.IsConnected())
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestAdapter_ConnectRejectsBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	adapter, _ := newTestAdapter(t, mux)

	err := adapter.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, provider.IsConnectError(err))
	assert.False(t, adapter.IsConnected())
}

func TestAdapter_SendReturnsExternalID(t *testing.T) {
	mux := http.NewServeMux()
	healthOK(mux)

	mux.HandleFunc("POST /v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest

		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "5511988887777", req.To)
		assert.Equal(t, "hello", req.Body)

		_ = json.NewEncoder(w).Encode(sendResponse{MessageID: "wamid.123"})
	})

	adapter, _ := newTestAdapter(t, mux)
	require.NoError(t, adapter.Connect(context.Background()))

	externalID, err := adapter.Send(context.Background(), models.NormalizedMessage{
		ToAddress: "5511988887777",
		Body:      "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.123", externalID)
}

func TestAdapter_SendNotConnected(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.NewServeMux())

	_, err := adapter.Send(context.Background(), models.NormalizedMessage{ToAddress: "x"})
	require.ErrorIs(t, err, provider.ErrNotConnected)
}

func TestAdapter_SendRateLimitedCarriesRetryAfter(t *testing.T) {
	mux := http.NewServeMux()
	healthOK(mux)

	mux.HandleFunc("POST /v1/messages", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	adapter, _ := newTestAdapter(t, mux)
	require.NoError(t, adapter.Connect(context.Background()))

	_, err := adapter.Send(context.Background(), models.NormalizedMessage{ToAddress: "x", Body: "y"})
	require.Error(t, err)

	delay, ok := provider.IsRateLimited(err)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, delay)
}

func TestAdapter_SendDeliveryRejected(t *testing.T) {
	mux := http.NewServeMux()
	healthOK(mux)

	mux.HandleFunc("POST /v1/messages", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(sendResponse{Error: "invalid destination"})
	})

	adapter, _ := newTestAdapter(t, mux)
	require.NoError(t, adapter.Connect(context.Background()))

	_, err := adapter.Send(context.Background(), models.NormalizedMessage{ToAddress: "bad", Body: "y"})
	require.Error(t, err)
	assert.True(t, provider.IsDeliveryRejected(err))
	assert.Contains(t, err.Error(), "invalid destination")
}

func TestAdapter_FetchProfileImageBestEffort(t *testing.T) {
	mux := http.NewServeMux()
	healthOK(mux)

	mux.HandleFunc("GET /v1/contacts/5511988887777/avatar", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example/a.png"})
	})

	adapter, _ := newTestAdapter(t, mux)
	require.NoError(t, adapter.Connect(context.Background()))

	assert.Equal(t, "https://cdn.example/a.png", adapter.FetchProfileImage(context.Background(), "5511988887777"))
	// Unknown contact: empty string, no error.
	assert.Empty(t, adapter.FetchProfileImage(context.Background(), "unknown"))
}

func TestFactory_RequiresBaseURL(t *testing.T) {
	factory := NewFactory(nil)

	_, err := factory.Create(
		&models.ProviderConfig{ID: "p", Credentials: map[string]any{}},
		provider.Dependencies{Logger: slog.Default(), Events: nopSink{}},
	)
	require.Error(t, err)
}
