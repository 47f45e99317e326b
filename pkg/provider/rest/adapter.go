// Package rest implements the REST/webhook backend adapter. "Connection"
// here is a logical state confirmed against the vendor API; inbound events
// arrive exclusively through the webhook surface, never a socket listener.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/provider"
)

const defaultRequestTimeout = 30 * time.Second

// fallback when the backend throttles without advising a delay
const defaultRetryAfter = 5 * time.Second

type Adapter struct {
	config  *models.ProviderConfig
	deps    provider.Dependencies
	logger  *slog.Logger
	client  *http.Client
	baseURL string
	token   string

	mu        sync.Mutex
	connected bool
}

type Factory struct {
	client *http.Client
}

// NewFactory builds rest adapters sharing one HTTP client. Pass nil to use
// a default client with a bounded timeout.
func NewFactory(client *http.Client) *Factory {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}

	return &Factory{client: client}
}

func (f *Factory) Kind() models.ProviderKind {
	return models.ProviderKindRest
}

func (f *Factory) Create(config *models.ProviderConfig, deps provider.Dependencies) (provider.Adapter, error) {
	baseURL, _ := config.Credentials["base_url"].(string)
	if baseURL == "" {
		return nil, fmt.Errorf("rest provider %s: credentials missing base_url", config.ID)
	}

	token, _ := config.Credentials["api_token"].(string)

	return &Adapter{
		config:  config,
		deps:    deps,
		logger:  deps.Logger.With("module", "rest_adapter", "provider_id", config.ID),
		client:  f.client,
		baseURL: baseURL,
		token:   token,
	}, nil
}

// Connect confirms the logical connection by probing the vendor health
// endpoint with the configured credentials.
func (a *Adapter) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/health", nil)
	if err != nil {
		return &provider.ConnectError{ProviderID: a.config.ID, Reason: "building health request", Err: err}
	}

	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return &provider.ConnectError{ProviderID: a.config.ID, Reason: "backend unreachable", Err: err}
	}

	defer closeBody(resp.Body, a.logger)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &provider.ConnectError{ProviderID: a.config.ID, Reason: "invalid credentials"}
	case resp.StatusCode >= 300:
		return &provider.ConnectError{
			ProviderID: a.config.ID,
			Reason:     fmt.Sprintf("health check returned status %d", resp.StatusCode),
		}
	}

	a.mu.Lock()
	a.connected = true
	a.mu.Unlock()

	a.logger.Info("Backend API reachable, provider connected")

	return nil
}

func (a *Adapter) Disconnect(_ context.Context) {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
}

type sendRequest struct {
	To       string `json:"to"`
	Body     string `json:"body,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
	QuotedID string `json:"quoted_id,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

func (a *Adapter) Send(ctx context.Context, msg models.NormalizedMessage) (string, error) {
	if !a.IsConnected() {
		return "", provider.ErrNotConnected
	}

	payload, err := json.Marshal(sendRequest{
		To:       msg.ToAddress,
		Body:     msg.Body,
		MediaURL: msg.MediaRef,
		QuotedID: msg.QuotedExternalID,
	})
	if err != nil {
		return "", fmt.Errorf("encoding send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building send request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending message via backend API: %w", err)
	}

	defer closeBody(resp.Body, a.logger)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &provider.RateLimitedError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		var decoded sendResponse

		_ = json.NewDecoder(resp.Body).Decode(&decoded)

		return "", &provider.DeliveryRejectedError{Address: msg.ToAddress, Reason: decoded.Error}
	case resp.StatusCode >= 300:
		return "", fmt.Errorf("backend API returned status %d", resp.StatusCode)
	}

	var decoded sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding send response: %w", err)
	}

	return decoded.MessageID, nil
}

func (a *Adapter) FetchProfileImage(ctx context.Context, addr string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/contacts/"+addr+"/avatar", nil)
	if err != nil {
		a.logger.Debug("Profile image request build failed", "address", addr, "error", err)

		return ""
	}

	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Debug("Profile image fetch failed", "address", addr, "error", err)

		return ""
	}

	defer closeBody(resp.Body, a.logger)

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var decoded struct {
		URL string `json:"url"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		a.logger.Debug("Profile image response decode failed", "address", addr, "error", err)

		return ""
	}

	return decoded.URL
}

func (a *Adapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.connected
}

func (a *Adapter) authorize(req *http.Request) {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
}

func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return defaultRetryAfter
	}

	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return defaultRetryAfter
	}

	return time.Duration(seconds) * time.Second
}

func closeBody(body io.ReadCloser, logger *slog.Logger) {
	if err := body.Close(); err != nil {
		logger.Debug("Failed to close response body", "error", err)
	}
}

var _ provider.Adapter = (*Adapter)(nil)
var _ provider.AdapterFactory = (*Factory)(nil)
