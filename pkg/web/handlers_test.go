package web_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendohq/atendo/pkg/eventbus"
	"github.com/atendohq/atendo/pkg/events"
	"github.com/atendohq/atendo/pkg/flow"
	"github.com/atendohq/atendo/pkg/gateway"
	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/persistence"
	"github.com/atendohq/atendo/pkg/persistence/file"
	"github.com/atendohq/atendo/pkg/registry"
	"github.com/atendohq/atendo/pkg/web"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) ofType(eventType events.EventType) []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []eventbus.Event

	for _, event := range p.events {
		if event.GetType() == eventType {
			out = append(out, event)
		}
	}

	return out
}

type nopRouter struct{}

func (nopRouter) TransferToQueue(_ context.Context, _, _, _ string) error {
	return nil
}

type testEnv struct {
	app         *fiber.App
	persistence persistence.Persistence
	publisher   *recordingPublisher
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pers, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	clock := clockwork.NewRealClock()

	gw := gateway.New(logger, clock, publisher, pers.ProviderRepository(), nil, gateway.RegistryConfig{})

	nodeRegistry := registry.NewRegistry(logger)
	nodeRegistry.RegisterDefaultNodes(gw, nopRouter{})

	engine := flow.NewEngine(logger, clock, pers.FlowRepository(), pers.ExecutionRepository(), nodeRegistry, publisher, flow.EngineConfig{})

	handlers := web.NewAPIHandlers(logger, pers, gw, engine, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	web.Router(app, handlers)

	return &testEnv{app: app, persistence: pers, publisher: publisher}
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	return req
}

func seedRestProvider(t *testing.T, env *testEnv, companyID, secret string) *models.ProviderConfig {
	t.Helper()

	config := &models.ProviderConfig{
		ID:            uuid.NewString(),
		CompanyID:     companyID,
		Kind:          models.ProviderKindRest,
		Name:          "Vendor API",
		IsActive:      true,
		IsDefault:     true,
		WebhookSecret: secret,
		Credentials:   map[string]any{"base_url": "http://backend.test"},
		CreatedAt:     time.Now().UTC(),
	}

	require.NoError(t, env.persistence.ProviderRepository().SaveProvider(context.Background(), config))

	return config
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func trivialFlow(companyID string) models.FlowGraph {
	return models.FlowGraph{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		Name:        "Greeting flow",
		Version:     1,
		EntryNodeID: "start",
		Nodes: map[string]*models.NodeSpec{
			"start": {ID: "start", Kind: models.NodeKindStart},
			"end":   {ID: "end", Kind: models.NodeKindEnd},
		},
		Edges: []models.Edge{
			{SourceNodeID: "start", TargetNodeID: "end"},
		},
	}
}

func TestWebhookAcceptsSignedMessage(t *testing.T) {
	env := setupTestApp(t)
	seedRestProvider(t, env, "c-1", "topsecret")

	body, err := json.Marshal(map[string]any{
		"event": "message",
		"message": map[string]any{
			"id":        "wamid-1",
			"from":      "11987654321",
			"to":        "5511900000000",
			"body":      "oi",
			"timestamp": time.Now().Unix(),
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhook/rest-backend/c-1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", sign("topsecret", body))

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	received := env.publisher.ofType(events.MessageReceivedEvent)
	require.Len(t, received, 1)

	event, ok := received[0].(events.MessageReceived)
	require.True(t, ok)
	assert.Equal(t, "5511987654321", event.Message.FromAddress)
	assert.Equal(t, "oi", event.Message.Body)
}

func TestWebhookRejectsTamperedBody(t *testing.T) {
	env := setupTestApp(t)
	seedRestProvider(t, env, "c-1", "topsecret")

	original := []byte(`{"event":"message","message":{"id":"m1","from":"11911112222","body":"pago"}}`)
	tampered := []byte(`{"event":"message","message":{"id":"m1","from":"11911112222","body":"cancelar"}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook/rest-backend/c-1", bytes.NewReader(tampered))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", sign("topsecret", original))

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, env.publisher.ofType(events.MessageReceivedEvent))
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	env := setupTestApp(t)
	seedRestProvider(t, env, "c-1", "topsecret")

	req := httptest.NewRequest(http.MethodPost, "/webhook/rest-backend/c-1", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhookDropsUnrecognizedEvent(t *testing.T) {
	env := setupTestApp(t)
	seedRestProvider(t, env, "c-1", "topsecret")

	body := []byte(`{"event":"label_added","label":{"id":"l1"}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook/rest-backend/c-1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", sign("topsecret", body))

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, env.publisher.events)

	decoded := decodeJSON(t, resp)
	assert.Equal(t, "ignored", decoded["status"])
}

func TestCreateProvider(t *testing.T) {
	env := setupTestApp(t)

	req := jsonRequest(t, http.MethodPost, "/providers/", web.CreateProviderRequest{
		CompanyID:   "c-7",
		Kind:        "socket-backend",
		Name:        "Main WhatsApp line",
		Credentials: map[string]any{"session": "blob"},
	})

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var config models.ProviderConfig
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&config))
	assert.NotEmpty(t, config.ID)
	assert.True(t, config.IsActive)

	stored, err := env.persistence.ProviderRepository().ProviderByID(context.Background(), config.ID)
	require.NoError(t, err)
	assert.Equal(t, "Main WhatsApp line", stored.Name)
}

func TestCreateProviderValidation(t *testing.T) {
	env := setupTestApp(t)

	req := jsonRequest(t, http.MethodPost, "/providers/", web.CreateProviderRequest{
		CompanyID: "c-7",
		Kind:      "carrier-pigeon",
		Name:      "x",
	})

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateFlowRejectsInvalidGraph(t *testing.T) {
	env := setupTestApp(t)

	graph := trivialFlow("c-1")
	graph.Edges = nil // end unreachable

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/flows/", graph))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestFlowLifecycle(t *testing.T) {
	env := setupTestApp(t)
	graph := trivialFlow("c-1")

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/flows/", graph))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = env.app.Test(jsonRequest(t, http.MethodPost, "/flows/"+graph.ID+"/publish", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/flows/"+graph.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stored models.FlowGraph
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stored))
	require.NotNil(t, stored.PublishedAt)
}

func TestStartExecutionRunsFlow(t *testing.T) {
	env := setupTestApp(t)
	graph := trivialFlow("c-1")
	require.NoError(t, env.persistence.FlowRepository().SaveFlow(context.Background(), &graph))

	req := jsonRequest(t, http.MethodPost, "/executions/", web.StartExecutionRequest{
		FlowID:    graph.ID,
		TicketID:  "t-55",
		ContactID: "5511987654321",
	})

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var execution models.Execution
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&execution))
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/executions/"+execution.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetExecutionNotFound(t *testing.T) {
	env := setupTestApp(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/executions/"+uuid.NewString(), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendMessageWithoutProvider(t *testing.T) {
	env := setupTestApp(t)

	req := jsonRequest(t, http.MethodPost, "/messages", web.SendMessageRequest{
		CompanyID: "c-1",
		TicketID:  "t-1",
		ToAddress: "11987654321",
		Body:      "oi",
	})

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	env := setupTestApp(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	decoded := decodeJSON(t, resp)
	assert.Equal(t, "healthy", decoded["status"])
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))

	return decoded
}
