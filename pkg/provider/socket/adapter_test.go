package socket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/provider"
)

type fakeTransport struct {
	mu       sync.Mutex
	hooks    SessionHooks
	alive    bool
	dialErr  error
	sendErr  error
	qrCodes  []string
	lastTo   string
	lastBody string
}

func (f *fakeTransport) Dial(_ context.Context, _ map[string]any, hooks SessionHooks) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dialErr != nil {
		return f.dialErr
	}

	f.hooks = hooks

	for _, code := range f.qrCodes {
		hooks.OnQRCode(code)
	}

	f.alive = true

	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.alive = false

	return nil
}

func (f *fakeTransport) SendText(_ context.Context, to, body, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return "", f.sendErr
	}

	f.lastTo = to
	f.lastBody = body

	return "ext-123", nil
}

func (f *fakeTransport) SendMedia(_ context.Context, to, _, caption string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastTo = to
	f.lastBody = caption

	return "ext-media-123", nil
}

func (f *fakeTransport) ProfileImageURL(_ context.Context, _ string) (string, error) {
	return "https://cdn.example/avatar.png", nil
}

func (f *fakeTransport) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.alive
}

func (f *fakeTransport) dropConnection(reason string, loggedOut bool) {
	f.mu.Lock()
	f.alive = false
	hooks := f.hooks
	f.mu.Unlock()

	hooks.OnDisconnect(reason, loggedOut)
}

type recordingSink struct {
	mu       sync.Mutex
	qrCodes  []string
	messages []provider.RawInbound
}

func (s *recordingSink) InboundMessage(_ context.Context, _, _ string, raw provider.RawInbound) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, raw)
}

func (s *recordingSink) DeliveryAck(_ context.Context, _, _, _ string, _ time.Time) {}

func (s *recordingSink) Presence(_ context.Context, _, _, _, _ string) {}

func (s *recordingSink) QRCode(_ context.Context, _, _, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.qrCodes = append(s.qrCodes, code)
}

func newTestAdapter(t *testing.T, transport *fakeTransport, sink *recordingSink, onDisconnect provider.DisconnectFunc) *Adapter {
	t.Helper()

	factory := NewFactory(func() SessionTransport { return transport })

	adapter, err := factory.Create(
		&models.ProviderConfig{ID: "provider-1", CompanyID: "company-1", Kind: models.ProviderKindSocket},
		provider.Dependencies{
			Logger:       slog.Default(),
			Events:       sink,
			OnDisconnect: onDisconnect,
		},
	)
	require.NoError(t, err)

	return adapter.(*Adapter)
}

func TestAdapter_ConnectEmitsQRChallenges(t *testing.T) {
	transport := &fakeTransport{qrCodes: []string{"qr-1", "qr-2"}}
	sink := &recordingSink{}
	adapter := newTestAdapter(t, transport, sink, nil)

	require.NoError(t, adapter.Connect(context.Background()))
	assert.True(t, adapter.IsConnected())
	assert.Equal(t, []string{"qr-1", "qr-2"}, sink.qrCodes)
}

func TestAdapter_ConnectFailureIsTyped(t *testing.T) {
	transport := &fakeTransport{dialErr: errors.New("no route to backend")}
	adapter := newTestAdapter(t, transport, &recordingSink{}, nil)

	err := adapter.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, provider.IsConnectError(err))
	assert.False(t, adapter.IsConnected())
}

func TestAdapter_SendRequiresConnection(t *testing.T) {
	adapter := newTestAdapter(t, &fakeTransport{}, &recordingSink{}, nil)

	_, err := adapter.Send(context.Background(), models.NormalizedMessage{
		ToAddress: "5511988887777",
		Body:      "hello",
	})
	require.ErrorIs(t, err, provider.ErrNotConnected)
}

func TestAdapter_SendAppendsWireSuffix(t *testing.T) {
	transport := &fakeTransport{}
	adapter := newTestAdapter(t, transport, &recordingSink{}, nil)
	require.NoError(t, adapter.Connect(context.Background()))

	externalID, err := adapter.Send(context.Background(), models.NormalizedMessage{
		ToAddress: "5511988887777",
		Body:      "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "ext-123", externalID)
	assert.Equal(t, "5511988887777"+AddressSuffix, transport.lastTo)
}

func TestAdapter_UnexpectedDisconnectReported(t *testing.T) {
	transport := &fakeTransport{}

	var gotReason string

	var gotLoggedOut bool

	adapter := newTestAdapter(t, transport, &recordingSink{}, func(_, reason string, loggedOut bool) {
		gotReason = reason
		gotLoggedOut = loggedOut
	})
	require.NoError(t, adapter.Connect(context.Background()))

	transport.dropConnection("stream error", false)

	assert.False(t, adapter.IsConnected())
	assert.Equal(t, "stream error", gotReason)
	assert.False(t, gotLoggedOut)
	assert.False(t, adapter.LoggedOut())
}

func TestAdapter_LoggedOutIsTerminal(t *testing.T) {
	transport := &fakeTransport{}
	adapter := newTestAdapter(t, transport, &recordingSink{}, nil)
	require.NoError(t, adapter.Connect(context.Background()))

	transport.dropConnection("logged out", true)

	assert.True(t, adapter.LoggedOut())
	assert.False(t, adapter.IsConnected())
}

func TestAdapter_DisconnectIsIdempotent(t *testing.T) {
	transport := &fakeTransport{}
	adapter := newTestAdapter(t, transport, &recordingSink{}, nil)
	require.NoError(t, adapter.Connect(context.Background()))

	adapter.Disconnect(context.Background())
	adapter.Disconnect(context.Background())

	assert.False(t, adapter.IsConnected())
}

func TestAdapter_InboundMessageForwardedToSink(t *testing.T) {
	transport := &fakeTransport{}
	sink := &recordingSink{}
	adapter := newTestAdapter(t, transport, sink, nil)
	require.NoError(t, adapter.Connect(context.Background()))

	transport.hooks.OnMessage(provider.RawInbound{
		ExternalID: "in-1",
		From:       "5511988887777@s.whatsapp.net",
		Body:       "oi",
	})

	require.Len(t, sink.messages, 1)
	assert.Equal(t, "oi", sink.messages[0].Body)
}
