// Package socket implements the persistent-socket backend adapter. The
// vendor SDK is driven through the narrow SessionTransport interface; this
// package never speaks the wire protocol itself.
package socket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/atendohq/atendo/pkg/address"
	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/provider"
)

// AddressSuffix is the backend-specific address suffix appended to
// canonical addresses on the wire.
const AddressSuffix = "@s.whatsapp.net"

// SessionHooks are the callbacks a transport fires while a session is live.
type SessionHooks struct {
	OnQRCode     func(code string)
	OnMessage    func(raw provider.RawInbound)
	OnAck        func(externalID string, at time.Time)
	OnPresence   func(addr, presence string)
	OnDisconnect func(reason string, loggedOut bool)
}

// SessionTransport is the capability surface the vendor SDK must provide.
// Dial blocks until the session is paired and open, emitting QR challenges
// through the hooks while pairing is pending.
type SessionTransport interface {
	Dial(ctx context.Context, credentials map[string]any, hooks SessionHooks) error
	Close() error
	SendText(ctx context.Context, to, body, quotedExternalID string) (string, error)
	SendMedia(ctx context.Context, to, mediaRef, caption string) (string, error)
	ProfileImageURL(ctx context.Context, addr string) (string, error)
	Alive() bool
}

// TransportDialer builds one transport per adapter instance. No transport
// is ever shared across connections.
type TransportDialer func() SessionTransport

type Adapter struct {
	config    *models.ProviderConfig
	deps      provider.Dependencies
	logger    *slog.Logger
	transport SessionTransport

	mu        sync.Mutex
	connected bool
	loggedOut bool
}

type Factory struct {
	dial TransportDialer
}

func NewFactory(dial TransportDialer) *Factory {
	return &Factory{dial: dial}
}

func (f *Factory) Kind() models.ProviderKind {
	return models.ProviderKindSocket
}

func (f *Factory) Create(config *models.ProviderConfig, deps provider.Dependencies) (provider.Adapter, error) {
	return &Adapter{
		config:    config,
		deps:      deps,
		logger:    deps.Logger.With("module", "socket_adapter", "provider_id", config.ID),
		transport: f.dial(),
	}, nil
}

// Connect dials the backend session. While the session is unpaired the
// transport emits rotating QR challenges, forwarded to the event sink; once
// paired, credentials are durable and later connects skip QR entirely.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.connected {
		a.mu.Unlock()

		return nil
	}

	a.loggedOut = false
	a.mu.Unlock()

	hooks := SessionHooks{
		OnQRCode: func(code string) {
			a.logger.Info("QR challenge issued")
			a.deps.Events.QRCode(ctx, a.config.ID, a.config.CompanyID, code)
		},
		OnMessage: func(raw provider.RawInbound) {
			a.deps.Events.InboundMessage(context.Background(), a.config.ID, a.config.CompanyID, raw)
		},
		OnAck: func(externalID string, at time.Time) {
			a.deps.Events.DeliveryAck(context.Background(), a.config.ID, a.config.CompanyID, externalID, at)
		},
		OnPresence: func(addr, presence string) {
			a.deps.Events.Presence(context.Background(), a.config.ID, a.config.CompanyID, addr, presence)
		},
		OnDisconnect: a.handleDisconnect,
	}

	err := a.transport.Dial(ctx, a.config.Credentials, hooks)
	if err != nil {
		return &provider.ConnectError{
			ProviderID: a.config.ID,
			Reason:     "session dial failed",
			Err:        err,
		}
	}

	a.mu.Lock()
	a.connected = true
	a.mu.Unlock()

	a.logger.Info("Session connected")

	return nil
}

func (a *Adapter) handleDisconnect(reason string, loggedOut bool) {
	a.mu.Lock()
	a.connected = false
	a.loggedOut = loggedOut
	a.mu.Unlock()

	if loggedOut {
		a.logger.Warn("Session logged out, re-pairing required", "reason", reason)
	} else {
		a.logger.Warn("Session lost", "reason", reason)
	}

	if a.deps.OnDisconnect != nil {
		a.deps.OnDisconnect(a.config.ID, reason, loggedOut)
	}
}

// Disconnect closes the session handle. Safe to call repeatedly.
func (a *Adapter) Disconnect(_ context.Context) {
	a.mu.Lock()
	wasConnected := a.connected
	a.connected = false
	a.mu.Unlock()

	if !wasConnected {
		return
	}

	if err := a.transport.Close(); err != nil {
		a.logger.Warn("Error closing session transport", "error", err)
	}
}

func (a *Adapter) Send(ctx context.Context, msg models.NormalizedMessage) (string, error) {
	if !a.IsConnected() {
		return "", provider.ErrNotConnected
	}

	to := address.WireAddress(msg.ToAddress, AddressSuffix)

	if msg.MediaRef != "" {
		return a.transport.SendMedia(ctx, to, msg.MediaRef, msg.Body)
	}

	return a.transport.SendText(ctx, to, msg.Body, msg.QuotedExternalID)
}

func (a *Adapter) FetchProfileImage(ctx context.Context, addr string) string {
	url, err := a.transport.ProfileImageURL(ctx, address.WireAddress(addr, AddressSuffix))
	if err != nil {
		a.logger.Debug("Profile image fetch failed", "address", addr, "error", err)

		return ""
	}

	return url
}

func (a *Adapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.connected && a.transport.Alive()
}

// LoggedOut reports whether the last disconnect was terminal.
func (a *Adapter) LoggedOut() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.loggedOut
}

var _ provider.Adapter = (*Adapter)(nil)
var _ provider.AdapterFactory = (*Factory)(nil)
