// Package provider defines the capability contract every messaging backend
// adapter implements, plus the typed errors adapters surface. Adapters know
// nothing about flows; they translate one vendor's SDK into this contract.
package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/atendohq/atendo/pkg/models"
)

// DisconnectFunc is how an adapter reports losing its backend connection.
// loggedOut marks a terminal loss (requires re-pairing); the registry only
// schedules reconnection for non-loggedOut losses.
type DisconnectFunc func(providerID, reason string, loggedOut bool)

// RawInbound is an inbound message as the backend handed it over, before
// address canonicalization and media-kind inference.
type RawInbound struct {
	ExternalID       string
	From             string
	To               string
	Body             string
	MediaRef         string
	MediaMime        string
	QuotedExternalID string
	Timestamp        time.Time
}

// EventSink receives every inbound adapter event. The gateway facade is the
// production implementation: it normalizes and publishes on the event bus.
type EventSink interface {
	InboundMessage(ctx context.Context, providerID, companyID string, raw RawInbound)
	DeliveryAck(ctx context.Context, providerID, companyID, externalID string, at time.Time)
	Presence(ctx context.Context, providerID, companyID, address, presence string)
	QRCode(ctx context.Context, providerID, companyID, code string)
}

// Dependencies are injected into every adapter at construction. Adapters
// publish inbound events through Events instead of reaching for any global
// emitter, so each one is independently testable.
type Dependencies struct {
	Logger       *slog.Logger
	Events       EventSink
	OnDisconnect DisconnectFunc
}

// Adapter is the narrow contract over one messaging backend.
type Adapter interface {
	// Connect establishes the backend session. It may take seconds and may
	// emit QR challenges (socket backends) before succeeding. Failures are
	// always a *ConnectError.
	Connect(ctx context.Context) error

	// Disconnect releases the backend handle. Idempotent, never fails.
	Disconnect(ctx context.Context)

	// Send delivers one outbound message and returns the backend's external
	// id. Fails with ErrNotConnected, *RateLimitedError or
	// *DeliveryRejectedError.
	Send(ctx context.Context, msg models.NormalizedMessage) (string, error)

	// FetchProfileImage is best-effort: it logs and returns "" on failure.
	FetchProfileImage(ctx context.Context, address string) string

	// IsConnected reflects actual transport liveness, not just that
	// Connect was called.
	IsConnected() bool
}

// AdapterFactory builds adapters for one provider kind.
type AdapterFactory interface {
	Create(config *models.ProviderConfig, deps Dependencies) (Adapter, error)
	Kind() models.ProviderKind
}
