// Package gateway is the single entry point for sending and receiving
// messages across provider backends. It owns the provider registry, turns
// raw adapter events into normalized bus events and applies address
// canonicalization so the rest of the platform never sees wire formats.
package gateway

import (
	"context"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/atendohq/atendo/pkg/address"
	"github.com/atendohq/atendo/pkg/eventbus"
	"github.com/atendohq/atendo/pkg/events"
	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/otelhelper"
	"github.com/atendohq/atendo/pkg/persistence"
	"github.com/atendohq/atendo/pkg/provider"
)

var tracer = otel.Tracer("atendo/gateway")

// TicketResolver maps an inbound contact to the ticket its messages belong
// to. The platform's ticketing service implements this; AddressTicketResolver
// is the standalone fallback.
type TicketResolver interface {
	TicketFor(ctx context.Context, companyID, contactAddress, providerID string) (string, error)
}

// AddressTicketResolver derives a stable ticket id from the contact address,
// giving every contact exactly one open conversation per company.
type AddressTicketResolver struct{}

func (AddressTicketResolver) TicketFor(_ context.Context, companyID, contactAddress, _ string) (string, error) {
	return "t-" + companyID + "-" + contactAddress, nil
}

// Gateway is the facade over all provider connections of the process. It
// implements provider.EventSink: adapters hand it raw events, it publishes
// normalized ones.
type Gateway struct {
	logger    *slog.Logger
	clock     clockwork.Clock
	publisher eventbus.EventPublisher
	registry  *Registry
	tickets   TicketResolver
}

func New(
	logger *slog.Logger,
	clock clockwork.Clock,
	publisher eventbus.EventPublisher,
	providers persistence.ProviderRepository,
	tickets TicketResolver,
	cfg RegistryConfig,
) *Gateway {
	if tickets == nil {
		tickets = AddressTicketResolver{}
	}

	g := &Gateway{
		logger:    logger.With("module", "gateway"),
		clock:     clock,
		publisher: publisher,
		tickets:   tickets,
	}

	g.registry = NewRegistry(logger, clock, providers, g, cfg)
	g.registry.notify = g.publishConnectionState

	return g
}

func (g *Gateway) Registry() *Registry {
	return g.registry
}

// SendMessage delivers one outbound message on the ticket's provider. A
// rate-limited rejection is retried exactly once, after the backend's
// advised delay; the second failure is returned unchanged.
func (g *Gateway) SendMessage(ctx context.Context, ticketID string, msg models.NormalizedMessage) (string, error) {
	ctx, span := tracer.Start(ctx, "gateway.send_message", trace.WithAttributes(
		attribute.String(otelhelper.TicketIDKey, ticketID),
		attribute.String(otelhelper.CompanyIDKey, msg.CompanyID),
	))
	defer span.End()

	config, adapter, err := g.registry.ResolveForTicket(ctx, msg.CompanyID, ticketID)
	if err != nil {
		otelhelper.SetError(span, err)

		return "", err
	}

	span.SetAttributes(attribute.String(otelhelper.ProviderIDKey, config.ID))

	msg.Direction = models.DirectionOut
	msg.ProviderID = config.ID
	msg.TicketID = ticketID
	msg.ToAddress = address.Canonicalize(msg.ToAddress)

	if msg.Timestamp.IsZero() {
		msg.Timestamp = g.clock.Now()
	}

	externalID, err := adapter.Send(ctx, msg)

	if delay, limited := provider.IsRateLimited(err); limited {
		g.logger.Warn("Send rate limited, retrying once",
			"provider_id", config.ID,
			"ticket_id", ticketID,
			"retry_after", delay)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-g.clock.After(delay):
		}

		externalID, err = adapter.Send(ctx, msg)
	}

	if err != nil {
		otelhelper.SetError(span, err)

		return "", err
	}

	g.registry.markActivity(config.ID)
	g.registry.PinTicket(ticketID, config.ID)

	return externalID, nil
}

// SendMedia is SendMessage with an attachment. kind may be empty, in which
// case it is inferred from the reference's extension.
func (g *Gateway) SendMedia(ctx context.Context, ticketID string, msg models.NormalizedMessage, mediaRef string, kind models.MediaKind) (string, error) {
	msg.MediaRef = mediaRef

	if kind == "" {
		kind = InferMediaKind(mime.TypeByExtension(extensionOf(mediaRef)))
	}

	msg.MediaKind = kind

	return g.SendMessage(ctx, ticketID, msg)
}

// FetchProfileImage asks the contact's provider for an avatar URL.
// Best-effort: returns "" when the provider cannot serve one.
func (g *Gateway) FetchProfileImage(ctx context.Context, companyID, ticketID, contactAddress string) string {
	_, adapter, err := g.registry.ResolveForTicket(ctx, companyID, ticketID)
	if err != nil {
		g.logger.Debug("No provider for profile image fetch", "company_id", companyID, "error", err)

		return ""
	}

	return adapter.FetchProfileImage(ctx, address.Canonicalize(contactAddress))
}

// InboundMessage implements provider.EventSink. It canonicalizes addresses,
// infers the media kind, resolves the ticket and publishes MessageReceived
// keyed by provider so per-connection FIFO ordering holds.
func (g *Gateway) InboundMessage(ctx context.Context, providerID, companyID string, raw provider.RawInbound) {
	from := address.Canonicalize(raw.From)

	ticketID, err := g.tickets.TicketFor(ctx, companyID, from, providerID)
	if err != nil {
		g.logger.Error("Dropping inbound message, ticket resolution failed",
			"provider_id", providerID,
			"company_id", companyID,
			"error", err)

		return
	}

	kind := InferMediaKind(raw.MediaMime)
	if kind == "" && raw.MediaRef != "" {
		kind = models.MediaKindDocument
	}

	msg := models.NormalizedMessage{
		Direction:        models.DirectionIn,
		ExternalID:       raw.ExternalID,
		FromAddress:      from,
		ToAddress:        address.Canonicalize(raw.To),
		Body:             raw.Body,
		MediaRef:         raw.MediaRef,
		MediaKind:        kind,
		QuotedExternalID: raw.QuotedExternalID,
		ProviderID:       providerID,
		CompanyID:        companyID,
		TicketID:         ticketID,
		Timestamp:        raw.Timestamp,
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = g.clock.Now()
	}

	g.registry.markActivity(providerID)
	g.registry.PinTicket(ticketID, providerID)

	g.publish(ctx, providerID, events.MessageReceived{
		BaseEvent: g.baseEvent(events.MessageReceivedEvent, providerID, companyID),
		TicketID:  ticketID,
		Message:   msg,
	})
}

// DeliveryAck implements provider.EventSink.
func (g *Gateway) DeliveryAck(ctx context.Context, providerID, companyID, externalID string, at time.Time) {
	g.publish(ctx, providerID, events.MessageDelivered{
		BaseEvent:   g.baseEvent(events.MessageDeliveredEvent, providerID, companyID),
		ExternalID:  externalID,
		DeliveredAt: at,
	})
}

// Presence implements provider.EventSink.
func (g *Gateway) Presence(ctx context.Context, providerID, companyID, contactAddress, presence string) {
	g.publish(ctx, providerID, events.PresenceUpdated{
		BaseEvent:      g.baseEvent(events.PresenceUpdatedEvent, providerID, companyID),
		ContactAddress: address.Canonicalize(contactAddress),
		Presence:       presence,
	})
}

// QRCode implements provider.EventSink. The code is kept on the connection
// snapshot so the admin surface can render it for pairing.
func (g *Gateway) QRCode(ctx context.Context, providerID, companyID, code string) {
	g.registry.recordQR(providerID, code)

	g.publish(ctx, providerID, events.QRCodeIssued{
		BaseEvent: g.baseEvent(events.QRCodeIssuedEvent, providerID, companyID),
		QRCode:    code,
	})
}

func (g *Gateway) publishConnectionState(providerID, companyID string, status models.ConnectionStatus, reason string) {
	g.publish(context.Background(), providerID, events.ConnectionStateChanged{
		BaseEvent: g.baseEvent(events.ConnectionStateChangedEvent, providerID, companyID),
		Status:    status,
		Reason:    reason,
	})
}

func (g *Gateway) publish(ctx context.Context, key string, event eventbus.Event) {
	if err := g.publisher.Publish(ctx, key, event); err != nil {
		g.logger.Error("Failed to publish event",
			"event_type", event.GetType(),
			"key", key,
			"error", err)
	}
}

func (g *Gateway) baseEvent(eventType events.EventType, providerID, companyID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  g.clock.Now(),
		ProviderID: providerID,
		CompanyID:  companyID,
	}
}

// InferMediaKind maps a MIME type to the platform's media classification.
// Attachments with an unknown or missing type fall back to document.
func InferMediaKind(mimeType string) models.MediaKind {
	if mimeType == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return models.MediaKindImage
	case strings.HasPrefix(mimeType, "video/"):
		return models.MediaKindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return models.MediaKindAudio
	default:
		return models.MediaKindDocument
	}
}

func extensionOf(ref string) string {
	if idx := strings.LastIndex(ref, "."); idx >= 0 {
		return ref[idx:]
	}

	return ""
}
