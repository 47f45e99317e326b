package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/provider"
)

const signatureHeader = "X-Hub-Signature-256"

// webhookPayload is the vendor envelope posted to the inbound webhook.
// Exactly one of the event sections is populated, selected by Event.
type webhookPayload struct {
	Event    string           `json:"event"`
	Message  *webhookMessage  `json:"message,omitempty"`
	Ack      *webhookAck      `json:"ack,omitempty"`
	Presence *webhookPresence `json:"presence,omitempty"`
}

type webhookMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Body      string `json:"body"`
	MediaURL  string `json:"media_url,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	QuotedID  string `json:"quoted_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type webhookAck struct {
	MessageID string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
}

type webhookPresence struct {
	Address  string `json:"address"`
	Presence string `json:"presence"`
}

// HandleWebhook receives vendor callbacks for rest-backend providers. The
// raw body is authenticated with HMAC-SHA256 against the webhook secret of
// one of the company's providers before anything is parsed or published.
func (h *APIHandlers) HandleWebhook(c fiber.Ctx) error {
	kind := models.ProviderKind(c.Params("providerKind"))
	companyID := c.Params("companyId")

	body := c.Body()
	signature := c.Get(signatureHeader)

	if signature == "" {
		return unauthorized(c, "missing signature header")
	}

	config, err := h.authenticateWebhook(c, kind, companyID, body, signature)
	if err != nil {
		return handleDomainError(c, err)
	}

	if config == nil {
		h.logger.Warn("Webhook signature mismatch", "company_id", companyID, "kind", kind)

		return unauthorized(c, "signature does not match")
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	switch {
	case payload.Event == "message" && payload.Message != nil:
		msg := payload.Message
		h.gateway.InboundMessage(c.Context(), config.ID, companyID, provider.RawInbound{
			ExternalID:       msg.ID,
			From:             msg.From,
			To:               msg.To,
			Body:             msg.Body,
			MediaRef:         msg.MediaURL,
			MediaMime:        msg.MimeType,
			QuotedExternalID: msg.QuotedID,
			Timestamp:        webhookTime(msg.Timestamp),
		})

	case payload.Event == "ack" && payload.Ack != nil:
		h.gateway.DeliveryAck(c.Context(), config.ID, companyID, payload.Ack.MessageID, webhookTime(payload.Ack.Timestamp))

	case payload.Event == "presence" && payload.Presence != nil:
		h.gateway.Presence(c.Context(), config.ID, companyID, payload.Presence.Address, payload.Presence.Presence)

	default:
		// Unknown vendor event types are dropped, not rejected: the vendor
		// keeps delivering them and a 4xx would trigger its retry loop.
		h.logger.Info("Dropping unrecognized webhook event",
			"event", payload.Event,
			"provider_id", config.ID,
			"company_id", companyID)

		return c.JSON(fiber.Map{"status": "ignored"})
	}

	return c.JSON(fiber.Map{"status": "accepted"})
}

// authenticateWebhook returns the provider config whose secret signs the
// body, or nil when no configured secret matches.
func (h *APIHandlers) authenticateWebhook(
	c fiber.Ctx,
	kind models.ProviderKind,
	companyID string,
	body []byte,
	signature string,
) (*models.ProviderConfig, error) {
	configs, err := h.persistence.ProviderRepository().Providers(c.Context(), companyID)
	if err != nil {
		return nil, err
	}

	for _, config := range configs {
		if config.Kind != kind || !config.IsActive || config.WebhookSecret == "" {
			continue
		}

		if verifySignature(config.WebhookSecret, body, signature) {
			return config, nil
		}
	}

	return nil, nil
}

// verifySignature checks signature against sha256=hex(hmac_sha256(secret, body)).
func verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

func webhookTime(unix int64) time.Time {
	if unix <= 0 {
		return time.Now().UTC()
	}

	return time.Unix(unix, 0).UTC()
}
