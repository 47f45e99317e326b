// Package events defines the typed events exchanged over the event bus.
package events

import (
	"time"

	"github.com/atendohq/atendo/pkg/models"
)

type EventType string

// Topic is the single bus topic. Ordering is guaranteed per publishing
// connection (FIFO per source), never across connections.
const Topic = "atendo.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Inbound provider events.
	MessageReceivedEvent        EventType = "provider.message.received"
	MessageDeliveredEvent       EventType = "provider.message.delivered"
	PresenceUpdatedEvent        EventType = "provider.presence.updated"
	ConnectionStateChangedEvent EventType = "provider.connection.state_changed"
	QRCodeIssuedEvent           EventType = "provider.qr.issued"

	// Execution lifecycle events, published by the flow engine.
	ExecutionStartedEvent  EventType = "flow.execution.started"
	ExecutionFinishedEvent EventType = "flow.execution.finished"

	// TicketTransferredEvent hands a ticket to a human attendance queue.
	TicketTransferredEvent EventType = "flow.ticket.transferred"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	ProviderID string    `json:"provider_id,omitempty"`
	CompanyID  string    `json:"company_id"`
}

// MessageReceived carries a normalized inbound message.
type MessageReceived struct {
	BaseEvent

	TicketID string                   `json:"ticket_id"`
	Message  models.NormalizedMessage `json:"message"`
}

func (e MessageReceived) GetType() EventType {
	return MessageReceivedEvent
}

// MessageDelivered is the backend's delivery acknowledgement for an
// outbound message.
type MessageDelivered struct {
	BaseEvent

	ExternalID  string    `json:"external_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

func (e MessageDelivered) GetType() EventType {
	return MessageDeliveredEvent
}

// PresenceUpdated reports contact presence (typing, online, ...).
type PresenceUpdated struct {
	BaseEvent

	ContactAddress string `json:"contact_address"`
	Presence       string `json:"presence"`
}

func (e PresenceUpdated) GetType() EventType {
	return PresenceUpdatedEvent
}

// ConnectionStateChanged reports a provider connection transition.
type ConnectionStateChanged struct {
	BaseEvent

	Status models.ConnectionStatus `json:"status"`
	Reason string                  `json:"reason,omitempty"`
}

func (e ConnectionStateChanged) GetType() EventType {
	return ConnectionStateChangedEvent
}

// QRCodeIssued surfaces a pairing challenge from a socket backend.
type QRCodeIssued struct {
	BaseEvent

	QRCode string `json:"qr_code"`
}

func (e QRCodeIssued) GetType() EventType {
	return QRCodeIssuedEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
	TicketID    string `json:"ticket_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionFinished struct {
	BaseEvent

	ExecutionID string                 `json:"execution_id"`
	TicketID    string                 `json:"ticket_id"`
	Status      models.ExecutionStatus `json:"status"`
	Error       string                 `json:"error,omitempty"`
	Duration    time.Duration          `json:"duration"`
}

func (e ExecutionFinished) GetType() EventType {
	return ExecutionFinishedEvent
}

// TicketTransferred asks the ticketing layer to move a conversation out of
// automation and into a human queue.
type TicketTransferred struct {
	BaseEvent

	TicketID string `json:"ticket_id"`
	QueueID  string `json:"queue_id"`
}

func (e TicketTransferred) GetType() EventType {
	return TicketTransferredEvent
}
