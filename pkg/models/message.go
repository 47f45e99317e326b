package models

import "time"

// Direction tells whether a message entered or left the platform.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// MediaKind classifies message attachments after normalization.
type MediaKind string

const (
	MediaKindImage    MediaKind = "image"
	MediaKindVideo    MediaKind = "video"
	MediaKindAudio    MediaKind = "audio"
	MediaKindDocument MediaKind = "document"
)

// NormalizedMessage is the backend-agnostic message envelope. Addresses are
// always in canonical form (see pkg/address) so flow variables referencing
// the contact are independent of which backend delivered the message.
type NormalizedMessage struct {
	Direction        Direction `json:"direction"    validate:"required,oneof=in out"`
	ExternalID       string    `json:"external_id"`
	FromAddress      string    `json:"from_address"`
	ToAddress        string    `json:"to_address"`
	Body             string    `json:"body"`
	MediaRef         string    `json:"media_ref,omitempty"`
	MediaKind        MediaKind `json:"media_kind,omitempty"`
	QuotedExternalID string    `json:"quoted_external_id,omitempty"`
	ProviderID       string    `json:"provider_id"`
	CompanyID        string    `json:"company_id"`
	TicketID         string    `json:"ticket_id,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}
