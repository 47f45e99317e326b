// Package web exposes the HTTP surface: the signed inbound webhook, the
// provider admin endpoints, the flow trigger surface and the send endpoint.
package web

import "github.com/atendohq/atendo/pkg/models"

// CreateProviderRequest is the request body for registering a provider
// config for a company.
type CreateProviderRequest struct {
	CompanyID     string         `json:"company_id"     validate:"required"`
	Kind          string         `json:"kind"           validate:"required,oneof=socket-backend rest-backend"`
	Name          string         `json:"name"           validate:"required,min=3"`
	Priority      int            `json:"priority"`
	Credentials   map[string]any `json:"credentials"`
	WebhookSecret string         `json:"webhook_secret,omitempty"`
}

// MigrateProviderRequest asks the registry to promote a target provider to
// company default once it reaches connected.
type MigrateProviderRequest struct {
	TargetProviderID string `json:"target_provider_id" validate:"required"`
	DeadlineSeconds  int    `json:"deadline_seconds"   validate:"omitempty,gt=0"`
}

// SendMessageRequest is the request body for the ticket-scoped send
// endpoint.
type SendMessageRequest struct {
	CompanyID string `json:"company_id" validate:"required"`
	TicketID  string `json:"ticket_id"  validate:"required"`
	ToAddress string `json:"to_address" validate:"required"`
	Body      string `json:"body"       validate:"required_without=MediaRef"`
	MediaRef  string `json:"media_ref,omitempty"`
	MediaKind string `json:"media_kind,omitempty" validate:"omitempty,oneof=image video audio document"`
	QuotedID  string `json:"quoted_external_id,omitempty"`
}

// SendMessageResponse carries the backend-assigned id of a sent message.
type SendMessageResponse struct {
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

// StartExecutionRequest starts a flow execution for a ticket.
type StartExecutionRequest struct {
	FlowID    string         `json:"flow_id"    validate:"required"`
	TicketID  string         `json:"ticket_id"  validate:"required"`
	ContactID string         `json:"contact_id" validate:"required"`
	Variables map[string]any `json:"variables,omitempty"`
}

// StopExecutionRequest stops a non-terminal execution with a reason.
type StopExecutionRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ConnectionResponse is the operator view of one live provider connection,
// including the last QR challenge for socket backends awaiting pairing.
type ConnectionResponse struct {
	ProviderID        string `json:"provider_id"`
	CompanyID         string `json:"company_id"`
	Status            string `json:"status"`
	StatusReason      string `json:"status_reason,omitempty"`
	LastQRCode        string `json:"last_qr_code,omitempty"`
	ReconnectAttempts int    `json:"reconnect_attempts"`
}

func toConnectionResponse(conn models.ProviderConnection) ConnectionResponse {
	return ConnectionResponse{
		ProviderID:        conn.ProviderID,
		CompanyID:         conn.CompanyID,
		Status:            string(conn.Status),
		StatusReason:      conn.StatusReason,
		LastQRCode:        conn.LastQRCode,
		ReconnectAttempts: conn.ReconnectAttempts,
	}
}
