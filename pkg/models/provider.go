// Package models defines the core domain models shared by the provider
// gateway and the flow execution engine.
package models

import "time"

// ProviderKind identifies which adapter implementation backs a provider.
type ProviderKind string

const (
	ProviderKindSocket ProviderKind = "socket-backend" // Persistent bidirectional session, QR pairing
	ProviderKindRest   ProviderKind = "rest-backend"   // Stateless HTTP vendor API, webhook inbound
)

// ProviderConfig is the tenant-scoped configuration of one messaging backend.
// At most one active config per company may carry IsDefault; the registry
// enforces that invariant on every write.
type ProviderConfig struct {
	ID            string         `json:"id"             validate:"required"`
	CompanyID     string         `json:"company_id"     validate:"required"`
	Kind          ProviderKind   `json:"kind"           validate:"required,oneof=socket-backend rest-backend"`
	Name          string         `json:"name"           validate:"required,min=3"`
	IsActive      bool           `json:"is_active"`
	IsDefault     bool           `json:"is_default"`
	Priority      int            `json:"priority"`
	Credentials   map[string]any `json:"credentials"`
	WebhookSecret string         `json:"webhook_secret,omitempty"` // rest-backend only
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DisabledAt    *time.Time     `json:"disabled_at,omitempty"` // soft-disable while executions still reference it
}

// ConnectionStatus is the runtime state of one provider connection.
type ConnectionStatus string

const (
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	ConnectionStatusConnecting   ConnectionStatus = "connecting"
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusError        ConnectionStatus = "error"
)

// ProviderConnection is the registry-owned runtime record for an active
// provider. It is rebuilt on startup and never persisted verbatim.
type ProviderConnection struct {
	ProviderID        string           `json:"provider_id"`
	CompanyID         string           `json:"company_id"`
	Status            ConnectionStatus `json:"status"`
	StatusReason      string           `json:"status_reason,omitempty"`
	LastQRCode        string           `json:"last_qr_code,omitempty"`
	ReconnectAttempts int              `json:"reconnect_attempts"`
	LastActivityAt    time.Time        `json:"last_activity_at"`
}
