package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/persistence"
	"github.com/atendohq/atendo/pkg/provider"
)

const (
	defaultReconnectBaseDelay   = 5 * time.Second
	defaultReconnectMaxDelay    = time.Minute
	defaultMaxReconnectAttempts = 6
	migrationPollInterval       = 250 * time.Millisecond
)

// RegistryConfig tunes the reconnection policy: exponential backoff
// (BaseDelay x attempt, capped at MaxDelay) up to MaxAttempts, after which
// the connection is parked as disconnected and surfaced to operators
// instead of being retried forever.
type RegistryConfig struct {
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int
}

func (c RegistryConfig) withDefaults() RegistryConfig {
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = defaultReconnectBaseDelay
	}

	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = defaultReconnectMaxDelay
	}

	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}

	return c
}

type connection struct {
	config  *models.ProviderConfig
	adapter provider.Adapter
	state   models.ProviderConnection
}

type stateNotifier func(providerID, companyID string, status models.ConnectionStatus, reason string)

// Registry owns every provider connection of the process: one connection
// per active ProviderConfig, each with its own adapter instance. Adapter
// instances are never shared across connections.
type Registry struct {
	logger    *slog.Logger
	clock     clockwork.Clock
	providers persistence.ProviderRepository
	sink      provider.EventSink
	notify    stateNotifier
	cfg       RegistryConfig

	factories map[models.ProviderKind]provider.AdapterFactory

	mu          sync.Mutex
	connections map[string]*connection
	companyMu   map[string]*sync.Mutex
	ticketPins  map[string]string
}

// NewRegistry builds a registry. sink receives every inbound adapter event
// (in production the gateway facade); notify may be nil.
func NewRegistry(
	logger *slog.Logger,
	clock clockwork.Clock,
	providers persistence.ProviderRepository,
	sink provider.EventSink,
	cfg RegistryConfig,
) *Registry {
	return &Registry{
		logger:      logger.With("module", "provider_registry"),
		clock:       clock,
		providers:   providers,
		sink:        sink,
		cfg:         cfg.withDefaults(),
		factories:   make(map[models.ProviderKind]provider.AdapterFactory),
		connections: make(map[string]*connection),
		companyMu:   make(map[string]*sync.Mutex),
		ticketPins:  make(map[string]string),
	}
}

func (r *Registry) RegisterFactory(factory provider.AdapterFactory) {
	r.factories[factory.Kind()] = factory
}

// Activate constructs the adapter for providerID and connects it. On
// failure the connection is left in status error with the reason attached;
// the registry does not retry a failed activation by itself.
func (r *Registry) Activate(ctx context.Context, providerID string) error {
	config, err := r.providers.ProviderByID(ctx, providerID)
	if err != nil {
		return err
	}

	if !config.IsActive {
		return fmt.Errorf("provider %s: %w", providerID, ErrProviderInactive)
	}

	factory, ok := r.factories[config.Kind]
	if !ok {
		return fmt.Errorf("no adapter factory registered for kind %s", config.Kind)
	}

	r.mu.Lock()

	// The connection record exists before its adapter does: an activation
	// still inside factory.Create has a nil adapter, so a second Activate
	// for the same provider must bail on the connecting state alone.
	if existing, ok := r.connections[providerID]; ok {
		if existing.state.Status == models.ConnectionStatusConnecting ||
			(existing.adapter != nil && existing.adapter.IsConnected()) {
			r.mu.Unlock()

			return nil
		}
	}

	conn := &connection{
		config: config,
		state: models.ProviderConnection{
			ProviderID: providerID,
			CompanyID:  config.CompanyID,
			Status:     models.ConnectionStatusConnecting,
		},
	}
	r.connections[providerID] = conn
	r.mu.Unlock()

	r.publishState(providerID, config.CompanyID, models.ConnectionStatusConnecting, "")

	adapter, err := factory.Create(config, provider.Dependencies{
		Logger:       r.logger.With("provider_id", providerID),
		Events:       r.sink,
		OnDisconnect: r.handleDisconnect,
	})
	if err != nil {
		r.setStatus(providerID, models.ConnectionStatusError, err.Error())

		return &ActivationError{ProviderID: providerID, Err: err}
	}

	r.mu.Lock()
	conn.adapter = adapter
	r.mu.Unlock()

	if err := adapter.Connect(ctx); err != nil {
		r.setStatus(providerID, models.ConnectionStatusError, err.Error())

		return &ActivationError{ProviderID: providerID, Err: err}
	}

	r.markConnected(providerID)

	return nil
}

// Deactivate disconnects and discards the runtime connection. The stored
// ProviderConfig is untouched; soft-disabling it is a separate admin write.
func (r *Registry) Deactivate(ctx context.Context, providerID string) {
	r.mu.Lock()
	conn, ok := r.connections[providerID]

	if ok {
		delete(r.connections, providerID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	if conn.adapter != nil {
		conn.adapter.Disconnect(ctx)
	}

	r.publishState(providerID, conn.config.CompanyID, models.ConnectionStatusDisconnected, "deactivated")
}

// handleDisconnect is the adapters' disconnect callback. Logged-out losses
// are terminal: the session needs re-pairing and is never auto-reconnected.
// Anything else enters the bounded backoff schedule.
func (r *Registry) handleDisconnect(providerID, reason string, loggedOut bool) {
	r.mu.Lock()

	conn, ok := r.connections[providerID]
	if !ok {
		r.mu.Unlock()

		return
	}

	if loggedOut {
		conn.state.Status = models.ConnectionStatusDisconnected
		conn.state.StatusReason = "logged out, re-pairing required"
		companyID := conn.config.CompanyID
		r.mu.Unlock()

		r.logger.Warn("Provider logged out, not reconnecting", "provider_id", providerID)
		r.publishState(providerID, companyID, models.ConnectionStatusDisconnected, "logged out, re-pairing required")

		return
	}

	conn.state.ReconnectAttempts++
	attempt := conn.state.ReconnectAttempts
	companyID := conn.config.CompanyID

	if attempt > r.cfg.MaxReconnectAttempts {
		conn.state.Status = models.ConnectionStatusDisconnected
		conn.state.StatusReason = "reconnect attempts exhausted: " + reason
		r.mu.Unlock()

		r.logger.Error("Reconnect attempts exhausted, provider parked",
			"provider_id", providerID,
			"attempts", attempt-1,
			"reason", reason)
		r.publishState(providerID, companyID, models.ConnectionStatusDisconnected, "reconnect attempts exhausted")

		return
	}

	conn.state.Status = models.ConnectionStatusConnecting
	conn.state.StatusReason = reason
	r.mu.Unlock()

	delay := r.backoffDelay(attempt)
	r.logger.Warn("Provider connection lost, scheduling reconnect",
		"provider_id", providerID,
		"attempt", attempt,
		"delay", delay,
		"reason", reason)

	r.clock.AfterFunc(delay, func() {
		r.attemptReconnect(providerID)
	})
}

func (r *Registry) attemptReconnect(providerID string) {
	r.mu.Lock()

	conn, ok := r.connections[providerID]
	if !ok || conn.adapter == nil {
		r.mu.Unlock()

		return
	}

	adapter := conn.adapter
	r.mu.Unlock()

	if err := adapter.Connect(context.Background()); err != nil {
		// Schedules the next bounded attempt.
		r.handleDisconnect(providerID, err.Error(), false)

		return
	}

	r.markConnected(providerID)
}

func (r *Registry) backoffDelay(attempt int) time.Duration {
	delay := r.cfg.ReconnectBaseDelay * time.Duration(attempt)
	if delay > r.cfg.ReconnectMaxDelay {
		delay = r.cfg.ReconnectMaxDelay
	}

	return delay
}

func (r *Registry) markConnected(providerID string) {
	r.mu.Lock()

	conn, ok := r.connections[providerID]
	if !ok {
		r.mu.Unlock()

		return
	}

	conn.state.Status = models.ConnectionStatusConnected
	conn.state.StatusReason = ""
	conn.state.ReconnectAttempts = 0
	conn.state.LastActivityAt = r.clock.Now()
	companyID := conn.config.CompanyID
	r.mu.Unlock()

	r.logger.Info("Provider connected", "provider_id", providerID)
	r.publishState(providerID, companyID, models.ConnectionStatusConnected, "")
}

func (r *Registry) setStatus(providerID string, status models.ConnectionStatus, reason string) {
	r.mu.Lock()

	conn, ok := r.connections[providerID]
	if !ok {
		r.mu.Unlock()

		return
	}

	conn.state.Status = status
	conn.state.StatusReason = reason
	companyID := conn.config.CompanyID
	r.mu.Unlock()

	r.publishState(providerID, companyID, status, reason)
}

func (r *Registry) publishState(providerID, companyID string, status models.ConnectionStatus, reason string) {
	if r.notify != nil {
		r.notify(providerID, companyID, status, reason)
	}
}

// SetDefault atomically moves the company default: every other active
// config loses IsDefault before the target gains it, inside one
// per-company critical section, so no observer ever sees two defaults.
func (r *Registry) SetDefault(ctx context.Context, providerID string) error {
	config, err := r.providers.ProviderByID(ctx, providerID)
	if err != nil {
		return err
	}

	lock := r.companyLock(config.CompanyID)
	lock.Lock()
	defer lock.Unlock()

	all, err := r.providers.Providers(ctx, config.CompanyID)
	if err != nil {
		return err
	}

	for _, other := range all {
		if other.ID != providerID && other.IsDefault {
			other.IsDefault = false
			if err := r.providers.SaveProvider(ctx, other); err != nil {
				return fmt.Errorf("clearing default on provider %s: %w", other.ID, err)
			}
		}
	}

	if !config.IsDefault {
		config.IsDefault = true
		if err := r.providers.SaveProvider(ctx, config); err != nil {
			return fmt.Errorf("setting default on provider %s: %w", providerID, err)
		}
	}

	return nil
}

func (r *Registry) companyLock(companyID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.companyMu[companyID]
	if !ok {
		lock = &sync.Mutex{}
		r.companyMu[companyID] = lock
	}

	return lock
}

// PinTicket routes all traffic of a ticket through one provider for the
// rest of the conversation.
func (r *Registry) PinTicket(ticketID, providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ticketPins[ticketID] = providerID
}

// ResolveForTicket picks the provider for a ticket: its pinned provider
// when set, otherwise the company default, otherwise the remaining active
// providers in ascending Priority order.
func (r *Registry) ResolveForTicket(ctx context.Context, companyID, ticketID string) (*models.ProviderConfig, provider.Adapter, error) {
	r.mu.Lock()
	pinned, hasPin := r.ticketPins[ticketID]

	if hasPin {
		if conn, ok := r.connections[pinned]; ok && conn.config.IsActive && conn.adapter != nil {
			adapter := conn.adapter
			config := conn.config
			r.mu.Unlock()

			return config, adapter, nil
		}
	}
	r.mu.Unlock()

	all, err := r.providers.Providers(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}

	candidates := make([]*models.ProviderConfig, 0, len(all))

	for _, config := range all {
		if config.IsActive {
			candidates = append(candidates, config)
		}
	}

	// The default wins outright; Priority orders the rest so the fallback
	// is deterministic when the default has no live connection.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].IsDefault != candidates[j].IsDefault {
			return candidates[i].IsDefault
		}

		return candidates[i].Priority < candidates[j].Priority
	})

	for _, config := range candidates {
		r.mu.Lock()
		conn, ok := r.connections[config.ID]
		r.mu.Unlock()

		if ok && conn.adapter != nil {
			return config, conn.adapter, nil
		}
	}

	return nil, nil, fmt.Errorf("company %s: %w", companyID, ErrNoProviderAvailable)
}

// Migrate activates toID, waits for it to reach connected within deadline,
// then promotes it to company default. fromID stays active so in-flight
// conversations finish on it; deactivating it is a separate, explicit
// operation. On timeout nothing is rolled back and the default is
// untouched.
func (r *Registry) Migrate(ctx context.Context, fromID, toID string, deadline time.Duration) error {
	go func() {
		if err := r.Activate(context.WithoutCancel(ctx), toID); err != nil {
			r.logger.Warn("Migration target activation failed", "provider_id", toID, "error", err)
		}
	}()

	timeout := r.clock.After(deadline)

	for {
		if state, ok := r.Connection(toID); ok && state.Status == models.ConnectionStatusConnected {
			r.logger.Info("Migration target connected, promoting to default",
				"from_provider_id", fromID,
				"to_provider_id", toID)

			return r.SetDefault(ctx, toID)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("provider %s did not connect within %s: %w", toID, deadline, ErrMigrationTimeout)
		case <-r.clock.After(migrationPollInterval):
		}
	}
}

// Connection returns a snapshot of a provider's runtime state.
func (r *Registry) Connection(providerID string) (models.ProviderConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[providerID]
	if !ok {
		return models.ProviderConnection{}, false
	}

	return conn.state, true
}

// Connections lists runtime state for every connection of a company.
func (r *Registry) Connections(companyID string) []models.ProviderConnection {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.ProviderConnection

	for _, conn := range r.connections {
		if conn.config.CompanyID == companyID {
			out = append(out, conn.state)
		}
	}

	return out
}

// Adapter returns the live adapter of a provider, when one exists.
func (r *Registry) Adapter(providerID string) (provider.Adapter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[providerID]
	if !ok || conn.adapter == nil {
		return nil, false
	}

	return conn.adapter, true
}

func (r *Registry) recordQR(providerID, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.connections[providerID]; ok {
		conn.state.LastQRCode = code
	}
}

func (r *Registry) markActivity(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.connections[providerID]; ok {
		conn.state.LastActivityAt = r.clock.Now()
	}
}
