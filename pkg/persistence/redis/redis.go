// Package redis provides Redis-backed persistence. Records are stored as
// JSON documents with secondary index sets per company and per ticket, so
// the hot lookups of the engine (active execution by ticket) are single
// key reads.
package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/atendohq/atendo/pkg/persistence"
)

const (
	providerKeyPrefix      = "atendo:provider:"
	providersByCompanyKey  = "atendo:providers:company:"
	flowKeyPrefix          = "atendo:flow:"
	flowsByCompanyKey      = "atendo:flows:company:"
	executionKeyPrefix     = "atendo:execution:"
	executionsByCompanyKey = "atendo:executions:company:"
	activeByTicketPrefix   = "atendo:execution:active:"
	activeExecutionsKey    = "atendo:executions:active"
)

type Persistence struct {
	client *redis.Client
	logger *slog.Logger

	providers  *ProviderRepository
	flows      *FlowRepository
	executions *ExecutionRepository
}

func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Persistence{
		client:     client,
		logger:     logger,
		providers:  &ProviderRepository{client: client},
		flows:      &FlowRepository{client: client},
		executions: &ExecutionRepository{client: client},
	}, nil
}

func (p *Persistence) ProviderRepository() persistence.ProviderRepository {
	return p.providers
}

func (p *Persistence) FlowRepository() persistence.FlowRepository {
	return p.flows
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executions
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}
