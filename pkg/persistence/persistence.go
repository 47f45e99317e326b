// Package persistence is the storage abstraction for provider configs,
// flow graphs and executions. Variables and history are stored as
// structured documents, never as opaque strings, so they stay queryable.
package persistence

import (
	"context"

	"github.com/atendohq/atendo/pkg/models"
)

type ProviderRepository interface {
	Providers(ctx context.Context, companyID string) ([]*models.ProviderConfig, error)
	ProviderByID(ctx context.Context, id string) (*models.ProviderConfig, error)
	SaveProvider(ctx context.Context, config *models.ProviderConfig) error
}

type FlowRepository interface {
	Flows(ctx context.Context, companyID string) ([]*models.FlowGraph, error)
	FlowByID(ctx context.Context, id string) (*models.FlowGraph, error)
	SaveFlow(ctx context.Context, flow *models.FlowGraph) error
}

type ExecutionRepository interface {
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)
	// ActiveExecutionByTicket returns the single non-terminal execution of a
	// ticket, or ErrNoActiveExecution.
	ActiveExecutionByTicket(ctx context.Context, ticketID string) (*models.Execution, error)
	// ActiveExecutions lists every non-terminal execution, for crash
	// recovery and the timeout sweeper.
	ActiveExecutions(ctx context.Context) ([]*models.Execution, error)
	ExecutionsByCompany(ctx context.Context, companyID string) ([]*models.Execution, error)
	SaveExecution(ctx context.Context, execution *models.Execution) error
}

type Persistence interface {
	ProviderRepository() ProviderRepository
	FlowRepository() FlowRepository
	ExecutionRepository() ExecutionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
