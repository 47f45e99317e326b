package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/persistence"
)

type ProviderRepository struct {
	client *redis.Client
}

func (r *ProviderRepository) Providers(ctx context.Context, companyID string) ([]*models.ProviderConfig, error) {
	ids, err := r.client.SMembers(ctx, providersByCompanyKey+companyID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list providers for company %s: %w", companyID, err)
	}

	out := make([]*models.ProviderConfig, 0, len(ids))

	for _, id := range ids {
		config, err := r.ProviderByID(ctx, id)
		if persistence.IsProviderNotFound(err) {
			continue
		}

		if err != nil {
			return nil, err
		}

		out = append(out, config)
	}

	return out, nil
}

func (r *ProviderRepository) ProviderByID(ctx context.Context, id string) (*models.ProviderConfig, error) {
	body, err := r.client.Get(ctx, providerKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.ErrProviderNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load provider %s: %w", id, err)
	}

	var config models.ProviderConfig
	if err := json.Unmarshal(body, &config); err != nil {
		return nil, fmt.Errorf("failed to deserialize provider %s: %w", id, err)
	}

	return &config, nil
}

func (r *ProviderRepository) SaveProvider(ctx context.Context, config *models.ProviderConfig) error {
	body, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to serialize provider %s: %w", config.ID, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, providerKeyPrefix+config.ID, body, 0)
	pipe.SAdd(ctx, providersByCompanyKey+config.CompanyID, config.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save provider %s: %w", config.ID, err)
	}

	return nil
}

type FlowRepository struct {
	client *redis.Client
}

func (r *FlowRepository) Flows(ctx context.Context, companyID string) ([]*models.FlowGraph, error) {
	ids, err := r.client.SMembers(ctx, flowsByCompanyKey+companyID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list flows for company %s: %w", companyID, err)
	}

	out := make([]*models.FlowGraph, 0, len(ids))

	for _, id := range ids {
		graph, err := r.FlowByID(ctx, id)
		if persistence.IsFlowNotFound(err) {
			continue
		}

		if err != nil {
			return nil, err
		}

		out = append(out, graph)
	}

	return out, nil
}

func (r *FlowRepository) FlowByID(ctx context.Context, id string) (*models.FlowGraph, error) {
	body, err := r.client.Get(ctx, flowKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.ErrFlowNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load flow %s: %w", id, err)
	}

	var graph models.FlowGraph
	if err := json.Unmarshal(body, &graph); err != nil {
		return nil, fmt.Errorf("failed to deserialize flow %s: %w", id, err)
	}

	return &graph, nil
}

func (r *FlowRepository) SaveFlow(ctx context.Context, graph *models.FlowGraph) error {
	body, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to serialize flow %s: %w", graph.ID, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, flowKeyPrefix+graph.ID, body, 0)
	pipe.SAdd(ctx, flowsByCompanyKey+graph.CompanyID, graph.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save flow %s: %w", graph.ID, err)
	}

	return nil
}

type ExecutionRepository struct {
	client *redis.Client
}

func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	body, err := r.client.Get(ctx, executionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.ErrExecutionNotFound
	}

	if err != nil {
		return nil, persistence.NewExecutionError("ByID", id, err)
	}

	var execution models.Execution
	if err := json.Unmarshal(body, &execution); err != nil {
		return nil, persistence.NewExecutionError("ByID", id, err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) ActiveExecutionByTicket(ctx context.Context, ticketID string) (*models.Execution, error) {
	id, err := r.client.Get(ctx, activeByTicketPrefix+ticketID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.ErrNoActiveExecution
	}

	if err != nil {
		return nil, persistence.NewExecutionError("ActiveByTicket", ticketID, err)
	}

	execution, err := r.ExecutionByID(ctx, id)
	if persistence.IsExecutionNotFound(err) {
		// Stale pointer: the document is gone.
		return nil, persistence.ErrNoActiveExecution
	}

	return execution, err
}

func (r *ExecutionRepository) ActiveExecutions(ctx context.Context) ([]*models.Execution, error) {
	ids, err := r.client.SMembers(ctx, activeExecutionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active executions: %w", err)
	}

	out := make([]*models.Execution, 0, len(ids))

	for _, id := range ids {
		execution, err := r.ExecutionByID(ctx, id)
		if persistence.IsExecutionNotFound(err) {
			continue
		}

		if err != nil {
			return nil, err
		}

		out = append(out, execution)
	}

	return out, nil
}

func (r *ExecutionRepository) ExecutionsByCompany(ctx context.Context, companyID string) ([]*models.Execution, error) {
	ids, err := r.client.SMembers(ctx, executionsByCompanyKey+companyID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list executions for company %s: %w", companyID, err)
	}

	out := make([]*models.Execution, 0, len(ids))

	for _, id := range ids {
		execution, err := r.ExecutionByID(ctx, id)
		if persistence.IsExecutionNotFound(err) {
			continue
		}

		if err != nil {
			return nil, err
		}

		out = append(out, execution)
	}

	return out, nil
}

// SaveExecution writes the document and maintains the active indexes in
// one transaction, so the single-active-execution-per-ticket lookup stays
// consistent with the document state.
func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.Execution) error {
	body, err := json.Marshal(execution)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, executionKeyPrefix+execution.ID, body, 0)
	pipe.SAdd(ctx, executionsByCompanyKey+execution.CompanyID, execution.ID)

	if execution.Status.IsTerminal() {
		pipe.SRem(ctx, activeExecutionsKey, execution.ID)
		pipe.Del(ctx, activeByTicketPrefix+execution.TicketID)
	} else {
		pipe.SAdd(ctx, activeExecutionsKey, execution.ID)
		pipe.Set(ctx, activeByTicketPrefix+execution.TicketID, execution.ID, 0)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}
