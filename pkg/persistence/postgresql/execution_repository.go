package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/persistence"
)

type ExecutionRepository struct {
	db *sql.DB
}

const executionColumns = `
	id, flow_id, flow_version, ticket_id, contact_id, company_id, status,
	current_node_id, variables, history, paused_until, started_at, ended_at, error
`

func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE id = $1`, id)

	execution, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrExecutionNotFound
	}

	if err != nil {
		return nil, persistence.NewExecutionError("ByID", id, err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ActiveExecutionByTicket(ctx context.Context, ticketID string) (*models.Execution, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions
		 WHERE ticket_id = $1 AND status IN ('running', 'paused')
		 ORDER BY started_at DESC LIMIT 1`, ticketID)

	execution, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrNoActiveExecution
	}

	if err != nil {
		return nil, persistence.NewExecutionError("ActiveByTicket", ticketID, err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ActiveExecutions(ctx context.Context) ([]*models.Execution, error) {
	return r.query(ctx,
		`SELECT `+executionColumns+` FROM executions
		 WHERE status IN ('running', 'paused') ORDER BY started_at`)
}

func (r *ExecutionRepository) ExecutionsByCompany(ctx context.Context, companyID string) ([]*models.Execution, error) {
	return r.query(ctx,
		`SELECT `+executionColumns+` FROM executions
		 WHERE company_id = $1 ORDER BY started_at DESC`, companyID)
}

func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.Execution) error {
	variables, err := json.Marshal(execution.Variables)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, fmt.Errorf("failed to serialize variables: %w", err))
	}

	history, err := json.Marshal(execution.History)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, fmt.Errorf("failed to serialize history: %w", err))
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO executions (
			id, flow_id, flow_version, ticket_id, contact_id, company_id, status,
			current_node_id, variables, history, paused_until, started_at, ended_at, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_node_id = EXCLUDED.current_node_id,
			variables = EXCLUDED.variables,
			history = EXCLUDED.history,
			paused_until = EXCLUDED.paused_until,
			ended_at = EXCLUDED.ended_at,
			error = EXCLUDED.error
	`,
		execution.ID, execution.FlowID, execution.FlowVersion,
		execution.TicketID, nullString(execution.ContactID), execution.CompanyID,
		execution.Status, nullString(execution.CurrentNodeID),
		variables, history, nullTime(execution.PausedUntil),
		execution.StartedAt, nullTime(execution.EndedAt), nullString(execution.Error))
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) query(ctx context.Context, query string, args ...any) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Execution

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, execution)
	}

	return out, rows.Err()
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution     models.Execution
		contactID     sql.NullString
		currentNodeID sql.NullString
		variables     []byte
		history       []byte
		pausedUntil   sql.NullTime
		endedAt       sql.NullTime
		errorMsg      sql.NullString
	)

	err := row.Scan(
		&execution.ID, &execution.FlowID, &execution.FlowVersion,
		&execution.TicketID, &contactID, &execution.CompanyID, &execution.Status,
		&currentNodeID, &variables, &history, &pausedUntil,
		&execution.StartedAt, &endedAt, &errorMsg)
	if err != nil {
		return nil, err
	}

	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &execution.Variables); err != nil {
			return nil, fmt.Errorf("failed to deserialize variables for execution %s: %w", execution.ID, err)
		}
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &execution.History); err != nil {
			return nil, fmt.Errorf("failed to deserialize history for execution %s: %w", execution.ID, err)
		}
	}

	execution.ContactID = contactID.String
	execution.CurrentNodeID = currentNodeID.String
	execution.Error = errorMsg.String

	if pausedUntil.Valid {
		execution.PausedUntil = &pausedUntil.Time
	}

	if endedAt.Valid {
		execution.EndedAt = &endedAt.Time
	}

	return &execution, nil
}
