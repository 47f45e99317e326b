package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/persistence"
)

type ExecutionRepository struct {
	root string
	mu   *sync.RWMutex
}

func (r *ExecutionRepository) dir() string {
	return filepath.Join(r.root, "executions")
}

func (r *ExecutionRepository) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var execution models.Execution

	err := readRecord(filepath.Join(r.dir(), id+".json"), &execution)
	if os.IsNotExist(err) {
		return nil, persistence.ErrExecutionNotFound
	}

	if err != nil {
		return nil, persistence.NewExecutionError("ByID", id, err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) ActiveExecutionByTicket(ctx context.Context, ticketID string) (*models.Execution, error) {
	all, err := r.list(func(e *models.Execution) bool {
		return e.TicketID == ticketID && !e.Status.IsTerminal()
	})
	if err != nil {
		return nil, err
	}

	if len(all) == 0 {
		return nil, persistence.ErrNoActiveExecution
	}

	return all[0], nil
}

func (r *ExecutionRepository) ActiveExecutions(_ context.Context) ([]*models.Execution, error) {
	return r.list(func(e *models.Execution) bool {
		return !e.Status.IsTerminal()
	})
}

func (r *ExecutionRepository) ExecutionsByCompany(_ context.Context, companyID string) ([]*models.Execution, error) {
	return r.list(func(e *models.Execution) bool {
		return e.CompanyID == companyID
	})
}

func (r *ExecutionRepository) SaveExecution(_ context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := writeRecord(filepath.Join(r.dir(), execution.ID+".json"), execution)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) list(keep func(*models.Execution) bool) ([]*models.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths, err := listRecords(r.dir())
	if err != nil {
		return nil, err
	}

	var out []*models.Execution

	for _, path := range paths {
		var execution models.Execution
		if err := readRecord(path, &execution); err != nil {
			return nil, err
		}

		if keep(&execution) {
			out = append(out, &execution)
		}
	}

	return out, nil
}
