package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/persistence"
)

type FlowRepository struct {
	root string
	mu   *sync.RWMutex
}

func (r *FlowRepository) dir() string {
	return filepath.Join(r.root, "flows")
}

func (r *FlowRepository) Flows(_ context.Context, companyID string) ([]*models.FlowGraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths, err := listRecords(r.dir())
	if err != nil {
		return nil, err
	}

	var out []*models.FlowGraph

	for _, path := range paths {
		var graph models.FlowGraph
		if err := readRecord(path, &graph); err != nil {
			return nil, err
		}

		if graph.CompanyID == companyID {
			out = append(out, &graph)
		}
	}

	return out, nil
}

func (r *FlowRepository) FlowByID(_ context.Context, id string) (*models.FlowGraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var graph models.FlowGraph

	err := readRecord(filepath.Join(r.dir(), id+".json"), &graph)
	if os.IsNotExist(err) {
		return nil, persistence.ErrFlowNotFound
	}

	if err != nil {
		return nil, err
	}

	return &graph, nil
}

func (r *FlowRepository) SaveFlow(_ context.Context, graph *models.FlowGraph) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeRecord(filepath.Join(r.dir(), graph.ID+".json"), graph)
}
