package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/persistence"
)

type ProviderRepository struct {
	root string
	mu   *sync.RWMutex
}

func (r *ProviderRepository) dir() string {
	return filepath.Join(r.root, "providers")
}

func (r *ProviderRepository) Providers(_ context.Context, companyID string) ([]*models.ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths, err := listRecords(r.dir())
	if err != nil {
		return nil, err
	}

	var out []*models.ProviderConfig

	for _, path := range paths {
		var config models.ProviderConfig
		if err := readRecord(path, &config); err != nil {
			return nil, err
		}

		if config.CompanyID == companyID {
			out = append(out, &config)
		}
	}

	return out, nil
}

func (r *ProviderRepository) ProviderByID(_ context.Context, id string) (*models.ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var config models.ProviderConfig

	err := readRecord(filepath.Join(r.dir(), id+".json"), &config)
	if os.IsNotExist(err) {
		return nil, persistence.ErrProviderNotFound
	}

	if err != nil {
		return nil, err
	}

	return &config, nil
}

func (r *ProviderRepository) SaveProvider(_ context.Context, config *models.ProviderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeRecord(filepath.Join(r.dir(), config.ID+".json"), config)
}
