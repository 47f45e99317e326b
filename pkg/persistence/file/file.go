// Package file provides JSON file based persistence, used for development
// and tests. Each record is one file under the root directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/atendohq/atendo/pkg/persistence"
)

type Persistence struct {
	root string

	providers  *ProviderRepository
	flows      *FlowRepository
	executions *ExecutionRepository
}

func NewPersistence(root string) (*Persistence, error) {
	for _, dir := range []string{"providers", "flows", "executions"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s directory: %w", dir, err)
		}
	}

	mu := &sync.RWMutex{}

	return &Persistence{
		root:       root,
		providers:  &ProviderRepository{root: root, mu: mu},
		flows:      &FlowRepository{root: root, mu: mu},
		executions: &ExecutionRepository{root: root, mu: mu},
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

func (p *Persistence) HealthCheck(_ context.Context) error {
	info, err := os.Stat(p.root)
	if err != nil {
		return fmt.Errorf("persistence root unavailable: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("persistence root %s is not a directory", p.root)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func writeRecord(path string, record any) error {
	body, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing record: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}

	return os.Rename(tmp, path)
}

func readRecord(path string, record any) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(body, record)
}

func listRecords(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	return paths, nil
}
