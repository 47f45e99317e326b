// Package registry holds the node factories a flow engine can build
// nodes from, validating node configurations against each factory's
// JSON schema before instantiation.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[models.NodeKind]protocol.NodeFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[models.NodeKind]protocol.NodeFactory),
	}
}

func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.factories[factory.Kind()] = factory
}

// CreateNode validates config against the factory schema for kind and
// builds the node.
func (r *Registry) CreateNode(kind models.NodeKind, id string, config map[string]any) (protocol.Node, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("node kind '%s' not registered", kind)
	}

	if err := validateConfig(factory.Schema(), config); err != nil {
		return nil, fmt.Errorf("node %s (%s): %w", id, kind, err)
	}

	return factory.Create(id, config)
}

// Kinds lists the registered node kinds.
func (r *Registry) Kinds() []models.NodeKind {
	kinds := make([]models.NodeKind, 0, len(r.factories))

	for kind := range r.factories {
		kinds = append(kinds, kind)
	}

	return kinds
}

// IsRegistered reports whether a factory exists for kind.
func (r *Registry) IsRegistered(kind models.NodeKind) bool {
	_, ok := r.factories[kind]

	return ok
}

func validateConfig(schema map[string]any, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	configLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, configLoader)
	if err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}

	if !result.Valid() {
		var violations []string
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}

		return fmt.Errorf("invalid configuration: %s", strings.Join(violations, "; "))
	}

	return nil
}
