package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/persistence"
)

type FlowRepository struct {
	db *sql.DB
}

const flowColumns = `
	id, company_id, name, version, nodes, edges, entry_node_id,
	trigger_keyword, created_at, published_at
`

func (r *FlowRepository) Flows(ctx context.Context, companyID string) ([]*models.FlowGraph, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+flowColumns+` FROM flows WHERE company_id = $1 ORDER BY created_at`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.FlowGraph

	for rows.Next() {
		graph, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, graph)
	}

	return out, rows.Err()
}

func (r *FlowRepository) FlowByID(ctx context.Context, id string) (*models.FlowGraph, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+flowColumns+` FROM flows WHERE id = $1`, id)

	graph, err := scanFlow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrFlowNotFound
	}

	if err != nil {
		return nil, err
	}

	return graph, nil
}

func (r *FlowRepository) SaveFlow(ctx context.Context, graph *models.FlowGraph) error {
	nodes, err := json.Marshal(graph.Nodes)
	if err != nil {
		return fmt.Errorf("failed to serialize nodes: %w", err)
	}

	edges, err := json.Marshal(graph.Edges)
	if err != nil {
		return fmt.Errorf("failed to serialize edges: %w", err)
	}

	if graph.CreatedAt.IsZero() {
		graph.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO flows (
			id, company_id, name, version, nodes, edges, entry_node_id,
			trigger_keyword, created_at, published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			entry_node_id = EXCLUDED.entry_node_id,
			trigger_keyword = EXCLUDED.trigger_keyword,
			published_at = EXCLUDED.published_at
	`,
		graph.ID, graph.CompanyID, graph.Name, graph.Version,
		nodes, edges, graph.EntryNodeID,
		nullString(graph.TriggerKeyword), graph.CreatedAt, nullTime(graph.PublishedAt))
	if err != nil {
		return fmt.Errorf("failed to save flow %s: %w", graph.ID, err)
	}

	return nil
}

func scanFlow(row rowScanner) (*models.FlowGraph, error) {
	var (
		graph          models.FlowGraph
		nodes          []byte
		edges          []byte
		triggerKeyword sql.NullString
		publishedAt    sql.NullTime
	)

	err := row.Scan(
		&graph.ID, &graph.CompanyID, &graph.Name, &graph.Version,
		&nodes, &edges, &graph.EntryNodeID,
		&triggerKeyword, &graph.CreatedAt, &publishedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodes, &graph.Nodes); err != nil {
		return nil, fmt.Errorf("failed to deserialize nodes for flow %s: %w", graph.ID, err)
	}

	if err := json.Unmarshal(edges, &graph.Edges); err != nil {
		return nil, fmt.Errorf("failed to deserialize edges for flow %s: %w", graph.ID, err)
	}

	graph.TriggerKeyword = triggerKeyword.String

	if publishedAt.Valid {
		graph.PublishedAt = &publishedAt.Time
	}

	return &graph, nil
}
