package redis_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/persistence"
	"github.com/atendohq/atendo/pkg/persistence/redis"
)

// Integration tests run against a live Redis only when REDIS_URL is set,
// e.g. REDIS_URL=redis://localhost:6379/15.
func setupTestRedis(t *testing.T) *redis.Persistence {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping redis integration tests")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p, err := redis.NewPersistence(context.Background(), logger, url)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = p.Close(context.Background())
	})

	return p
}

func TestRedisProviderLifecycle(t *testing.T) {
	p := setupTestRedis(t)
	ctx := context.Background()
	repo := p.ProviderRepository()

	companyID := "c-" + uuid.NewString()

	config := &models.ProviderConfig{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		Kind:      models.ProviderKindSocket,
		Name:      "Main line",
		IsActive:  true,
		IsDefault: true,
	}

	require.NoError(t, repo.SaveProvider(ctx, config))

	loaded, err := repo.ProviderByID(ctx, config.ID)
	require.NoError(t, err)
	assert.Equal(t, config.Name, loaded.Name)
	assert.True(t, loaded.IsDefault)

	listed, err := repo.Providers(ctx, companyID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = repo.ProviderByID(ctx, uuid.NewString())
	assert.True(t, persistence.IsProviderNotFound(err))
}

func TestRedisFlowRoundTrip(t *testing.T) {
	p := setupTestRedis(t)
	ctx := context.Background()
	repo := p.FlowRepository()

	companyID := "c-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Second)

	graph := &models.FlowGraph{
		ID:             uuid.NewString(),
		CompanyID:      companyID,
		Name:           "Billing triage",
		Version:        1,
		TriggerKeyword: "fatura",
		EntryNodeID:    "start",
		PublishedAt:    &now,
		Nodes: map[string]*models.NodeSpec{
			"start": {ID: "start", Kind: models.NodeKindStart},
			"end":   {ID: "end", Kind: models.NodeKindEnd},
		},
		Edges: []models.Edge{
			{SourceNodeID: "start", TargetNodeID: "end"},
		},
	}

	require.NoError(t, repo.SaveFlow(ctx, graph))

	loaded, err := repo.FlowByID(ctx, graph.ID)
	require.NoError(t, err)
	assert.Equal(t, "fatura", loaded.TriggerKeyword)
	require.Len(t, loaded.Edges, 1)
	require.NotNil(t, loaded.PublishedAt)

	_, err = repo.FlowByID(ctx, uuid.NewString())
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestRedisActiveExecutionIndex(t *testing.T) {
	p := setupTestRedis(t)
	ctx := context.Background()
	repo := p.ExecutionRepository()

	ticketID := "t-" + uuid.NewString()

	execution := &models.Execution{
		ID:            uuid.NewString(),
		FlowID:        uuid.NewString(),
		CompanyID:     "c-" + uuid.NewString(),
		TicketID:      ticketID,
		ContactID:     "5511987654321",
		Status:        models.ExecutionStatusRunning,
		CurrentNodeID: "wait",
		Variables:     map[string]any{"choice": "1"},
		StartedAt:     time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, repo.SaveExecution(ctx, execution))

	active, err := repo.ActiveExecutionByTicket(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, execution.ID, active.ID)
	assert.Equal(t, "1", active.Variables["choice"])

	ended := time.Now().UTC()
	execution.Status = models.ExecutionStatusCompleted
	execution.EndedAt = &ended
	require.NoError(t, repo.SaveExecution(ctx, execution))

	_, err = repo.ActiveExecutionByTicket(ctx, ticketID)
	assert.True(t, persistence.IsNoActiveExecution(err))

	loaded, err := repo.ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
}
