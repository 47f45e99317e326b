package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	p, err := NewPersistence(t.TempDir())
	require.NoError(t, err)

	return p
}

func TestProviderRoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	config := &models.ProviderConfig{
		ID:          "p-1",
		CompanyID:   "c-1",
		Kind:        models.ProviderKindSocket,
		Name:        "main line",
		IsActive:    true,
		IsDefault:   true,
		Credentials: map[string]any{"session": "abc"},
	}
	require.NoError(t, p.ProviderRepository().SaveProvider(ctx, config))

	loaded, err := p.ProviderRepository().ProviderByID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, config.Name, loaded.Name)
	assert.Equal(t, config.Credentials, loaded.Credentials)

	byCompany, err := p.ProviderRepository().Providers(ctx, "c-1")
	require.NoError(t, err)
	assert.Len(t, byCompany, 1)

	_, err = p.ProviderRepository().ProviderByID(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrProviderNotFound)
}

func TestFlowRoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	graph := &models.FlowGraph{
		ID:        "f-1",
		CompanyID: "c-1",
		Name:      "greeting",
		Version:   2,
		Nodes: map[string]*models.NodeSpec{
			"start": {ID: "start", Kind: models.NodeKindStart},
			"wait": {
				ID:          "wait",
				Kind:        models.NodeKindWaitReply,
				WaitTimeout: models.Duration(30 * time.Minute),
			},
			"end": {ID: "end", Kind: models.NodeKindEnd},
		},
		Edges: []models.Edge{
			{SourceNodeID: "start", TargetNodeID: "wait"},
			{SourceNodeID: "wait", TargetNodeID: "end"},
		},
		EntryNodeID: "start",
	}
	require.NoError(t, p.FlowRepository().SaveFlow(ctx, graph))

	loaded, err := p.FlowRepository().FlowByID(ctx, "f-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Version)
	require.NotNil(t, loaded.Node("wait"))
	assert.Equal(t, 30*time.Minute, loaded.Node("wait").WaitTimeout.Std())

	_, err = p.FlowRepository().FlowByID(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrFlowNotFound)
}

func TestExecutionQueries(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.ExecutionRepository()

	exited := time.Date(2026, 2, 1, 12, 0, 5, 0, time.UTC)
	running := &models.Execution{
		ID:            "e-1",
		FlowID:        "f-1",
		TicketID:      "t-1",
		CompanyID:     "c-1",
		Status:        models.ExecutionStatusPaused,
		CurrentNodeID: "wait",
		Variables:     map[string]any{"choice": "1"},
		History: []models.StepRecord{
			{
				NodeID:         "greet",
				EnteredAt:      exited.Add(-5 * time.Second),
				ExitedAt:       &exited,
				Outcome:        "message sent",
				SentMessageIDs: []string{"ext-1"},
			},
		},
		StartedAt: exited.Add(-time.Minute),
	}
	done := &models.Execution{
		ID:        "e-2",
		FlowID:    "f-1",
		TicketID:  "t-2",
		CompanyID: "c-1",
		Status:    models.ExecutionStatusCompleted,
		StartedAt: exited,
	}
	require.NoError(t, repo.SaveExecution(ctx, running))
	require.NoError(t, repo.SaveExecution(ctx, done))

	loaded, err := repo.ExecutionByID(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "message sent", loaded.History[0].Outcome)
	assert.Equal(t, "1", loaded.Variables["choice"])

	active, err := repo.ActiveExecutionByTicket(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "e-1", active.ID)

	_, err = repo.ActiveExecutionByTicket(ctx, "t-2")
	require.ErrorIs(t, err, persistence.ErrNoActiveExecution)

	allActive, err := repo.ActiveExecutions(ctx)
	require.NoError(t, err)
	assert.Len(t, allActive, 1)

	byCompany, err := repo.ExecutionsByCompany(ctx, "c-1")
	require.NoError(t, err)
	assert.Len(t, byCompany, 2)
}

func TestHealthCheck(t *testing.T) {
	p := newTestPersistence(t)
	require.NoError(t, p.HealthCheck(context.Background()))
	require.NoError(t, p.Close(context.Background()))
}
