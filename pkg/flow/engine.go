// Package flow runs published flow graphs against tickets: one execution
// per ticket, persisted after every step, suspended at wait-for-reply
// nodes and resumed by the contact's next inbound message.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/atendohq/atendo/pkg/eventbus"
	"github.com/atendohq/atendo/pkg/events"
	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/otelhelper"
	"github.com/atendohq/atendo/pkg/persistence"
	"github.com/atendohq/atendo/pkg/protocol"
	"github.com/atendohq/atendo/pkg/registry"
)

var tracer = otel.Tracer("atendo/flow")

const (
	defaultMaxExecutionAge = 24 * time.Hour
	defaultSweepSchedule   = "@every 1m"
)

// EngineConfig bounds how long executions may live. MaxExecutionAge is the
// global ceiling: any execution older than it is swept to timeout status
// regardless of which node it sits at.
type EngineConfig struct {
	MaxExecutionAge time.Duration
	SweepSchedule   string
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.MaxExecutionAge <= 0 {
		c.MaxExecutionAge = defaultMaxExecutionAge
	}

	if c.SweepSchedule == "" {
		c.SweepSchedule = defaultSweepSchedule
	}

	return c
}

// Engine drives flow executions. It is the only writer of execution
// records; all entry points serialize on the ticket.
type Engine struct {
	logger     *slog.Logger
	clock      clockwork.Clock
	flows      persistence.FlowRepository
	executions persistence.ExecutionRepository
	registry   *registry.Registry
	publisher  eventbus.EventPublisher
	cfg        EngineConfig

	tickets *ticketLock
	sweeper *cron.Cron

	// stopRequests holds executionID -> reason. The step loop checks it
	// after every persisted step, so a stop lands within one extra step.
	stopRequests sync.Map

	// waitTimers holds executionID -> *waitEntry for pending wait-for-reply
	// timeouts. Each pause arms a fresh generation; a timer firing after its
	// generation was replaced is stale and must not expire the new wait.
	waitTimers sync.Map
	waitGen    atomic.Uint64
}

type waitEntry struct {
	timer clockwork.Timer
	gen   uint64
}

func NewEngine(
	logger *slog.Logger,
	clock clockwork.Clock,
	flows persistence.FlowRepository,
	executions persistence.ExecutionRepository,
	nodeRegistry *registry.Registry,
	publisher eventbus.EventPublisher,
	cfg EngineConfig,
) *Engine {
	return &Engine{
		logger:     logger.With("module", "flow_engine"),
		clock:      clock,
		flows:      flows,
		executions: executions,
		registry:   nodeRegistry,
		publisher:  publisher,
		cfg:        cfg.withDefaults(),
		tickets:    newTicketLock(),
	}
}

// Start launches the timeout sweeper and re-arms wait-for-reply deadlines
// of executions that were paused when the process last stopped.
func (e *Engine) Start(ctx context.Context) error {
	e.sweeper = cron.New()

	if _, err := e.sweeper.AddFunc(e.cfg.SweepSchedule, func() {
		e.sweepExpired(ctx)
	}); err != nil {
		return fmt.Errorf("scheduling execution sweeper: %w", err)
	}

	e.sweeper.Start()
	e.restoreWaitTimeouts(ctx)
	e.logger.Info("Flow engine started", "sweep_schedule", e.cfg.SweepSchedule, "max_execution_age", e.cfg.MaxExecutionAge)

	return nil
}

// Stop halts the sweeper. In-flight steps finish on their own.
func (e *Engine) Stop(ctx context.Context) {
	if e.sweeper != nil {
		stopCtx := e.sweeper.Stop()

		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}
}

// StartExecution validates the flow and begins a fresh execution for the
// ticket. A previous active execution on the same ticket is stopped first;
// starting is always an explicit replacement, never an implicit resume.
func (e *Engine) StartExecution(ctx context.Context, flowID, ticketID, contactID string, variables map[string]any) (*models.Execution, error) {
	graph, err := e.flows.FlowByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if err := ValidateGraph(graph); err != nil {
		return nil, err
	}

	unlock := e.tickets.lock(ticketID)
	defer unlock()

	return e.startLocked(ctx, graph, ticketID, contactID, variables)
}

func (e *Engine) startLocked(ctx context.Context, graph *models.FlowGraph, ticketID, contactID string, variables map[string]any) (*models.Execution, error) {
	previous, err := e.executions.ActiveExecutionByTicket(ctx, ticketID)
	if err != nil && !persistence.IsNoActiveExecution(err) {
		return nil, err
	}

	if previous != nil {
		e.logger.Info("Stopping previous execution before starting a new one",
			"ticket_id", ticketID,
			"previous_execution_id", previous.ID)

		if err := e.finish(ctx, previous, models.ExecutionStatusStopped, "superseded by new execution"); err != nil {
			return nil, err
		}
	}

	vars := make(map[string]any, len(variables))
	for name, value := range variables {
		vars[name] = value
	}

	execution := &models.Execution{
		ID:            uuid.NewString(),
		FlowID:        graph.ID,
		FlowVersion:   graph.Version,
		TicketID:      ticketID,
		ContactID:     contactID,
		CompanyID:     graph.CompanyID,
		Status:        models.ExecutionStatusRunning,
		CurrentNodeID: graph.EntryNodeID,
		Variables:     vars,
		StartedAt:     e.clock.Now(),
	}

	if err := e.executions.SaveExecution(ctx, execution); err != nil {
		return nil, persistence.NewExecutionError("start", execution.ID, err)
	}

	e.publish(ctx, execution.TicketID, events.ExecutionStarted{
		BaseEvent:   e.baseEvent(events.ExecutionStartedEvent, execution.CompanyID),
		ExecutionID: execution.ID,
		FlowID:      graph.ID,
		TicketID:    ticketID,
	})

	e.runSteps(ctx, graph, execution, nil)

	return execution, nil
}

// StopExecution requests a stop. Idempotent: stopping a terminal execution
// is a no-op. A running step loop observes the request after its current
// step persists.
func (e *Engine) StopExecution(ctx context.Context, executionID, reason string) error {
	execution, err := e.executions.ExecutionByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status.IsTerminal() {
		return nil
	}

	e.stopRequests.Store(executionID, reason)

	unlock := e.tickets.lock(execution.TicketID)
	defer unlock()

	// Holding the ticket lock means no step loop is active; reload and
	// finalize whatever state the loop left behind.
	execution, err = e.executions.ExecutionByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status.IsTerminal() {
		e.stopRequests.Delete(executionID)

		return nil
	}

	return e.finish(ctx, execution, models.ExecutionStatusStopped, reason)
}

// HandleInbound feeds one inbound message to the engine: it resumes the
// ticket's paused execution, or starts a flow whose trigger keyword
// matches when the ticket has no active execution.
func (e *Engine) HandleInbound(ctx context.Context, msg models.NormalizedMessage) error {
	unlock := e.tickets.lock(msg.TicketID)
	defer unlock()

	execution, err := e.executions.ActiveExecutionByTicket(ctx, msg.TicketID)
	if persistence.IsNoActiveExecution(err) {
		return e.triggerByKeyword(ctx, msg)
	}

	if err != nil {
		return err
	}

	if execution.Status != models.ExecutionStatusPaused {
		e.logger.Debug("Inbound message while execution is running, ignoring",
			"execution_id", execution.ID,
			"ticket_id", msg.TicketID)

		return nil
	}

	e.cancelWaitTimer(execution.ID)

	graph, err := e.flows.FlowByID(ctx, execution.FlowID)
	if err != nil {
		return err
	}

	execution.Status = models.ExecutionStatusRunning
	execution.PausedUntil = nil
	e.runSteps(ctx, graph, execution, &msg)

	return nil
}

func (e *Engine) triggerByKeyword(ctx context.Context, msg models.NormalizedMessage) error {
	keyword := strings.TrimSpace(msg.Body)
	if keyword == "" {
		return nil
	}

	flows, err := e.flows.Flows(ctx, msg.CompanyID)
	if err != nil {
		return err
	}

	for _, graph := range flows {
		if graph.PublishedAt == nil || graph.TriggerKeyword == "" {
			continue
		}

		if !strings.EqualFold(graph.TriggerKeyword, keyword) {
			continue
		}

		if err := ValidateGraph(graph); err != nil {
			e.logger.Error("Keyword matched an invalid flow, skipping",
				"flow_id", graph.ID,
				"error", err)

			continue
		}

		e.logger.Info("Keyword trigger matched",
			"flow_id", graph.ID,
			"ticket_id", msg.TicketID,
			"keyword", graph.TriggerKeyword)

		_, err := e.startLocked(ctx, graph, msg.TicketID, msg.FromAddress, nil)

		return err
	}

	return nil
}

// runSteps drives the execution forward until it pauses, finishes or
// fails. Caller holds the ticket lock. inbound is consumed by the first
// node executed, which on resume is the wait-for-reply node itself.
func (e *Engine) runSteps(ctx context.Context, graph *models.FlowGraph, execution *models.Execution, inbound *models.NormalizedMessage) {
	ctx, span := tracer.Start(ctx, "flow.run_steps", trace.WithAttributes(
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.FlowIDKey, graph.ID),
	))
	defer span.End()

	logger := e.logger.With("execution_id", execution.ID, "flow_id", graph.ID, "ticket_id", execution.TicketID)

	for {
		if reason, stopped := e.stopRequested(execution.ID); stopped {
			_ = e.finish(ctx, execution, models.ExecutionStatusStopped, reason)

			return
		}

		spec := graph.Node(execution.CurrentNodeID)
		if spec == nil {
			_ = e.finish(ctx, execution, models.ExecutionStatusFailed,
				fmt.Sprintf("node %s not found in flow", execution.CurrentNodeID))

			return
		}

		switch spec.Kind {
		case models.NodeKindStart:
			// Start and end are markers: they produce no step record.
			if !e.advance(ctx, graph, execution, logger) {
				return
			}

		case models.NodeKindEnd:
			_ = e.finish(ctx, execution, models.ExecutionStatusCompleted, "")

			return

		default:
			paused := e.executeNode(ctx, graph, execution, spec, inbound, logger)
			inbound = nil

			if paused || execution.Status.IsTerminal() {
				return
			}
		}
	}
}

// executeNode runs one node, appends its step record, merges variables and
// routes to the next node. Returns true when the execution paused.
func (e *Engine) executeNode(ctx context.Context, graph *models.FlowGraph, execution *models.Execution, spec *models.NodeSpec, inbound *models.NormalizedMessage, logger *slog.Logger) bool {
	entered := e.clock.Now()

	node, err := e.registry.CreateNode(spec.Kind, spec.ID, spec.Config)
	if err != nil {
		_ = e.finish(ctx, execution, models.ExecutionStatusFailed, err.Error())

		return false
	}

	outcome, err := node.Execute(ctx, protocol.NodeContext{
		Flow:      graph,
		Execution: execution,
		Inbound:   inbound,
		Logger:    logger.With("node_id", spec.ID),
	})

	if err != nil && !spec.BestEffort {
		exited := e.clock.Now()
		execution.AppendStep(models.StepRecord{
			NodeID:    spec.ID,
			EnteredAt: entered,
			ExitedAt:  &exited,
			Error:     err.Error(),
		})

		_ = e.finish(ctx, execution, models.ExecutionStatusFailed,
			fmt.Sprintf("node %s: %v", spec.ID, err))

		return false
	}

	if err != nil {
		logger.Warn("Best-effort node failed, continuing", "node_id", spec.ID, "error", err)
	}

	for name, value := range outcome.Variables {
		execution.SetVariable(name, value)
	}

	if outcome.Pause {
		execution.Status = models.ExecutionStatusPaused
		execution.PausedUntil = nil

		// The deadline is persisted with the pause so a restart can re-arm
		// or expire it.
		if timeout := spec.WaitTimeout.Std(); timeout > 0 {
			deadline := e.clock.Now().Add(timeout)
			execution.PausedUntil = &deadline
		}

		if err := e.executions.SaveExecution(ctx, execution); err != nil {
			logger.Error("Failed to persist paused execution", "error", err)
			_ = e.finish(ctx, execution, models.ExecutionStatusFailed, err.Error())

			return false
		}

		e.scheduleWaitTimeout(execution)
		logger.Debug("Execution paused", "node_id", spec.ID)

		return true
	}

	exited := e.clock.Now()
	record := models.StepRecord{
		NodeID:         spec.ID,
		EnteredAt:      entered,
		ExitedAt:       &exited,
		Outcome:        outcome.Summary,
		Output:         outcome.Output,
		SentMessageIDs: outcome.SentMessageIDs,
	}

	if err != nil {
		record.Error = err.Error()
	}

	// The edge is routed before the record is appended so history shows
	// where the execution went from this node.
	edge, routeErr := nextEdge(graph, execution.CurrentNodeID, execution.Variables)
	if routeErr == nil {
		record.TakenEdge = edge.TargetNodeID
	}

	execution.AppendStep(record)

	if routeErr != nil {
		logger.Error("Routing failed", "node_id", spec.ID, "error", routeErr)
		_ = e.finish(ctx, execution, models.ExecutionStatusFailed, routeErr.Error())

		return false
	}

	execution.CurrentNodeID = edge.TargetNodeID

	if err := e.executions.SaveExecution(ctx, execution); err != nil {
		logger.Error("Failed to persist execution step", "node_id", spec.ID, "error", err)
		_ = e.finish(ctx, execution, models.ExecutionStatusFailed, err.Error())
	}

	return false
}

// advance moves CurrentNodeID along the first matching outgoing edge.
// Returns false when the execution was finished (no edge matched).
func (e *Engine) advance(ctx context.Context, graph *models.FlowGraph, execution *models.Execution, logger *slog.Logger) bool {
	edge, err := nextEdge(graph, execution.CurrentNodeID, execution.Variables)
	if err != nil {
		logger.Error("Routing failed", "node_id", execution.CurrentNodeID, "error", err)
		_ = e.finish(ctx, execution, models.ExecutionStatusFailed, err.Error())

		return false
	}

	execution.CurrentNodeID = edge.TargetNodeID

	return true
}

// nextEdge picks the edge to follow: conditional edges in declaration
// order, an empty condition always matching, the default edge as fallback.
func nextEdge(graph *models.FlowGraph, nodeID string, variables map[string]any) (*models.Edge, error) {
	edges := graph.OutgoingEdges(nodeID)
	if len(edges) == 0 {
		return nil, fmt.Errorf("node %s has no outgoing edge", nodeID)
	}

	var fallback *models.Edge

	for i, edge := range edges {
		if edge.Default {
			if fallback == nil {
				fallback = &edges[i]
			}

			continue
		}

		match, err := models.EvaluateCondition(edge.Condition, variables)
		if err != nil {
			return nil, fmt.Errorf("evaluating condition on edge %s -> %s: %w", edge.SourceNodeID, edge.TargetNodeID, err)
		}

		if match {
			return &edges[i], nil
		}
	}

	if fallback != nil {
		return fallback, nil
	}

	return nil, fmt.Errorf("no edge matched leaving node %s", nodeID)
}

// scheduleWaitTimeout arms a timer for the execution's persisted pause
// deadline. No deadline means the wait is unbounded until the sweeper's
// global ceiling catches it.
func (e *Engine) scheduleWaitTimeout(execution *models.Execution) {
	if execution.PausedUntil == nil {
		return
	}

	remaining := execution.PausedUntil.Sub(e.clock.Now())
	if remaining < 0 {
		remaining = 0
	}

	executionID := execution.ID
	ticketID := execution.TicketID
	nodeID := execution.CurrentNodeID
	gen := e.waitGen.Add(1)

	timer := e.clock.AfterFunc(remaining, func() {
		e.expireWait(executionID, ticketID, nodeID, gen)
	})

	e.waitTimers.Store(executionID, &waitEntry{timer: timer, gen: gen})
}

// restoreWaitTimeouts re-arms the wait-for-reply deadline of every paused
// execution, run once on engine start. Deadlines that passed while the
// process was down expire immediately.
func (e *Engine) restoreWaitTimeouts(ctx context.Context) {
	active, err := e.executions.ActiveExecutions(ctx)
	if err != nil {
		e.logger.Error("Failed to list executions for wait deadline recovery", "error", err)

		return
	}

	for _, execution := range active {
		if execution.Status != models.ExecutionStatusPaused || execution.PausedUntil == nil {
			continue
		}

		e.scheduleWaitTimeout(execution)
		e.logger.Info("Restored wait-for-reply deadline",
			"execution_id", execution.ID,
			"paused_until", execution.PausedUntil)
	}
}

// expireWait fires when a wait-for-reply timeout elapses with no reply.
// The execution moves to timeout status; CurrentNodeID stays at the wait
// node so the record shows where the conversation died.
func (e *Engine) expireWait(executionID, ticketID, nodeID string, gen uint64) {
	ctx := context.Background()

	unlock := e.tickets.lock(ticketID)
	defer unlock()

	value, ok := e.waitTimers.Load(executionID)
	if !ok {
		return
	}

	// A reply racing this fire re-armed a newer generation (possibly at
	// the very same wait node); only the current generation may expire.
	if value.(*waitEntry).gen != gen {
		return
	}

	e.waitTimers.Delete(executionID)

	execution, err := e.executions.ExecutionByID(ctx, executionID)
	if err != nil {
		e.logger.Error("Wait timeout fired for unknown execution", "execution_id", executionID, "error", err)

		return
	}

	if execution.Status != models.ExecutionStatusPaused || execution.CurrentNodeID != nodeID {
		return
	}

	e.logger.Info("Wait-for-reply timed out",
		"execution_id", executionID,
		"node_id", nodeID)

	_ = e.finish(ctx, execution, models.ExecutionStatusTimeout,
		fmt.Sprintf("no reply received at node %s", nodeID))
}

// sweepExpired enforces the global execution age ceiling.
func (e *Engine) sweepExpired(ctx context.Context) {
	active, err := e.executions.ActiveExecutions(ctx)
	if err != nil {
		e.logger.Error("Timeout sweep failed to list executions", "error", err)

		return
	}

	now := e.clock.Now()

	for _, candidate := range active {
		if now.Sub(candidate.StartedAt) < e.cfg.MaxExecutionAge {
			continue
		}

		unlock := e.tickets.lock(candidate.TicketID)

		execution, err := e.executions.ExecutionByID(ctx, candidate.ID)
		if err == nil && !execution.Status.IsTerminal() {
			e.logger.Warn("Execution exceeded maximum age, timing out",
				"execution_id", execution.ID,
				"started_at", execution.StartedAt)

			_ = e.finish(ctx, execution, models.ExecutionStatusTimeout, "execution exceeded maximum age")
		}

		unlock()
	}
}

func (e *Engine) finish(ctx context.Context, execution *models.Execution, status models.ExecutionStatus, reason string) error {
	now := e.clock.Now()
	execution.Status = status
	execution.EndedAt = &now
	execution.PausedUntil = nil

	if status != models.ExecutionStatusCompleted {
		execution.Error = reason
	}

	e.cancelWaitTimer(execution.ID)
	e.stopRequests.Delete(execution.ID)

	if err := e.executions.SaveExecution(ctx, execution); err != nil {
		return persistence.NewExecutionError("finish", execution.ID, err)
	}

	e.publish(ctx, execution.TicketID, events.ExecutionFinished{
		BaseEvent:   e.baseEvent(events.ExecutionFinishedEvent, execution.CompanyID),
		ExecutionID: execution.ID,
		TicketID:    execution.TicketID,
		Status:      status,
		Error:       execution.Error,
		Duration:    now.Sub(execution.StartedAt),
	})

	e.logger.Info("Execution finished",
		"execution_id", execution.ID,
		"status", status,
		"steps", len(execution.History))

	return nil
}

func (e *Engine) stopRequested(executionID string) (string, bool) {
	value, ok := e.stopRequests.Load(executionID)
	if !ok {
		return "", false
	}

	reason, _ := value.(string)

	return reason, true
}

func (e *Engine) cancelWaitTimer(executionID string) {
	if value, ok := e.waitTimers.LoadAndDelete(executionID); ok {
		// Stop may return false when the timer already fired; the deleted
		// entry makes that fire a stale generation, so it is harmless.
		value.(*waitEntry).timer.Stop()
	}
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.Error("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) baseEvent(eventType events.EventType, companyID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: e.clock.Now(),
		CompanyID: companyID,
	}
}
