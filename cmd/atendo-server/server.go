// Package main runs the combined API, provider gateway and flow engine in
// one process. Inbound messages flow adapter -> gateway -> event bus ->
// engine, never adapter -> engine directly.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/jonboulle/clockwork"

	"github.com/atendohq/atendo/pkg/cmd"
	"github.com/atendohq/atendo/pkg/eventbus"
	"github.com/atendohq/atendo/pkg/events"
	"github.com/atendohq/atendo/pkg/flow"
	"github.com/atendohq/atendo/pkg/gateway"
	"github.com/atendohq/atendo/pkg/persistence"
	"github.com/atendohq/atendo/pkg/web"
)

type ServerManager struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	gateway     *gateway.Gateway
	engine      *flow.Engine
	app         *fiber.App
}

func NewServerManager(
	logger *slog.Logger,
	pers persistence.Persistence,
	eventBus eventbus.EventBus,
) *ServerManager {
	clock := clockwork.NewRealClock()

	gw := gateway.New(logger, clock, eventBus, pers.ProviderRepository(), nil, gateway.RegistryConfig{})
	cmd.RegisterProviderFactories(gw, nil)

	nodeRegistry := cmd.NewNodeRegistry(logger, gw, cmd.NewEventQueueRouter(eventBus))

	engine := flow.NewEngine(
		logger,
		clock,
		pers.FlowRepository(),
		pers.ExecutionRepository(),
		nodeRegistry,
		eventBus,
		flow.EngineConfig{},
	)

	handlers := web.NewAPIHandlers(logger, pers, gw, engine, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	web.Router(app, handlers)

	return &ServerManager{
		logger:      logger.With("module", "server_manager"),
		persistence: pers,
		eventBus:    eventBus,
		gateway:     gw,
		engine:      engine,
		app:         app,
	}
}

func (s *ServerManager) Start(ctx context.Context, port int) error {
	if err := s.eventBus.Handle(events.MessageReceivedEvent, s.handleMessageReceived); err != nil {
		return err
	}

	if err := s.eventBus.Subscribe(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	if err := s.engine.Start(ctx); err != nil {
		return err
	}

	go func() {
		if err := s.app.Listen(":" + strconv.Itoa(port)); err != nil {
			s.logger.ErrorContext(ctx, "HTTP server error", "error", err)
		}
	}()

	s.logger.InfoContext(ctx, "Server started", "port", port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	s.logger.InfoContext(ctx, "Shutting down...")

	s.engine.Stop(ctx)

	if err := s.app.Shutdown(); err != nil {
		s.logger.ErrorContext(ctx, "HTTP server shutdown failed", "error", err)
	}

	return nil
}

// handleMessageReceived feeds inbound messages to the engine, which resumes
// a paused execution or starts one by keyword. Flow errors are logged, not
// returned: redelivering the message would not make them succeed.
func (s *ServerManager) handleMessageReceived(ctx context.Context, event any) error {
	received, ok := event.(*events.MessageReceived)
	if !ok {
		s.logger.ErrorContext(ctx, "Invalid event type for MessageReceived")

		return nil
	}

	if err := s.engine.HandleInbound(ctx, received.Message); err != nil {
		s.logger.ErrorContext(ctx, "Inbound message handling failed",
			"ticket_id", received.TicketID,
			"error", err)
	}

	return nil
}
