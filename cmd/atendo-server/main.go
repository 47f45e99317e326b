package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/atendohq/atendo/pkg/cmd"
	"github.com/atendohq/atendo/pkg/log"
	"github.com/atendohq/atendo/pkg/otelhelper"
)

const defaultPort = 9080

func main() {
	logger := log.WithModule("atendo-server")

	command := &cli.Command{
		Name:                  "atendo-server",
		Usage:                 "Provider gateway and flow execution engine",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the HTTP server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Storage URL (postgres://..., redis://... or a directory path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus channel (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces via OTLP",
				Sources: cli.EnvVars("OTEL_TRACING_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Atendo server")

			if command.Bool("tracing") {
				if _, err := otelhelper.NewTracer(ctx, "atendo-server"); err != nil {
					logger.WarnContext(ctx, "Tracing setup failed, continuing without export", "error", err)
				}
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			server := NewServerManager(logger, persistence, eventBus)

			return server.Start(ctx, command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
