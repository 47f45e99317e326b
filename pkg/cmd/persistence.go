// Package cmd provides common initialization shared by the command-line
// binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/atendohq/atendo/pkg/persistence"
	"github.com/atendohq/atendo/pkg/persistence/file"
	"github.com/atendohq/atendo/pkg/persistence/postgresql"
	"github.com/atendohq/atendo/pkg/persistence/redis"
)

// NewPersistence dispatches on the URL scheme: postgres:// and redis:// go
// to their stores, anything else is treated as a directory path for the
// JSON-file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	var (
		p   persistence.Persistence
		err error
	)

	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err = postgresql.NewPersistence(ctx, logger, databaseURL)
	case strings.HasPrefix(databaseURL, "redis://"), strings.HasPrefix(databaseURL, "rediss://"):
		p, err = redis.NewPersistence(ctx, logger, databaseURL)
	default:
		p, err = file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	}

	if err != nil {
		panic(err)
	}

	return p
}
