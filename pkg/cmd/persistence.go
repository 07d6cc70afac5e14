// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/dukex/autoflow/pkg/persistence/file"
	"github.com/dukex/autoflow/pkg/persistence/postgresql"
	"github.com/dukex/autoflow/pkg/persistence/sqlite"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql", "sqlite", "sqlite3"}

// NewPersistence picks the backend from the URL scheme. A URL without a known scheme is
// treated as a directory for file persistence.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL, supportedPersistenceProviders, "file") {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger.With("module", "postgresql"), databaseURL)
		if err != nil {
			return nil, err
		}

		return p, nil
	case "sqlite", "sqlite3":
		p, err := sqlite.NewPersistence(ctx, logger.With("module", "sqlite"), databaseURL)
		if err != nil {
			return nil, err
		}

		return p, nil
	case "file":
		return file.NewPersistence(databaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported persistence URL: %s", databaseURL)
	}
}

func parseProvider(rawURL string, supported []string, fallback string) string {
	scheme, _, found := strings.Cut(rawURL, "://")
	if !found {
		return fallback
	}

	for _, s := range supported {
		if scheme == s {
			return scheme
		}
	}

	return fallback
}
