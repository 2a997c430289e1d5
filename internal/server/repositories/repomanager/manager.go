package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fitauth/internal/server/config"
	"github.com/dmitrijs2005/fitauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/fitauth/internal/timex"
)

// RepositoryManager owns the storage backend the server runs on.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	Close() error
}

// New opens the backend named by cfg.Storage.
func New(ctx context.Context, cfg *config.Config, clock timex.Clock) (RepositoryManager, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return NewMemoryRepositoryManager(clock), nil
	case config.StoragePostgres, "":
		return NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
