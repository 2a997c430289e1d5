package repomanager

import (
	"context"

	"github.com/dmitrijs2005/fitauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/fitauth/internal/timex"
)

// MemoryRepositoryManager keeps everything in process memory. Data is lost
// on restart.
type MemoryRepositoryManager struct {
	users *users.MemoryRepository
}

func NewMemoryRepositoryManager(clock timex.Clock) *MemoryRepositoryManager {
	return &MemoryRepositoryManager{users: users.NewMemoryRepository(clock)}
}

func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *MemoryRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *MemoryRepositoryManager) Close() error {
	return nil
}
