package users

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dmitrijs2005/fitauth/internal/common"
	"github.com/dmitrijs2005/fitauth/internal/server/hasher"
	"github.com/dmitrijs2005/fitauth/internal/server/models"
)

// CredentialStore is a Repository that can also check passwords.
type CredentialStore struct {
	Repository
	hasher hasher.Hasher

	mu          sync.Mutex
	dummyDigest string
}

func NewCredentialStore(repo Repository, h hasher.Hasher) *CredentialStore {
	return &CredentialStore{Repository: repo, hasher: h}
}

// FindByCredentials returns the user owning email if password matches.
// An unknown email and a wrong password both yield common.ErrInvalidCredentials.
func (s *CredentialStore) FindByCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn the same CPU as a real check so timing does not reveal the account
			_, _ = s.hasher.Verify(ctx, password, s.dummy(ctx))
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	return user, nil
}

// dummy returns a digest of a random password, computed on first use.
func (s *CredentialStore) dummy(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dummyDigest == "" {
		plain, err := common.MakeRandHexString(16)
		if err != nil {
			return ""
		}
		if digest, err := s.hasher.Hash(ctx, plain); err == nil {
			s.dummyDigest = digest
		}
	}
	return s.dummyDigest
}
