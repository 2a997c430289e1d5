// Package hasher turns plaintext passwords into self-describing bcrypt
// digests and verifies candidates against them. At most a fixed number of
// hash computations run at once; callers beyond that wait for a slot.
package hasher

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fitauth/internal/common"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost is the work factor used when none is configured.
const DefaultCost = 10

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// Hasher is what the credential store and the auth service need.
type Hasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, digest string) (bool, error)
}

type BcryptHasher struct {
	cost    int
	workers *semaphore.Weighted
}

// NewBcryptHasher returns a hasher with the given cost and worker limit.
// A cost below bcrypt.MinCost falls back to DefaultCost; one above
// bcrypt.MaxCost is rejected.
func NewBcryptHasher(cost, workers int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost {
		cost = DefaultCost
	}
	if cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d exceeds maximum %d", cost, bcrypt.MaxCost)
	}
	if workers < 1 {
		workers = 1
	}
	return &BcryptHasher{cost: cost, workers: semaphore.NewWeighted(int64(workers))}, nil
}

// Cost reports the configured work factor.
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash derives a digest with a fresh random salt.
func (h *BcryptHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.workers.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.workers.Release(1)

	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrHashing, err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest. A mismatch is (false, nil);
// a malformed digest is ErrHashing.
func (h *BcryptHasher) Verify(ctx context.Context, password, digest string) (bool, error) {
	if err := h.workers.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.workers.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", common.ErrHashing, err)
	}
}

// NeedsRehash reports whether digest was produced with a lower cost than
// the one configured.
func (h *BcryptHasher) NeedsRehash(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return false
	}
	return cost < h.cost
}
