package hasher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/fitauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *BcryptHasher {
	t.Helper()
	h, err := NewBcryptHasher(bcrypt.MinCost, 2)
	require.NoError(t, err)
	return h
}

func TestHashAndVerify_RoundTrip(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	for _, p := range []string{"Secret123", "", "пароль-Пароль1", strings.Repeat("a", MaxPasswordBytes)} {
		digest, err := h.Hash(ctx, p)
		require.NoError(t, err)
		assert.NotEqual(t, p, digest)

		ok, err := h.Verify(ctx, p, digest)
		require.NoError(t, err)
		assert.True(t, ok, "password %q must verify against its own digest", p)
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	digest, err := h.Hash(ctx, "Secret123")
	require.NoError(t, err)

	ok, err := h.Verify(ctx, "Secret124", digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHash_FreshSaltEachCall(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	d1, err := h.Hash(ctx, "Secret123")
	require.NoError(t, err)
	d2, err := h.Hash(ctx, "Secret123")
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
	for _, d := range []string{d1, d2} {
		ok, err := h.Verify(ctx, "Secret123", d)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestVerify_MalformedDigest(t *testing.T) {
	h := newTestHasher(t)

	_, err := h.Verify(context.Background(), "Secret123", "not-a-bcrypt-digest")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrHashing))
}

func TestHash_TooLongPassword(t *testing.T) {
	h := newTestHasher(t)

	_, err := h.Hash(context.Background(), strings.Repeat("a", MaxPasswordBytes+1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrHashing))
}

func TestNewBcryptHasher_Cost(t *testing.T) {
	h, err := NewBcryptHasher(0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCost, h.Cost())

	_, err = NewBcryptHasher(bcrypt.MaxCost+1, 1)
	require.Error(t, err)
}

func TestNeedsRehash(t *testing.T) {
	low := newTestHasher(t)
	digest, err := low.Hash(context.Background(), "Secret123")
	require.NoError(t, err)

	high, err := NewBcryptHasher(bcrypt.MinCost+1, 1)
	require.NoError(t, err)

	assert.True(t, high.NeedsRehash(digest))
	assert.False(t, low.NeedsRehash(digest))
	assert.False(t, high.NeedsRehash("garbage"))
}

func TestHash_RespectsContextWhileWaitingForWorker(t *testing.T) {
	h, err := NewBcryptHasher(bcrypt.MinCost, 1)
	require.NoError(t, err)

	// occupy the only worker slot
	require.NoError(t, h.workers.Acquire(context.Background(), 1))
	defer h.workers.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = h.Hash(ctx, "Secret123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHash_ConcurrentCallers(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := h.Hash(ctx, "Secret123")
			if err != nil {
				errs <- err
				return
			}
			ok, err := h.Verify(ctx, "Secret123", d)
			if err != nil || !ok {
				errs <- errors.New("verify failed")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}
}
