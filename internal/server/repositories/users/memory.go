package users

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/fitauth/internal/common"
	"github.com/dmitrijs2005/fitauth/internal/server/models"
	"github.com/dmitrijs2005/fitauth/internal/timex"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory. Uniqueness of email is
// decided under the repository mutex. Records are cloned on the way in and
// out so callers never share state with the store.
type MemoryRepository struct {
	mu      sync.RWMutex
	clock   timex.Clock
	byID    map[string]*models.User
	byEmail map[string]string
}

func NewMemoryRepository(clock timex.Clock) *MemoryRepository {
	if clock == nil {
		clock = timex.RealClock{}
	}
	return &MemoryRepository{
		clock:   clock,
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := r.byEmail[email]; ok {
		return nil, common.ErrDuplicateEmail
	}

	u := user.Clone()
	u.ID = uuid.NewString()
	u.Email = email
	now := r.clock.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	r.byID[u.ID] = u
	r.byEmail[email] = u.ID

	return u.Clone(), nil
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryRepository) FindByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u := r.findByVerificationToken(token)
	if u == nil {
		return nil, common.ErrorNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryRepository) UpdateFields(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}

	if patch.FullName != nil {
		u.FullName = *patch.FullName
	}
	if patch.Profile != nil {
		u.Profile = patch.Profile.Clone()
	}
	if patch.ProfilePic != nil {
		pic := *patch.ProfilePic
		u.ProfilePic = &pic
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.LastLogin != nil {
		t := *patch.LastLogin
		u.LastLogin = &t
	}
	if patch.ResetPasswordToken != nil {
		tok := *patch.ResetPasswordToken
		u.ResetPasswordToken = &tok
	}
	if patch.ResetPasswordExpires != nil {
		t := *patch.ResetPasswordExpires
		u.ResetPasswordExpires = &t
	}
	u.UpdatedAt = r.clock.Now()

	return u.Clone(), nil
}

func (r *MemoryRepository) ConsumeVerificationToken(ctx context.Context, token string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.findByVerificationToken(token)
	if u == nil {
		return nil, common.ErrorNotFound
	}

	u.IsVerified = true
	u.VerificationToken = nil
	u.UpdatedAt = r.clock.Now()

	return u.Clone(), nil
}

func (r *MemoryRepository) ConsumeResetToken(ctx context.Context, token string, now time.Time, newHash string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var u *models.User
	if token != "" {
		for _, candidate := range r.byID {
			if candidate.ResetPasswordToken != nil && *candidate.ResetPasswordToken == token {
				u = candidate
				break
			}
		}
	}
	if u == nil {
		return nil, common.ErrorNotFound
	}

	expired := u.ResetPasswordExpires == nil || !now.Before(*u.ResetPasswordExpires)

	u.ResetPasswordToken = nil
	u.ResetPasswordExpires = nil
	u.UpdatedAt = r.clock.Now()

	if expired {
		return nil, common.ErrTokenExpired
	}

	u.PasswordHash = newHash
	return u.Clone(), nil
}

// List returns all users ordered by creation time.
func (r *MemoryRepository) List(ctx context.Context) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *MemoryRepository) findByVerificationToken(token string) *models.User {
	if token == "" {
		return nil
	}
	for _, u := range r.byID {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			return u
		}
	}
	return nil
}
