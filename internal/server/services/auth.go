// Package services contains server-side business logic. AuthService covers
// the account lifecycle: registration, login, email verification, profile
// updates, password resets and profile picture uploads.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/fitauth/internal/common"
	"github.com/dmitrijs2005/fitauth/internal/logging"
	"github.com/dmitrijs2005/fitauth/internal/server/auth"
	"github.com/dmitrijs2005/fitauth/internal/server/config"
	"github.com/dmitrijs2005/fitauth/internal/server/hasher"
	"github.com/dmitrijs2005/fitauth/internal/server/models"
	"github.com/dmitrijs2005/fitauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/fitauth/internal/timex"
	"github.com/go-playground/validator/v10"
)

type RegisterInput struct {
	FullName string `json:"fullName" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfilePatch is a partial profile update. Nil fields are left untouched;
// a non-nil Profile replaces the stored profile as a whole.
type ProfilePatch struct {
	FullName   *string         `json:"fullName,omitempty" validate:"omitempty,min=3,max=50"`
	Profile    *models.Profile `json:"profile,omitempty"`
	ProfilePic *string         `json:"profilePic,omitempty" validate:"omitempty,max=2048"`
}

type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,password"`
}

type SetPasswordInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string
	User  models.PublicUser
}

// AvatarUpload tells the client where to PUT its profile picture.
type AvatarUpload struct {
	Key string
	URL string
}

// AvatarStore issues upload and download URLs for profile pictures.
type AvatarStore interface {
	PresignUpload(ctx context.Context, userID string) (key, url string, err error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

type rehasher interface {
	NeedsRehash(digest string) bool
}

type AuthService struct {
	users    *users.CredentialStore
	hasher   hasher.Hasher
	issuer   *auth.Issuer
	mailer   Mailer
	avatars  AvatarStore
	clock    timex.Clock
	resetTTL time.Duration
	validate *validator.Validate
	logger   logging.Logger
}

// Option customizes an AuthService.
type Option func(*AuthService)

func WithMailer(m Mailer) Option {
	return func(s *AuthService) { s.mailer = m }
}

// WithAvatarStore enables profile picture uploads.
func WithAvatarStore(a AvatarStore) Option {
	return func(s *AuthService) { s.avatars = a }
}

func WithClock(c timex.Clock) Option {
	return func(s *AuthService) { s.clock = c }
}

// NewAuthService wires the service. Unless overridden, one-time tokens are
// delivered through a LogMailer and the wall clock is used.
func NewAuthService(store *users.CredentialStore, h hasher.Hasher, issuer *auth.Issuer, cfg *config.Config, logger logging.Logger, opts ...Option) *AuthService {
	s := &AuthService{
		users:    store,
		hasher:   h,
		issuer:   issuer,
		clock:    timex.RealClock{},
		resetTTL: cfg.ResetTokenValidityDuration,
		validate: newValidator(),
		logger:   logger.With("module", "auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mailer == nil {
		s.mailer = NewLogMailer(logger)
	}
	return s
}

// Register creates an unverified account, sends its verification token and
// signs the user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeEmail(in.Email)
	if err := s.check(ctx, &in); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, common.ErrDuplicateEmail
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	digest, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	verification, err := s.issuer.IssueOneTimeToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	user, err := s.users.Create(ctx, &models.User{
		FullName:          in.FullName,
		Email:             in.Email,
		PasswordHash:      digest,
		VerificationToken: &verification,
	})
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendVerification(ctx, user.Email, verification); err != nil {
		s.logger.Warn(ctx, "verification email not sent", "user_id", user.ID, "error", err)
	}
	s.logger.Info(ctx, "user registered", "user_id", user.ID)

	return s.signIn(user)
}

// Login checks the credentials, records the login time and issues a session
// token. Digests made with a lower cost than configured are upgraded.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.check(ctx, &in); err != nil {
		return nil, err
	}

	user, err := s.users.FindByCredentials(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	patch := models.UserPatch{LastLogin: &now}
	if r, ok := s.hasher.(rehasher); ok && r.NeedsRehash(user.PasswordHash) {
		digest, err := s.hasher.Hash(ctx, in.Password)
		if err != nil {
			s.logger.Warn(ctx, "rehash failed", "user_id", user.ID, "error", err)
		} else {
			patch.PasswordHash = &digest
		}
	}

	updated, err := s.users.UpdateFields(ctx, user.ID, patch)
	if err != nil {
		return nil, err
	}

	return s.signIn(updated)
}

// VerifyEmail consumes a verification token and marks its owner verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return common.ErrInvalidToken
	}

	user, err := s.users.ConsumeVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return err
	}

	s.logger.Info(ctx, "email verified", "user_id", user.ID)
	return nil
}

// UpdateProfile applies patch to the caller's account. Only the display
// name, the fitness profile and the profile picture may change here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (*models.PublicUser, error) {
	if patch.FullName != nil {
		name := strings.TrimSpace(*patch.FullName)
		if name == "" {
			patch.FullName = nil
		} else {
			patch.FullName = &name
		}
	}
	if err := s.check(ctx, &patch); err != nil {
		return nil, err
	}

	user, err := s.users.UpdateFields(ctx, userID, models.UserPatch{
		FullName:   patch.FullName,
		Profile:    patch.Profile,
		ProfilePic: patch.ProfilePic,
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, err
	}

	pub := user.Public()
	return &pub, nil
}

// Logout acknowledges a logout. Session tokens stay valid until they expire;
// the client is expected to discard its copy.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	s.logger.Debug(ctx, "logout", "user_id", userID)
	return nil
}

// GetCurrentUser returns the sanitized account of an authenticated caller.
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, err
	}

	pub := user.Public()
	return &pub, nil
}

// RequestPasswordReset stores and mails a reset token when the account
// exists. The outcome is the same whether or not it does.
func (s *AuthService) RequestPasswordReset(ctx context.Context, in ForgotPasswordInput) error {
	in.Email = normalizeEmail(in.Email)
	if err := s.check(ctx, &in); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Debug(ctx, "password reset for unknown email")
			return nil
		}
		return err
	}

	token, err := s.issuer.IssueOneTimeToken()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	expires := s.clock.Now().Add(s.resetTTL)

	if _, err := s.users.UpdateFields(ctx, user.ID, models.UserPatch{
		ResetPasswordToken:   &token,
		ResetPasswordExpires: &expires,
	}); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		s.logger.Warn(ctx, "password reset email not sent", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword sets a new password using a reset token. The token is
// cleared whether it was still valid or had expired.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	in.Token = strings.TrimSpace(in.Token)
	if in.Token == "" {
		return common.ErrInvalidToken
	}
	if err := s.check(ctx, &in); err != nil {
		return err
	}

	digest, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return err
	}

	user, err := s.users.ConsumeResetToken(ctx, in.Token, s.clock.Now(), digest)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return err
	}

	s.logger.Info(ctx, "password reset", "user_id", user.ID)
	return nil
}

// SetPassword replaces the password of the account owning email. It is an
// administrative operation and needs no token.
func (s *AuthService) SetPassword(ctx context.Context, in SetPasswordInput) (*models.PublicUser, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.check(ctx, &in); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	updated, err := s.users.UpdateFields(ctx, user.ID, models.UserPatch{PasswordHash: &digest})
	if err != nil {
		return nil, err
	}

	pub := updated.Public()
	return &pub, nil
}

// CheckCredentials reports whether email and password match an account
// without signing in or touching the account.
func (s *AuthService) CheckCredentials(ctx context.Context, in LoginInput) (*models.PublicUser, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.check(ctx, &in); err != nil {
		return nil, err
	}

	user, err := s.users.FindByCredentials(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	pub := user.Public()
	return &pub, nil
}

// ListUsers returns every account, oldest first.
func (s *AuthService) ListUsers(ctx context.Context) ([]models.PublicUser, error) {
	list, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.PublicUser, 0, len(list))
	for _, u := range list {
		out = append(out, u.Public())
	}
	return out, nil
}

// ProfilePictureUploadURL presigns an upload for the caller's profile picture
// and records the object key as the new picture.
func (s *AuthService) ProfilePictureUploadURL(ctx context.Context, userID string) (*AvatarUpload, error) {
	if s.avatars == nil {
		return nil, common.ErrFeatureDisabled
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, err
	}

	key, url, err := s.avatars.PresignUpload(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	if _, err := s.users.UpdateFields(ctx, userID, models.UserPatch{ProfilePic: &key}); err != nil {
		return nil, err
	}

	return &AvatarUpload{Key: key, URL: url}, nil
}

// ProfilePictureURL returns a URL serving the caller's profile picture.
// Pictures set as absolute URLs are returned unchanged.
func (s *AuthService) ProfilePictureURL(ctx context.Context, userID string) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrUnauthenticated
		}
		return "", err
	}
	if user.ProfilePic == nil || *user.ProfilePic == "" {
		return "", common.ErrorNotFound
	}

	pic := *user.ProfilePic
	if strings.HasPrefix(pic, "http://") || strings.HasPrefix(pic, "https://") {
		return pic, nil
	}
	if s.avatars == nil {
		return "", common.ErrFeatureDisabled
	}

	url, err := s.avatars.PresignDownload(ctx, pic)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return url, nil
}

// Ping reports whether the credential store is reachable.
func (s *AuthService) Ping(ctx context.Context) error {
	return s.users.Ping(ctx)
}

func (s *AuthService) signIn(user *models.User) (*AuthResult, error) {
	token, err := s.issuer.IssueSessionToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return &AuthResult{Token: token, User: user.Public()}, nil
}

func (s *AuthService) check(ctx context.Context, in any) error {
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return toValidationError(err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
