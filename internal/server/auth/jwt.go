// Package auth issues and verifies session tokens and one-time tokens, and
// carries the authenticated identity through request contexts.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/fitauth/internal/common"
	"github.com/dmitrijs2005/fitauth/internal/timex"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// oneTimeTokenBytes is the entropy of verification and reset tokens (256 bits).
const oneTimeTokenBytes = 32

// Claims are the registered claims plus the user's email. The user ID travels in
// the standard "sub" claim.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Identity is what a verified session token resolves to.
type Identity struct {
	UserID string
	Email  string
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secretKey        []byte
	validityDuration time.Duration
	clock            timex.Clock
}

// NewIssuer builds an Issuer. A nil clock means the wall clock.
func NewIssuer(secretKey []byte, validityDuration time.Duration, clock timex.Clock) *Issuer {
	if clock == nil {
		clock = timex.RealClock{}
	}
	return &Issuer{secretKey: secretKey, validityDuration: validityDuration, clock: clock}
}

// IssueSessionToken returns a signed token for the user, valid for the
// configured duration from now.
func (i *Issuer) IssueSessionToken(userID, email string) (string, error) {
	now := i.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validityDuration)),
			ID:        uuid.NewString(),
		},
		Email: email,
	})

	tokenString, err := token.SignedString(i.secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// VerifySessionToken checks signature and expiry. Expired tokens yield
// common.ErrTokenExpired; anything else wrong yields common.ErrInvalidToken.
func (i *Issuer) VerifySessionToken(tokenString string) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, common.ErrTokenExpired
		}
		return Identity{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return Identity{}, common.ErrInvalidToken
	}

	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// IssueOneTimeToken issues an opaque single-use token for email
// verification or password reset.
func (i *Issuer) IssueOneTimeToken() (string, error) {
	return IssueOneTimeToken()
}

// IssueOneTimeToken returns an opaque random token for email verification
// or password reset.
func IssueOneTimeToken() (string, error) {
	return common.MakeRandHexString(oneTimeTokenBytes)
}
