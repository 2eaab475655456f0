package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pot-code/trilha/internal/infrastructure/driver"
	"go.elastic.co/apm"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredential username or password mismatch
	ErrInvalidCredential = errors.New("invalid username or password")
	// ErrTooManyAttempts sign in locked after repeated failures
	ErrTooManyAttempts = errors.New("too many sign in attempts, try again later")
)

const (
	revokedKeyPrefix = "trilha:revoked:"
	retryKeyPrefix   = "trilha:signin_retry:"
)

// Session what the presentation layer knows about the caller
type Session struct {
	Authenticated bool   `json:"authenticated"`
	Name          string `json:"name,omitempty"`
	ExpiresAt     int64  `json:"expires_at,omitempty"` // unix seconds
}

// AuthenticatorOption .
type AuthenticatorOption struct {
	AdminUser         string
	AdminPasswordHash string
	MaxAttempts       int           // failed sign ins tolerated inside RetryTimeout, 0 disables the limit
	RetryTimeout      time.Duration // how long failures are remembered
}

// Authenticator checks the single administrator credential and tracks revoked tokens
type Authenticator struct {
	ju     *JWTUtil
	kv     driver.KeyValueDB
	option AuthenticatorOption
}

// NewAuthenticator create an Authenticator instance
func NewAuthenticator(ju *JWTUtil, kv driver.KeyValueDB, option AuthenticatorOption) *Authenticator {
	return &Authenticator{ju: ju, kv: kv, option: option}
}

// SignIn verify the credential and issue a token string
func (a *Authenticator) SignIn(ctx context.Context, username, password string) (string, error) {
	apmSpan, _ := apm.StartSpan(ctx, "Authenticator.SignIn", "service")
	defer apmSpan.End()

	retries, err := a.retries(ctx, username)
	if err != nil {
		return "", err
	}
	if a.option.MaxAttempts > 0 && retries >= a.option.MaxAttempts {
		return "", ErrTooManyAttempts
	}

	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(a.option.AdminUser)) == 1
	if err := bcrypt.CompareHashAndPassword([]byte(a.option.AdminPasswordHash), []byte(password)); err != nil || !userMatch {
		if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", fmt.Errorf("check admin password: %w", err)
		}
		if a.option.MaxAttempts > 0 {
			if err := a.kv.SetEX(ctx, retryKeyPrefix+username, strconv.Itoa(retries+1), a.option.RetryTimeout); err != nil {
				return "", err
			}
		}
		return "", ErrInvalidCredential
	}

	if retries > 0 {
		if err := a.kv.Delete(ctx, retryKeyPrefix+username); err != nil {
			return "", err
		}
	}
	return a.ju.GenerateTokenStr(username)
}

func (a *Authenticator) retries(ctx context.Context, username string) (int, error) {
	if a.option.MaxAttempts <= 0 {
		return 0, nil
	}
	v, err := a.kv.Get(ctx, retryKeyPrefix+username)
	if errors.Is(err, driver.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// SignOut revoke tokenStr for the rest of its lifetime
func (a *Authenticator) SignOut(ctx context.Context, tokenStr string) error {
	claims, err := a.ju.Validate(tokenStr)
	if err != nil {
		// nothing to revoke
		return nil
	}
	remaining := claims.TimeRemaining()
	if remaining <= 0 {
		return nil
	}
	return a.kv.SetEX(ctx, revokedKeyPrefix+tokenStr, "", remaining)
}

// Revoked report whether tokenStr was signed out
func (a *Authenticator) Revoked(ctx context.Context, tokenStr string) (bool, error) {
	return a.kv.Exists(ctx, revokedKeyPrefix+tokenStr)
}

// Session resolve tokenStr into a Session, an empty or invalid token is
// simply unauthenticated
func (a *Authenticator) Session(ctx context.Context, tokenStr string) (*Session, error) {
	if tokenStr == "" {
		return &Session{}, nil
	}
	claims, err := a.ju.Validate(tokenStr)
	if err != nil {
		return &Session{}, nil
	}
	revoked, err := a.Revoked(ctx, tokenStr)
	if err != nil {
		return nil, err
	}
	if revoked {
		return &Session{}, nil
	}
	return &Session{Authenticated: true, Name: claims.Name, ExpiresAt: claims.ExpiresAt}, nil
}
