package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/coaching-practice/internal/logger"
	"github.com/iliyamo/coaching-practice/internal/metrics"
	"github.com/iliyamo/coaching-practice/internal/model"
	"github.com/iliyamo/coaching-practice/internal/repository"
	"github.com/iliyamo/coaching-practice/internal/utils"
)

// LogoutSkew is how far in the past the logout token expires.
const LogoutSkew = 15 * time.Minute

// AuthService authenticates users and manages their session tokens.
type AuthService struct {
	Users      UserStore
	Tokens     *utils.TokenIssuer
	TTL        time.Duration
	BcryptCost int
}

func NewAuthService(users UserStore, tokens *utils.TokenIssuer, ttl time.Duration, cost int) *AuthService {
	return &AuthService{Users: users, Tokens: tokens, TTL: ttl, BcryptCost: cost}
}

// Authenticate checks a username/password pair.  Unknown users and wrong
// passwords fail the same way.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	log := logger.Get()
	u, err := s.Users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		log.Warn().Str("username", username).Msg("login failed: unknown user")
		return nil, ErrLoginFailed
	}
	if err != nil {
		return nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		log.Warn().Str("username", username).Msg("login failed: bad password")
		return nil, ErrLoginFailed
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	log.Info().Str("username", username).Msg("login succeeded")
	return u, nil
}

// IssueSession signs a session token for u valid for the configured TTL.
func (s *AuthService) IssueSession(u *model.User) (utils.AccessToken, error) {
	return s.Tokens.Issue(u.Username, s.TTL)
}

// ExpiredSession signs a token for u that expired LogoutSkew ago.  Tokens
// issued earlier stay valid until their own expiry.
func (s *AuthService) ExpiredSession(u *model.User) (utils.AccessToken, error) {
	return s.Tokens.Issue(u.Username, -LogoutSkew)
}

// ResolveSession verifies the raw token and loads its user.  Disabled users
// are rejected with ErrInactiveUser.
func (s *AuthService) ResolveSession(ctx context.Context, raw string) (*model.User, error) {
	if raw == "" {
		return nil, ErrCredentials
	}
	username, err := s.Tokens.Verify(raw)
	if err != nil {
		return nil, ErrCredentials
	}
	u, err := s.Users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.Disabled {
		return nil, ErrInactiveUser
	}
	return u, nil
}

// ChangePassword re-authenticates u with current before storing next.
func (s *AuthService) ChangePassword(ctx context.Context, u *model.User, current, next string) error {
	if !utils.VerifyPassword(u.PasswordHash, current) {
		log := logger.Get()
		log.Warn().Str("username", u.Username).Msg("password change rejected")
		return ErrIncorrectPassword
	}
	hash, err := utils.HashPassword(next, s.BcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return ErrPasswordTooLong
	}
	if err != nil {
		return err
	}
	if err := s.Users.UpdatePassword(ctx, u.Username, hash); err != nil {
		return err
	}
	u.PasswordHash = hash
	log := logger.Get()
	log.Info().Str("username", u.Username).Msg("password changed")
	return nil
}
