package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/coaching-practice/internal/authz"
	"github.com/iliyamo/coaching-practice/internal/logger"
	"github.com/iliyamo/coaching-practice/internal/model"
	"github.com/iliyamo/coaching-practice/internal/repository"
	"github.com/iliyamo/coaching-practice/internal/utils"
)

// NewUser carries the fields an admin supplies for a new account.
type NewUser struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Role      string
}

// UserDetails is a user together with the clients they coach.
type UserDetails struct {
	model.User
	Clients []model.ClientName `json:"clients_list"`
}

// UserService manages accounts.
type UserService struct {
	Users      UserStore
	Clients    ClientStore
	BcryptCost int
	Now        func() time.Time
}

func NewUserService(users UserStore, clients ClientStore, cost int) *UserService {
	return &UserService{Users: users, Clients: clients, BcryptCost: cost, Now: time.Now}
}

// Create adds an account with a generated one-time password and returns the
// plaintext password.  Only its hash is stored.
func (s *UserService) Create(ctx context.Context, actor *model.User, in NewUser) (string, error) {
	if err := denied(authz.Authorize(authz.SubjectOf(*actor), authz.ActionManageUsers, authz.Resource{})); err != nil {
		return "", err
	}
	password := utils.NewOneTimePassword()
	hash, err := utils.HashPassword(password, s.BcryptCost)
	if err != nil {
		return "", err
	}
	creator := actor.Username
	u := &model.User{
		Username:     in.Username,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Role:         in.Role,
		CreatedBy:    &creator,
		CreatedAt:    s.Now().UTC(),
	}
	if err := s.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return "", ErrUsernameExists
		}
		return "", err
	}
	log := logger.Get()
	log.Info().Str("username", u.Username).Str("role", u.Role).Str("created_by", creator).Msg("user created")
	return password, nil
}

// ListAll returns every account ordered by username, each with its clients.
// limit < 0 means no limit.
func (s *UserService) ListAll(ctx context.Context, actor *model.User, limit, skip int) ([]UserDetails, error) {
	if err := denied(authz.Authorize(authz.SubjectOf(*actor), authz.ActionManageUsers, authz.Resource{})); err != nil {
		return nil, err
	}
	users, err := s.Users.List(ctx, limit, skip)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Username
	}
	byCoach, err := s.Clients.NamesByCoaches(ctx, names)
	if err != nil {
		return nil, err
	}

	out := make([]UserDetails, len(users))
	for i, u := range users {
		clients := byCoach[u.Username]
		if clients == nil {
			clients = []model.ClientName{}
		}
		out[i] = UserDetails{User: u, Clients: clients}
	}
	return out, nil
}

// EnsureAdmin creates an admin account with the given password unless the
// username already exists.  It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	_, err := s.Users.GetByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	hash, err := utils.HashPassword(password, s.BcryptCost)
	if err != nil {
		return false, err
	}
	u := &model.User{Username: username, PasswordHash: hash, Role: model.RoleAdmin, CreatedAt: s.Now().UTC()}
	if err := s.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	log := logger.Get()
	log.Info().Str("username", username).Msg("bootstrap admin created")
	return true, nil
}
