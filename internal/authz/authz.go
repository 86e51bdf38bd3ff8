// Package authz holds every access rule of the service in one place.  Callers
// describe who is acting, what they want to do and whose resource it is, and
// get back nil or one of the deny errors.
package authz

import (
	"errors"
	"fmt"

	"github.com/iliyamo/coaching-practice/internal/model"
)

// Deny errors.  ErrNotPermitted is a role failure, ErrNotOwner an ownership
// failure; both surface as 403.
var (
	ErrNotPermitted = errors.New("operation not permitted")
	ErrNotOwner     = errors.New("unauthorized access")
)

// Action enumerates the guarded operations.
type Action int

const (
	ActionManageClients    Action = iota // create, assign coach, list all clients
	ActionManageUsers                    // create users, list all users
	ActionViewClient                     // client details
	ActionListCoachingLogs               // read a client's logs
	ActionWriteCoachingLog               // create or edit a client's log
)

func (a Action) String() string {
	switch a {
	case ActionManageClients:
		return "manage_clients"
	case ActionManageUsers:
		return "manage_users"
	case ActionViewClient:
		return "view_client"
	case ActionListCoachingLogs:
		return "list_coaching_logs"
	case ActionWriteCoachingLog:
		return "write_coaching_log"
	}
	return "unknown"
}

// Subject is the authenticated caller.
type Subject struct {
	Username string
	Role     string
}

// SubjectOf builds a Subject from a user record.
func SubjectOf(u model.User) Subject { return Subject{Username: u.Username, Role: u.Role} }

// Resource identifies the owner of the data being touched.  An empty
// CoachUsername means no coach is assigned.
type Resource struct {
	CoachUsername string
}

// ResourceOf builds a Resource from a client record.
func ResourceOf(c model.Client) Resource {
	if c.CoachUsername == nil {
		return Resource{}
	}
	return Resource{CoachUsername: *c.CoachUsername}
}

// Authorize returns nil when sub may perform act on res.  A denial wraps
// ErrNotPermitted or ErrNotOwner and names the refused action.
func Authorize(sub Subject, act Action, res Resource) error {
	if err := decide(sub, act, res); err != nil {
		return fmt.Errorf("%s: %w", act, err)
	}
	return nil
}

func decide(sub Subject, act Action, res Resource) error {
	isAdmin := sub.Role == model.RoleAdmin
	isOwner := sub.Username != "" && res.CoachUsername == sub.Username

	switch act {
	case ActionManageClients, ActionManageUsers:
		if isAdmin {
			return nil
		}
		return ErrNotPermitted
	case ActionViewClient, ActionListCoachingLogs:
		if isOwner || isAdmin {
			return nil
		}
		return ErrNotOwner
	case ActionWriteCoachingLog:
		// admins may read logs but only the assigned coach authors them
		if isOwner {
			return nil
		}
		return ErrNotOwner
	}
	return ErrNotPermitted
}

// RequireRole returns nil when the subject holds one of roles.
func RequireRole(sub Subject, roles ...string) error {
	for _, r := range roles {
		if sub.Role == r {
			return nil
		}
	}
	return ErrNotPermitted
}

// IsDenied reports whether err is one of the deny errors.
func IsDenied(err error) bool {
	return errors.Is(err, ErrNotPermitted) || errors.Is(err, ErrNotOwner)
}
