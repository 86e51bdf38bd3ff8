package model

import "time"

// Role names stored in users.role.
const (
	RoleAdmin = "admin"
	RoleCoach = "coach"
)

// User represents an application user record as stored in the
// `users` table.  Username is the primary key; ID is a secondary
// auto-increment identifier kept for listings.
//
// Fields:
//  Username     – unique login name.
//  ID           – auto-increment id.
//  PasswordHash – bcrypt hashed password, never serialized.
//  Role         – admin or coach.
//  Disabled     – disabled accounts cannot use any authenticated endpoint.
//  CreatedBy    – username of the admin who created the account (nil for the first admin).
type User struct {
	Username     string    `json:"username"`
	ID           uint64    `json:"id"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Disabled     bool      `json:"disabled"`
	CreatedBy    *string   `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
