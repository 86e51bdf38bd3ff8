package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/coaching-practice/internal/database"
	"github.com/iliyamo/coaching-practice/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "username,id,hashed_password,first_name,last_name,email,role,disabled,created_by,created_at"

// Create inserts user and fills its ID and CreatedAt.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username,hashed_password,first_name,last_name,email,role,created_by,created_at) VALUES (?,?,?,?,?,?,?,?)",
		u.Username, u.PasswordHash, u.FirstName, u.LastName, u.Email, u.Role, nullString(u.CreatedBy), u.CreatedAt)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// UpdatePassword replaces the stored hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, username, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET hashed_password=? WHERE username=?", hash, username)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 when the value is unchanged, so confirm the row exists
		var one int
		err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE username=?", username).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// List returns users ordered by username.  limit < 0 means no limit.
func (r *UserRepo) List(ctx context.Context, limit, skip int) ([]model.User, error) {
	q := "SELECT " + userColumns + " FROM users ORDER BY username"
	var args []interface{}
	q, args = paginate(q, args, limit, skip)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u         model.User
		createdBy sql.NullString
	)
	if err := s.Scan(&u.Username, &u.ID, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Email, &u.Role, &u.Disabled, &createdBy, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.CreatedBy = stringPtr(createdBy)
	return &u, nil
}

// paginate appends LIMIT/OFFSET.  A negative limit returns every row.
func paginate(q string, args []interface{}, limit, skip int) (string, []interface{}) {
	if skip < 0 {
		skip = 0
	}
	switch {
	case limit >= 0:
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, skip)
	case skip > 0:
		// MySQL has no OFFSET without LIMIT; this is the documented idiom
		q += " LIMIT 18446744073709551615 OFFSET ?"
		args = append(args, skip)
	}
	return q, args
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
