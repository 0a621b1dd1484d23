// Package users reads user accounts for authentication and display.
package users

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// User is one account row. PasswordHash is bcrypt.
type User struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	PasswordHash string  `json:"-"`
	Role         string  `json:"role"`
	DepartmentID *string `json:"department_id,omitempty"`
}

// Repository reads users from Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetByEmail returns the user with the given email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.get(ctx, `
		SELECT id, name, email, password_hash, role, department_id
		FROM users WHERE email = $1
	`, email)
}

// GetByID returns the user with the given id.
func (r *Repository) GetByID(ctx context.Context, id string) (User, error) {
	return r.get(ctx, `
		SELECT id, name, email, password_hash, role, department_id
		FROM users WHERE id = $1
	`, id)
}

func (r *Repository) get(ctx context.Context, query string, arg any) (User, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}
