package postgres

import (
	"context"
	"database/sql"

	"instashare/internal/model"
	"instashare/internal/repository"
)

// UserPostgres is a PostgreSQL implementation of repository.UserRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type UserPostgres struct {
	db *sql.DB
}

// NewUserPostgres creates a new UserPostgres repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

// Create inserts a new user row and returns the stored record.
func (r *UserPostgres) Create(ctx context.Context, u *model.User) (*model.User, error) {
	const q = `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, username, email, password_hash, created_at
	`
	row := r.db.QueryRowContext(ctx, q, u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt)
	var out model.User
	if err := row.Scan(&out.ID, &out.Username, &out.Email, &out.PasswordHash, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single user by ID.
func (r *UserPostgres) FindByID(ctx context.Context, id string) (*model.User, error) {
	const q = `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

// FindByUsername fetches a single user by username.
func (r *UserPostgres) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE username = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, q, username))
}

func (r *UserPostgres) scanOne(row *sql.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
