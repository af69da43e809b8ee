package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const userColumns = `
	id, phone, password_hash, name, email, photo, role, status,
	failed_login_attempts, locked_until, deleted_at, created_at, updated_at
`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Phone, &u.PasswordHash, &u.Name, &u.Email, &u.Photo,
		&u.Role, &u.Status, &u.FailedLoginAttempts, &u.LockedUntil,
		&u.DeletedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, phone, passwordHash, name string, email *string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, phone, password_hash, name, email, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'user', 'active', now(), now())
		RETURNING `+userColumns,
		uuid.New(), phone, passwordHash, name, email)
	return scanUser(row)
}

// GetUserByPhone returns the row regardless of deleted_at; callers decide
// whether a soft-deleted user counts as existing.
func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE phone = $1
	`, phone)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, userID)
	return scanUser(row)
}

// RecordFailedLogin bumps the failure counter in a single atomic update.
// lockedUntil is written as-is: nil clears it, so a lock already in place
// is never extended by further failures.
func (s *Store) RecordFailedLogin(ctx context.Context, userID uuid.UUID, lockedUntil *time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = $2,
		    updated_at = now()
		WHERE id = $1
	`, userID, lockedUntil)
	return err
}

func (s *Store) ResetLoginState(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    updated_at = now()
		WHERE id = $1
	`, userID)
	return err
}

// SetPassword stores a fresh hash and clears any lockout state.
func (s *Store) SetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $2,
		    failed_login_attempts = 0,
		    locked_until = NULL,
		    updated_at = now()
		WHERE id = $1
	`, userID, passwordHash)
	return err
}

func (s *Store) ListUsers(ctx context.Context, page, limit int) ([]User, int, error) {
	offset := (page - 1) * limit

	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users WHERE deleted_at IS NULL`).Scan(&total); err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

type UpdateUserParams struct {
	Name   *string
	Email  *string
	Photo  *string
	Role   *string
	Status *string
}

func (s *Store) UpdateUser(ctx context.Context, userID uuid.UUID, params UpdateUserParams) (*User, error) {
	set := "updated_at = now()"
	args := []any{userID}
	add := func(col string, val any) {
		args = append(args, val)
		set += fmt.Sprintf(", %s = $%d", col, len(args))
	}

	if params.Name != nil {
		add("name", *params.Name)
	}
	if params.Email != nil {
		add("email", *params.Email)
	}
	if params.Photo != nil {
		add("photo", *params.Photo)
	}
	if params.Role != nil {
		add("role", *params.Role)
	}
	if params.Status != nil {
		add("status", *params.Status)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE users SET `+set+`
		WHERE id = $1
		RETURNING `+userColumns, args...)
	return scanUser(row)
}

func (s *Store) SoftDeleteUser(ctx context.Context, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
