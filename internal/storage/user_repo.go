// internal/storage/user_repo.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/siftmail/sift-backend/internal/domain"
)

// Specific errors for user operations
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoFieldsToUpdate   = errors.New("no fields provided for update")
)

const userColumns = `id, email, full_name, password_hash, email_confirmed_at, created_at`

func scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash,
		&user.EmailConfirmedAt, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error finding user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts a new user. passwordHash may be empty for accounts
// migrated without a credential (first password is set via reset-password).
func CreateUser(ctx context.Context, db *sql.DB, id, email, fullName, passwordHash string) error {
	hash := sql.NullString{String: passwordHash, Valid: passwordHash != ""}
	sqlStatement := `INSERT INTO users (id, email, full_name, password_hash) VALUES (?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, sqlStatement, id, email, fullName, hash)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint &&
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
			strings.Contains(sqliteErr.Error(), "users.email") {
			return ErrEmailExists
		}
		customLog.Warnf("Storage: Failed to insert user %s: %v", email, err)
		return fmt.Errorf("database error during user creation: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by their email address.
func FindUserByEmail(ctx context.Context, db *sql.DB, email string) (*domain.User, error) {
	sqlStatement := `SELECT ` + userColumns + ` FROM users WHERE email = ? LIMIT 1`
	return scanUser(db.QueryRowContext(ctx, sqlStatement, email))
}

// FindUserByID retrieves a user by their id.
func FindUserByID(ctx context.Context, db *sql.DB, id string) (*domain.User, error) {
	sqlStatement := `SELECT ` + userColumns + ` FROM users WHERE id = ? LIMIT 1`
	return scanUser(db.QueryRowContext(ctx, sqlStatement, id))
}

// SetPasswordHash replaces the stored credential hash for a user.
func SetPasswordHash(ctx context.Context, db *sql.DB, userID, passwordHash string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID)
	if err != nil {
		customLog.Warnf("Storage: Failed to set password hash for user %s: %v", userID, err)
		return fmt.Errorf("database error updating credentials: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming credential update: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UserUpdate carries the optional fields for UpdateUser. Nil means unchanged.
type UserUpdate struct {
	Email        *string
	FullName     *string
	PasswordHash *string
}

// UpdateUser applies the non-nil fields of upd to the given user.
func UpdateUser(ctx context.Context, db *sql.DB, userID string, upd UserUpdate) error {
	var setClauses []string
	var args []any

	if upd.Email != nil {
		setClauses = append(setClauses, "email = ?")
		args = append(args, *upd.Email)
	}
	if upd.FullName != nil {
		setClauses = append(setClauses, "full_name = ?")
		args = append(args, *upd.FullName)
	}
	if upd.PasswordHash != nil {
		setClauses = append(setClauses, "password_hash = ?")
		args = append(args, *upd.PasswordHash)
	}
	if len(setClauses) == 0 {
		return ErrNoFieldsToUpdate
	}
	args = append(args, userID)

	updateSQL := "UPDATE users SET " + strings.Join(setClauses, ", ") + " WHERE id = ?"
	result, err := db.ExecContext(ctx, updateSQL, args...)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint &&
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
			strings.Contains(sqliteErr.Error(), "users.email") {
			return ErrEmailExists
		}
		customLog.Warnf("Storage: Failed to update user %s: %v", userID, err)
		return fmt.Errorf("database error during user update: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming user update: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
