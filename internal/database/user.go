// internal/database/user.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/avalon/internal/auth"
)

// User is an account row. The username doubles as the player id everywhere
// in the protocol, so it is the primary key.
type User struct {
	Username string `json:"username"`
	Password string `json:"-"`
	Avatar   string `json:"avatar"`
}

// CreateUser hashes the password and inserts the account.
func CreateUser(ctx context.Context, user *User) error {
	hash, err := auth.HashPassword(user.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash

	q := `INSERT INTO users (username, password, avatar) VALUES ($1, $2, $3)`
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, user.Username, user.Password, user.Avatar)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser fetches an account by username.
func GetUser(ctx context.Context, username string) (*User, error) {
	var u User
	q := `SELECT username, password, avatar FROM users WHERE username=$1`
	if err := DB.QueryRow(ctx, q, username).Scan(&u.Username, &u.Password, &u.Avatar); err != nil {
		return nil, err
	}
	return &u, nil
}

// AuthenticateUser verifies credentials and mints the session JWT the client
// will attach to its packets.
func AuthenticateUser(ctx context.Context, username, password string) (string, error) {
	user, err := GetUser(ctx, username)
	if err != nil {
		return "", fmt.Errorf("user not found or db error: %w", err)
	}

	match, err := auth.VerifyPassword(password, user.Password)
	if err != nil || !match {
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := auth.CreateJWT(user.Username)
	if err != nil {
		return "", fmt.Errorf("failed to create jwt: %w", err)
	}
	return token, nil
}
