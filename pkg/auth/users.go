package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// UserStore looks up internal users by the identity a provider vouches for
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// PostgresUserStore reads the users table
type PostgresUserStore struct {
	db *sql.DB
}

// NewPostgresUserStore creates a new user store
func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// GetUserByEmail returns the user with the given email, case-insensitively
func (s *PostgresUserStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, name, email, email_verified, is_super_admin, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`

	user := &User{}
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.EmailVerified,
		&user.IsSuperAdmin,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// MemoryUserStore is a UserStore for in-memory mode and tests
type MemoryUserStore struct {
	mu      sync.RWMutex
	byEmail map[string]User
}

// NewMemoryUserStore creates an empty store
func NewMemoryUserStore(users ...User) *MemoryUserStore {
	s := &MemoryUserStore{byEmail: make(map[string]User)}
	for _, u := range users {
		s.Add(u)
	}
	return s
}

// Add inserts or replaces a user
func (s *MemoryUserStore) Add(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byEmail[strings.ToLower(user.Email)] = user
}

// GetUserByEmail implements UserStore
func (s *MemoryUserStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}
