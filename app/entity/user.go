package entity

import (
	"database/sql"
	"time"
)

type User struct {
	ID           uint64
	Username     string
	Email        string
	PasswordHash string
	FullName     sql.NullString
	IsActive     bool
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Session struct {
	Token     string
	UserID    uint64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Valid reports whether the session has not yet expired at now. Owner state is checked separately.
func (s *Session) Valid(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

type PasswordResetToken struct {
	ID        uint64
	UserID    uint64
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

func (t *PasswordResetToken) Redeemable(now time.Time) bool {
	return !t.Used && t.ExpiresAt.After(now)
}
