// Package store declares the persistence gateway the services depend on.
//
// Implementations must give read-after-write consistency within a Gateway and enforce
// uniqueness of users.username, lower(users.email), sessions.token,
// password_reset_tokens.token and connected_accounts.account_id. All instants cross
// this boundary as UTC time.Time values.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
)

// ErrDuplicate is returned when an insert or update violates a unique key.
var ErrDuplicate = errors.New("duplicate key")

// UpsertResult tells how an account upsert was applied.
type UpsertResult int

const (
	UpsertUnchanged UpsertResult = iota
	UpsertInserted
	UpsertUpdated
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uint64) (*entity.User, error)
	FindByIDForUpdate(ctx context.Context, id uint64) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindByEmail(ctx context.Context, canonicalEmail string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	UpdatePassword(ctx context.Context, userID uint64, passwordHash string, updatedAt time.Time) error
	Delete(ctx context.Context, id uint64) (bool, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	FindByToken(ctx context.Context, token string) (*entity.Session, error)
	DeleteByToken(ctx context.Context, token string) (bool, error)
	DeleteByUserID(ctx context.Context, userID uint64) (int64, error)
	DeleteByUserIDExcept(ctx context.Context, userID uint64, keepToken string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type ResetTokenRepository interface {
	Create(ctx context.Context, token *entity.PasswordResetToken) error
	FindByTokenForUpdate(ctx context.Context, token string) (*entity.PasswordResetToken, error)
	DeleteUnusedByUserID(ctx context.Context, userID uint64) (int64, error)
	// MarkUsed flips used from false to true and reports whether this call did it.
	MarkUsed(ctx context.Context, id uint64) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type AccountRepository interface {
	// Upsert inserts the account or updates status, data, last sync and event time of
	// the existing row with the same AccountID. Rows whose stored EventAt is newer than
	// account.EventAt are left as they are.
	Upsert(ctx context.Context, account *entity.ConnectedAccount) (UpsertResult, error)
	// UpdateExisting applies the same update as Upsert without inserting.
	UpdateExisting(ctx context.Context, account *entity.ConnectedAccount) (bool, error)
	FindByAccountID(ctx context.Context, accountID string) (*entity.ConnectedAccount, error)
	ListByUserID(ctx context.Context, userID uint64) ([]*entity.ConnectedAccount, error)
	Stats(ctx context.Context, userID uint64) (*entity.AccountStats, error)
	DeleteByAccountID(ctx context.Context, accountID string) (bool, error)
	DeleteOwned(ctx context.Context, userID uint64, accountID string) (bool, error)
}

// Gateway groups the repositories. WithTx runs fn against a gateway bound to one
// transaction, committing when fn returns nil and rolling back otherwise.
type Gateway interface {
	Users() UserRepository
	Sessions() SessionRepository
	ResetTokens() ResetTokenRepository
	Accounts() AccountRepository
	WithTx(ctx context.Context, fn func(tx Gateway) error) error
}
