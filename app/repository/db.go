package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/store"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Store is the MySQL implementation of store.Gateway.
type Store struct {
	db *sql.DB
	q  DBTX
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Users() store.UserRepository {
	return NewUserRepository(s.q)
}

func (s *Store) Sessions() store.SessionRepository {
	return NewSessionRepository(s.q)
}

func (s *Store) ResetTokens() store.ResetTokenRepository {
	return NewResetTokenRepository(s.q)
}

func (s *Store) Accounts() store.AccountRepository {
	return NewAccountRepository(s.q)
}

// WithTx opens a transaction unless the store is already bound to one, in which case
// fn joins it.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Gateway) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err = fn(&Store{q: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func toNullMillis(t sql.NullTime) sql.NullInt64 {
	if !t.Valid {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(t.Time), Valid: true}
}

func fromNullMillis(v sql.NullInt64) sql.NullTime {
	if !v.Valid {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: fromMillis(v.Int64), Valid: true}
}

func mapDuplicate(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %s", store.ErrDuplicate, mysqlErr.Message)
	}
	return err
}

func affected(result sql.Result) (int64, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return rows, nil
}
