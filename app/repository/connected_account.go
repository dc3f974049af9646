package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
	"github.com/vibast-solutions/ms-go-linkhub/app/store"
)

// freshEvent is true when the incoming event is not older than the stored one. A
// missing timestamp on either side falls back to arrival order.
const freshEvent = `(VALUES(event_at_ms) IS NULL OR event_at_ms IS NULL OR VALUES(event_at_ms) >= event_at_ms)`

// event_at_ms is assigned last: MySQL evaluates assignments left to right and the
// earlier IF()s must compare against the stored value.
const upsertAccountQuery = `
		INSERT INTO connected_accounts (account_id, user_id, provider, status, account_data, connected_at_ms, last_sync_ms, event_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = IF(` + freshEvent + `, VALUES(status), status),
			account_data = IF(` + freshEvent + `, VALUES(account_data), account_data),
			last_sync_ms = IF(` + freshEvent + `, VALUES(last_sync_ms), last_sync_ms),
			event_at_ms = IF(` + freshEvent + `, COALESCE(VALUES(event_at_ms), event_at_ms), event_at_ms)
	`

const selectAccountColumns = `
		SELECT id, account_id, user_id, provider, status, account_data, connected_at_ms, last_sync_ms, event_at_ms
		FROM connected_accounts`

type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Upsert(ctx context.Context, account *entity.ConnectedAccount) (store.UpsertResult, error) {
	result, err := r.db.ExecContext(ctx, upsertAccountQuery,
		account.AccountID,
		account.UserID,
		account.Provider,
		account.Status,
		account.AccountData,
		toMillis(account.ConnectedAt),
		toNullMillis(account.LastSync),
		toNullMillis(account.EventAt),
	)
	if err != nil {
		return store.UpsertUnchanged, err
	}

	rows, err := affected(result)
	if err != nil {
		return store.UpsertUnchanged, err
	}

	// MySQL reports 1 for an insert, 2 for an update and 0 when nothing changed.
	switch rows {
	case 1:
		return store.UpsertInserted, nil
	case 2:
		return store.UpsertUpdated, nil
	default:
		return store.UpsertUnchanged, nil
	}
}

func (r *AccountRepository) UpdateExisting(ctx context.Context, account *entity.ConnectedAccount) (bool, error) {
	query := `
		UPDATE connected_accounts SET
			status = ?,
			account_data = ?,
			last_sync_ms = ?,
			event_at_ms = COALESCE(?, event_at_ms)
		WHERE account_id = ? AND (? IS NULL OR event_at_ms IS NULL OR ? >= event_at_ms)
	`
	eventAt := toNullMillis(account.EventAt)
	result, err := r.db.ExecContext(ctx, query,
		account.Status,
		account.AccountData,
		toNullMillis(account.LastSync),
		eventAt,
		account.AccountID,
		eventAt,
		eventAt,
	)
	if err != nil {
		return false, err
	}
	rows, err := affected(result)
	return rows > 0, err
}

func (r *AccountRepository) FindByAccountID(ctx context.Context, accountID string) (*entity.ConnectedAccount, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx, selectAccountColumns+` WHERE account_id = ?`, accountID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *AccountRepository) ListByUserID(ctx context.Context, userID uint64) ([]*entity.ConnectedAccount, error) {
	rows, err := r.db.QueryContext(ctx, selectAccountColumns+` WHERE user_id = ? ORDER BY connected_at_ms DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*entity.ConnectedAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *AccountRepository) Stats(ctx context.Context, userID uint64) (*entity.AccountStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(status = ?), 0), COALESCE(SUM(status = ?), 0)
		FROM connected_accounts WHERE user_id = ?
	`
	stats := &entity.AccountStats{}
	err := r.db.QueryRowContext(ctx, query,
		entity.AccountStatusCreationSuccess,
		entity.AccountStatusPending,
		userID,
	).Scan(&stats.Total, &stats.Active, &stats.Pending)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *AccountRepository) DeleteByAccountID(ctx context.Context, accountID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM connected_accounts WHERE account_id = ?`, accountID)
	if err != nil {
		return false, err
	}
	rows, err := affected(result)
	return rows > 0, err
}

func (r *AccountRepository) DeleteOwned(ctx context.Context, userID uint64, accountID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM connected_accounts WHERE account_id = ? AND user_id = ?`, accountID, userID)
	if err != nil {
		return false, err
	}
	rows, err := affected(result)
	return rows > 0, err
}

func scanAccount(row rowScanner) (*entity.ConnectedAccount, error) {
	var (
		account             entity.ConnectedAccount
		connectedMs         int64
		lastSyncMs, eventMs sql.NullInt64
	)
	err := row.Scan(
		&account.ID,
		&account.AccountID,
		&account.UserID,
		&account.Provider,
		&account.Status,
		&account.AccountData,
		&connectedMs,
		&lastSyncMs,
		&eventMs,
	)
	if err != nil {
		return nil, err
	}
	account.ConnectedAt = fromMillis(connectedMs)
	account.LastSync = fromNullMillis(lastSyncMs)
	account.EventAt = fromNullMillis(eventMs)
	return &account, nil
}
