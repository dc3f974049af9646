package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
)

type ResetTokenRepository struct {
	db DBTX
}

func NewResetTokenRepository(db DBTX) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

func (r *ResetTokenRepository) Create(ctx context.Context, token *entity.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (user_id, token, expires_at_ms, used, created_at_ms)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		token.UserID,
		token.Token,
		toMillis(token.ExpiresAt),
		token.Used,
		toMillis(token.CreatedAt),
	)
	if err != nil {
		return mapDuplicate(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	token.ID = uint64(id)
	return nil
}

func (r *ResetTokenRepository) FindByTokenForUpdate(ctx context.Context, token string) (*entity.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, token, expires_at_ms, used, created_at_ms
		FROM password_reset_tokens WHERE token = ? FOR UPDATE
	`
	var (
		rt                   entity.PasswordResetToken
		expiresMs, createdMs int64
	)
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&rt.ID,
		&rt.UserID,
		&rt.Token,
		&expiresMs,
		&rt.Used,
		&createdMs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rt.ExpiresAt = fromMillis(expiresMs)
	rt.CreatedAt = fromMillis(createdMs)
	return &rt, nil
}

func (r *ResetTokenRepository) DeleteUnusedByUserID(ctx context.Context, userID uint64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE user_id = ? AND used = 0`, userID)
	if err != nil {
		return 0, err
	}
	return affected(result)
}

func (r *ResetTokenRepository) MarkUsed(ctx context.Context, id uint64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE password_reset_tokens SET used = 1 WHERE id = ? AND used = 0`, id)
	if err != nil {
		return false, err
	}
	rows, err := affected(result)
	return rows == 1, err
}

func (r *ResetTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE expires_at_ms <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return affected(result)
}
