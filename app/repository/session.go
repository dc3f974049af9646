package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
)

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *entity.Session) error {
	query := `
		INSERT INTO sessions (token, user_id, expires_at_ms, created_at_ms)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.Token,
		session.UserID,
		toMillis(session.ExpiresAt),
		toMillis(session.CreatedAt),
	)
	return mapDuplicate(err)
}

func (r *SessionRepository) FindByToken(ctx context.Context, token string) (*entity.Session, error) {
	query := `
		SELECT token, user_id, expires_at_ms, created_at_ms
		FROM sessions WHERE token = ?
	`
	var (
		session              entity.Session
		expiresMs, createdMs int64
	)
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&session.Token,
		&session.UserID,
		&expiresMs,
		&createdMs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	session.ExpiresAt = fromMillis(expiresMs)
	session.CreatedAt = fromMillis(createdMs)
	return &session, nil
}

func (r *SessionRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return false, err
	}
	rows, err := affected(result)
	return rows > 0, err
}

func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID uint64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return affected(result)
}

func (r *SessionRepository) DeleteByUserIDExcept(ctx context.Context, userID uint64, keepToken string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ? AND token <> ?`, userID, keepToken)
	if err != nil {
		return 0, err
	}
	return affected(result)
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at_ms <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return affected(result)
}
