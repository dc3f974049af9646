package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
	"github.com/vibast-solutions/ms-go-linkhub/app/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

var (
	insertSessionQuery          = `(?s)INSERT INTO sessions \(token, user_id, expires_at_ms, created_at_ms\)\s+VALUES \(\?, \?, \?, \?\)`
	findSessionQuery            = `(?s)SELECT token, user_id, expires_at_ms, created_at_ms\s+FROM sessions WHERE token = \?`
	deleteSessionQuery          = regexp.QuoteMeta(`DELETE FROM sessions WHERE token = ?`)
	deleteSessionsExceptQuery   = regexp.QuoteMeta(`DELETE FROM sessions WHERE user_id = ? AND token <> ?`)
	deleteExpiredSessionsQuery  = regexp.QuoteMeta(`DELETE FROM sessions WHERE expires_at_ms <= ?`)
	insertResetTokenQuery       = `(?s)INSERT INTO password_reset_tokens \(user_id, token, expires_at_ms, used, created_at_ms\)`
	findResetTokenForUpdate     = `(?s)SELECT id, user_id, token, expires_at_ms, used, created_at_ms\s+FROM password_reset_tokens WHERE token = \? FOR UPDATE`
	deleteUnusedResetTokens     = regexp.QuoteMeta(`DELETE FROM password_reset_tokens WHERE user_id = ? AND used = 0`)
	markResetTokenUsedQuery     = regexp.QuoteMeta(`UPDATE password_reset_tokens SET used = 1 WHERE id = ? AND used = 0`)
	deleteExpiredResetTokensSQL = regexp.QuoteMeta(`DELETE FROM password_reset_tokens WHERE expires_at_ms <= ?`)
)

func TestSessionRepository_CreateStoresMillis(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewSessionRepository(db)
	created := time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	session := &entity.Session{
		Token:     "tok",
		UserID:    9,
		CreatedAt: created,
		ExpiresAt: created.Add(24 * time.Hour),
	}

	mock.ExpectExec(insertSessionQuery).
		WithArgs("tok", uint64(9), created.Add(24*time.Hour).UnixMilli(), created.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_CreateNormalizesZone(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewSessionRepository(db)
	paris := time.FixedZone("CET", 3600)
	created := time.Date(2026, 1, 2, 4, 4, 5, 0, paris)

	mock.ExpectExec(insertSessionQuery).
		WithArgs("tok", uint64(1), created.UnixMilli(), created.UTC().UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &entity.Session{Token: "tok", UserID: 1, CreatedAt: created, ExpiresAt: created})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
}

func TestSessionRepository_FindByToken(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewSessionRepository(db)
	expires := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(findSessionQuery).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"token", "user_id", "expires_at_ms", "created_at_ms"}).
			AddRow("tok", uint64(4), expires.UnixMilli(), expires.Add(-24*time.Hour).UnixMilli()))

	session, err := repo.FindByToken(context.Background(), "tok")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if session == nil || session.UserID != 4 {
		t.Fatalf("unexpected session: %+v", session)
	}
	if !session.ExpiresAt.Equal(expires) || session.ExpiresAt.Location() != time.UTC {
		t.Fatalf("expected UTC expiry %v, got %v", expires, session.ExpiresAt)
	}
}

func TestSessionRepository_FindByToken_NotFound(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewSessionRepository(db)
	mock.ExpectQuery(findSessionQuery).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"token", "user_id", "expires_at_ms", "created_at_ms"}))

	session, err := repo.FindByToken(context.Background(), "missing")
	if err != nil || session != nil {
		t.Fatalf("expected nil session, got %+v %v", session, err)
	}
}

func TestSessionRepository_Deletes(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewSessionRepository(db)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(deleteSessionQuery).WithArgs("tok").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(deleteSessionsExceptQuery).WithArgs(uint64(2), "keep").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(deleteExpiredSessionsQuery).WithArgs(now.UnixMilli()).WillReturnResult(sqlmock.NewResult(0, 5))

	removed, err := repo.DeleteByToken(context.Background(), "tok")
	if err != nil || removed {
		t.Fatalf("expected no row removed, got %v %v", removed, err)
	}
	count, err := repo.DeleteByUserIDExcept(context.Background(), 2, "keep")
	if err != nil || count != 3 {
		t.Fatalf("expected 3 sessions removed, got %d %v", count, err)
	}
	count, err = repo.DeleteExpired(context.Background(), now)
	if err != nil || count != 5 {
		t.Fatalf("expected 5 expired sessions removed, got %d %v", count, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_CreateAndFind(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewResetTokenRepository(db)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	token := &entity.PasswordResetToken{
		UserID:    3,
		Token:     "reset",
		ExpiresAt: now.Add(30 * time.Minute),
		CreatedAt: now,
	}

	mock.ExpectExec(insertResetTokenQuery).
		WithArgs(uint64(3), "reset", now.Add(30*time.Minute).UnixMilli(), false, now.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectQuery(findResetTokenForUpdate).
		WithArgs("reset").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at_ms", "used", "created_at_ms"}).
			AddRow(uint64(11), uint64(3), "reset", now.Add(30*time.Minute).UnixMilli(), false, now.UnixMilli()))

	if err := repo.Create(context.Background(), token); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if token.ID != 11 {
		t.Fatalf("expected id 11, got %d", token.ID)
	}

	found, err := repo.FindByTokenForUpdate(context.Background(), "reset")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found == nil || found.Used || !found.ExpiresAt.Equal(token.ExpiresAt) {
		t.Fatalf("unexpected token: %+v", found)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_MarkUsedOnlyOnce(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewResetTokenRepository(db)
	mock.ExpectExec(markResetTokenUsedQuery).WithArgs(uint64(11)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(markResetTokenUsedQuery).WithArgs(uint64(11)).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkUsed(context.Background(), 11)
	if err != nil || !ok {
		t.Fatalf("expected first mark to succeed, got %v %v", ok, err)
	}
	ok, err = repo.MarkUsed(context.Background(), 11)
	if err != nil || ok {
		t.Fatalf("expected second mark to fail, got %v %v", ok, err)
	}
}

func TestResetTokenRepository_Deletes(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewResetTokenRepository(db)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(deleteUnusedResetTokens).WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(deleteExpiredResetTokensSQL).WithArgs(now.UnixMilli()).WillReturnResult(sqlmock.NewResult(0, 1))

	count, err := repo.DeleteUnusedByUserID(context.Background(), 3)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 tokens removed, got %d %v", count, err)
	}
	count, err = repo.DeleteExpired(context.Background(), now)
	if err != nil || count != 1 {
		t.Fatalf("expected 1 token removed, got %d %v", count, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
