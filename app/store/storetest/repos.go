package storetest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
	"github.com/vibast-solutions/ms-go-linkhub/app/store"
)

type userRepo struct{ m *memory }

func (r *userRepo) Create(ctx context.Context, user *entity.User) error {
	if err := r.m.lock(ctx); err != nil {
		return err
	}
	defer r.m.mu.Unlock()

	if err := r.checkUnique(0, user); err != nil {
		return err
	}
	r.m.data.nextUserID++
	user.ID = r.m.data.nextUserID

	row := *user
	row.CreatedAt = truncate(row.CreatedAt)
	row.UpdatedAt = truncate(row.UpdatedAt)
	r.m.data.users[row.ID] = row
	return nil
}

func (r *userRepo) checkUnique(selfID uint64, user *entity.User) error {
	for id, u := range r.m.data.users {
		if id == selfID {
			continue
		}
		if u.Username == user.Username {
			return duplicate("uq_users_username")
		}
		if sameEmail(u.Email, user.Email) {
			return duplicate("uq_users_email")
		}
	}
	return nil
}

func (r *userRepo) find(ctx context.Context, match func(entity.User) bool) (*entity.User, error) {
	if err := r.m.lock(ctx); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()

	for _, u := range r.m.data.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

func (r *userRepo) FindByID(ctx context.Context, id uint64) (*entity.User, error) {
	return r.find(ctx, func(u entity.User) bool { return u.ID == id })
}

func (r *userRepo) FindByIDForUpdate(ctx context.Context, id uint64) (*entity.User, error) {
	return r.FindByID(ctx, id)
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.find(ctx, func(u entity.User) bool { return u.Username == username })
}

func (r *userRepo) FindByEmail(ctx context.Context, canonicalEmail string) (*entity.User, error) {
	return r.find(ctx, func(u entity.User) bool { return sameEmail(u.Email, canonicalEmail) })
}

func (r *userRepo) List(ctx context.Context) ([]*entity.User, error) {
	if err := r.m.lock(ctx); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()

	users := make([]*entity.User, 0, len(r.m.data.users))
	for _, u := range r.m.data.users {
		row := u
		users = append(users, &row)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *userRepo) Update(ctx context.Context, user *entity.User) error {
	if err := r.m.lock(ctx); err != nil {
		return err
	}
	defer r.m.mu.Unlock()

	stored, ok := r.m.data.users[user.ID]
	if !ok {
		return nil
	}
	if err := r.checkUnique(user.ID, user); err != nil {
		return err
	}

	stored.Username = user.Username
	stored.Email = user.Email
	stored.FullName = user.FullName
	stored.IsActive = user.IsActive
	stored.IsAdmin = user.IsAdmin
	stored.UpdatedAt = truncate(user.UpdatedAt)
	r.m.data.users[user.ID] = stored
	return nil
}

func (r *userRepo) UpdatePassword(ctx context.Context, userID uint64, passwordHash string, updatedAt time.Time) error {
	if err := r.m.lock(ctx); err != nil {
		return err
	}
	defer r.m.mu.Unlock()

	stored, ok := r.m.data.users[userID]
	if !ok {
		return nil
	}
	stored.PasswordHash = passwordHash
	stored.UpdatedAt = truncate(updatedAt)
	r.m.data.users[userID] = stored
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id uint64) (bool, error) {
	if err := r.m.lock(ctx); err != nil {
		return false, err
	}
	defer r.m.mu.Unlock()

	if _, ok := r.m.data.users[id]; !ok {
		return false, nil
	}
	delete(r.m.data.users, id)

	for token, s := range r.m.data.sessions {
		if s.UserID == id {
			delete(r.m.data.sessions, token)
		}
	}
	for tid, t := range r.m.data.resetTokens {
		if t.UserID == id {
			delete(r.m.data.resetTokens, tid)
		}
	}
	for aid, a := range r.m.data.accounts {
		if a.UserID == id {
			delete(r.m.data.accounts, aid)
		}
	}
	return true, nil
}

type sessionRepo struct{ m *memory }

func (r *sessionRepo) Create(ctx context.Context, session *entity.Session) error {
	if err := r.m.lock(ctx); err != nil {
		return err
	}
	defer r.m.mu.Unlock()

	if _, ok := r.m.data.sessions[session.Token]; ok {
		return duplicate("PRIMARY")
	}
	if _, ok := r.m.data.users[session.UserID]; !ok {
		return fmt.Errorf("foreign key: user %d does not exist", session.UserID)
	}
	row := *session
	row.ExpiresAt = truncate(row.ExpiresAt)
	row.CreatedAt = truncate(row.CreatedAt)
	r.m.data.sessions[row.Token] = row
	return nil
}

func (r *sessionRepo) FindByToken(ctx context.Context, token string) (*entity.Session, error) {
	if err := r.m.lock(ctx); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()

	s, ok := r.m.data.sessions[token]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *sessionRepo) DeleteByToken(ctx context.Context, token string) (bool, error) {
	if err := r.m.lock(ctx); err != nil {
		return false, err
	}
	defer r.m.mu.Unlock()

	if _, ok := r.m.data.sessions[token]; !ok {
		return false, nil
	}
	delete(r.m.data.sessions, token)
	return true, nil
}

func (r *sessionRepo) deleteWhere(ctx context.Context, match func(entity.Session) bool) (int64, error) {
	if err := r.m.lock(ctx); err != nil {
		return 0, err
	}
	defer r.m.mu.Unlock()

	var n int64
	for token, s := range r.m.data.sessions {
		if match(s) {
			delete(r.m.data.sessions, token)
			n++
		}
	}
	return n, nil
}

func (r *sessionRepo) DeleteByUserID(ctx context.Context, userID uint64) (int64, error) {
	return r.deleteWhere(ctx, func(s entity.Session) bool { return s.UserID == userID })
}

func (r *sessionRepo) DeleteByUserIDExcept(ctx context.Context, userID uint64, keepToken string) (int64, error) {
	return r.deleteWhere(ctx, func(s entity.Session) bool { return s.UserID == userID && s.Token != keepToken })
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cutoff := truncate(now)
	return r.deleteWhere(ctx, func(s entity.Session) bool { return !s.ExpiresAt.After(cutoff) })
}

type resetTokenRepo struct{ m *memory }

func (r *resetTokenRepo) Create(ctx context.Context, token *entity.PasswordResetToken) error {
	if err := r.m.lock(ctx); err != nil {
		return err
	}
	defer r.m.mu.Unlock()

	for _, t := range r.m.data.resetTokens {
		if t.Token == token.Token {
			return duplicate("uq_password_reset_tokens_token")
		}
	}
	if _, ok := r.m.data.users[token.UserID]; !ok {
		return fmt.Errorf("foreign key: user %d does not exist", token.UserID)
	}
	r.m.data.nextResetID++
	token.ID = r.m.data.nextResetID

	row := *token
	row.ExpiresAt = truncate(row.ExpiresAt)
	row.CreatedAt = truncate(row.CreatedAt)
	r.m.data.resetTokens[row.ID] = row
	return nil
}

func (r *resetTokenRepo) FindByTokenForUpdate(ctx context.Context, token string) (*entity.PasswordResetToken, error) {
	if err := r.m.lock(ctx); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()

	for _, t := range r.m.data.resetTokens {
		if t.Token == token {
			found := t
			return &found, nil
		}
	}
	return nil, nil
}

func (r *resetTokenRepo) DeleteUnusedByUserID(ctx context.Context, userID uint64) (int64, error) {
	if err := r.m.lock(ctx); err != nil {
		return 0, err
	}
	defer r.m.mu.Unlock()

	var n int64
	for id, t := range r.m.data.resetTokens {
		if t.UserID == userID && !t.Used {
			delete(r.m.data.resetTokens, id)
			n++
		}
	}
	return n, nil
}

func (r *resetTokenRepo) MarkUsed(ctx context.Context, id uint64) (bool, error) {
	if err := r.m.lock(ctx); err != nil {
		return false, err
	}
	defer r.m.mu.Unlock()

	t, ok := r.m.data.resetTokens[id]
	if !ok || t.Used {
		return false, nil
	}
	t.Used = true
	r.m.data.resetTokens[id] = t
	return true, nil
}

func (r *resetTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := r.m.lock(ctx); err != nil {
		return 0, err
	}
	defer r.m.mu.Unlock()

	cutoff := truncate(now)
	var n int64
	for id, t := range r.m.data.resetTokens {
		if !t.ExpiresAt.After(cutoff) {
			delete(r.m.data.resetTokens, id)
			n++
		}
	}
	return n, nil
}

type accountRepo struct{ m *memory }

// fresh mirrors the SQL guard: an incoming event applies unless both sides carry an
// event time and the stored one is newer.
func fresh(incoming, stored entity.ConnectedAccount) bool {
	if !incoming.EventAt.Valid || !stored.EventAt.Valid {
		return true
	}
	return !truncate(incoming.EventAt.Time).Before(stored.EventAt.Time)
}

func apply(stored, incoming entity.ConnectedAccount) entity.ConnectedAccount {
	stored.Status = incoming.Status
	stored.AccountData = incoming.AccountData
	stored.LastSync = truncateNull(incoming.LastSync)
	if incoming.EventAt.Valid {
		stored.EventAt = truncateNull(incoming.EventAt)
	}
	return stored
}

func (r *accountRepo) Upsert(ctx context.Context, account *entity.ConnectedAccount) (store.UpsertResult, error) {
	if err := r.m.lock(ctx); err != nil {
		return store.UpsertUnchanged, err
	}
	defer r.m.mu.Unlock()

	stored, ok := r.m.data.accounts[account.AccountID]
	if !ok {
		if _, exists := r.m.data.users[account.UserID]; !exists {
			return store.UpsertUnchanged, fmt.Errorf("foreign key: user %d does not exist", account.UserID)
		}
		r.m.data.nextAccountID++
		row := *account
		row.ID = r.m.data.nextAccountID
		row.ConnectedAt = truncate(row.ConnectedAt)
		row.LastSync = truncateNull(row.LastSync)
		row.EventAt = truncateNull(row.EventAt)
		r.m.data.accounts[row.AccountID] = row
		account.ID = row.ID
		return store.UpsertInserted, nil
	}

	if !fresh(*account, stored) {
		return store.UpsertUnchanged, nil
	}
	updated := apply(stored, *account)
	if updated == stored {
		return store.UpsertUnchanged, nil
	}
	r.m.data.accounts[account.AccountID] = updated
	return store.UpsertUpdated, nil
}

func (r *accountRepo) UpdateExisting(ctx context.Context, account *entity.ConnectedAccount) (bool, error) {
	if err := r.m.lock(ctx); err != nil {
		return false, err
	}
	defer r.m.mu.Unlock()

	stored, ok := r.m.data.accounts[account.AccountID]
	if !ok || !fresh(*account, stored) {
		return false, nil
	}
	updated := apply(stored, *account)
	if updated == stored {
		return false, nil
	}
	r.m.data.accounts[account.AccountID] = updated
	return true, nil
}

func (r *accountRepo) FindByAccountID(ctx context.Context, accountID string) (*entity.ConnectedAccount, error) {
	if err := r.m.lock(ctx); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()

	a, ok := r.m.data.accounts[accountID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *accountRepo) ListByUserID(ctx context.Context, userID uint64) ([]*entity.ConnectedAccount, error) {
	if err := r.m.lock(ctx); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()

	var accounts []*entity.ConnectedAccount
	for _, a := range r.m.data.accounts {
		if a.UserID == userID {
			row := a
			accounts = append(accounts, &row)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		if !accounts[i].ConnectedAt.Equal(accounts[j].ConnectedAt) {
			return accounts[i].ConnectedAt.After(accounts[j].ConnectedAt)
		}
		return accounts[i].ID > accounts[j].ID
	})
	return accounts, nil
}

func (r *accountRepo) Stats(ctx context.Context, userID uint64) (*entity.AccountStats, error) {
	if err := r.m.lock(ctx); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()

	stats := &entity.AccountStats{}
	for _, a := range r.m.data.accounts {
		if a.UserID != userID {
			continue
		}
		stats.Total++
		switch a.Status {
		case entity.AccountStatusCreationSuccess:
			stats.Active++
		case entity.AccountStatusPending:
			stats.Pending++
		}
	}
	return stats, nil
}

func (r *accountRepo) DeleteByAccountID(ctx context.Context, accountID string) (bool, error) {
	if err := r.m.lock(ctx); err != nil {
		return false, err
	}
	defer r.m.mu.Unlock()

	if _, ok := r.m.data.accounts[accountID]; !ok {
		return false, nil
	}
	delete(r.m.data.accounts, accountID)
	return true, nil
}

func (r *accountRepo) DeleteOwned(ctx context.Context, userID uint64, accountID string) (bool, error) {
	if err := r.m.lock(ctx); err != nil {
		return false, err
	}
	defer r.m.mu.Unlock()

	a, ok := r.m.data.accounts[accountID]
	if !ok || a.UserID != userID {
		return false, nil
	}
	delete(r.m.data.accounts, accountID)
	return true, nil
}
