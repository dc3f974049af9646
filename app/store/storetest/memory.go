// Package storetest provides an in-memory store.Gateway for service and controller
// tests. It enforces the same unique keys and cascades as db/schema.sql and truncates
// instants to UTC milliseconds the way the MySQL columns do.
//
// Transactions are serialized: WithTx holds a gateway-wide lock for the duration of fn
// and restores a snapshot when fn fails.
package storetest

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
	"github.com/vibast-solutions/ms-go-linkhub/app/store"
)

type state struct {
	users       map[uint64]entity.User
	sessions    map[string]entity.Session
	resetTokens map[uint64]entity.PasswordResetToken
	accounts    map[string]entity.ConnectedAccount

	nextUserID    uint64
	nextResetID   uint64
	nextAccountID uint64
}

func newState() *state {
	return &state{
		users:       make(map[uint64]entity.User),
		sessions:    make(map[string]entity.Session),
		resetTokens: make(map[uint64]entity.PasswordResetToken),
		accounts:    make(map[string]entity.ConnectedAccount),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.resetTokens {
		c.resetTokens[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	c.nextUserID = s.nextUserID
	c.nextResetID = s.nextResetID
	c.nextAccountID = s.nextAccountID
	return c
}

type memory struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data *state
	err  error
}

// Gateway is the in-memory store.Gateway.
type Gateway struct {
	m    *memory
	inTx bool
}

func New() *Gateway {
	return &Gateway{m: &memory{data: newState()}}
}

// FailWith makes every repository call return err until it is called again with nil.
func (g *Gateway) FailWith(err error) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	g.m.err = err
}

func (g *Gateway) Users() store.UserRepository             { return &userRepo{m: g.m} }
func (g *Gateway) Sessions() store.SessionRepository       { return &sessionRepo{m: g.m} }
func (g *Gateway) ResetTokens() store.ResetTokenRepository { return &resetTokenRepo{m: g.m} }
func (g *Gateway) Accounts() store.AccountRepository       { return &accountRepo{m: g.m} }

func (g *Gateway) WithTx(ctx context.Context, fn func(tx store.Gateway) error) error {
	if g.inTx {
		return fn(g)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	g.m.txMu.Lock()
	defer g.m.txMu.Unlock()

	g.m.mu.Lock()
	snapshot := g.m.data.clone()
	g.m.mu.Unlock()

	if err := fn(&Gateway{m: g.m, inTx: true}); err != nil {
		g.m.mu.Lock()
		g.m.data = snapshot
		g.m.mu.Unlock()
		return err
	}
	return nil
}

// SessionCount, ResetTokensFor and Account give tests direct access to stored rows.
func (g *Gateway) SessionCount(userID uint64) int {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()

	n := 0
	for _, s := range g.m.data.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

func (g *Gateway) ResetTokensFor(userID uint64) []entity.PasswordResetToken {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()

	var tokens []entity.PasswordResetToken
	for _, t := range g.m.data.resetTokens {
		if t.UserID == userID {
			tokens = append(tokens, t)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].ID < tokens[j].ID })
	return tokens
}

func (g *Gateway) Account(accountID string) (entity.ConnectedAccount, bool) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()

	a, ok := g.m.data.accounts[accountID]
	return a, ok
}

// PutUser stores user under its own ID. Later Creates continue after the highest ID.
func (g *Gateway) PutUser(user entity.User) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()

	user.CreatedAt = truncate(user.CreatedAt)
	user.UpdatedAt = truncate(user.UpdatedAt)
	g.m.data.users[user.ID] = user
	if user.ID > g.m.data.nextUserID {
		g.m.data.nextUserID = user.ID
	}
}

// PutSession stores a session as is, bypassing the service layer.
func (g *Gateway) PutSession(session entity.Session) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()

	session.ExpiresAt = truncate(session.ExpiresAt)
	session.CreatedAt = truncate(session.CreatedAt)
	g.m.data.sessions[session.Token] = session
}

func (m *memory) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return err
	}
	return nil
}

func truncate(t time.Time) time.Time {
	return time.UnixMilli(t.UTC().UnixMilli()).UTC()
}

func truncateNull(t sql.NullTime) sql.NullTime {
	if !t.Valid {
		return t
	}
	t.Time = truncate(t.Time)
	return t
}

func duplicate(key string) error {
	return fmt.Errorf("%w: %s", store.ErrDuplicate, key)
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
