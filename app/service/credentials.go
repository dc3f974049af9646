package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/vibast-solutions/ms-go-linkhub/config"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// MinPasswordLength is the shortest password Hash accepts. Policies configured on top
// of it may only be stricter.
const MinPasswordLength = 8

// Hasher is the credential store. Hashes are bcrypt; the work factor is the configured
// cost and production configuration must not go below bcrypt.DefaultCost. Hash and
// Verify share a semaphore so bursts of logins cannot saturate every CPU.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted

	dummyOnce sync.Once
	dummy     []byte
}

func NewHasher(cost, maxConcurrent int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Hasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

func NewHasherFromConfig(cfg config.PasswordConfig) *Hasher {
	return NewHasher(cfg.BcryptCost, cfg.MaxConcurrentHashes)
}

func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: must be at least %d characters", ErrWeakInput, MinPasswordLength)
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err == bcrypt.ErrPasswordTooLong {
		return "", fmt.Errorf("%w: %s", ErrWeakInput, err.Error())
	}
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify never fails on a malformed hash; it reports false.
func (h *Hasher) Verify(ctx context.Context, password, hash string) bool {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyDummy spends the same work as Verify against a hash nobody owns.
func (h *Hasher) VerifyDummy(ctx context.Context, password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("linkhub-dummy-password"), h.cost)
	})
	h.Verify(ctx, password, string(h.dummy))
}
