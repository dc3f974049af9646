package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vibast-solutions/ms-go-linkhub/app/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := service.NewHasher(bcrypt.MinCost, 2)
	ctx := context.Background()

	passwords := []string{"longenough1", "correct horse battery", "pässwörd-ünïcode"}
	for _, p := range passwords {
		hash, err := h.Hash(ctx, p)
		require.NoError(t, err)
		assert.NotEqual(t, p, hash)
		assert.True(t, h.Verify(ctx, p, hash), "password %q should verify", p)

		for _, other := range passwords {
			if other != p {
				assert.False(t, h.Verify(ctx, other, hash), "%q must not verify against hash of %q", other, p)
			}
		}
	}
}

func TestHasher_HashIsSalted(t *testing.T) {
	h := service.NewHasher(bcrypt.MinCost, 2)

	first, err := h.Hash(context.Background(), "longenough1")
	require.NoError(t, err)
	second, err := h.Hash(context.Background(), "longenough1")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestHasher_RejectsShortAndOverlongPasswords(t *testing.T) {
	h := service.NewHasher(bcrypt.MinCost, 2)

	_, err := h.Hash(context.Background(), "short")
	assert.True(t, errors.Is(err, service.ErrWeakInput))

	_, err = h.Hash(context.Background(), "1234567")
	assert.True(t, errors.Is(err, service.ErrWeakInput))

	_, err = h.Hash(context.Background(), "12345678")
	assert.NoError(t, err)

	_, err = h.Hash(context.Background(), strings.Repeat("x", 73))
	assert.True(t, errors.Is(err, service.ErrWeakInput))
}

func TestHasher_MalformedHashIsFalse(t *testing.T) {
	h := service.NewHasher(bcrypt.MinCost, 2)

	assert.False(t, h.Verify(context.Background(), "longenough1", ""))
	assert.False(t, h.Verify(context.Background(), "longenough1", "not-a-bcrypt-hash"))
	assert.False(t, h.Verify(context.Background(), "longenough1", "$2a$04$tooshort"))
}
