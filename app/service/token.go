package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenService issues stateless HS256 tokens. It does not consult the session store.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	opts   options
}

func NewTokenService(secret string, ttl time.Duration, opts ...Option) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		opts:   newOptions(opts),
	}
}

func ClaimsForUser(user *entity.User) Claims {
	return Claims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: strconv.FormatUint(user.ID, 10),
		},
	}
}

// Issue signs claims with an expiry ttl from now; ttl <= 0 uses the configured default.
func (s *TokenService) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.opts.utcNow()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString(s.secret)
}

// Verify returns nil for any token it cannot fully trust.
func (s *TokenService) Verify(tokenString string) *Claims {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.opts.utcNow),
	)
	if err != nil {
		return nil
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil
	}
	return claims
}
