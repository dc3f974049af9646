package service

import "errors"

var (
	ErrWeakInput          = errors.New("password is too short")
	ErrWeakPassword       = errors.New("password does not meet policy requirements")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrCannotDeleteSelf   = errors.New("cannot delete your own account")
	ErrUpstreamConfig     = errors.New("account linking is not configured")
	ErrUpstreamRequest    = errors.New("account linking provider request failed")
)
