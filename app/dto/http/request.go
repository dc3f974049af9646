package http

import (
	"github.com/labstack/echo/v4"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,max=255"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name" validate:"max=255"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	// TTLSeconds shortens the token lifetime; zero keeps the configured default.
	TTLSeconds int64 `json:"ttl_seconds" validate:"gte=0"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,max=255"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type UpdateProfileRequest struct {
	Email    *string `json:"email" validate:"omitempty,max=255"`
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type AdminCreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,max=255"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name" validate:"max=255"`
	IsAdmin  bool   `json:"is_admin"`
}

type AdminUpdateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,max=255"`
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
	IsActive *bool   `json:"is_active"`
	IsAdmin  *bool   `json:"is_admin"`
}

// Bind decodes the request body into a new T. Validation is a separate step so
// handlers can tell a malformed body from a rejected one.
func Bind[T any](ctx echo.Context) (*T, error) {
	var body T
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *RegisterRequest) Validate() error       { return validateStruct(r) }
func (r *LoginRequest) Validate() error          { return validateStruct(r) }
func (r *TokenRequest) Validate() error          { return validateStruct(r) }
func (r *ForgotPasswordRequest) Validate() error { return validateStruct(r) }
func (r *ResetPasswordRequest) Validate() error  { return validateStruct(r) }
func (r *UpdateProfileRequest) Validate() error  { return validateStruct(r) }
func (r *ChangePasswordRequest) Validate() error { return validateStruct(r) }

func (r *AdminCreateUserRequest) Validate() error { return validateStruct(r) }
func (r *AdminUpdateUserRequest) Validate() error { return validateStruct(r) }
