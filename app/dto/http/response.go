package http

import (
	"encoding/json"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
)

type UserResponse struct {
	ID        uint64    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  *string   `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUserResponse(user *entity.User) UserResponse {
	resp := UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		IsActive:  user.IsActive,
		IsAdmin:   user.IsAdmin,
		CreatedAt: user.CreatedAt,
	}
	if user.FullName.Valid {
		name := user.FullName.String
		resp.FullName = &name
	}
	return resp
}

func NewUserListResponse(users []*entity.User) []UserResponse {
	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, NewUserResponse(u))
	}
	return resp
}

type LoginResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type TokenValidityResponse struct {
	Valid bool `json:"valid"`
}

type AccountResponse struct {
	AccountID   string          `json:"account_id"`
	UserID      uint64          `json:"user_id"`
	Provider    string          `json:"provider"`
	Status      string          `json:"status"`
	AccountData json.RawMessage `json:"account_data,omitempty"`
	ConnectedAt time.Time       `json:"connected_at"`
	LastSync    *time.Time      `json:"last_sync"`
}

func NewAccountResponse(account *entity.ConnectedAccount) AccountResponse {
	resp := AccountResponse{
		AccountID:   account.AccountID,
		UserID:      account.UserID,
		Provider:    account.Provider,
		Status:      account.Status,
		ConnectedAt: account.ConnectedAt,
	}
	if account.AccountData.Valid && json.Valid([]byte(account.AccountData.String)) {
		resp.AccountData = json.RawMessage(account.AccountData.String)
	}
	if account.LastSync.Valid {
		lastSync := account.LastSync.Time
		resp.LastSync = &lastSync
	}
	return resp
}

type AccountListResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}

func NewAccountListResponse(accounts []*entity.ConnectedAccount) AccountListResponse {
	resp := AccountListResponse{Accounts: make([]AccountResponse, 0, len(accounts))}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, NewAccountResponse(a))
	}
	return resp
}

type StatsResponse struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Pending int `json:"pending"`
}

type ConnectResultResponse struct {
	Connected bool              `json:"connected"`
	Accounts  []AccountResponse `json:"accounts,omitempty"`
	Message   string            `json:"message"`
}

type WebhookResponse struct {
	OK bool `json:"ok"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
