package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RedirectVouchers = "vouchers"
	RedirectRedeem   = "redeem"
)

type Service interface {
	Signup(ctx context.Context, req SignupRequest) (*User, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	GetUser(ctx context.Context, id snowflake.ID) (*User, error)
	CountUsers(ctx context.Context) (int64, error)
}

type SignupRequest struct {
	Username             string `json:"username"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type CreateUserRequest struct {
	Username    string
	Email       string
	Password    string
	IsStaff     bool
	IsSuperuser bool
}

// LoginRequest accepts either a username or an email in Login.
type LoginRequest struct {
	Login     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	User      *UserView    `json:"user"`
	Redirect  string       `json:"redirect"`
	RawToken  string       `json:"-"`
	ExpiresAt time.Time    `json:"expires_at"`
	SessionID snowflake.ID `json:"-"`
}
