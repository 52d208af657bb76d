package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/smallbiznis/coursepass/internal/user/domain"
)

// Identity is the authenticated caller resolved from a bearer token.
type Identity struct {
	UserID snowflake.ID
	Role   string
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

type LoginRequest struct {
	Email    string
	Password string
}

type LoginResult struct {
	User      *userdomain.User
	Token     string
	ExpiresAt time.Time
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*LoginResult, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Authenticate(ctx context.Context, rawToken string) (*Identity, error)
}
