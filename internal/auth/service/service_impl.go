package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepass/internal/auth/domain"
	"github.com/smallbiznis/coursepass/internal/auth/password"
	"github.com/smallbiznis/coursepass/internal/auth/token"
	"github.com/smallbiznis/coursepass/internal/clock"
	userdomain "github.com/smallbiznis/coursepass/internal/user/domain"
	"github.com/smallbiznis/coursepass/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const minPasswordLength = 8

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Tokens   *token.Manager
	UserRepo userdomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	tokens   *token.Manager
	userRepo userdomain.Repository
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("auth.service"),
		genID:    p.GenID,
		clock:    clk,
		tokens:   p.Tokens,
		userRepo: p.UserRepo,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidRequest
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrInvalidRequest
	}

	existing, err := s.userRepo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrUserExists
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultDisplayName(email)
	}
	now := s.clock.Now()
	user := &userdomain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		Name:         name,
		PasswordHash: hashed,
		Role:         userdomain.RoleStudent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Insert(ctx, s.db, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUserExists
		}
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.String()))
	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil || strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" || !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Identity, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, domain.ErrUnauthorized
	}
	claims, err := s.tokens.Parse(rawToken)
	if err != nil {
		s.log.Debug("bearer token rejected", zap.Error(err))
		return nil, domain.ErrUnauthorized
	}
	id, err := snowflake.ParseString(claims.Subject)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	return &domain.Identity{UserID: id, Role: claims.Role}, nil
}

func (s *Service) issue(user *userdomain.User) (*domain.LoginResult, error) {
	signed, expiresAt, err := s.tokens.Issue(user.ID.String(), user.Role)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResult{User: user, Token: signed, ExpiresAt: expiresAt}, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	email := strings.ToLower(strings.TrimSpace(addr.Address))
	if email == "" {
		return "", errors.New("empty email")
	}
	return email, nil
}

func defaultDisplayName(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
		return strings.TrimSpace(parts[0])
	}
	return email
}
