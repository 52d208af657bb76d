package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/coursepass/internal/subscription/domain"
	userdomain "github.com/smallbiznis/coursepass/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     subscriptiondomain.Repository
	UserRepo userdomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     subscriptiondomain.Repository
	userRepo userdomain.Repository
}

func NewService(p Params) subscriptiondomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("subscription.service"),
		repo:     p.Repo,
		userRepo: p.UserRepo,
	}
}

// GetCurrent follows the user's current-subscription reference. A reference
// to a row that no longer exists is reported as ErrNotFound.
func (s *Service) GetCurrent(ctx context.Context, userID string) (*subscriptiondomain.Subscription, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(userID))
	if err != nil {
		return nil, userdomain.ErrInvalidUserID
	}

	user, err := s.userRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}
	if user.CurrentSubscriptionID == nil {
		return nil, nil
	}

	sub, err := s.repo.FindByID(ctx, s.db, *user.CurrentSubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		s.log.Warn("current subscription reference dangles",
			zap.String("user_id", user.ID.String()),
			zap.String("subscription_id", user.CurrentSubscriptionID.String()),
		)
		return nil, subscriptiondomain.ErrNotFound
	}
	return sub, nil
}
