package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepass/internal/entitlement/domain"
	obsmetrics "github.com/smallbiznis/coursepass/internal/observability/metrics"
	purchasedomain "github.com/smallbiznis/coursepass/internal/purchase/domain"
	subscriptiondomain "github.com/smallbiznis/coursepass/internal/subscription/domain"
	userdomain "github.com/smallbiznis/coursepass/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	UserRepo         userdomain.Repository
	SubscriptionRepo subscriptiondomain.Repository
	PurchaseRepo     purchasedomain.Repository
	ObsMetrics       *obsmetrics.Metrics `optional:"true"`
}

// Service reads committed records only and takes no locks.
type Service struct {
	db               *gorm.DB
	log              *zap.Logger
	userRepo         userdomain.Repository
	subscriptionRepo subscriptiondomain.Repository
	purchaseRepo     purchasedomain.Repository
	obsMetrics       *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("entitlement.service"),
		userRepo:         p.UserRepo,
		subscriptionRepo: p.SubscriptionRepo,
		purchaseRepo:     p.PurchaseRepo,
		obsMetrics:       p.ObsMetrics,
	}
}

func (s *Service) Evaluate(ctx context.Context, userID, courseID string) (domain.Decision, error) {
	uid, err := snowflake.ParseString(strings.TrimSpace(userID))
	if err != nil {
		return domain.Decision{}, domain.ErrInvalidUserID
	}
	var cid snowflake.ID
	if courseID = strings.TrimSpace(courseID); courseID != "" {
		cid, err = snowflake.ParseString(courseID)
		if err != nil {
			return domain.Decision{}, domain.ErrInvalidCourseID
		}
	}

	user, err := s.userRepo.FindByID(ctx, s.db, uid)
	if err != nil {
		return domain.Decision{}, err
	}
	if user == nil {
		return domain.Decision{}, domain.ErrUserNotFound
	}

	decision, err := s.decide(ctx, user, cid)
	if err != nil {
		return domain.Decision{}, err
	}
	s.obsMetrics.RecordEntitlementCheck(ctx, string(decision.Reason))
	return decision, nil
}

func (s *Service) decide(ctx context.Context, user *userdomain.User, courseID snowflake.ID) (domain.Decision, error) {
	if user.CurrentSubscriptionID != nil {
		sub, err := s.subscriptionRepo.FindByID(ctx, s.db, *user.CurrentSubscriptionID)
		if err != nil {
			return domain.Decision{}, err
		}
		// A dangling reference counts as no subscription.
		if sub.IsActive() {
			return domain.Decision{Granted: true, Reason: domain.ReasonSubscription}, nil
		}
	}

	if courseID != 0 {
		purchase, err := s.purchaseRepo.FindByUserAndCourse(ctx, s.db, user.ID, courseID)
		if err != nil {
			return domain.Decision{}, err
		}
		if purchase != nil {
			return domain.Decision{Granted: true, Reason: domain.ReasonPurchase}, nil
		}
	}

	return domain.Decision{Granted: false, Reason: domain.ReasonNoAccess}, nil
}
