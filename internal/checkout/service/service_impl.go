package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/coursepass/internal/checkout/domain"
	"github.com/smallbiznis/coursepass/internal/clock"
	"github.com/smallbiznis/coursepass/internal/config"
	coursedomain "github.com/smallbiznis/coursepass/internal/course/domain"
	userdomain "github.com/smallbiznis/coursepass/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	modePayment      = "payment"
	modeSubscription = "subscription"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	Clock      clock.Clock
	Plans      *config.PlanCatalogHolder
	Gateway    checkoutdomain.Gateway
	Limiter    checkoutdomain.Limiter `optional:"true"`
	UserRepo   userdomain.Repository
	CourseRepo coursedomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	frontendURL string
	currency    string
	plans       *config.PlanCatalogHolder
	gateway     checkoutdomain.Gateway
	limiter     checkoutdomain.Limiter
	userRepo    userdomain.Repository
	courseRepo  coursedomain.Repository
}

func NewService(p Params) checkoutdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	currency := strings.ToLower(strings.TrimSpace(p.Cfg.Stripe.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("checkout.service"),
		clock:       clk,
		frontendURL: strings.TrimRight(p.Cfg.FrontendURL, "/"),
		currency:    currency,
		plans:       p.Plans,
		gateway:     p.Gateway,
		limiter:     p.Limiter,
		userRepo:    p.UserRepo,
		courseRepo:  p.CourseRepo,
	}
}

func (s *Service) CreateCourseCheckout(ctx context.Context, req checkoutdomain.CourseCheckoutRequest) (*checkoutdomain.Session, error) {
	user, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.allow(ctx, user.ID.String()); err != nil {
		return nil, err
	}

	courseID, err := snowflake.ParseString(strings.TrimSpace(req.CourseID))
	if err != nil {
		return nil, checkoutdomain.ErrInvalidCourseID
	}
	course, err := s.courseRepo.FindByID(ctx, s.db, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, checkoutdomain.ErrCourseNotFound
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	currency := strings.ToLower(strings.TrimSpace(course.Currency))
	if currency == "" {
		currency = s.currency
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, checkoutdomain.SessionRequest{
		Mode:       modePayment,
		CustomerID: customerID,
		SuccessURL: fmt.Sprintf("%s/course/%s/success?session_id={CHECKOUT_SESSION_ID}", s.frontendURL, course.ID),
		CancelURL:  s.frontendURL + "/courses",
		LineItem: &checkoutdomain.LineItem{
			Name:       course.Title,
			ImageURL:   course.ImageURL,
			UnitAmount: course.PriceCents,
			Currency:   currency,
		},
		Metadata: map[string]string{
			checkoutdomain.MetadataCourseID: course.ID.String(),
			checkoutdomain.MetadataUserID:   user.ID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("course checkout created",
		zap.String("user_id", user.ID.String()),
		zap.String("course_id", course.ID.String()),
		zap.String("session_id", session.ID),
	)
	return session, nil
}

func (s *Service) CreatePlanCheckout(ctx context.Context, req checkoutdomain.PlanCheckoutRequest) (*checkoutdomain.Session, error) {
	user, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.allow(ctx, user.ID.String()); err != nil {
		return nil, err
	}

	plan, ok := s.plans.Get().Lookup(req.PlanID)
	if !ok {
		return nil, checkoutdomain.ErrPlanNotFound
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{checkoutdomain.MetadataUserID: user.ID.String()}
	session, err := s.gateway.CreateCheckoutSession(ctx, checkoutdomain.SessionRequest{
		Mode:                 modeSubscription,
		CustomerID:           customerID,
		SuccessURL:           s.frontendURL + "/subscription/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:            s.frontendURL + "/pricing",
		PriceID:              plan.PriceID,
		Metadata:             metadata,
		SubscriptionMetadata: map[string]string{checkoutdomain.MetadataUserID: user.ID.String()},
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("plan checkout created",
		zap.String("user_id", user.ID.String()),
		zap.String("plan_id", plan.ID),
		zap.String("session_id", session.ID),
	)
	return session, nil
}

func (s *Service) CreateBillingPortal(ctx context.Context, userID string) (string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.HasExternalCustomer() {
		return "", checkoutdomain.ErrNoCustomer
	}
	return s.gateway.CreatePortalSession(ctx, *user.ExternalCustomerID, s.frontendURL+"/dashboard")
}

func (s *Service) loadUser(ctx context.Context, userID string) (*userdomain.User, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(userID))
	if err != nil {
		return nil, checkoutdomain.ErrInvalidUserID
	}
	user, err := s.userRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, checkoutdomain.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) allow(ctx context.Context, userID string) error {
	if s.limiter == nil {
		return nil
	}
	ok, retryAfter, err := s.limiter.Allow(ctx, userID)
	if err != nil {
		s.log.Warn("checkout rate limit check failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if !ok {
		return &checkoutdomain.RateLimitedError{RetryAfter: retryAfter}
	}
	return nil
}

// ensureCustomer returns the user's processor customer, creating and linking
// one on first checkout. The link is write-once, so a racing checkout that
// linked first wins and the customer created here is left unused.
func (s *Service) ensureCustomer(ctx context.Context, user *userdomain.User) (string, error) {
	if user.HasExternalCustomer() {
		return *user.ExternalCustomerID, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, checkoutdomain.CustomerRequest{
		UserID: user.ID.String(),
		Email:  user.Email,
		Name:   user.Name,
	})
	if err != nil {
		return "", err
	}

	linked, err := s.userRepo.SetExternalCustomerID(ctx, s.db, user.ID, customerID, s.clock.Now())
	if err != nil {
		return "", err
	}
	if linked {
		return customerID, nil
	}

	current, err := s.userRepo.FindByID(ctx, s.db, user.ID)
	if err != nil {
		return "", err
	}
	if !current.HasExternalCustomer() {
		return "", errors.New("external customer link lost")
	}
	s.log.Warn("external customer already linked, discarding new customer",
		zap.String("user_id", user.ID.String()),
		zap.String("unused_customer_id", customerID),
	)
	return *current.ExternalCustomerID, nil
}
