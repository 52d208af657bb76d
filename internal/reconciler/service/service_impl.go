package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepass/internal/clock"
	coursedomain "github.com/smallbiznis/coursepass/internal/course/domain"
	paymentdomain "github.com/smallbiznis/coursepass/internal/payment/domain"
	purchasedomain "github.com/smallbiznis/coursepass/internal/purchase/domain"
	"github.com/smallbiznis/coursepass/internal/reconciler/domain"
	subscriptiondomain "github.com/smallbiznis/coursepass/internal/subscription/domain"
	userdomain "github.com/smallbiznis/coursepass/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxCASAttempts bounds retries of a subscription upsert that lost a
// compare-and-swap race.
const maxCASAttempts = 5

var errCASConflict = errors.New("cas_conflict")

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	GenID            *snowflake.Node
	Clock            clock.Clock
	UserRepo         userdomain.Repository
	CourseRepo       coursedomain.Repository
	SubscriptionRepo subscriptiondomain.Repository
	PurchaseRepo     purchasedomain.Repository
}

type Service struct {
	db               *gorm.DB
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	userRepo         userdomain.Repository
	courseRepo       coursedomain.Repository
	subscriptionRepo subscriptiondomain.Repository
	purchaseRepo     purchasedomain.Repository
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("reconciler.service"),
		genID:            p.GenID,
		clock:            clk,
		userRepo:         p.UserRepo,
		courseRepo:       p.CourseRepo,
		subscriptionRepo: p.SubscriptionRepo,
		purchaseRepo:     p.PurchaseRepo,
	}
}

func (s *Service) Apply(ctx context.Context, event paymentdomain.VerifiedEvent) domain.Result {
	var result domain.Result
	switch payload := event.Payload.(type) {
	case paymentdomain.CheckoutCompleted:
		result = s.applyCheckout(ctx, event, payload)
	case paymentdomain.SubscriptionChanged:
		result = s.applySubscriptionChanged(ctx, event, payload)
	case paymentdomain.SubscriptionDeleted:
		result = s.applySubscriptionDeleted(ctx, payload)
	default:
		result = domain.Ignored(domain.ReasonUnhandledEventType)
	}

	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_kind", string(event.Kind())),
		zap.String("result", result.String()),
	}
	switch {
	case result.IsConsistencyFault():
		s.log.Warn("billing event not applied", append(fields, zap.Error(result.Err))...)
	case result.IsFailed():
		s.log.Error("billing event failed", append(fields, zap.Error(result.Err))...)
	default:
		s.log.Debug("billing event reconciled", fields...)
	}
	return result
}

func (s *Service) applyCheckout(ctx context.Context, event paymentdomain.VerifiedEvent, p paymentdomain.CheckoutCompleted) domain.Result {
	// Plan checkouts carry no course; the subscription events that follow
	// them do the work.
	if p.Mode == paymentdomain.CheckoutModeSubscription {
		return domain.Ignored(domain.ReasonSubscriptionCheckout)
	}
	if p.CheckoutID == "" || p.CourseID == "" || p.ExternalCustomerID == "" {
		return domain.Failed(domain.ErrMissingMetadata)
	}
	courseID, err := snowflake.ParseString(p.CourseID)
	if err != nil || courseID <= 0 {
		return domain.Failed(domain.ErrMissingMetadata)
	}

	var result domain.Result
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.FindByExternalCustomerID(ctx, tx, p.ExternalCustomerID)
		if err != nil {
			return err
		}
		if user == nil {
			result = domain.Failed(domain.ErrUserNotFound)
			return nil
		}
		if p.UserID != "" && p.UserID != user.ID.String() {
			s.log.Warn("checkout user metadata disagrees with customer owner",
				zap.String("checkout_id", p.CheckoutID),
				zap.String("metadata_user_id", p.UserID),
				zap.String("user_id", user.ID.String()),
			)
		}

		// A purchase of a course we do not sell would break the
		// purchases foreign key; report it as a consistency fault.
		course, err := s.courseRepo.FindByID(ctx, tx, courseID)
		if err != nil {
			return err
		}
		if course == nil {
			result = domain.Failed(domain.ErrCourseNotFound)
			return nil
		}

		purchase := &purchasedomain.Purchase{
			ID:                 s.genID.Generate(),
			UserID:             user.ID,
			CourseID:           courseID,
			Amount:             p.Amount,
			Currency:           strings.ToLower(p.Currency),
			ExternalCheckoutID: p.CheckoutID,
			PurchasedAt:        event.OccurredAt.UTC(),
			CreatedAt:          s.clock.Now(),
		}
		inserted, err := s.purchaseRepo.InsertIfAbsent(ctx, tx, purchase)
		if err != nil {
			return err
		}
		if !inserted {
			result = domain.Ignored(domain.ReasonDuplicateCheckout)
			return nil
		}
		result = domain.Applied()
		return nil
	})
	if err != nil {
		return domain.Failed(err)
	}
	return result
}

func (s *Service) applySubscriptionChanged(ctx context.Context, event paymentdomain.VerifiedEvent, p paymentdomain.SubscriptionChanged) domain.Result {
	if p.ExternalSubscriptionID == "" || p.ExternalCustomerID == "" {
		return domain.Failed(domain.ErrMissingMetadata)
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		result, err := s.upsertSubscription(ctx, event, p)
		if errors.Is(err, errCASConflict) {
			s.log.Debug("subscription upsert lost race, retrying",
				zap.String("external_subscription_id", p.ExternalSubscriptionID),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return domain.Failed(err)
		}
		return result
	}
	return domain.Failed(domain.ErrConcurrentUpdate)
}

// upsertSubscription runs one compare-and-swap attempt. The subscription row
// and the owner's current reference change in the same transaction.
func (s *Service) upsertSubscription(ctx context.Context, event paymentdomain.VerifiedEvent, p paymentdomain.SubscriptionChanged) (domain.Result, error) {
	var result domain.Result
	eventTS := event.OccurredAt.UnixNano()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.FindByExternalCustomerID(ctx, tx, p.ExternalCustomerID)
		if err != nil {
			return err
		}
		if user == nil {
			result = domain.Failed(domain.ErrUserNotFound)
			return nil
		}

		existing, err := s.subscriptionRepo.FindByExternalID(ctx, tx, p.ExternalSubscriptionID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		var (
			sub      *subscriptiondomain.Subscription
			expected *int64
		)
		if existing == nil {
			sub = &subscriptiondomain.Subscription{
				ID:                     s.genID.Generate(),
				UserID:                 user.ID,
				ExternalSubscriptionID: p.ExternalSubscriptionID,
				CreatedAt:              now,
			}
		} else {
			if existing.UserID != user.ID {
				result = domain.Failed(domain.ErrSubscriptionOwnerMismatch)
				return nil
			}
			// Processor timestamps are whole seconds, so a created event
			// that ties with a stored update is the older of the two.
			if eventTS < existing.LastEventTS || (p.Created && eventTS == existing.LastEventTS) {
				result = domain.Ignored(domain.ReasonStaleEvent)
				return nil
			}
			copied := *existing
			sub = &copied
			lastTS := existing.LastEventTS
			expected = &lastTS
		}

		sub.Status = p.Status
		sub.PlanInterval = p.PlanInterval
		sub.CurrentPeriodStart = p.PeriodStart
		sub.CurrentPeriodEnd = p.PeriodEnd
		sub.CancelAtPeriodEnd = p.CancelAtPeriodEnd
		sub.LastEventTS = eventTS
		sub.UpdatedAt = now

		upserted, err := s.subscriptionRepo.Upsert(ctx, tx, sub, expected)
		if err != nil {
			return err
		}
		if upserted == subscriptiondomain.UpsertConflict {
			return errCASConflict
		}

		if err := s.userRepo.SetCurrentSubscription(ctx, tx, user.ID, sub.ID, now); err != nil {
			return err
		}
		result = domain.Applied()
		return nil
	})
	if err != nil {
		return domain.Result{}, err
	}
	return result, nil
}

func (s *Service) applySubscriptionDeleted(ctx context.Context, p paymentdomain.SubscriptionDeleted) domain.Result {
	if p.ExternalSubscriptionID == "" {
		return domain.Failed(domain.ErrMissingMetadata)
	}

	var result domain.Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.subscriptionRepo.FindByExternalID(ctx, tx, p.ExternalSubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			result = domain.Failed(domain.ErrSubscriptionNotFound)
			return nil
		}
		user, err := s.userRepo.FindByID(ctx, tx, sub.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			result = domain.Failed(domain.ErrUserNotFound)
			return nil
		}

		// The reference is cleared first so no reader sees it dangle.
		if _, err := s.userRepo.ClearCurrentSubscription(ctx, tx, user.ID, sub.ID, s.clock.Now()); err != nil {
			return err
		}
		if err := s.subscriptionRepo.Delete(ctx, tx, sub.ID); err != nil {
			return err
		}
		result = domain.Applied()
		return nil
	})
	if err != nil {
		return domain.Failed(err)
	}
	return result
}
