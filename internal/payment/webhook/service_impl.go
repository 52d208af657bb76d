package webhook

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepass/internal/clock"
	"github.com/smallbiznis/coursepass/internal/config"
	obscontext "github.com/smallbiznis/coursepass/internal/observability/context"
	"github.com/smallbiznis/coursepass/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/coursepass/internal/observability/metrics"
	"github.com/smallbiznis/coursepass/internal/observability/tracing"
	"github.com/smallbiznis/coursepass/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/coursepass/internal/payment/domain"
	reconcilerdomain "github.com/smallbiznis/coursepass/internal/reconciler/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var errJournalMissing = errors.New("billing_event_journal_missing")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	GenID      *snowflake.Node
	Clock      clock.Clock
	Adapters   *adapters.Registry
	Repo       paymentdomain.Repository
	Reconciler reconcilerdomain.Service
	Locker     paymentdomain.EventLocker `optional:"true"`
	ObsMetrics *obsmetrics.Metrics       `optional:"true"`
}

// Service is the webhook boundary: verify, journal, reconcile.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       paymentdomain.Repository
	reconciler reconcilerdomain.Service
	locker     paymentdomain.EventLocker
	obsMetrics *obsmetrics.Metrics
	verifiers  map[string]paymentdomain.Verifier
}

func NewService(p Params) *Service {
	log := p.Log.Named("payment.webhook")
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}

	verifiers := map[string]paymentdomain.Verifier{}
	stripeVerifier, err := p.Adapters.NewVerifier("stripe", paymentdomain.AdapterConfig{
		WebhookSecret: p.Cfg.Stripe.WebhookSecret,
		Tolerance:     p.Cfg.Stripe.WebhookTolerance,
	})
	if err != nil {
		log.Warn("stripe webhooks disabled", zap.Error(err))
	} else {
		verifiers["stripe"] = stripeVerifier
	}

	return &Service{
		db:         p.DB,
		log:        log,
		genID:      p.GenID,
		clock:      clk,
		repo:       p.Repo,
		reconciler: p.Reconciler,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
		verifiers:  verifiers,
	}
}

// IngestWebhook verifies payload and applies it. The returned error is set
// only when no reconciliation result exists: bad signatures, unknown
// providers, held locks and journal failures.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (reconcilerdomain.Result, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return reconcilerdomain.Result{}, paymentdomain.ErrInvalidProvider
	}
	verifier, ok := s.verifiers[provider]
	if !ok {
		return reconcilerdomain.Result{}, paymentdomain.ErrProviderNotFound
	}

	event, err := verifier.Verify(ctx, payload, headers)
	if err != nil {
		return reconcilerdomain.Result{}, err
	}

	// Once verified, the event runs to a terminal result even if the
	// processor hangs up.
	ctx = context.WithoutCancel(ctx)
	ctx, _ = obscontext.EnsureCorrelationID(ctx)
	ctx = obscontext.WithActor(ctx, obscontext.ActorProvider, provider)

	ctx, span := otel.Tracer("coursepass/webhook").Start(ctx, "webhook.ingest")
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("provider", provider),
		attribute.String("event_id", event.ID),
		attribute.String("event_type", event.Type),
	)...)

	log := logger.WithEvent(logger.WithContext(ctx, s.log), provider, event.ID, event.Type)

	if s.locker != nil {
		release, acquired, err := s.locker.Acquire(ctx, provider, event.ID)
		if err != nil {
			return reconcilerdomain.Result{}, err
		}
		if !acquired {
			s.obsMetrics.RecordLockContention(ctx, provider)
			log.Info("billing event already in flight")
			return reconcilerdomain.Result{}, paymentdomain.ErrEventInFlight
		}
		defer release()
	}

	now := s.clock.Now()
	record := &paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(payload),
		Result:          paymentdomain.ResultPending,
		ReceivedAt:      now,
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		return s.journalFailure(span, log, err)
	}
	if !inserted {
		record, err = s.repo.FindEvent(ctx, s.db, provider, event.ID)
		if err != nil {
			return s.journalFailure(span, log, err)
		}
		if record == nil {
			return s.journalFailure(span, log, errJournalMissing)
		}
		if record.Done() {
			result := reconcilerdomain.Ignored(reconcilerdomain.ReasonDuplicateEvent)
			s.obsMetrics.RecordBillingEvent(ctx, provider, string(event.Kind()), string(result.Outcome))
			log.Info("billing event already processed", zap.String("previous_result", record.Result))
			return result, nil
		}
	}

	result := s.reconciler.Apply(ctx, *event)

	var (
		processedAt *time.Time
		errMsg      string
	)
	if result.IsFailed() {
		errMsg = result.Err.Error()
		span.SetStatus(codes.Error, result.Reason)
		span.RecordError(tracing.SafeError(result.Err))
	} else {
		done := s.clock.Now()
		processedAt = &done
	}
	if err := s.repo.MarkResult(ctx, s.db, record.ID, string(result.Outcome), result.Reason, errMsg, processedAt); err != nil {
		return s.journalFailure(span, log, err)
	}

	s.obsMetrics.RecordBillingEvent(ctx, provider, string(event.Kind()), string(result.Outcome))
	log.Info("billing event handled",
		zap.String("event_kind", string(event.Kind())),
		zap.String("result", result.String()),
	)
	return result, nil
}

func (s *Service) journalFailure(span trace.Span, log *zap.Logger, err error) (reconcilerdomain.Result, error) {
	span.SetStatus(codes.Error, "journal")
	span.RecordError(tracing.SafeError(err))
	log.Error("billing event journal failed", zap.Error(err))
	return reconcilerdomain.Result{}, err
}
