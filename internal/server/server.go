package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/coursepass/internal/auth"
	authdomain "github.com/smallbiznis/coursepass/internal/auth/domain"
	"github.com/smallbiznis/coursepass/internal/checkout"
	checkoutdomain "github.com/smallbiznis/coursepass/internal/checkout/domain"
	"github.com/smallbiznis/coursepass/internal/config"
	"github.com/smallbiznis/coursepass/internal/course"
	coursedomain "github.com/smallbiznis/coursepass/internal/course/domain"
	"github.com/smallbiznis/coursepass/internal/entitlement"
	entitlementdomain "github.com/smallbiznis/coursepass/internal/entitlement/domain"
	"github.com/smallbiznis/coursepass/internal/observability"
	obsmiddleware "github.com/smallbiznis/coursepass/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/coursepass/internal/observability/metrics"
	obstracing "github.com/smallbiznis/coursepass/internal/observability/tracing"
	"github.com/smallbiznis/coursepass/internal/payment"
	paymentwebhook "github.com/smallbiznis/coursepass/internal/payment/webhook"
	"github.com/smallbiznis/coursepass/internal/purchase"
	purchasedomain "github.com/smallbiznis/coursepass/internal/purchase/domain"
	"github.com/smallbiznis/coursepass/internal/ratelimit"
	"github.com/smallbiznis/coursepass/internal/reconciler"
	reconcilerdomain "github.com/smallbiznis/coursepass/internal/reconciler/domain"
	"github.com/smallbiznis/coursepass/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/coursepass/internal/subscription/domain"
	"github.com/smallbiznis/coursepass/internal/user"
	userdomain "github.com/smallbiznis/coursepass/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	ratelimit.Module,
	user.Module,
	course.Module,
	purchase.Module,
	subscription.Module,
	reconciler.Module,
	payment.Module,
	entitlement.Module,
	checkout.Module,
	auth.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// WebhookService is the slice of the webhook boundary the handlers need.
type WebhookService interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (reconcilerdomain.Result, error)
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	authsvc         authdomain.Service
	userRepo        userdomain.Repository
	purchaseRepo    purchasedomain.Repository
	courseSvc       coursedomain.Service
	subscriptionSvc subscriptiondomain.Service
	entitlementSvc  entitlementdomain.Service
	checkoutSvc     checkoutdomain.Service
	webhookSvc      WebhookService
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	Authsvc         authdomain.Service
	UserRepo        userdomain.Repository
	PurchaseRepo    purchasedomain.Repository
	CourseSvc       coursedomain.Service
	SubscriptionSvc subscriptiondomain.Service
	EntitlementSvc  entitlementdomain.Service
	CheckoutSvc     checkoutdomain.Service
	WebhookSvc      *paymentwebhook.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("http.server"),
		authsvc:         p.Authsvc,
		userRepo:        p.UserRepo,
		purchaseRepo:    p.PurchaseRepo,
		courseSvc:       p.CourseSvc,
		subscriptionSvc: p.SubscriptionSvc,
		entitlementSvc:  p.EntitlementSvc,
		checkoutSvc:     p.CheckoutSvc,
		webhookSvc:      p.WebhookSvc,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/api/auth")

	auth.POST("/register", s.Register)
	auth.POST("/login", s.Login)
	auth.DELETE("/logout", s.AuthRequired(), s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
	auth.GET("/me/purchases", s.AuthRequired(), s.ListMyPurchases)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Catalog --------
	api.GET("/courses", s.ListCourses)
	api.GET("/courses/:id", s.GetCourse)

	// -------- Access --------
	api.GET("/users/:id/access", s.GetUserAccess)
	api.GET("/subscriptions/current", s.AuthRequired(), s.GetCurrentSubscription)

	// -------- Checkout --------
	stripe := api.Group("/stripe", s.AuthRequired())
	{
		stripe.POST("/create-checkout-session/:courseId", s.CreateCourseCheckout)
		stripe.POST("/create-pro-plan-checkout-session/:planId", s.CreatePlanCheckout)
		stripe.POST("/create-billing-portal", s.CreateBillingPortal)
	}
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/api/webhooks/:provider", s.HandlePaymentWebhook)
}
