package payment

import (
	"github.com/smallbiznis/coursepass/internal/payment/adapters"
	"github.com/smallbiznis/coursepass/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/coursepass/internal/payment/domain"
	"github.com/smallbiznis/coursepass/internal/payment/repository"
	"github.com/smallbiznis/coursepass/internal/payment/webhook"
	"github.com/smallbiznis/coursepass/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewFactory(),
		)
	}),
	fx.Provide(func(lock *ratelimit.EventLock) paymentdomain.EventLocker {
		return lock
	}),
	fx.Provide(webhook.NewService),
)
