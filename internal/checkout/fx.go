package checkout

import (
	"github.com/smallbiznis/coursepass/internal/checkout/domain"
	"github.com/smallbiznis/coursepass/internal/checkout/gateway"
	"github.com/smallbiznis/coursepass/internal/checkout/service"
	"github.com/smallbiznis/coursepass/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout.service",
	fx.Provide(gateway.NewStripe),
	fx.Provide(func(l *ratelimit.CheckoutLimiter) domain.Limiter {
		return l
	}),
	fx.Provide(service.NewService),
)
