package auth

import (
	"github.com/smallbiznis/coursepass/internal/auth/service"
	"github.com/smallbiznis/coursepass/internal/auth/token"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(token.NewManager),
	fx.Provide(service.NewService),
)
