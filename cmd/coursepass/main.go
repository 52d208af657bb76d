package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepass/internal/clock"
	"github.com/smallbiznis/coursepass/internal/config"
	"github.com/smallbiznis/coursepass/internal/migration"
	"github.com/smallbiznis/coursepass/internal/observability"
	"github.com/smallbiznis/coursepass/internal/server"
	"github.com/smallbiznis/coursepass/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Schema before traffic
		migration.Module,

		// Domains and HTTP
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
