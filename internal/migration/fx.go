package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepass/internal/config"
	"github.com/smallbiznis/coursepass/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
		log = log.Named("migration")

		switch cfg.DBType {
		case "postgres", "postgresql", "":
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		default:
			log.Info("running model auto-migration", zap.String("db_type", cfg.DBType))
			if err := AutoMigrate(conn); err != nil {
				return err
			}
		}

		if cfg.Bootstrap.Seed {
			return seed.EnsureDemoData(conn, node, log)
		}
		return nil
	}),
)
