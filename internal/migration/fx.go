package migration

import (
	"context"

	"github.com/smallbiznis/voucherportal/internal/config"
	"github.com/smallbiznis/voucherportal/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Apply(conn, cfg.DBType); err != nil {
			return err
		}
		return seed.EnsureBootstrapAdmin(context.Background(), conn, cfg.Bootstrap, log)
	}),
)
