package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/voucherportal/internal/auth/domain"
	"github.com/smallbiznis/voucherportal/internal/auth/password"
	"github.com/smallbiznis/voucherportal/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EnsureBootstrapAdmin creates the configured superuser once. It does nothing
// when the bootstrap settings are incomplete or the account already exists.
func EnsureBootstrapAdmin(ctx context.Context, db *gorm.DB, cfg config.BootstrapConfig, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	log = log.Named("seed")

	username := strings.TrimSpace(cfg.AdminUsername)
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if username == "" || email == "" || cfg.AdminPassword == "" {
		log.Debug("bootstrap admin not configured")
		return nil
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&authdomain.User{}).
			Where("username = ? OR email = ?", username, email).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			log.Info("bootstrap admin already present", zap.String("username", username))
			return nil
		}

		hashed, err := password.Hash(cfg.AdminPassword)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		user := authdomain.User{
			ID:           node.Generate(),
			Username:     username,
			Email:        email,
			PasswordHash: &hashed,
			IsStaff:      true,
			IsSuperuser:  true,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		log.Info("bootstrap admin created", zap.String("username", username))
		return nil
	})
}
