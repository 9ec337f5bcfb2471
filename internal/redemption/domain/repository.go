package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, r *VoucherRedemption) error
	Exists(ctx context.Context, db *gorm.DB, userID, voucherID snowflake.ID) (bool, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]RedemptionRow, error)
}
