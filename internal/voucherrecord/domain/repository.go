package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, r *VoucherRecord) error
	Update(ctx context.Context, db *gorm.DB, r *VoucherRecord) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*VoucherRecord, error)
	FindByVoucherID(ctx context.Context, db *gorm.DB, voucherID snowflake.ID) (*VoucherRecord, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]VoucherRecord, error)
}
