package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, v *Voucher) error
	Update(ctx context.Context, db *gorm.DB, v *Voucher) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Voucher, error)
	// FindByIDForUpdate locks the row for the rest of the transaction.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Voucher, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Voucher, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Voucher, error)
	// IncrementRedemptionCount bumps the counter only while the voucher is
	// active and below its limit. It reports whether a row was updated.
	IncrementRedemptionCount(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	// DeleteDependents removes the voucher's record and redemptions.
	DeleteDependents(ctx context.Context, db *gorm.DB, voucherID snowflake.ID) error
}
