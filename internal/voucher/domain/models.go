package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Voucher is a redeemable discount code.
type Voucher struct {
	ID                 snowflake.ID   `json:"id" gorm:"primaryKey"`
	Code               string         `json:"code" gorm:"type:varchar(20);not null;uniqueIndex:ux_vouchers_code"`
	Description        *string        `json:"description,omitempty" gorm:"type:text"`
	DiscountPercentage int64          `json:"discount_percentage" gorm:"not null;default:0"`
	ExpirationDate     *time.Time     `json:"expiration_date,omitempty"`
	RedemptionType     RedemptionType `json:"redemption_type" gorm:"type:varchar(20);not null;default:single"`
	RedemptionLimit    *int64         `json:"redemption_limit,omitempty"`
	RedemptionCount    int64          `json:"redemption_count" gorm:"not null;default:0"`
	IsActive           bool           `json:"is_active" gorm:"not null;default:true"`
	CreatedAt          time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time      `json:"updated_at" gorm:"not null"`
}

func (Voucher) TableName() string { return "vouchers" }

// VoucherCursor positions a newest-first listing.
type VoucherCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	IsActive   *bool
	CodePrefix string
	Cursor     *VoucherCursor
	Limit      int
}
