package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// VoucherRedemption is written once per successful redeem and never updated.
type VoucherRedemption struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID     snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex:ux_voucher_redemptions_user_voucher,priority:1"`
	VoucherID  snowflake.ID `json:"voucher_id" gorm:"not null;index;uniqueIndex:ux_voucher_redemptions_user_voucher,priority:2"`
	RedeemedAt time.Time    `json:"redeemed_at" gorm:"not null"`
}

func (VoucherRedemption) TableName() string { return "voucher_redemptions" }

// RedemptionView is a redemption joined with the voucher it consumed.
type RedemptionView struct {
	ID                 string    `json:"id"`
	VoucherID          string    `json:"voucher_id"`
	Code               string    `json:"code"`
	Description        *string   `json:"description,omitempty"`
	DiscountPercentage int64     `json:"discount_percentage"`
	RedeemedAt         time.Time `json:"redeemed_at"`
}

type RedemptionRow struct {
	ID                 snowflake.ID
	VoucherID          snowflake.ID
	Code               string
	Description        *string
	DiscountPercentage int64
	RedeemedAt         time.Time
}
