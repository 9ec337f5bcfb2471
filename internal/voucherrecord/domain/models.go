package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// VoucherRecord attaches an API-facing description to exactly one voucher.
type VoucherRecord struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	VoucherID   snowflake.ID `json:"voucher_id" gorm:"not null;uniqueIndex:ux_voucher_records_voucher"`
	Description string       `json:"description" gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (VoucherRecord) TableName() string { return "voucher_records" }

type RecordCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Cursor *RecordCursor
	Limit  int
}
