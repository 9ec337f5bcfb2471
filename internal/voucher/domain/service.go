package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/voucherportal/pkg/db/pagination"
	"gorm.io/gorm"
)

const MaxCodeLength = 20

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	GetByCode(ctx context.Context, code string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	// UpdateTx is Update joined to the caller's transaction.
	UpdateTx(ctx context.Context, tx *gorm.DB, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error

	// FindVoucher and FindVoucherByCode return nil, nil when nothing matches.
	FindVoucher(ctx context.Context, id snowflake.ID) (*Voucher, error)
	FindVoucherByCode(ctx context.Context, code string) (*Voucher, error)
}

type CreateRequest struct {
	Code               string         `json:"code"`
	Description        *string        `json:"description,omitempty"`
	DiscountPercentage int64          `json:"discount_percentage"`
	ExpirationDate     *time.Time     `json:"expiration_date,omitempty"`
	RedemptionType     RedemptionType `json:"redemption_type"`
	XTimesLimit        *int64         `json:"x_times_limit,omitempty"`
}

// UpdateRequest applies only the non-nil fields.
type UpdateRequest struct {
	ID                 string          `json:"id"`
	Code               *string         `json:"code,omitempty"`
	Description        *string         `json:"description,omitempty"`
	DiscountPercentage *int64          `json:"discount_percentage,omitempty"`
	ExpirationDate     *time.Time      `json:"expiration_date,omitempty"`
	RedemptionType     *RedemptionType `json:"redemption_type,omitempty"`
	XTimesLimit        *int64          `json:"x_times_limit,omitempty"`
	IsActive           *bool           `json:"is_active,omitempty"`
	RedemptionCount    *int64          `json:"redemption_count,omitempty"`
}

type ListRequest struct {
	pagination.Pagination
	IsActive   *bool
	CodePrefix string
}

type ListResponse struct {
	pagination.PageInfo
	Vouchers []Response `json:"vouchers"`
}

type Response struct {
	ID                  string     `json:"id"`
	Code                string     `json:"code"`
	Description         *string    `json:"description,omitempty"`
	DiscountPercentage  int64      `json:"discount_percentage"`
	ExpirationDate      *time.Time `json:"expiration_date,omitempty"`
	RedemptionType      string     `json:"redemption_type"`
	RedemptionTypeLabel string     `json:"redemption_type_label"`
	RedemptionLimit     *int64     `json:"redemption_limit,omitempty"`
	RedemptionCount     int64      `json:"redemption_count"`
	IsActive            bool       `json:"is_active"`
	Redeemable          bool       `json:"redeemable"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

var (
	ErrInvalidCode            = errors.New("invalid_code")
	ErrInvalidDiscount        = errors.New("invalid_discount_percentage")
	ErrInvalidRedemptionType  = errors.New("invalid_redemption_type")
	ErrLimitBelowCount        = errors.New("redemption_limit_below_count")
	ErrInvalidRedemptionCount = errors.New("invalid_redemption_count")
	ErrInvalidID              = errors.New("invalid_id")
	ErrInvalidPageToken       = errors.New("invalid_page_token")
	ErrCodeConflict           = errors.New("code_conflict")
	ErrNotFound               = errors.New("not_found")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
