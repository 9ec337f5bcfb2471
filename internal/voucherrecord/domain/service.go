package domain

import (
	"context"
	"errors"
	"time"

	voucherdomain "github.com/smallbiznis/voucherportal/internal/voucher/domain"
	"github.com/smallbiznis/voucherportal/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
}

type CreateRequest struct {
	VoucherID   string `json:"voucher_id"`
	Description string `json:"description"`
}

// UpdateRequest changes the record description and, when Voucher is set,
// patches the linked voucher through the voucher service.
type UpdateRequest struct {
	ID          string                       `json:"id"`
	Description *string                      `json:"description,omitempty"`
	Voucher     *voucherdomain.UpdateRequest `json:"voucher,omitempty"`
}

type ListRequest struct {
	pagination.Pagination
}

type ListResponse struct {
	pagination.PageInfo
	Records []Response `json:"records"`
}

type Response struct {
	ID          string                  `json:"id"`
	Description string                  `json:"description"`
	Voucher     *voucherdomain.Response `json:"voucher"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidVoucherID = errors.New("invalid_voucher_id")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrVoucherNotFound  = errors.New("voucher_not_found")
	ErrRecordExists     = errors.New("record_exists")
	ErrNotFound         = errors.New("not_found")
)
