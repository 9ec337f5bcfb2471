package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/voucherportal/internal/audit/domain"
	"github.com/smallbiznis/voucherportal/internal/clock"
	obslogger "github.com/smallbiznis/voucherportal/internal/observability/logger"
	"github.com/smallbiznis/voucherportal/internal/observability/metrics"
	voucherdomain "github.com/smallbiznis/voucherportal/internal/voucher/domain"
	"github.com/smallbiznis/voucherportal/pkg/db"
	"github.com/smallbiznis/voucherportal/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const targetTypeVoucher = "voucher"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    voucherdomain.Repository
	Audit   auditdomain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    voucherdomain.Repository
	audit   auditdomain.Service
	metrics *metrics.Metrics
}

func New(p Params) voucherdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("voucher.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req voucherdomain.CreateRequest) (*voucherdomain.Response, error) {
	code, err := normalizeCode(req.Code)
	if err != nil {
		return nil, err
	}
	if req.DiscountPercentage < 0 {
		return nil, voucherdomain.ErrInvalidDiscount
	}
	if !req.RedemptionType.Valid() {
		return nil, voucherdomain.ErrInvalidRedemptionType
	}

	now := s.clock.Now()
	v := &voucherdomain.Voucher{
		ID:                 s.genID.Generate(),
		Code:               code,
		Description:        trimOptional(req.Description),
		DiscountPercentage: req.DiscountPercentage,
		ExpirationDate:     utcOptional(req.ExpirationDate),
		RedemptionType:     req.RedemptionType,
		RedemptionLimit:    voucherdomain.ComputeRedemptionLimit(req.RedemptionType, req.XTimesLimit),
		RedemptionCount:    0,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if existing != nil {
			return voucherdomain.ErrCodeConflict
		}
		if err := s.repo.Insert(ctx, tx, v); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return voucherdomain.ErrCodeConflict
			}
			return err
		}
		return s.audit.AuditLogTx(ctx, tx, auditdomain.Entry{
			Action:     "voucher.create",
			TargetType: targetTypeVoucher,
			TargetID:   v.ID.String(),
			Metadata: map[string]any{
				"code":             v.Code,
				"redemption_type":  string(v.RedemptionType),
				"redemption_limit": limitValue(v.RedemptionLimit),
			},
		})
	})
	s.metrics.RecordVoucherMutation(ctx, "create", err)
	if err != nil {
		if !isDomainError(err) {
			s.log.Error("create voucher failed", zap.String("code", code), zap.Error(err))
			return nil, fmt.Errorf("create voucher: %w", err)
		}
		return nil, err
	}

	return toResponse(v), nil
}

func (s *Service) List(ctx context.Context, req voucherdomain.ListRequest) (voucherdomain.ListResponse, error) {
	var cursor *voucherdomain.VoucherCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return voucherdomain.ListResponse{}, voucherdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return voucherdomain.ListResponse{}, voucherdomain.ErrInvalidPageToken
		}
		id, err := voucherdomain.ParseID(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return voucherdomain.ListResponse{}, voucherdomain.ErrInvalidPageToken
		}
		cursor = &voucherdomain.VoucherCursor{ID: id, CreatedAt: createdAt}
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, voucherdomain.ListFilter{
		IsActive:   req.IsActive,
		CodePrefix: req.CodePrefix,
		Cursor:     cursor,
		Limit:      limit,
	})
	if err != nil {
		return voucherdomain.ListResponse{}, err
	}

	items, hasMore := pagination.Trim(items, limit)
	resp := voucherdomain.ListResponse{Vouchers: make([]voucherdomain.Response, 0, len(items))}
	for i := range items {
		resp.Vouchers = append(resp.Vouchers, *toResponse(&items[i]))
	}

	resp.HasMore = hasMore
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        last.ID.String(),
			CreatedAt: last.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err == nil {
			resp.NextPageToken = token
		}
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req voucherdomain.UpdateRequest) (*voucherdomain.Response, error) {
	var updated *voucherdomain.Response
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = s.UpdateTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateTx applies req inside tx. The caller owns commit and rollback.
func (s *Service) UpdateTx(ctx context.Context, tx *gorm.DB, req voucherdomain.UpdateRequest) (*voucherdomain.Response, error) {
	voucherID, err := voucherdomain.ParseID(strings.TrimSpace(req.ID))
	if err != nil || voucherID == 0 {
		return nil, voucherdomain.ErrInvalidID
	}

	item, err := s.updateLocked(ctx, tx, voucherID, req)
	s.metrics.RecordVoucherMutation(ctx, "update", err)
	if err != nil {
		if !isDomainError(err) {
			obslogger.WithContext(ctx, s.log).Error("update voucher failed", obslogger.VoucherID(voucherID), zap.Error(err))
			return nil, fmt.Errorf("update voucher: %w", err)
		}
		return nil, err
	}
	return toResponse(item), nil
}

func (s *Service) updateLocked(ctx context.Context, tx *gorm.DB, voucherID snowflake.ID, req voucherdomain.UpdateRequest) (*voucherdomain.Voucher, error) {
	item, err := s.repo.FindByIDForUpdate(ctx, tx, voucherID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, voucherdomain.ErrNotFound
	}
	previous := *item

	if err := s.applyUpdate(ctx, tx, item, req); err != nil {
		return nil, err
	}

	item.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, tx, item); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, voucherdomain.ErrCodeConflict
		}
		return nil, err
	}

	if err := s.audit.AuditLogTx(ctx, tx, auditdomain.Entry{
		Action:     "voucher.update",
		TargetType: targetTypeVoucher,
		TargetID:   item.ID.String(),
		Metadata:   changedFields(req),
	}); err != nil {
		return nil, err
	}

	if req.RedemptionCount != nil {
		if err := s.audit.AuditLogTx(ctx, tx, auditdomain.Entry{
			Action:     "voucher.redemption_count.override",
			TargetType: targetTypeVoucher,
			TargetID:   item.ID.String(),
			Metadata: map[string]any{
				"previous": previous.RedemptionCount,
				"new":      item.RedemptionCount,
			},
		}); err != nil {
			return nil, err
		}
	}
	return item, nil
}

func (s *Service) applyUpdate(ctx context.Context, tx *gorm.DB, item *voucherdomain.Voucher, req voucherdomain.UpdateRequest) error {
	if req.Code != nil {
		code, err := normalizeCode(*req.Code)
		if err != nil {
			return err
		}
		if !strings.EqualFold(code, item.Code) {
			existing, err := s.repo.FindByCode(ctx, tx, code)
			if err != nil {
				return err
			}
			if existing != nil && existing.ID != item.ID {
				return voucherdomain.ErrCodeConflict
			}
		}
		item.Code = code
	}

	if req.Description != nil {
		item.Description = trimOptional(req.Description)
	}

	if req.DiscountPercentage != nil {
		if *req.DiscountPercentage < 0 {
			return voucherdomain.ErrInvalidDiscount
		}
		item.DiscountPercentage = *req.DiscountPercentage
	}

	if req.ExpirationDate != nil {
		item.ExpirationDate = utcOptional(req.ExpirationDate)
	}

	// An x_times voucher keeps its stored limit unless a new one is supplied.
	xTimesLimit := req.XTimesLimit
	if xTimesLimit == nil && item.RedemptionType == voucherdomain.RedemptionTypeXTimes {
		xTimesLimit = item.RedemptionLimit
	}

	if req.RedemptionType != nil {
		if !req.RedemptionType.Valid() {
			return voucherdomain.ErrInvalidRedemptionType
		}
		item.RedemptionType = *req.RedemptionType
	}
	item.RedemptionLimit = voucherdomain.ComputeRedemptionLimit(item.RedemptionType, xTimesLimit)

	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}

	if req.RedemptionCount != nil {
		count := *req.RedemptionCount
		if count < 0 || (item.RedemptionLimit != nil && count > *item.RedemptionLimit) {
			return voucherdomain.ErrInvalidRedemptionCount
		}
		item.RedemptionCount = count
	}

	if item.RedemptionLimit != nil && item.RedemptionCount > *item.RedemptionLimit {
		return voucherdomain.ErrLimitBelowCount
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	voucherID, err := voucherdomain.ParseID(strings.TrimSpace(id))
	if err != nil || voucherID == 0 {
		return voucherdomain.ErrInvalidID
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByIDForUpdate(ctx, tx, voucherID)
		if err != nil {
			return err
		}
		if item == nil {
			return voucherdomain.ErrNotFound
		}
		if err := s.repo.DeleteDependents(ctx, tx, voucherID); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, voucherID); err != nil {
			return err
		}
		return s.audit.AuditLogTx(ctx, tx, auditdomain.Entry{
			Action:     "voucher.delete",
			TargetType: targetTypeVoucher,
			TargetID:   voucherID.String(),
			Metadata: map[string]any{
				"code":             item.Code,
				"redemption_count": item.RedemptionCount,
			},
		})
	})
	s.metrics.RecordVoucherMutation(ctx, "delete", err)
	if err != nil {
		if !isDomainError(err) {
			obslogger.WithContext(ctx, s.log).Error("delete voucher failed", obslogger.VoucherID(voucherID), zap.Error(err))
			return fmt.Errorf("delete voucher: %w", err)
		}
		return err
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*voucherdomain.Response, error) {
	voucherID, err := voucherdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, voucherdomain.ErrInvalidID
	}

	item, err := s.FindVoucher(ctx, voucherID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, voucherdomain.ErrNotFound
	}
	return toResponse(item), nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*voucherdomain.Response, error) {
	item, err := s.FindVoucherByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, voucherdomain.ErrNotFound
	}
	return toResponse(item), nil
}

func (s *Service) FindVoucher(ctx context.Context, id snowflake.ID) (*voucherdomain.Voucher, error) {
	if id == 0 {
		return nil, nil
	}
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *Service) FindVoucherByCode(ctx context.Context, code string) (*voucherdomain.Voucher, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	return s.repo.FindByCode(ctx, s.db, code)
}

func normalizeCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if code == "" || len([]rune(code)) > voucherdomain.MaxCodeLength {
		return "", voucherdomain.ErrInvalidCode
	}
	return code, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func utcOptional(value *time.Time) *time.Time {
	if value == nil || value.IsZero() {
		return nil
	}
	t := value.UTC()
	return &t
}

func limitValue(limit *int64) any {
	if limit == nil {
		return nil
	}
	return *limit
}

func changedFields(req voucherdomain.UpdateRequest) map[string]any {
	fields := make([]string, 0, 8)
	add := func(name string, present bool) {
		if present {
			fields = append(fields, name)
		}
	}
	add("code", req.Code != nil)
	add("description", req.Description != nil)
	add("discount_percentage", req.DiscountPercentage != nil)
	add("expiration_date", req.ExpirationDate != nil)
	add("redemption_type", req.RedemptionType != nil)
	add("x_times_limit", req.XTimesLimit != nil)
	add("is_active", req.IsActive != nil)
	add("redemption_count", req.RedemptionCount != nil)
	return map[string]any{"fields": fields}
}

func isDomainError(err error) bool {
	switch {
	case errors.Is(err, voucherdomain.ErrInvalidCode),
		errors.Is(err, voucherdomain.ErrInvalidDiscount),
		errors.Is(err, voucherdomain.ErrInvalidRedemptionType),
		errors.Is(err, voucherdomain.ErrInvalidRedemptionCount),
		errors.Is(err, voucherdomain.ErrLimitBelowCount),
		errors.Is(err, voucherdomain.ErrInvalidID),
		errors.Is(err, voucherdomain.ErrCodeConflict),
		errors.Is(err, voucherdomain.ErrNotFound):
		return true
	default:
		return false
	}
}

func toResponse(v *voucherdomain.Voucher) *voucherdomain.Response {
	return &voucherdomain.Response{
		ID:                  v.ID.String(),
		Code:                v.Code,
		Description:         v.Description,
		DiscountPercentage:  v.DiscountPercentage,
		ExpirationDate:      v.ExpirationDate,
		RedemptionType:      string(v.RedemptionType),
		RedemptionTypeLabel: v.RedemptionType.Label(),
		RedemptionLimit:     v.RedemptionLimit,
		RedemptionCount:     v.RedemptionCount,
		IsActive:            v.IsActive,
		Redeemable:          voucherdomain.IsRedeemable(*v),
		CreatedAt:           v.CreatedAt,
		UpdatedAt:           v.UpdatedAt,
	}
}
