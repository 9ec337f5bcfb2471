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
	voucherdomain "github.com/smallbiznis/voucherportal/internal/voucher/domain"
	recorddomain "github.com/smallbiznis/voucherportal/internal/voucherrecord/domain"
	"github.com/smallbiznis/voucherportal/pkg/db"
	"github.com/smallbiznis/voucherportal/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const targetTypeRecord = "voucher_record"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     recorddomain.Repository
	Vouchers voucherdomain.Service
	Audit    auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     recorddomain.Repository
	vouchers voucherdomain.Service
	audit    auditdomain.Service
}

func New(p Params) recorddomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("voucherrecord.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		vouchers: p.Vouchers,
		audit:    p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req recorddomain.CreateRequest) (*recorddomain.Response, error) {
	voucherID, err := voucherdomain.ParseID(strings.TrimSpace(req.VoucherID))
	if err != nil || voucherID == 0 {
		return nil, recorddomain.ErrInvalidVoucherID
	}

	voucher, err := s.vouchers.FindVoucher(ctx, voucherID)
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	if voucher == nil {
		return nil, recorddomain.ErrVoucherNotFound
	}

	now := s.clock.Now()
	record := &recorddomain.VoucherRecord{
		ID:          s.genID.Generate(),
		VoucherID:   voucherID,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByVoucherID(ctx, tx, voucherID)
		if err != nil {
			return err
		}
		if existing != nil {
			return recorddomain.ErrRecordExists
		}
		if err := s.repo.Insert(ctx, tx, record); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return recorddomain.ErrRecordExists
			}
			return err
		}
		return s.audit.AuditLogTx(ctx, tx, auditdomain.Entry{
			Action:     "voucher_record.create",
			TargetType: targetTypeRecord,
			TargetID:   record.ID.String(),
			Metadata:   map[string]any{"voucher_id": voucherID.String()},
		})
	})
	if err != nil {
		if errors.Is(err, recorddomain.ErrRecordExists) {
			return nil, err
		}
		s.log.Error("create record failed", zap.String("voucher_id", voucherID.String()), zap.Error(err))
		return nil, fmt.Errorf("create record: %w", err)
	}

	return s.toResponse(ctx, record)
}

func (s *Service) List(ctx context.Context, req recorddomain.ListRequest) (recorddomain.ListResponse, error) {
	var cursor *recorddomain.RecordCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return recorddomain.ListResponse{}, recorddomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return recorddomain.ListResponse{}, recorddomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return recorddomain.ListResponse{}, recorddomain.ErrInvalidPageToken
		}
		cursor = &recorddomain.RecordCursor{ID: id, CreatedAt: createdAt}
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, recorddomain.ListFilter{Cursor: cursor, Limit: limit})
	if err != nil {
		return recorddomain.ListResponse{}, err
	}

	items, hasMore := pagination.Trim(items, limit)
	resp := recorddomain.ListResponse{Records: make([]recorddomain.Response, 0, len(items))}
	for i := range items {
		item, err := s.toResponse(ctx, &items[i])
		if err != nil {
			return recorddomain.ListResponse{}, err
		}
		resp.Records = append(resp.Records, *item)
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

func (s *Service) Get(ctx context.Context, id string) (*recorddomain.Response, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, record)
}

func (s *Service) Update(ctx context.Context, req recorddomain.UpdateRequest) (*recorddomain.Response, error) {
	record, err := s.find(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if req.Voucher == nil && req.Description == nil {
		return s.toResponse(ctx, record)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Voucher fields go through the voucher service so the limit rules apply.
		if req.Voucher != nil {
			patch := *req.Voucher
			patch.ID = record.VoucherID.String()
			if _, err := s.vouchers.UpdateTx(ctx, tx, patch); err != nil {
				return err
			}
		}

		if req.Description == nil {
			return nil
		}
		record.Description = strings.TrimSpace(*req.Description)
		record.UpdatedAt = s.clock.Now()
		if err := s.writeDescription(ctx, tx, record); err != nil {
			s.log.Error("update record failed", zap.String("record_id", record.ID.String()), zap.Error(err))
			return fmt.Errorf("update record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.toResponse(ctx, record)
}

func (s *Service) writeDescription(ctx context.Context, tx *gorm.DB, record *recorddomain.VoucherRecord) error {
	if err := s.repo.Update(ctx, tx, record); err != nil {
		return err
	}
	return s.audit.AuditLogTx(ctx, tx, auditdomain.Entry{
		Action:     "voucher_record.update",
		TargetType: targetTypeRecord,
		TargetID:   record.ID.String(),
		Metadata:   map[string]any{"fields": []string{"description"}},
	})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	record, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Delete(ctx, tx, record.ID); err != nil {
			return err
		}
		return s.audit.AuditLogTx(ctx, tx, auditdomain.Entry{
			Action:     "voucher_record.delete",
			TargetType: targetTypeRecord,
			TargetID:   record.ID.String(),
			Metadata:   map[string]any{"voucher_id": record.VoucherID.String()},
		})
	})
	if err != nil {
		s.log.Error("delete record failed", zap.String("record_id", record.ID.String()), zap.Error(err))
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (s *Service) find(ctx context.Context, id string) (*recorddomain.VoucherRecord, error) {
	recordID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || recordID == 0 {
		return nil, recorddomain.ErrInvalidID
	}

	record, err := s.repo.FindByID(ctx, s.db, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, recorddomain.ErrNotFound
	}
	return record, nil
}

func (s *Service) toResponse(ctx context.Context, record *recorddomain.VoucherRecord) (*recorddomain.Response, error) {
	voucher, err := s.vouchers.GetByID(ctx, record.VoucherID.String())
	if err != nil && !errors.Is(err, voucherdomain.ErrNotFound) {
		return nil, err
	}

	return &recorddomain.Response{
		ID:          record.ID.String(),
		Description: record.Description,
		Voucher:     voucher,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}, nil
}
