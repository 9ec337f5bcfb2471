package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/voucherportal/internal/clock"
	"github.com/smallbiznis/voucherportal/internal/config"
	obslogger "github.com/smallbiznis/voucherportal/internal/observability/logger"
	"github.com/smallbiznis/voucherportal/internal/observability/metrics"
	redemptiondomain "github.com/smallbiznis/voucherportal/internal/redemption/domain"
	voucherdomain "github.com/smallbiznis/voucherportal/internal/voucher/domain"
	"github.com/smallbiznis/voucherportal/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errDeclined rolls the redeem transaction back without surfacing an error.
var errDeclined = errors.New("redemption_declined")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        redemptiondomain.Repository
	VoucherRepo voucherdomain.Repository
	Vouchers    voucherdomain.Service
	Policy      *config.PolicyHolder
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        redemptiondomain.Repository
	voucherRepo voucherdomain.Repository
	vouchers    voucherdomain.Service
	policy      *config.PolicyHolder
	metrics     *metrics.Metrics
}

func New(p Params) redemptiondomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("redemption.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		voucherRepo: p.VoucherRepo,
		vouchers:    p.Vouchers,
		policy:      p.Policy,
		metrics:     p.Metrics,
	}
}

func (s *Service) Redeem(ctx context.Context, userID snowflake.ID, code string) (*redemptiondomain.Result, error) {
	code = strings.TrimSpace(code)
	result := &redemptiondomain.Result{Outcome: redemptiondomain.OutcomeNotFound, Code: code}

	v, err := s.vouchers.FindVoucherByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find voucher: %w", err)
	}
	if v == nil {
		s.record(ctx, result)
		return result, nil
	}
	result.Code = v.Code

	enforceExpiration := s.policy.Get().EnforceExpiration

	err = s.db.Transaction(func(tx *gorm.DB) error {
		redeemed, err := s.repo.Exists(ctx, tx, userID, v.ID)
		if err != nil {
			return err
		}
		if redeemed {
			result.Outcome = redemptiondomain.OutcomeAlreadyRedeemed
			return errDeclined
		}

		now := s.clock.Now()
		if !voucherdomain.IsRedeemable(*v) || (enforceExpiration && voucherdomain.IsExpired(*v, now)) {
			result.Outcome = redemptiondomain.OutcomeNotRedeemable
			return errDeclined
		}

		// The snapshot above may be stale; the conditional increment is
		// what actually guards the limit.
		incremented, err := s.voucherRepo.IncrementRedemptionCount(ctx, tx, v.ID, now)
		if err != nil {
			return err
		}
		if !incremented {
			result.Outcome = redemptiondomain.OutcomeNotRedeemable
			return errDeclined
		}

		redemption := &redemptiondomain.VoucherRedemption{
			ID:         s.genID.Generate(),
			UserID:     userID,
			VoucherID:  v.ID,
			RedeemedAt: now,
		}
		if err := s.repo.Insert(ctx, tx, redemption); err != nil {
			if db.IsDuplicateKeyErr(err) {
				result.Outcome = redemptiondomain.OutcomeAlreadyRedeemed
				return errDeclined
			}
			return err
		}

		result.Outcome = redemptiondomain.OutcomeSuccess
		result.Redemption = redemption
		return nil
	})
	if err != nil && !errors.Is(err, errDeclined) {
		obslogger.WithContext(ctx, s.log).Error("redeem failed",
			obslogger.UserID(userID),
			obslogger.VoucherID(v.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("redeem voucher: %w", err)
	}

	s.record(ctx, result)
	return result, nil
}

func (s *Service) HasBeenRedeemed(ctx context.Context, userID, voucherID snowflake.ID) (bool, error) {
	if userID == 0 || voucherID == 0 {
		return false, nil
	}
	return s.repo.Exists(ctx, s.db, userID, voucherID)
}

func (s *Service) GetRedeemedVouchers(ctx context.Context, userID snowflake.ID) []redemptiondomain.RedemptionView {
	views := []redemptiondomain.RedemptionView{}
	if userID == 0 {
		return views
	}

	rows, err := s.repo.ListByUser(ctx, s.db, userID)
	if err != nil {
		s.log.Warn("list redemptions failed, returning empty history",
			obslogger.UserID(userID),
			zap.Error(err),
		)
		return views
	}

	for _, row := range rows {
		views = append(views, redemptiondomain.RedemptionView{
			ID:                 row.ID.String(),
			VoucherID:          row.VoucherID.String(),
			Code:               row.Code,
			Description:        row.Description,
			DiscountPercentage: row.DiscountPercentage,
			RedeemedAt:         row.RedeemedAt,
		})
	}
	return views
}

func (s *Service) record(ctx context.Context, result *redemptiondomain.Result) {
	s.metrics.RecordRedemption(ctx, string(result.Outcome))
	obslogger.WithContext(ctx, s.log).Debug("redeem attempt", obslogger.Outcome(string(result.Outcome)))
}
