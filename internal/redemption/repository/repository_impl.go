package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	redemptiondomain "github.com/smallbiznis/voucherportal/internal/redemption/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() redemptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, v *redemptiondomain.VoucherRedemption) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO voucher_redemptions (id, user_id, voucher_id, redeemed_at)
		 VALUES (?, ?, ?, ?)`,
		v.ID,
		v.UserID,
		v.VoucherID,
		v.RedeemedAt,
	).Error
}

func (r *repo) Exists(ctx context.Context, db *gorm.DB, userID, voucherID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM voucher_redemptions WHERE user_id = ? AND voucher_id = ?`,
		userID,
		voucherID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]redemptiondomain.RedemptionRow, error) {
	var rows []redemptiondomain.RedemptionRow
	err := db.WithContext(ctx).Raw(
		`SELECT r.id, r.voucher_id, v.code, v.description, v.discount_percentage, r.redeemed_at
		 FROM voucher_redemptions r
		 JOIN vouchers v ON v.id = r.voucher_id
		 WHERE r.user_id = ?
		 ORDER BY r.redeemed_at DESC, r.id DESC`,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
