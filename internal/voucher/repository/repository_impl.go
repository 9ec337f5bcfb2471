package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	voucherdomain "github.com/smallbiznis/voucherportal/internal/voucher/domain"
	pkgdb "github.com/smallbiznis/voucherportal/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const voucherColumns = `id, code, description, discount_percentage, expiration_date, redemption_type,
	redemption_limit, redemption_count, is_active, created_at, updated_at`

type repo struct{}

func Provide() voucherdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, v *voucherdomain.Voucher) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO vouchers (`+voucherColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID,
		v.Code,
		v.Description,
		v.DiscountPercentage,
		v.ExpirationDate,
		v.RedemptionType,
		v.RedemptionLimit,
		v.RedemptionCount,
		v.IsActive,
		v.CreatedAt,
		v.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, v *voucherdomain.Voucher) error {
	return db.WithContext(ctx).Exec(
		`UPDATE vouchers
		 SET code = ?, description = ?, discount_percentage = ?, expiration_date = ?,
		     redemption_type = ?, redemption_limit = ?, redemption_count = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		v.Code,
		v.Description,
		v.DiscountPercentage,
		v.ExpirationDate,
		v.RedemptionType,
		v.RedemptionLimit,
		v.RedemptionCount,
		v.IsActive,
		v.UpdatedAt,
		v.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM vouchers WHERE id = ?`, id).Error
}

func (r *repo) DeleteDependents(ctx context.Context, db *gorm.DB, voucherID snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM voucher_records WHERE voucher_id = ?`, voucherID).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM voucher_redemptions WHERE voucher_id = ?`, voucherID).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*voucherdomain.Voucher, error) {
	var v voucherdomain.Voucher
	err := db.WithContext(ctx).Raw(
		`SELECT `+voucherColumns+` FROM vouchers WHERE id = ?`,
		id,
	).Scan(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == 0 {
		return nil, nil
	}
	return &v, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*voucherdomain.Voucher, error) {
	var items []voucherdomain.Voucher
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*voucherdomain.Voucher, error) {
	var v voucherdomain.Voucher
	err := db.WithContext(ctx).Raw(
		`SELECT `+voucherColumns+` FROM vouchers WHERE LOWER(code) = LOWER(?)`,
		code,
	).Scan(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == 0 {
		return nil, nil
	}
	return &v, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter voucherdomain.ListFilter) ([]voucherdomain.Voucher, error) {
	var items []voucherdomain.Voucher
	stmt := db.WithContext(ctx).Model(&voucherdomain.Voucher{})

	if filter.IsActive != nil {
		stmt = stmt.Where("is_active = ?", *filter.IsActive)
	}
	if prefix := strings.ToLower(strings.TrimSpace(filter.CodePrefix)); prefix != "" {
		stmt = stmt.Where("LOWER(code) LIKE ?"+pkgdb.LikeEscapeClause, pkgdb.LikePrefix(prefix))
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) IncrementRedemptionCount(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE vouchers
		 SET redemption_count = redemption_count + 1, updated_at = ?
		 WHERE id = ? AND is_active = ?
		   AND (redemption_limit IS NULL OR redemption_count < redemption_limit)`,
		now,
		id,
		true,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
