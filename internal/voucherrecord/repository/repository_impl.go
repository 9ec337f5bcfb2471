package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	recorddomain "github.com/smallbiznis/voucherportal/internal/voucherrecord/domain"
	"gorm.io/gorm"
)

const recordColumns = `id, voucher_id, description, created_at, updated_at`

type repo struct{}

func Provide() recorddomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *recorddomain.VoucherRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO voucher_records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?)`,
		record.ID,
		record.VoucherID,
		record.Description,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, record *recorddomain.VoucherRecord) error {
	return db.WithContext(ctx).Exec(
		`UPDATE voucher_records SET description = ?, updated_at = ? WHERE id = ?`,
		record.Description,
		record.UpdatedAt,
		record.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM voucher_records WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*recorddomain.VoucherRecord, error) {
	var record recorddomain.VoucherRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+` FROM voucher_records WHERE id = ?`,
		id,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindByVoucherID(ctx context.Context, db *gorm.DB, voucherID snowflake.ID) (*recorddomain.VoucherRecord, error) {
	var record recorddomain.VoucherRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+` FROM voucher_records WHERE voucher_id = ?`,
		voucherID,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter recorddomain.ListFilter) ([]recorddomain.VoucherRecord, error) {
	var items []recorddomain.VoucherRecord
	stmt := db.WithContext(ctx).Model(&recorddomain.VoucherRecord{})

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
