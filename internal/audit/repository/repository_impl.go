package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/voucherportal/internal/audit/domain"
	pkgdb "github.com/smallbiznis/voucherportal/pkg/db"
	"gorm.io/gorm"
)

const auditColumns = `id, actor_type, actor_id, action, target_type, target_id,
	metadata, ip_address, user_agent, created_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO audit_logs (`+auditColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ActorType, entry.ActorID, entry.Action, entry.TargetType, entry.TargetID,
		entry.Metadata, entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	).Error
}

// List returns entries newest first. An action ending in ".*" matches every
// action under that namespace, so "voucher.*" covers updates and overrides.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg ...any) {
		where = append(where, cond)
		args = append(args, arg...)
	}

	if action := strings.TrimSpace(filter.Action); action != "" {
		if ns, ok := strings.CutSuffix(action, ".*"); ok {
			add("action LIKE ?"+pkgdb.LikeEscapeClause, pkgdb.LikePrefix(ns+"."))
		} else {
			add("action = ?", action)
		}
	}
	if v := strings.TrimSpace(filter.TargetType); v != "" {
		add("target_type = ?", v)
	}
	if v := strings.TrimSpace(filter.TargetID); v != "" {
		add("target_id = ?", v)
	}
	if v := strings.TrimSpace(filter.ActorType); v != "" {
		add("actor_type = ?", v)
	}
	if v := strings.TrimSpace(filter.ActorID); v != "" {
		add("actor_id = ?", v)
	}
	if filter.StartAt != nil {
		add("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		add("created_at <= ?", filter.EndAt.UTC())
	}
	if c := filter.Cursor; c != nil {
		add("(created_at < ? OR (created_at = ? AND id < ?))", c.CreatedAt, c.CreatedAt, c.ID)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit+1)
	}

	var logs []*domain.AuditLog
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
