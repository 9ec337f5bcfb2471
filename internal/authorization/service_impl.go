package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/voucherportal/internal/audit/domain"
	authdomain "github.com/smallbiznis/voucherportal/internal/auth/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectVoucher       = "voucher"
	ObjectVoucherRecord = "voucher_record"
	ObjectRedemption    = "redemption"
	ObjectAuditLog      = "audit_log"
)

const (
	ActionVoucherView   = "voucher.view"
	ActionVoucherCreate = "voucher.create"
	ActionVoucherUpdate = "voucher.update"
	ActionVoucherDelete = "voucher.delete"

	ActionVoucherRecordView   = "voucher_record.view"
	ActionVoucherRecordCreate = "voucher_record.create"
	ActionVoucherRecordUpdate = "voucher_record.update"
	ActionVoucherRecordDelete = "voucher_record.delete"

	ActionRedemptionRedeem = "redemption.redeem"
	ActionRedemptionView   = "redemption.view"

	ActionAuditLogView = "audit_log.view"
)

const (
	RoleSuperuser = "role:superuser"
	RoleStaff     = "role:staff"
	RoleUser      = "role:user"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, user *authdomain.User, object string, action string) error {
	if user == nil || user.ID == 0 {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := fmt.Sprintf("user:%s", user.ID.String())
	if err := s.ensureGrouping(subject, RoleFor(user)); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, user, object, action)
		return ErrForbidden
	}
	return nil
}

// RoleFor maps the account flags onto a casbin role.
func RoleFor(user *authdomain.User) string {
	switch {
	case user.IsSuperuser:
		return RoleSuperuser
	case user.IsStaff:
		return RoleStaff
	default:
		return RoleUser
	}
}

// ensureGrouping keeps exactly one role link per subject so a demoted user
// loses the old role on the next request.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, user *authdomain.User, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, auditdomain.Entry{
		ActorType:  string(auditdomain.ActorTypeUser),
		ActorID:    user.ID.String(),
		Action:     "authorization.denied",
		TargetType: "authorization",
		TargetID:   object,
		Metadata: map[string]any{
			"object": object,
			"action": action,
			"role":   RoleFor(user),
		},
	}); err != nil {
		s.log.Warn("failed to audit denied authorization", zap.Error(err))
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{RoleUser, ObjectRedemption, ActionRedemptionRedeem},
		{RoleUser, ObjectRedemption, ActionRedemptionView},

		{RoleStaff, ObjectVoucher, ActionVoucherView},
		{RoleStaff, ObjectVoucher, ActionVoucherCreate},
		{RoleStaff, ObjectVoucher, ActionVoucherUpdate},
		{RoleStaff, ObjectVoucher, ActionVoucherDelete},
		{RoleStaff, ObjectVoucherRecord, ActionVoucherRecordView},
		{RoleStaff, ObjectVoucherRecord, ActionVoucherRecordCreate},
		{RoleStaff, ObjectVoucherRecord, ActionVoucherRecordUpdate},
		{RoleStaff, ObjectVoucherRecord, ActionVoucherRecordDelete},

		{RoleSuperuser, ObjectAuditLog, ActionAuditLogView},
	}
	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	inheritance := [][]string{
		{RoleStaff, RoleUser},
		{RoleSuperuser, RoleStaff},
	}
	for _, link := range inheritance {
		has, err := enforcer.HasGroupingPolicy(link)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddGroupingPolicy(link); err != nil {
			return err
		}
	}
	return nil
}
