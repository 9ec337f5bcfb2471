package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/voucherportal/internal/audit/domain"
	auditrepository "github.com/smallbiznis/voucherportal/internal/audit/repository"
	auditservice "github.com/smallbiznis/voucherportal/internal/audit/service"
	"github.com/smallbiznis/voucherportal/internal/clock"
	redemptiondomain "github.com/smallbiznis/voucherportal/internal/redemption/domain"
	voucherdomain "github.com/smallbiznis/voucherportal/internal/voucher/domain"
	voucherrepository "github.com/smallbiznis/voucherportal/internal/voucher/repository"
	voucherservice "github.com/smallbiznis/voucherportal/internal/voucher/service"
	recorddomain "github.com/smallbiznis/voucherportal/internal/voucherrecord/domain"
	"github.com/smallbiznis/voucherportal/internal/voucherrecord/repository"
	"github.com/smallbiznis/voucherportal/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	conn     *gorm.DB
	clock    *clock.FakeClock
	vouchers voucherdomain.Service
	svc      recorddomain.Service
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithRepo(t, repository.Provide())
}

func newFixtureWithRepo(t *testing.T, repo recorddomain.Repository) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&voucherdomain.Voucher{},
		&redemptiondomain.VoucherRedemption{},
		&recorddomain.VoucherRecord{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC))
	audit := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  auditrepository.Provide(),
	})
	vouchers := voucherservice.New(voucherservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  voucherrepository.Provide(),
		Audit: audit,
	})

	svc := New(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		Repo:     repo,
		Vouchers: vouchers,
		Audit:    audit,
	})
	return &fixture{conn: conn, clock: fake, vouchers: vouchers, svc: svc}
}

func (f *fixture) voucher(t *testing.T, code string) *voucherdomain.Response {
	t.Helper()
	resp, err := f.vouchers.Create(context.Background(), voucherdomain.CreateRequest{
		Code:           code,
		RedemptionType: voucherdomain.RedemptionTypeSingle,
	})
	require.NoError(t, err)
	return resp
}

func TestCreateRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.voucher(t, "API1")

	created, err := f.svc.Create(ctx, recorddomain.CreateRequest{VoucherID: v.ID, Description: "  partner feed  "})
	require.NoError(t, err)
	assert.Equal(t, "partner feed", created.Description)
	require.NotNil(t, created.Voucher)
	assert.Equal(t, "API1", created.Voucher.Code)

	_, err = f.svc.Create(ctx, recorddomain.CreateRequest{VoucherID: v.ID, Description: "again"})
	assert.ErrorIs(t, err, recorddomain.ErrRecordExists)
}

func TestCreateRecordRejectsUnknownVoucher(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, recorddomain.CreateRequest{VoucherID: "12345"})
	assert.ErrorIs(t, err, recorddomain.ErrVoucherNotFound)

	_, err = f.svc.Create(ctx, recorddomain.CreateRequest{VoucherID: "abc"})
	assert.ErrorIs(t, err, recorddomain.ErrInvalidVoucherID)
}

func TestUpdateRecordDelegatesVoucherFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.voucher(t, "API2")
	created, err := f.svc.Create(ctx, recorddomain.CreateRequest{VoucherID: v.ID, Description: "first"})
	require.NoError(t, err)

	xTimes := voucherdomain.RedemptionTypeXTimes
	limit := int64(4)
	description := "second"
	updated, err := f.svc.Update(ctx, recorddomain.UpdateRequest{
		ID:          created.ID,
		Description: &description,
		Voucher: &voucherdomain.UpdateRequest{
			RedemptionType: &xTimes,
			XTimesLimit:    &limit,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "second", updated.Description)
	require.NotNil(t, updated.Voucher.RedemptionLimit)
	assert.Equal(t, int64(4), *updated.Voucher.RedemptionLimit)

	negative := int64(-1)
	third := "third"
	_, err = f.svc.Update(ctx, recorddomain.UpdateRequest{
		ID:          created.ID,
		Description: &third,
		Voucher:     &voucherdomain.UpdateRequest{RedemptionCount: &negative},
	})
	assert.ErrorIs(t, err, voucherdomain.ErrInvalidRedemptionCount)

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Description)
}

// failingUpdateRepo fails every record write after the voucher patch.
type failingUpdateRepo struct {
	recorddomain.Repository
}

func (failingUpdateRepo) Update(context.Context, *gorm.DB, *recorddomain.VoucherRecord) error {
	return errors.New("disk full")
}

func TestUpdateRecordRollsBackVoucherPatch(t *testing.T) {
	f := newFixtureWithRepo(t, failingUpdateRepo{Repository: repository.Provide()})
	ctx := context.Background()
	v := f.voucher(t, "API5")
	created, err := f.svc.Create(ctx, recorddomain.CreateRequest{VoucherID: v.ID, Description: "first"})
	require.NoError(t, err)

	multiple := voucherdomain.RedemptionTypeMultiple
	description := "second"
	_, err = f.svc.Update(ctx, recorddomain.UpdateRequest{
		ID:          created.ID,
		Description: &description,
		Voucher:     &voucherdomain.UpdateRequest{RedemptionType: &multiple},
	})
	require.Error(t, err)

	voucher, err := f.vouchers.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, string(voucherdomain.RedemptionTypeSingle), voucher.RedemptionType)
	require.NotNil(t, voucher.RedemptionLimit)
	assert.Equal(t, int64(1), *voucher.RedemptionLimit)

	var audits int64
	require.NoError(t, f.conn.Model(&auditdomain.AuditLog{}).Where("action = ?", "voucher.update").Count(&audits).Error)
	assert.Zero(t, audits)
}

func TestListRecordsPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, code := range []string{"L1", "L2", "L3"} {
		v := f.voucher(t, code)
		_, err := f.svc.Create(ctx, recorddomain.CreateRequest{VoucherID: v.ID, Description: code})
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	req := recorddomain.ListRequest{}
	req.PageSize = 2
	first, err := f.svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, first.Records, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "L3", first.Records[0].Description)

	req.PageToken = first.NextPageToken
	second, err := f.svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, second.Records, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "L1", second.Records[0].Description)

	req.PageToken = "%%%"
	_, err = f.svc.List(ctx, req)
	assert.ErrorIs(t, err, recorddomain.ErrInvalidPageToken)
}

func TestDeleteRecordKeepsVoucher(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.voucher(t, "KEEP")
	created, err := f.svc.Create(ctx, recorddomain.CreateRequest{VoucherID: v.ID})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, created.ID))

	_, err = f.svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, recorddomain.ErrNotFound)

	found, err := f.vouchers.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "KEEP", found.Code)
}
