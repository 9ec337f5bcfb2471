package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func int64Ptr(v int64) *int64 { return &v }

func TestComputeRedemptionLimit(t *testing.T) {
	tests := []struct {
		name   string
		typ    RedemptionType
		xTimes *int64
		want   *int64
	}{
		{name: "x_times with value", typ: RedemptionTypeXTimes, xTimes: int64Ptr(5), want: int64Ptr(5)},
		{name: "x_times without value", typ: RedemptionTypeXTimes},
		{name: "x_times zero", typ: RedemptionTypeXTimes, xTimes: int64Ptr(0)},
		{name: "x_times negative", typ: RedemptionTypeXTimes, xTimes: int64Ptr(-3)},
		{name: "single ignores value", typ: RedemptionTypeSingle, xTimes: int64Ptr(9), want: int64Ptr(1)},
		{name: "single without value", typ: RedemptionTypeSingle, want: int64Ptr(1)},
		{name: "multiple ignores value", typ: RedemptionTypeMultiple, xTimes: int64Ptr(5)},
		{name: "unknown type", typ: RedemptionType("weekly"), xTimes: int64Ptr(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRedemptionLimit(tt.typ, tt.xTimes)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, *tt.want, *got)
			}
		})
	}
}

func TestComputeRedemptionLimitDoesNotAliasInput(t *testing.T) {
	in := int64Ptr(3)
	got := ComputeRedemptionLimit(RedemptionTypeXTimes, in)
	*in = 10
	assert.Equal(t, int64(3), *got)
}

func TestIsRedeemable(t *testing.T) {
	tests := []struct {
		name    string
		voucher Voucher
		want    bool
	}{
		{name: "inactive with room", voucher: Voucher{IsActive: false, RedemptionLimit: int64Ptr(5), RedemptionCount: 0}},
		{name: "inactive unlimited", voucher: Voucher{IsActive: false}},
		{name: "active unlimited", voucher: Voucher{IsActive: true, RedemptionCount: 1000}, want: true},
		{name: "active below limit", voucher: Voucher{IsActive: true, RedemptionLimit: int64Ptr(3), RedemptionCount: 2}, want: true},
		{name: "active at limit", voucher: Voucher{IsActive: true, RedemptionLimit: int64Ptr(3), RedemptionCount: 3}},
		{name: "active zero limit", voucher: Voucher{IsActive: true, RedemptionLimit: int64Ptr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRedeemable(tt.voucher))
		})
	}
}

func TestIsRedeemableIgnoresExpiration(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	v := Voucher{IsActive: true, ExpirationDate: &past}
	assert.True(t, IsRedeemable(v))
	assert.True(t, IsExpired(v, time.Now()))
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Second)
	after := now.Add(time.Second)

	assert.False(t, IsExpired(Voucher{}, now))
	assert.True(t, IsExpired(Voucher{ExpirationDate: &before}, now))
	assert.False(t, IsExpired(Voucher{ExpirationDate: &after}, now))
	assert.False(t, IsExpired(Voucher{ExpirationDate: &now}, now))
}

func TestRedemptionTypeValidAndLabel(t *testing.T) {
	assert.True(t, RedemptionTypeSingle.Valid())
	assert.True(t, RedemptionTypeMultiple.Valid())
	assert.True(t, RedemptionTypeXTimes.Valid())
	assert.False(t, RedemptionType("").Valid())
	assert.Equal(t, "X Times Redemption", RedemptionTypeXTimes.Label())
	assert.Equal(t, "Single Redemption", RedemptionTypeSingle.Label())
}
