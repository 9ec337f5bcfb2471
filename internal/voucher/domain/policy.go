package domain

import "time"

type RedemptionType string

const (
	RedemptionTypeSingle   RedemptionType = "single"
	RedemptionTypeMultiple RedemptionType = "multiple"
	RedemptionTypeXTimes   RedemptionType = "x_times"
)

func (t RedemptionType) Valid() bool {
	switch t {
	case RedemptionTypeSingle, RedemptionTypeMultiple, RedemptionTypeXTimes:
		return true
	default:
		return false
	}
}

func (t RedemptionType) Label() string {
	switch t {
	case RedemptionTypeSingle:
		return "Single Redemption"
	case RedemptionTypeMultiple:
		return "Multiple Redemption"
	case RedemptionTypeXTimes:
		return "X Times Redemption"
	default:
		return string(t)
	}
}

// ComputeRedemptionLimit derives the stored limit from a redemption type. A
// nil result means unlimited.
func ComputeRedemptionLimit(redemptionType RedemptionType, xTimesLimit *int64) *int64 {
	switch redemptionType {
	case RedemptionTypeXTimes:
		if xTimesLimit != nil && *xTimesLimit > 0 {
			limit := *xTimesLimit
			return &limit
		}
		return nil
	case RedemptionTypeSingle:
		limit := int64(1)
		return &limit
	default:
		return nil
	}
}

// IsRedeemable reports whether one more redemption is allowed. Expiration is
// not considered here.
func IsRedeemable(v Voucher) bool {
	if !v.IsActive {
		return false
	}
	return v.RedemptionLimit == nil || v.RedemptionCount < *v.RedemptionLimit
}

func IsExpired(v Voucher, now time.Time) bool {
	return v.ExpirationDate != nil && v.ExpirationDate.Before(now)
}
