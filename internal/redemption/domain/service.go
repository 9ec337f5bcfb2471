package domain

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

type Outcome string

const (
	OutcomeNotFound        Outcome = "not_found"
	OutcomeAlreadyRedeemed Outcome = "already_redeemed"
	OutcomeNotRedeemable   Outcome = "not_redeemable"
	OutcomeSuccess         Outcome = "success"
)

// Message renders the text shown to the user for an outcome.
func (o Outcome) Message(code string) string {
	switch o {
	case OutcomeSuccess:
		return fmt.Sprintf("Voucher %q successfully redeemed", code)
	case OutcomeAlreadyRedeemed:
		return fmt.Sprintf("Voucher %q has already been redeemed", code)
	case OutcomeNotRedeemable:
		return fmt.Sprintf("Voucher %q cannot be redeemed", code)
	default:
		return fmt.Sprintf("Voucher %q does not exist!", code)
	}
}

// Result is the classified outcome of a redeem attempt. Redemption is set
// only on success.
type Result struct {
	Outcome    Outcome            `json:"outcome"`
	Code       string             `json:"code"`
	Redemption *VoucherRedemption `json:"redemption,omitempty"`
}

func (r *Result) Message() string {
	return r.Outcome.Message(r.Code)
}

type Service interface {
	// Redeem returns an error only for infrastructure faults. Declined
	// attempts are reported through Result.Outcome.
	Redeem(ctx context.Context, userID snowflake.ID, code string) (*Result, error)
	HasBeenRedeemed(ctx context.Context, userID, voucherID snowflake.ID) (bool, error)
	// GetRedeemedVouchers never fails; storage faults yield an empty list.
	GetRedeemedVouchers(ctx context.Context, userID snowflake.ID) []RedemptionView
}
