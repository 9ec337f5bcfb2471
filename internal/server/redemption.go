package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	redemptiondomain "github.com/smallbiznis/voucherportal/internal/redemption/domain"
)

type redeemRequest struct {
	Code string `json:"code"`
}

type redeemResponse struct {
	Outcome    redemptiondomain.Outcome            `json:"outcome"`
	Code       string                              `json:"code"`
	Message    string                              `json:"message"`
	Redemption *redemptiondomain.VoucherRedemption `json:"redemption,omitempty"`
}

// Redeem answers 200 for every classified outcome except not_found.
func (s *Server) Redeem(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.redeemSvc.Redeem(c.Request.Context(), user.ID, req.Code)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("redemption_outcome", string(result.Outcome))

	status := http.StatusOK
	if result.Outcome == redemptiondomain.OutcomeNotFound {
		status = http.StatusNotFound
	}

	c.JSON(status, gin.H{"data": redeemResponse{
		Outcome:    result.Outcome,
		Code:       result.Code,
		Message:    result.Message(),
		Redemption: result.Redemption,
	}})
}

func (s *Server) ListRedemptions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": s.redeemSvc.GetRedeemedVouchers(c.Request.Context(), user.ID)})
}
