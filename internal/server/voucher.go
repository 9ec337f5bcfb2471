package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	voucherdomain "github.com/smallbiznis/voucherportal/internal/voucher/domain"
	"github.com/smallbiznis/voucherportal/pkg/db/pagination"
)

type createVoucherRequest struct {
	Code               string     `json:"code"`
	Description        *string    `json:"description"`
	DiscountPercentage int64      `json:"discount_percentage"`
	ExpirationDate     *time.Time `json:"expiration_date"`
	RedemptionType     string     `json:"redemption_type"`
	XTimesLimit        *int64     `json:"x_times_limit"`
}

type updateVoucherRequest struct {
	Code               *string    `json:"code"`
	Description        *string    `json:"description"`
	DiscountPercentage *int64     `json:"discount_percentage"`
	ExpirationDate     *time.Time `json:"expiration_date"`
	RedemptionType     *string    `json:"redemption_type"`
	XTimesLimit        *int64     `json:"x_times_limit"`
	IsActive           *bool      `json:"is_active"`
	RedemptionCount    *int64     `json:"redemption_count"`
}

func (r updateVoucherRequest) toDomain(id string) voucherdomain.UpdateRequest {
	req := voucherdomain.UpdateRequest{
		ID:                 id,
		Code:               r.Code,
		Description:        r.Description,
		DiscountPercentage: r.DiscountPercentage,
		ExpirationDate:     r.ExpirationDate,
		XTimesLimit:        r.XTimesLimit,
		IsActive:           r.IsActive,
		RedemptionCount:    r.RedemptionCount,
	}
	if r.RedemptionType != nil {
		rt := voucherdomain.RedemptionType(strings.TrimSpace(*r.RedemptionType))
		req.RedemptionType = &rt
	}
	return req
}

func (s *Server) CreateVoucher(c *gin.Context) {
	var req createVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.voucherSvc.Create(c.Request.Context(), voucherdomain.CreateRequest{
		Code:               strings.TrimSpace(req.Code),
		Description:        req.Description,
		DiscountPercentage: req.DiscountPercentage,
		ExpirationDate:     req.ExpirationDate,
		RedemptionType:     voucherdomain.RedemptionType(strings.TrimSpace(req.RedemptionType)),
		XTimesLimit:        req.XTimesLimit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListVouchers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		IsActive string `form:"is_active"`
		Code     string `form:"code"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	isActive, err := parseOptionalBool(query.IsActive)
	if err != nil {
		AbortWithError(c, newValidationError("is_active", "invalid_is_active", "invalid is_active"))
		return
	}

	resp, err := s.voucherSvc.List(c.Request.Context(), voucherdomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		IsActive:   isActive,
		CodePrefix: strings.TrimSpace(query.Code),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Vouchers, "page_info": resp.PageInfo})
}

func (s *Server) GetVoucher(c *gin.Context) {
	resp, err := s.voucherSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateVoucher(c *gin.Context) {
	var req updateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.voucherSvc.Update(c.Request.Context(), req.toDomain(strings.TrimSpace(c.Param("id"))))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteVoucher(c *gin.Context) {
	if err := s.voucherSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
