package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	recorddomain "github.com/smallbiznis/voucherportal/internal/voucherrecord/domain"
	"github.com/smallbiznis/voucherportal/pkg/db/pagination"
)

type createRecordRequest struct {
	VoucherID   string `json:"voucher_id"`
	Description string `json:"description"`
}

type updateRecordRequest struct {
	Description *string               `json:"description"`
	Voucher     *updateVoucherRequest `json:"voucher"`
}

func (s *Server) CreateRecord(c *gin.Context) {
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.recordSvc.Create(c.Request.Context(), recorddomain.CreateRequest{
		VoucherID:   strings.TrimSpace(req.VoucherID),
		Description: req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListRecords(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.recordSvc.List(c.Request.Context(), recorddomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Records, "page_info": resp.PageInfo})
}

func (s *Server) GetRecord(c *gin.Context) {
	resp, err := s.recordSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// UpdateRecord edits the description and forwards voucher fields to the
// voucher service.
func (s *Server) UpdateRecord(c *gin.Context) {
	var req updateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := recorddomain.UpdateRequest{
		ID:          strings.TrimSpace(c.Param("id")),
		Description: req.Description,
	}
	if req.Voucher != nil {
		patch := req.Voucher.toDomain("")
		update.Voucher = &patch
	}

	resp, err := s.recordSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteRecord(c *gin.Context) {
	if err := s.recordSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
