package admin

import (
	"strconv"
	"strings"

	"github.com/templink-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetAdminSecurityRecords 获取限流记录列表 (Admin)
func (h *Handler) GetAdminSecurityRecords(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	records, total, err := h.SecurityService.List(page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "获取限流记录失败", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, records, pagination)
}

// ResetAdminSecurityRecord 解锁某 IP (Admin)
func (h *Handler) ResetAdminSecurityRecord(c *gin.Context) {
	ip := strings.TrimSpace(c.Param("ip"))
	if ip == "" {
		respondError(c, response.CodeBadRequest, "请求参数不合法", nil)
		return
	}

	if err := h.SecurityService.Reset(ip); err != nil {
		respondError(c, response.CodeInternal, "解锁失败", err)
		return
	}

	requestLog(c).Infow("security_record_reset", "ip", ip)
	response.SuccessWithMsg(c, "已解除锁定", nil)
}
