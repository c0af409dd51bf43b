package admin

import (
	"strconv"

	"github.com/templink-next/internal/http/response"
	"github.com/templink-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetAdminAccessLogs 获取访问日志列表 (Admin)
func (h *Handler) GetAdminAccessLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	linkID, _ := strconv.ParseUint(c.Query("link_id"), 10, 64)

	filter := repository.AccessLogListFilter{
		Page:     page,
		PageSize: pageSize,
		LinkID:   uint(linkID),
		Status:   c.Query("status"),
		Search:   c.Query("search"),
		SourceIP: c.Query("source_ip"),
	}

	logs, total, err := h.AccessLogService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "获取访问日志失败", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, logs, pagination)
}
