package admin

import (
	"errors"
	"strconv"
	"time"

	"github.com/templink-next/internal/http/response"
	"github.com/templink-next/internal/repository"
	"github.com/templink-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateLinkRequest 创建链接请求
type CreateLinkRequest struct {
	Email         string `json:"email" binding:"required"`
	Role          string `json:"role"`
	Duration      string `json:"duration"`
	RedirectTo    string `json:"redirect_to"`
	MaxAccesses   int    `json:"max_accesses"`
	IPRestriction string `json:"ip_restriction"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
}

// CreateAdminLink 创建登录链接 (Admin)
func (h *Handler) CreateAdminLink(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}

	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}

	result, err := h.LinkService.Create(service.CreateLinkInput{
		Email:         req.Email,
		Role:          req.Role,
		Duration:      req.Duration,
		RedirectTo:    req.RedirectTo,
		MaxAccesses:   req.MaxAccesses,
		IPRestriction: req.IPRestriction,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		CreatedBy:     adminID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			respondError(c, response.CodeBadRequest, "邮箱格式不正确", nil)
		case errors.Is(err, service.ErrInvalidRole):
			respondError(c, response.CodeBadRequest, "角色不存在", nil)
		case errors.Is(err, service.ErrInvalidDuration):
			respondError(c, response.CodeBadRequest, "有效期格式不正确", nil)
		case errors.Is(err, service.ErrPastDate):
			respondError(c, response.CodeBadRequest, "过期时间不能早于当前时间", nil)
		case errors.Is(err, service.ErrInvalidIPList):
			respondError(c, response.CodeBadRequest, "IP白名单格式不正确", nil)
		case errors.Is(err, service.ErrUserExists):
			respondError(c, response.CodeBadRequest, "该邮箱已注册正式账号", nil)
		default:
			respondError(c, response.CodeInternal, "创建链接失败", err)
		}
		return
	}

	response.Success(c, gin.H{
		"link":      result.Link,
		"login_url": result.LoginURL,
	})
}

// GetAdminLinks 获取链接列表 (Admin)
func (h *Handler) GetAdminLinks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.LinkListFilter{
		Page:      page,
		PageSize:  pageSize,
		Status:    c.DefaultQuery("status", "all"),
		Search:    c.Query("search"),
		Role:      c.Query("role"),
		OrderBy:   c.Query("order_by"),
		OrderDesc: c.DefaultQuery("order", "desc") == "desc",
	}

	links, total, err := h.LinkService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "获取链接列表失败", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, links, pagination)
}

// GetAdminLink 获取链接详情 (Admin)
func (h *Handler) GetAdminLink(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数不合法", nil)
		return
	}

	link, err := h.LinkService.Get(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "链接不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "获取链接失败", err)
		return
	}

	response.Success(c, gin.H{
		"link":      link,
		"login_url": h.LinkService.LoginURL(link.Token),
	})
}

// DeleteAdminLink 删除链接 (Admin)
func (h *Handler) DeleteAdminLink(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数不合法", nil)
		return
	}

	if err := h.LinkService.Delete(uint(id)); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "链接不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "删除链接失败", err)
		return
	}

	response.SuccessWithMsg(c, "链接已删除", nil)
}

// SetLinkActiveRequest 状态切换请求
type SetLinkActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetAdminLinkActive 启用/停用链接 (Admin)
func (h *Handler) SetAdminLinkActive(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数不合法", nil)
		return
	}

	var req SetLinkActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}

	if err := h.LinkService.SetActive(service.SetActiveInput{
		ID:        uint(id),
		Active:    *req.Active,
		SourceIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: getRequestID(c),
	}); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "链接不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "更新链接状态失败", err)
		return
	}

	response.SuccessWithMsg(c, "链接状态已更新", nil)
}

// ExtendLinkRequest 延长有效期请求
type ExtendLinkRequest struct {
	Duration  string `json:"duration"`
	ExpiresAt string `json:"expires_at"` // "2006-01-02 15:04:05"，与 duration 二选一
}

// ExtendAdminLink 延长链接有效期 (Admin)
func (h *Handler) ExtendAdminLink(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数不合法", nil)
		return
	}

	var req ExtendLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}

	if req.ExpiresAt != "" {
		expiresAt, parseErr := time.ParseInLocation("2006-01-02 15:04:05", req.ExpiresAt, time.Local)
		if parseErr != nil {
			respondError(c, response.CodeBadRequest, "过期时间格式不正确", nil)
			return
		}
		err = h.LinkService.SetExpiry(uint(id), expiresAt, c.ClientIP(), c.Request.UserAgent(), getRequestID(c))
	} else if req.Duration != "" {
		err = h.LinkService.Extend(service.ExtendInput{
			ID:        uint(id),
			Duration:  req.Duration,
			SourceIP:  c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			RequestID: getRequestID(c),
		})
	} else {
		respondError(c, response.CodeBadRequest, "请求参数不合法", nil)
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "链接不存在", nil)
		case errors.Is(err, service.ErrInvalidDuration):
			respondError(c, response.CodeBadRequest, "有效期格式不正确", nil)
		case errors.Is(err, service.ErrPastDate):
			respondError(c, response.CodeBadRequest, "过期时间不能早于当前时间", nil)
		default:
			respondError(c, response.CodeInternal, "延长链接失败", err)
		}
		return
	}

	response.SuccessWithMsg(c, "链接有效期已更新", nil)
}

// GetAdminLinkStats 获取链接统计 (Admin)
func (h *Handler) GetAdminLinkStats(c *gin.Context) {
	counts, err := h.LinkService.Stats()
	if err != nil {
		respondError(c, response.CodeInternal, "获取链接统计失败", err)
		return
	}
	response.Success(c, gin.H{
		"total":    counts.Total,
		"active":   counts.Active,
		"inactive": counts.Inactive,
		"expired":  counts.Expired,
	})
}

// GetLinkDurations 获取预设有效期选项 (Admin)
func (h *Handler) GetLinkDurations(c *gin.Context) {
	response.Success(c, service.DurationPresets())
}

// CleanupAdminLinks 手动触发过期链接清理 (Admin)
func (h *Handler) CleanupAdminLinks(c *gin.Context) {
	removed, err := h.LinkService.CleanupExpired()
	if err != nil {
		respondError(c, response.CodeInternal, "清理过期链接失败", err)
		return
	}
	purged, err := h.SecurityService.PurgeIdle()
	if err != nil {
		respondError(c, response.CodeInternal, "清理限流记录失败", err)
		return
	}
	requestLog(c).Infow("admin_cleanup_triggered",
		"removed_links", removed,
		"purged_records", purged,
	)
	response.Success(c, gin.H{
		"removed_links":  removed,
		"purged_records": purged,
	})
}
