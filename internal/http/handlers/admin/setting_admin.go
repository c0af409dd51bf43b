package admin

import (
	"errors"
	"time"

	"github.com/templink-next/internal/http/response"
	"github.com/templink-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetAdminSettings 获取系统设置 (Admin)
func (h *Handler) GetAdminSettings(c *gin.Context) {
	response.Success(c, gin.H{
		"links":    h.SettingService.GetLinkSettings(),
		"security": h.SettingService.GetSecuritySettings(),
	})
}

// UpdateSettingsRequest 更新设置请求
type UpdateSettingsRequest struct {
	Links    *service.LinkSettings     `json:"links"`
	Security *service.SecuritySettings `json:"security"`
}

// UpdateAdminSettings 更新系统设置 (Admin)
func (h *Handler) UpdateAdminSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}
	if req.Links == nil && req.Security == nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", nil)
		return
	}

	if req.Links != nil {
		// 默认有效期必须是可解析的描述
		if _, err := h.validateDuration(req.Links.DefaultDuration); err != nil {
			respondError(c, response.CodeBadRequest, "默认有效期格式不正确", nil)
			return
		}
		if err := h.SettingService.SaveLinkSettings(*req.Links); err != nil {
			respondError(c, response.CodeInternal, "保存设置失败", err)
			return
		}
	}
	if req.Security != nil {
		if req.Security.MaxAttempts <= 0 || req.Security.LockoutMinutes <= 0 {
			respondError(c, response.CodeBadRequest, "安全阈值必须为正数", nil)
			return
		}
		if err := h.SettingService.SaveSecuritySettings(*req.Security); err != nil {
			respondError(c, response.CodeInternal, "保存设置失败", err)
			return
		}
	}

	requestLog(c).Infow("settings_updated")
	response.SuccessWithMsg(c, "设置已保存", nil)
}

func (h *Handler) validateDuration(spec string) (bool, error) {
	if spec == "" {
		return true, nil
	}
	if _, err := service.ResolveExpiry(spec, time.Now()); err != nil {
		if errors.Is(err, service.ErrPastDate) {
			// custom_ 形式的绝对时间不适合作为默认值
			return false, service.ErrInvalidDuration
		}
		return false, err
	}
	return true, nil
}
