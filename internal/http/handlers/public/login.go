package public

import (
	"strings"

	"github.com/templink-next/internal/constants"
	handlershared "github.com/templink-next/internal/http/handlers/shared"
	"github.com/templink-next/internal/http/response"
	"github.com/templink-next/internal/service"

	"github.com/gin-gonic/gin"
)

// 对外只返回一种模糊的失败提示，校验细节只进审计日志，
// 避免暴露令牌是否存在、过期还是被停用。
const genericFailureMsg = "登录链接无效或已失效"

// TokenLogin 消费登录令牌
// 流程：限流检查 → 校验引擎 → 失败上报限流 → 成功签发会话。
func (h *Handler) TokenLogin(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	sourceIP := c.ClientIP()
	userAgent := c.Request.UserAgent()
	requestID := getRequestID(c)

	check, err := h.SecurityService.Check(sourceIP)
	if err != nil {
		handlershared.RespondError(c, response.CodeInternal, "服务暂不可用", err)
		return
	}
	if check.Locked {
		handlershared.RequestLog(c).Warnw("token_login_ip_locked",
			"source_ip", sourceIP,
			"locked_until", check.LockedUntil,
		)
		response.Error(c, response.CodeTooManyRequests, "尝试次数过多，请稍后再试")
		return
	}

	result, err := h.ValidationService.Validate(service.ValidateInput{
		Token:     token,
		SourceIP:  sourceIP,
		UserAgent: userAgent,
		RequestID: requestID,
	})
	if err != nil {
		handlershared.RespondError(c, response.CodeInternal, "服务暂不可用", err)
		return
	}

	if !result.OK {
		if recordErr := h.SecurityService.RecordFailure(service.RecordFailureInput{
			IP:        sourceIP,
			Token:     token,
			Reason:    result.Status,
			UserAgent: userAgent,
		}); recordErr != nil {
			handlershared.RequestLog(c).Warnw("token_login_record_failure_failed",
				"source_ip", sourceIP,
				"error", recordErr,
			)
		}
		handlershared.RequestLog(c).Infow("token_login_rejected",
			"source_ip", sourceIP,
			"status", result.Status,
			"link_id", result.LinkID,
		)
		response.Error(c, response.CodeUnauthorized, genericFailureMsg)
		return
	}

	user, err := h.UserService.Get(result.UserID)
	if err != nil {
		handlershared.RespondError(c, response.CodeInternal, "服务暂不可用", err)
		return
	}

	link, err := h.LinkService.Get(result.LinkID)
	if err != nil {
		handlershared.RespondError(c, response.CodeInternal, "服务暂不可用", err)
		return
	}

	sessionToken, expiresAt, err := h.SessionService.Issue(user, link)
	if err != nil {
		handlershared.RespondError(c, response.CodeInternal, "服务暂不可用", err)
		return
	}

	if err := h.UserService.RecordLogin(user.ID); err != nil {
		handlershared.RequestLog(c).Warnw("token_login_touch_failed",
			"user_id", user.ID,
			"error", err,
		)
	}

	redirectTo := result.RedirectTo
	if redirectTo == "" {
		redirectTo = h.Config.Links.DefaultRedirect
	}

	handlershared.RequestLog(c).Infow("token_login_success",
		"link_id", result.LinkID,
		"user_id", result.UserID,
		"source_ip", sourceIP,
	)

	response.Success(c, gin.H{
		"session_token": sessionToken,
		"expires_at":    expiresAt.Format("2006-01-02 15:04:05"),
		"redirect_to":   redirectTo,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// SessionMe 解析会话 Token 返回当前访客身份
func (h *Handler) SessionMe(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") {
		response.Unauthorized(c, "缺少认证信息")
		return
	}

	claims, err := h.SessionService.Parse(parts[1])
	if err != nil {
		response.Unauthorized(c, "会话已失效")
		return
	}

	user, err := h.UserService.Get(claims.UserID)
	if err != nil || user.Status != constants.UserStatusActive {
		response.Unauthorized(c, "会话已失效")
		return
	}

	response.Success(c, gin.H{
		"id":      user.ID,
		"email":   user.Email,
		"role":    user.Role,
		"link_id": claims.LinkID,
	})
}

func getRequestID(c *gin.Context) string {
	if value, ok := c.Get("request_id"); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}
