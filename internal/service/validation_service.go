package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/templink-next/internal/constants"
	"github.com/templink-next/internal/logger"
	"github.com/templink-next/internal/repository"
)

// ValidationService 令牌校验引擎
// 对一次令牌出示做出接受/拒绝决定。七种结果互斥且穷尽，
// 每次调用恰好落一条审计记录。引擎本身不感知限流，
// 失败结果由调用方上报给 SecurityService。
type ValidationService struct {
	linkRepo   repository.LinkRepository
	identity   *IdentityService
	accessLogs *AccessLogService
}

// NewValidationService 创建校验引擎
func NewValidationService(
	linkRepo repository.LinkRepository,
	identity *IdentityService,
	accessLogs *AccessLogService,
) *ValidationService {
	return &ValidationService{
		linkRepo:   linkRepo,
		identity:   identity,
		accessLogs: accessLogs,
	}
}

// ValidateInput 校验输入
type ValidateInput struct {
	Token     string
	SourceIP  string
	UserAgent string
	RequestID string
}

// ValidationResult 校验结果
type ValidationResult struct {
	OK         bool
	Status     string // constants.AccessStatus* 之一
	LinkID     uint
	UserID     uint
	RedirectTo string
	Message    string
}

// Validate 执行校验状态机
// 检查顺序固定：查找 → 启用 → 过期 → 次数上限 → IP 限制 →
// 身份解析 → 成功计数。过期与到达上限会顺带停用链接（幂等）。
func (s *ValidationService) Validate(input ValidateInput) (ValidationResult, error) {
	now := time.Now()

	// 1. 查找
	link, err := s.linkRepo.GetByToken(input.Token)
	if err != nil {
		return ValidationResult{}, err
	}
	if link == nil {
		return s.reject(input, 0, constants.AccessStatusInvalidToken, "令牌不存在或已被删除"), nil
	}

	// 2. 启用状态
	if !link.IsActive {
		return s.reject(input, link.ID, constants.AccessStatusInactive, "链接已被停用"), nil
	}

	// 3. 过期
	if link.IsExpired(now) {
		if err := s.linkRepo.Deactivate(link.ID); err != nil {
			logger.Warnw("link_deactivate_failed", "link_id", link.ID, "error", err)
		}
		return s.reject(input, link.ID, constants.AccessStatusExpired, "链接已过期"), nil
	}

	// 4. 访问次数上限
	if link.IsExhausted() {
		if err := s.linkRepo.Deactivate(link.ID); err != nil {
			logger.Warnw("link_deactivate_failed", "link_id", link.ID, "error", err)
		}
		return s.reject(input, link.ID, constants.AccessStatusMaxAccesses, "链接访问次数已达上限"), nil
	}

	// 5. IP 限制（精确匹配逗号分隔白名单）
	if link.IPRestriction != "" && !ipAllowed(link.IPRestriction, input.SourceIP) {
		notes := fmt.Sprintf("来源IP %s 不在白名单内", input.SourceIP)
		return s.reject(input, link.ID, constants.AccessStatusIPRestricted, notes), nil
	}

	// 6. 身份解析
	user, err := s.identity.Resolve(link.UserID)
	if err != nil {
		return ValidationResult{}, err
	}
	if user == nil {
		return s.reject(input, link.ID, constants.AccessStatusUserNotFound, "绑定的用户已不存在"), nil
	}

	// 7. 成功：条件更新保证并发下不超上限；未抢到名额的请求
	// 按上限已满处理（链接已在同一语句内被停用）。
	updated, err := s.linkRepo.RegisterAccess(link.ID, now)
	if err != nil {
		return ValidationResult{}, err
	}
	if !updated {
		return s.reject(input, link.ID, constants.AccessStatusMaxAccesses, "链接访问次数已达上限"), nil
	}

	s.accessLogs.Record(RecordAccessInput{
		LinkID:    link.ID,
		SourceIP:  input.SourceIP,
		UserAgent: input.UserAgent,
		Status:    constants.AccessStatusSuccess,
		Notes:     fmt.Sprintf("用户 %s 登录成功", user.Email),
		RequestID: input.RequestID,
	})

	return ValidationResult{
		OK:         true,
		Status:     constants.AccessStatusSuccess,
		LinkID:     link.ID,
		UserID:     user.ID,
		RedirectTo: link.RedirectTo,
	}, nil
}

// reject 记录失败审计并返回拒绝结果
func (s *ValidationService) reject(input ValidateInput, linkID uint, status, notes string) ValidationResult {
	s.accessLogs.Record(RecordAccessInput{
		LinkID:    linkID,
		SourceIP:  input.SourceIP,
		UserAgent: input.UserAgent,
		Status:    status,
		Notes:     notes,
		RequestID: input.RequestID,
	})
	return ValidationResult{
		OK:      false,
		Status:  status,
		LinkID:  linkID,
		Message: notes,
	}
}

// ipAllowed 判断来源IP是否命中白名单（精确字符串匹配，不支持网段）
func ipAllowed(restriction, sourceIP string) bool {
	sourceIP = strings.TrimSpace(sourceIP)
	if sourceIP == "" {
		return false
	}
	for _, allowed := range strings.Split(restriction, ",") {
		if strings.TrimSpace(allowed) == sourceIP {
			return true
		}
	}
	return false
}
