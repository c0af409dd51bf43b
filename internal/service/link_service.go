package service

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/templink-next/internal/cache"
	"github.com/templink-next/internal/config"
	"github.com/templink-next/internal/constants"
	"github.com/templink-next/internal/logger"
	"github.com/templink-next/internal/models"
	"github.com/templink-next/internal/queue"
	"github.com/templink-next/internal/repository"
)

// tokenRetryLimit 令牌唯一键冲突时的重试上限
const tokenRetryLimit = 3

// LinkService 登录链接管理服务
type LinkService struct {
	cfg        *config.Config
	linkRepo   repository.LinkRepository
	userRepo   repository.UserRepository
	identity   *IdentityService
	accessLogs *AccessLogService
	settings   *SettingService
	queue      *queue.Client
}

// NewLinkService 创建链接管理服务
func NewLinkService(
	cfg *config.Config,
	linkRepo repository.LinkRepository,
	userRepo repository.UserRepository,
	identity *IdentityService,
	accessLogs *AccessLogService,
	settings *SettingService,
	queueClient *queue.Client,
) *LinkService {
	return &LinkService{
		cfg:        cfg,
		linkRepo:   linkRepo,
		userRepo:   userRepo,
		identity:   identity,
		accessLogs: accessLogs,
		settings:   settings,
		queue:      queueClient,
	}
}

// CreateLinkInput 创建链接输入
type CreateLinkInput struct {
	Email         string
	Role          string
	Duration      string
	RedirectTo    string
	MaxAccesses   int
	IPRestriction string
	FirstName     string
	LastName      string
	CreatedBy     uint
}

// CreateLinkResult 创建链接结果
type CreateLinkResult struct {
	Link     *models.LoginLink
	LoginURL string
}

// Create 签发一条登录链接
// 流程：邮箱校验 → 默认值回填 → 有效期解析 → 身份绑定 →
// 令牌生成与落库（唯一键冲突时重新生成）→ 通知邮件入队。
func (s *LinkService) Create(input CreateLinkInput) (*CreateLinkResult, error) {
	email, err := NormalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}

	defaults := s.settings.GetLinkSettings()

	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = defaults.DefaultRole
	}
	duration := strings.TrimSpace(input.Duration)
	if duration == "" {
		duration = defaults.DefaultDuration
	}
	redirectTo := strings.TrimSpace(input.RedirectTo)
	if redirectTo == "" {
		redirectTo = defaults.DefaultRedirect
	}

	expiresAt, err := ResolveExpiry(duration, time.Now())
	if err != nil {
		return nil, err
	}

	ipRestriction, err := normalizeIPRestriction(input.IPRestriction)
	if err != nil {
		return nil, err
	}

	userID, err := s.identity.Bind(BindInput{
		Email:     email,
		Role:      role,
		FirstName: input.FirstName,
		LastName:  input.LastName,
	})
	if err != nil {
		return nil, err
	}

	maxAccesses := input.MaxAccesses
	if maxAccesses < 0 {
		maxAccesses = 0
	}

	link := &models.LoginLink{
		UserID:        userID,
		Email:         email,
		Role:          role,
		ExpiresAt:     expiresAt,
		RedirectTo:    redirectTo,
		MaxAccesses:   maxAccesses,
		IsActive:      true,
		IPRestriction: ipRestriction,
		CreatedBy:     input.CreatedBy,
	}

	for attempt := 0; ; attempt++ {
		token, err := GenerateToken()
		if err != nil {
			return nil, err
		}
		link.Token = token
		if err := s.linkRepo.Create(link); err != nil {
			if repository.IsDuplicateTokenError(err) && attempt < tokenRetryLimit {
				logger.Warnw("link_token_collision", "attempt", attempt+1)
				continue
			}
			return nil, err
		}
		break
	}

	if err := s.identity.AttachSourceLink(userID, link.ID); err != nil {
		logger.Warnw("link_attach_source_failed", "link_id", link.ID, "error", err)
	}

	s.invalidateStats()

	if s.cfg.Links.NotifyOnCreate {
		if err := s.queue.EnqueueLinkNotifyEmail(queue.LinkNotifyEmailPayload{LinkID: link.ID}); err != nil {
			logger.Warnw("link_notify_enqueue_failed", "link_id", link.ID, "error", err)
		}
	}

	logger.Infow("link_created",
		"link_id", link.ID,
		"email", email,
		"role", role,
		"expires_at", expiresAt,
		"created_by", input.CreatedBy,
	)

	return &CreateLinkResult{
		Link:     link,
		LoginURL: s.LoginURL(link.Token),
	}, nil
}

// Get 获取链接详情
func (s *LinkService) Get(id uint) (*models.LoginLink, error) {
	link, err := s.linkRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrNotFound
	}
	return link, nil
}

// List 链接分页查询
func (s *LinkService) List(filter repository.LinkListFilter) ([]models.LoginLink, int64, error) {
	return s.linkRepo.List(filter)
}

// Delete 删除链接
// 级联：删除访问日志；若绑定的是临时账号且这是其最后一条链接，
// 一并删除该账号。
func (s *LinkService) Delete(id uint) error {
	link, err := s.linkRepo.GetByID(id)
	if err != nil {
		return err
	}
	if link == nil {
		return ErrNotFound
	}

	deleted, err := s.linkRepo.Delete(id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}

	if err := s.linkRepo.DeleteLogsByLinkID(id); err != nil {
		logger.Warnw("link_logs_cleanup_failed", "link_id", id, "error", err)
	}

	s.cleanupEphemeralUser(link.UserID)
	s.invalidateStats()

	logger.Infow("link_deleted", "link_id", id, "email", link.Email)
	return nil
}

// SetActiveInput 状态切换输入
type SetActiveInput struct {
	ID        uint
	Active    bool
	SourceIP  string
	UserAgent string
	RequestID string
}

// SetActive 启用/停用链接（后台管理操作，落一条审计记录）
// 重新启用时若有效期已过，按默认有效期顺延，
// 否则启用后的第一次校验仍会因过期被拒并再次停用
func (s *LinkService) SetActive(input SetActiveInput) error {
	status := constants.AccessStatusDeactivated
	notes := "管理员停用链接"
	if input.Active {
		status = constants.AccessStatusActivated
		notes = "管理员启用链接"

		link, err := s.linkRepo.GetByID(input.ID)
		if err != nil {
			return err
		}
		if link == nil {
			return ErrNotFound
		}
		if link.IsExpired(time.Now()) {
			expiresAt, err := ResolveExpiry(s.settings.GetLinkSettings().DefaultDuration, time.Now())
			if err != nil {
				return err
			}
			if _, err := s.linkRepo.UpdateExpiry(input.ID, expiresAt, true); err != nil {
				return err
			}
			notes = fmt.Sprintf("管理员启用链接，有效期顺延至 %s", expiresAt.Format("2006-01-02 15:04:05"))
			s.recordStateChange(input, status, notes)
			return nil
		}
	}

	updated, err := s.linkRepo.SetActive(input.ID, input.Active)
	if err != nil {
		return err
	}
	if !updated {
		return ErrNotFound
	}
	s.recordStateChange(input, status, notes)
	return nil
}

// recordStateChange 状态切换落审计并失效统计缓存
func (s *LinkService) recordStateChange(input SetActiveInput, status, notes string) {
	s.accessLogs.Record(RecordAccessInput{
		LinkID:    input.ID,
		SourceIP:  input.SourceIP,
		UserAgent: input.UserAgent,
		Status:    status,
		Notes:     notes,
		RequestID: input.RequestID,
	})
	s.invalidateStats()
}

// ExtendInput 延长有效期输入
type ExtendInput struct {
	ID        uint
	Duration  string
	SourceIP  string
	UserAgent string
	RequestID string
}

// Extend 按有效期描述延长链接并强制重新启用
func (s *LinkService) Extend(input ExtendInput) error {
	expiresAt, err := ResolveExpiry(input.Duration, time.Now())
	if err != nil {
		return err
	}
	return s.setExpiry(input.ID, expiresAt, input.SourceIP, input.UserAgent, input.RequestID)
}

// SetExpiry 直接设置过期时间（拒绝过去的时间）并强制重新启用
func (s *LinkService) SetExpiry(id uint, expiresAt time.Time, sourceIP, userAgent, requestID string) error {
	if !expiresAt.After(time.Now()) {
		return ErrPastDate
	}
	return s.setExpiry(id, expiresAt, sourceIP, userAgent, requestID)
}

func (s *LinkService) setExpiry(id uint, expiresAt time.Time, sourceIP, userAgent, requestID string) error {
	updated, err := s.linkRepo.UpdateExpiry(id, expiresAt, true)
	if err != nil {
		return err
	}
	if !updated {
		return ErrNotFound
	}

	s.accessLogs.Record(RecordAccessInput{
		LinkID:    id,
		SourceIP:  sourceIP,
		UserAgent: userAgent,
		Status:    constants.AccessStatusExtended,
		Notes:     fmt.Sprintf("管理员延长有效期至 %s", expiresAt.Format("2006-01-02 15:04:05")),
		RequestID: requestID,
	})

	s.invalidateStats()
	return nil
}

// CleanupExpired 清理过期超出保留期的链接
// 返回删除的链接数。可重入：按 ID 删除是幂等的，并发执行
// 两次不会比执行一次产生更差的结果。
func (s *LinkService) CleanupExpired() (int, error) {
	retention := s.settings.GetLinkSettings().RetentionDays
	if retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retention)

	links, err := s.linkRepo.ListExpiredBefore(cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, link := range links {
		deleted, err := s.linkRepo.Delete(link.ID)
		if err != nil {
			logger.Warnw("link_cleanup_delete_failed", "link_id", link.ID, "error", err)
			continue
		}
		if !deleted {
			continue
		}
		if err := s.linkRepo.DeleteLogsByLinkID(link.ID); err != nil {
			logger.Warnw("link_logs_cleanup_failed", "link_id", link.ID, "error", err)
		}
		s.cleanupEphemeralUser(link.UserID)
		removed++
	}

	if removed > 0 {
		s.invalidateStats()
		logger.Infow("link_cleanup_done", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// Stats 链接状态统计（优先读缓存，未命中时回源并回填）
func (s *LinkService) Stats() (repository.LinkStatusCounts, error) {
	ctx := context.Background()
	if cached, hit, err := cache.GetLinkStats(ctx); err == nil && hit {
		return repository.LinkStatusCounts{
			Total:    cached.Total,
			Active:   cached.Active,
			Inactive: cached.Inactive,
			Expired:  cached.Expired,
		}, nil
	}

	counts, err := s.linkRepo.StatusCounts(time.Now())
	if err != nil {
		return counts, err
	}
	if err := cache.SetLinkStats(ctx, &cache.LinkStats{
		Total:    counts.Total,
		Active:   counts.Active,
		Inactive: counts.Inactive,
		Expired:  counts.Expired,
	}); err != nil {
		logger.Warnw("link_stats_cache_failed", "error", err)
	}
	return counts, nil
}

// LoginURL 构造登录链接地址
func (s *LinkService) LoginURL(token string) string {
	base := strings.TrimRight(s.cfg.Links.BaseURL, "/")
	return fmt.Sprintf("%s/api/v1/login?token=%s", base, url.QueryEscape(token))
}

// cleanupEphemeralUser 删除失去最后一条链接的临时账号
func (s *LinkService) cleanupEphemeralUser(userID uint) {
	if userID == 0 {
		return
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil || user == nil || !user.IsTemporary {
		return
	}
	remaining, err := s.linkRepo.CountByUser(userID)
	if err != nil {
		logger.Warnw("ephemeral_user_count_failed", "user_id", userID, "error", err)
		return
	}
	if remaining > 0 {
		return
	}
	if err := s.userRepo.Delete(userID); err != nil {
		logger.Warnw("ephemeral_user_delete_failed", "user_id", userID, "error", err)
		return
	}
	logger.Infow("ephemeral_user_deleted", "user_id", userID, "email", user.Email)
}

// invalidateStats 任何链接写操作后失效统计缓存
func (s *LinkService) invalidateStats() {
	if err := cache.DelLinkStats(context.Background()); err != nil {
		logger.Warnw("link_stats_invalidate_failed", "error", err)
	}
}

// normalizeIPRestriction 规范化 IP 白名单（去空格、去空项）
// 匹配按精确字符串比对，写错一项会让链接从任何来源都无法使用，
// 所以每一项必须是合法的 IP 地址，否则拒绝创建
func normalizeIPRestriction(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	var ips []string
	for _, item := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if net.ParseIP(trimmed) == nil {
			return "", ErrInvalidIPList
		}
		ips = append(ips, trimmed)
	}
	return strings.Join(ips, ","), nil
}
