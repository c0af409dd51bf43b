package service

import (
	"context"
	"time"

	"github.com/templink-next/internal/cache"
	"github.com/templink-next/internal/constants"
	"github.com/templink-next/internal/logger"
	"github.com/templink-next/internal/models"
	"github.com/templink-next/internal/queue"
	"github.com/templink-next/internal/repository"
)

// securityAlertWindow 同一 IP 告警的最小间隔
const securityAlertWindow = time.Hour

// SecurityService 防爆破限流服务
// 按来源 IP 统计连续失败，达到阈值后锁定一个滑动窗口；
// 窗口过后自动复位，无需人工解锁。独立于校验引擎，
// 由调用方在进入引擎前检查、在引擎拒绝后上报。
type SecurityService struct {
	repo     repository.SecurityRecordRepository
	settings *SettingService
	queue    *queue.Client

	now func() time.Time // 测试注入时钟
}

// NewSecurityService 创建安全限流服务
func NewSecurityService(
	repo repository.SecurityRecordRepository,
	settings *SettingService,
	queueClient *queue.Client,
) *SecurityService {
	return &SecurityService{
		repo:     repo,
		settings: settings,
		queue:    queueClient,
		now:      time.Now,
	}
}

// CheckResult 锁定检查结果
type CheckResult struct {
	Locked      bool
	LockedUntil time.Time
}

// Check 检查来源 IP 是否处于锁定窗口内
// 窗口已过的记录当场复位计数（自愈），避免留下永久锁。
func (s *SecurityService) Check(ip string) (CheckResult, error) {
	record, err := s.repo.GetByIP(ip)
	if err != nil {
		return CheckResult{}, err
	}
	if record == nil {
		return CheckResult{}, nil
	}

	settings := s.settings.GetSecuritySettings()
	if record.FailCount < settings.MaxAttempts {
		return CheckResult{}, nil
	}

	lockout := time.Duration(settings.LockoutMinutes) * time.Minute
	until := record.LockedUntil(lockout)
	if s.now().After(until) {
		// 整行删除而非清零：下一轮失败从全新记录开始计数，
		// first_attempt_at 不会残留上一轮的时间
		if err := s.repo.DeleteByIP(record.IP); err != nil {
			return CheckResult{}, err
		}
		return CheckResult{}, nil
	}

	return CheckResult{Locked: true, LockedUntil: until}, nil
}

// RecordFailureInput 失败上报输入
type RecordFailureInput struct {
	IP        string
	Token     string
	Reason    string
	UserAgent string
}

// RecordFailure 上报一次失败尝试
// 计数通过条件更新原子累加（并发失败不丢计数），
// 随后回写环形缓冲（最多保留最近10条摘要，只存令牌片段）。
// 恰好达到阈值且开启告警时，推送一封管理员告警邮件，
// 同一 IP 每小时至多一封。
func (s *SecurityService) RecordFailure(input RecordFailureInput) error {
	now := s.now()

	record, err := s.repo.IncrementFailure(input.IP, now)
	if err != nil {
		return err
	}

	record.Attempts = append(record.Attempts, models.AttemptSummary{
		TokenFragment: TokenFragment(input.Token, constants.SecurityTokenFragmentLength),
		Reason:        input.Reason,
		UserAgent:     input.UserAgent,
		At:            now.Unix(),
	})
	if len(record.Attempts) > constants.SecurityAttemptBufferSize {
		record.Attempts = record.Attempts[len(record.Attempts)-constants.SecurityAttemptBufferSize:]
	}

	settings := s.settings.GetSecuritySettings()
	justLocked := record.FailCount == settings.MaxAttempts

	if justLocked && settings.NotifyOnLockout {
		s.notifyLockout(record, settings)
	}

	return s.repo.SaveAttempts(record)
}

// Reset 清除某 IP 的限流记录（管理员手工解锁）
func (s *SecurityService) Reset(ip string) error {
	return s.repo.DeleteByIP(ip)
}

// List 限流记录分页查询
func (s *SecurityService) List(page, pageSize int) ([]models.SecurityRecord, int64, error) {
	return s.repo.List(page, pageSize)
}

// PurgeIdle 清理空闲记录（最后一次失败早于两个锁定窗口前）
func (s *SecurityService) PurgeIdle() (int64, error) {
	settings := s.settings.GetSecuritySettings()
	lockout := time.Duration(settings.LockoutMinutes) * time.Minute
	cutoff := s.now().Add(-2 * lockout)
	return s.repo.PurgeIdleBefore(cutoff)
}

// notifyLockout 触发锁定告警（失败不影响主流程）
func (s *SecurityService) notifyLockout(record *models.SecurityRecord, settings SecuritySettings) {
	ctx := context.Background()
	first, err := cache.MarkSecurityAlertSent(ctx, record.IP, securityAlertWindow)
	if err != nil {
		logger.Warnw("security_alert_dedup_failed", "ip", record.IP, "error", err)
		return
	}
	if !first {
		return
	}

	now := s.now()
	record.NotifiedAt = &now

	if err := s.queue.EnqueueSecurityAlertEmail(queue.SecurityAlertEmailPayload{
		IP:        record.IP,
		FailCount: record.FailCount,
	}); err != nil {
		logger.Warnw("security_alert_enqueue_failed", "ip", record.IP, "error", err)
	}
}
