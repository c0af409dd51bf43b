package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/templink-next/internal/logger"
	"github.com/templink-next/internal/provider"
	"github.com/templink-next/internal/queue"
	"github.com/templink-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskLinkNotifyEmail, c.handleLinkNotifyEmail)
	mux.HandleFunc(queue.TaskSecurityAlertEmail, c.handleSecurityAlertEmail)
	mux.HandleFunc(queue.TaskLinkCleanup, c.handleLinkCleanup)
}

func (c *Consumer) handleLinkNotifyEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_link_notify_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.LinkNotifyEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_link_notify_email_unmarshal_failed", "error", err)
		return err
	}
	if payload.LinkID == 0 {
		logger.Debugw("worker_link_notify_email_skip_invalid_payload", "link_id", payload.LinkID)
		return nil
	}
	link, err := c.LinkService.Get(payload.LinkID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			logger.Debugw("worker_link_notify_email_skip_link_not_found", "link_id", payload.LinkID)
			return nil
		}
		logger.Warnw("worker_link_notify_email_fetch_link_failed", "link_id", payload.LinkID, "error", err)
		return err
	}
	// 链接已失效或已过期则无需补发通知
	if !link.IsActive || link.IsExpired(time.Now()) {
		logger.Debugw("worker_link_notify_email_skip_inactive", "link_id", link.ID)
		return nil
	}
	if strings.TrimSpace(link.Email) == "" {
		logger.Debugw("worker_link_notify_email_skip_empty_receiver", "link_id", link.ID)
		return nil
	}
	if c.EmailService == nil {
		logger.Warnw("worker_link_notify_email_skip_email_service_nil", "link_id", link.ID)
		return nil
	}
	if err := c.EmailService.SendLoginLink(link, c.LinkService.LoginURL(link.Token)); err != nil {
		switch {
		case errors.Is(err, service.ErrEmailServiceDisabled), errors.Is(err, service.ErrEmailServiceNotConfigured):
			logger.Debugw("worker_link_notify_email_skip_disabled", "link_id", link.ID)
			return nil
		default:
			logger.Warnw("worker_link_notify_email_send_failed",
				"link_id", link.ID,
				"receiver_email", link.Email,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleSecurityAlertEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_security_alert_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SecurityAlertEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_security_alert_email_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.IP) == "" {
		logger.Debugw("worker_security_alert_email_skip_invalid_payload", "ip", payload.IP)
		return nil
	}
	settings := c.SettingService.GetSecuritySettings()
	alertEmail := strings.TrimSpace(settings.AlertEmail)
	if alertEmail == "" {
		logger.Debugw("worker_security_alert_email_skip_no_receiver", "ip", payload.IP)
		return nil
	}
	record, err := c.SecurityRecordRepo.GetByIP(payload.IP)
	if err != nil {
		logger.Warnw("worker_security_alert_email_fetch_record_failed", "ip", payload.IP, "error", err)
		return err
	}
	input := service.SecurityAlertInput{
		IP:        payload.IP,
		FailCount: payload.FailCount,
	}
	if record != nil {
		input.Attempts = record.Attempts
		input.LockedAt = record.LastAttemptAt
	}
	if c.EmailService == nil {
		logger.Warnw("worker_security_alert_email_skip_email_service_nil", "ip", payload.IP)
		return nil
	}
	if err := c.EmailService.SendSecurityAlert(alertEmail, input); err != nil {
		switch {
		case errors.Is(err, service.ErrEmailServiceDisabled), errors.Is(err, service.ErrEmailServiceNotConfigured):
			logger.Debugw("worker_security_alert_email_skip_disabled", "ip", payload.IP)
			return nil
		default:
			logger.Warnw("worker_security_alert_email_send_failed", "ip", payload.IP, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleLinkCleanup(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_link_cleanup_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	removed, err := c.LinkService.CleanupExpired()
	if err != nil {
		logger.Warnw("worker_link_cleanup_failed", "error", err)
		return err
	}
	if removed > 0 {
		logger.Infow("worker_link_cleanup_done", "removed", removed)
	}
	return nil
}
