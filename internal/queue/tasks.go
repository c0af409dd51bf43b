package queue

import (
	"encoding/json"

	"github.com/templink-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskLinkNotifyEmail 链接签发通知邮件任务
	TaskLinkNotifyEmail = constants.TaskLinkNotifyEmail
	// TaskSecurityAlertEmail 可疑活动告警邮件任务
	TaskSecurityAlertEmail = constants.TaskSecurityAlertEmail
	// TaskLinkCleanup 过期链接清理任务
	TaskLinkCleanup = constants.TaskLinkCleanup
)

// LinkNotifyEmailPayload 链接通知邮件任务载荷
type LinkNotifyEmailPayload struct {
	LinkID uint `json:"link_id"`
}

// SecurityAlertEmailPayload 安全告警邮件任务载荷
type SecurityAlertEmailPayload struct {
	IP        string `json:"ip"`
	FailCount int    `json:"fail_count"`
}

// LinkCleanupPayload 过期链接清理任务载荷
type LinkCleanupPayload struct{}

// NewLinkNotifyEmailTask 创建链接通知邮件任务
func NewLinkNotifyEmailTask(payload LinkNotifyEmailPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLinkNotifyEmail, body), nil
}

// NewSecurityAlertEmailTask 创建安全告警邮件任务
func NewSecurityAlertEmailTask(payload SecurityAlertEmailPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSecurityAlertEmail, body), nil
}

// NewLinkCleanupTask 创建过期链接清理任务
func NewLinkCleanupTask() (*asynq.Task, error) {
	body, err := json.Marshal(LinkCleanupPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLinkCleanup, body), nil
}
