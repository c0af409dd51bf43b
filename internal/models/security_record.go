package models

import "time"

// SecurityRecord IP 防爆破记录
// 说明：按来源 IP 一行；fail_count 达到阈值后锁定到
// last_attempt_at + 锁定时长，窗口过后自动复位，无需人工解锁。
type SecurityRecord struct {
	ID             uint        `gorm:"primarykey" json:"id"`                       // 主键
	IP             string      `gorm:"uniqueIndex;type:varchar(64);not null" json:"ip"` // 来源IP
	FailCount      int         `gorm:"not null;default:0" json:"fail_count"`       // 连续失败次数
	FirstAttemptAt time.Time   `gorm:"index" json:"first_attempt_at"`              // 首次失败时间
	LastAttemptAt  time.Time   `gorm:"index" json:"last_attempt_at"`               // 最近失败时间
	Attempts       AttemptList `gorm:"type:json" json:"attempts"`                  // 最近失败摘要（环形，最多10条）
	NotifiedAt     *time.Time  `json:"notified_at"`                                // 最近一次告警时间
	CreatedAt      time.Time   `json:"created_at"`                                 // 创建时间
	UpdatedAt      time.Time   `json:"updated_at"`                                 // 更新时间
}

// TableName 指定表名
func (SecurityRecord) TableName() string {
	return "security_records"
}

// LockedUntil 计算锁定截止时间
func (r *SecurityRecord) LockedUntil(lockout time.Duration) time.Time {
	return r.LastAttemptAt.Add(lockout)
}
