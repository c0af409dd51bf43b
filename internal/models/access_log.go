package models

import "time"

// AccessLog 访问审计日志
// 说明：只追加不修改。每次令牌校验（无论结果）与每次后台状态变更
// （启用/停用/延期）各记录一条。token 未命中任何链接时 link_id 为 0。
type AccessLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`                    // 主键
	LinkID    uint      `gorm:"index" json:"link_id"`                    // 链接ID（未命中时为0）
	SourceIP  string    `gorm:"type:varchar(64);index" json:"source_ip"` // 来源IP
	UserAgent string    `gorm:"type:text" json:"user_agent"`             // 客户端UA
	Status    string    `gorm:"index;not null" json:"status"`            // 结果枚举
	Notes     string    `gorm:"type:text" json:"notes"`                  // 详情描述
	RequestID string    `gorm:"type:varchar(64);index" json:"request_id"` // 请求追踪ID
	CreatedAt time.Time `gorm:"index" json:"created_at"`                 // 记录时间
}

// TableName 指定表名
func (AccessLog) TableName() string {
	return "access_logs"
}
