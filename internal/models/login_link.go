package models

import "time"

// LoginLink 临时登录链接表
// 说明：token 创建后不可变且全局唯一；access_count 只增不减，
// 达到 max_accesses 时由校验流程在同一事务内停用链接。
type LoginLink struct {
	ID             uint       `gorm:"primarykey" json:"id"`                    // 主键
	Token          string     `gorm:"uniqueIndex;size:64;not null" json:"-"`   // 登录令牌（64位十六进制，不返回列表接口）
	UserID         uint       `gorm:"index;not null" json:"user_id"`           // 绑定的用户ID
	Email          string     `gorm:"index;not null" json:"email"`             // 授权邮箱快照
	Role           string     `gorm:"index;not null" json:"role"`              // 授权角色快照
	ExpiresAt      time.Time  `gorm:"index;not null" json:"expires_at"`        // 过期时间
	RedirectTo     string     `gorm:"default:''" json:"redirect_to"`           // 登录后跳转地址
	AccessCount    int        `gorm:"not null;default:0" json:"access_count"`  // 已访问次数
	MaxAccesses    int        `gorm:"not null;default:0" json:"max_accesses"`  // 最大访问次数（0=不限）
	IsActive       bool       `gorm:"not null;default:true;index" json:"is_active"` // 是否启用
	IPRestriction  string     `gorm:"default:''" json:"ip_restriction"`        // 允许的来源IP（逗号分隔，空=不限）
	LastAccessedAt *time.Time `gorm:"index" json:"last_accessed_at"`           // 最后访问时间
	CreatedBy      uint       `gorm:"index" json:"created_by"`                 // 创建人（管理员ID）
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`                 // 创建时间
	UpdatedAt      time.Time  `gorm:"index" json:"updated_at"`                 // 更新时间
}

// TableName 指定表名
func (LoginLink) TableName() string {
	return "login_links"
}

// IsExpired 判断链接是否已过期
func (l *LoginLink) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// IsExhausted 判断链接是否已达访问上限
func (l *LoginLink) IsExhausted() bool {
	return l.MaxAccesses > 0 && l.AccessCount >= l.MaxAccesses
}
