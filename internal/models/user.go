package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户表
// 说明：临时账号由链接签发流程懒创建，通过 is_temporary + source_link_id
// 标记归属；同邮箱的后续链接会复用同一临时账号。
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`                 // 主键
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`    // 邮箱
	Username     string         `gorm:"uniqueIndex;not null" json:"username"` // 用户名（临时账号随机生成）
	PasswordHash string         `gorm:"not null" json:"-"`                    // 密码哈希（临时账号为一次性随机凭据）
	FirstName    string         `gorm:"default:''" json:"first_name"`         // 名
	LastName     string         `gorm:"default:''" json:"last_name"`          // 姓
	Role         string         `gorm:"index;not null" json:"role"`           // 角色
	Status       string         `gorm:"default:'active'" json:"status"`       // 账号状态
	IsTemporary  bool           `gorm:"not null;default:false;index" json:"is_temporary"` // 是否临时账号
	SourceLinkID uint           `gorm:"index" json:"source_link_id"`          // 创建该账号的链接ID
	LastLoginAt  *time.Time     `json:"last_login_at"`                        // 最后登录时间
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`              // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`              // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                       // 软删除时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
