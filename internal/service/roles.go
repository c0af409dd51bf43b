package service

import "github.com/templink-next/internal/constants"

// RoleRegistry 宿主系统角色注册表
// 链接授予的角色必须是注册表中的已知角色。
type RoleRegistry struct {
	names       map[string]string
	defaultRole string
}

// NewRoleRegistry 创建内置角色注册表
func NewRoleRegistry(defaultRole string) *RoleRegistry {
	if defaultRole == "" {
		defaultRole = constants.RoleSubscriber
	}
	return &RoleRegistry{
		names: map[string]string{
			constants.RoleAdministrator: "网站管理员",
			constants.RoleEditor:        "编辑",
			constants.RoleAuthor:        "作者",
			constants.RoleContributor:   "投稿者",
			constants.RoleSubscriber:    "订阅者",
		},
		defaultRole: defaultRole,
	}
}

// Exists 判断角色是否存在
func (r *RoleRegistry) Exists(role string) bool {
	_, ok := r.names[role]
	return ok
}

// DisplayName 返回角色展示名，未知角色返回原值
func (r *RoleRegistry) DisplayName(role string) string {
	if name, ok := r.names[role]; ok {
		return name
	}
	return role
}

// Default 返回默认角色
func (r *RoleRegistry) Default() string {
	return r.defaultRole
}

// All 返回全部角色标识
func (r *RoleRegistry) All() []string {
	return []string{
		constants.RoleAdministrator,
		constants.RoleEditor,
		constants.RoleAuthor,
		constants.RoleContributor,
		constants.RoleSubscriber,
	}
}
