package constants

// 访问日志结果常量（校验结果，互斥且穷尽）
const (
	AccessStatusSuccess      = "success"
	AccessStatusInvalidToken = "invalid_token"
	AccessStatusInactive     = "inactive"
	AccessStatusExpired      = "expired"
	AccessStatusMaxAccesses  = "max_accesses"
	AccessStatusIPRestricted = "ip_restricted"
	AccessStatusUserNotFound = "user_not_found"
)

// 访问日志管理动作常量（后台状态变更）
const (
	AccessStatusActivated   = "activated"
	AccessStatusDeactivated = "deactivated"
	AccessStatusExtended    = "extended"
)

// 链接列表状态过滤常量
const (
	LinkFilterAll      = "all"
	LinkFilterActive   = "active"
	LinkFilterInactive = "inactive"
	LinkFilterExpired  = "expired"
)

// 用户账号状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 角色常量（宿主系统内置角色）
const (
	RoleAdministrator = "administrator"
	RoleEditor        = "editor"
	RoleAuthor        = "author"
	RoleContributor   = "contributor"
	RoleSubscriber    = "subscriber"
)

// 安全限流默认值
const (
	SecurityDefaultMaxAttempts    = 5
	SecurityDefaultLockoutMinutes = 30
	SecurityAttemptBufferSize     = 10
	SecurityTokenFragmentLength   = 8
)

// 设置键常量
const (
	SettingKeyLinkConfig     = "link_config"
	SettingKeySecurityConfig = "security_config"
)

// 链接设置字段常量
const (
	SettingFieldDefaultDuration = "default_duration"
	SettingFieldDefaultRole     = "default_role"
	SettingFieldDefaultRedirect = "default_redirect"
	SettingFieldRetentionDays   = "retention_days"
)

// 安全设置字段常量
const (
	SettingFieldMaxAttempts     = "max_attempts"
	SettingFieldLockoutMinutes  = "lockout_minutes"
	SettingFieldNotifyOnLockout = "notify_on_lockout"
	SettingFieldAlertEmail      = "alert_email"
)

// 队列与任务常量
const (
	QueueDefault           = "default"
	TaskLinkNotifyEmail    = "link:notify_email"
	TaskSecurityAlertEmail = "security:alert_email"
	TaskLinkCleanup        = "link:cleanup"
)
