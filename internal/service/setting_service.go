package service

import (
	"github.com/templink-next/internal/config"
	"github.com/templink-next/internal/constants"
	"github.com/templink-next/internal/models"
	"github.com/templink-next/internal/repository"
)

// SettingService 系统设置服务
// 数据库中的设置覆盖配置文件默认值，逐字段回退。
type SettingService struct {
	cfg  *config.Config
	repo repository.SettingRepository
}

// NewSettingService 创建设置服务
func NewSettingService(cfg *config.Config, repo repository.SettingRepository) *SettingService {
	return &SettingService{
		cfg:  cfg,
		repo: repo,
	}
}

// LinkSettings 链接签发设置
type LinkSettings struct {
	DefaultDuration string `json:"default_duration"`
	DefaultRole     string `json:"default_role"`
	DefaultRedirect string `json:"default_redirect"`
	RetentionDays   int    `json:"retention_days"`
}

// SecuritySettings 安全限流设置
type SecuritySettings struct {
	MaxAttempts     int    `json:"max_attempts"`
	LockoutMinutes  int    `json:"lockout_minutes"`
	NotifyOnLockout bool   `json:"notify_on_lockout"`
	AlertEmail      string `json:"alert_email"`
}

// GetLinkSettings 读取链接设置（库中缺失的字段回退到配置）
func (s *SettingService) GetLinkSettings() LinkSettings {
	settings := LinkSettings{
		DefaultDuration: s.cfg.Links.DefaultDuration,
		DefaultRole:     s.cfg.Links.DefaultRole,
		DefaultRedirect: s.cfg.Links.DefaultRedirect,
		RetentionDays:   s.cfg.Links.RetentionDays,
	}
	stored, err := s.repo.Get(constants.SettingKeyLinkConfig)
	if err != nil || stored == nil {
		return settings
	}
	if v, ok := stored.ValueJSON[constants.SettingFieldDefaultDuration].(string); ok && v != "" {
		settings.DefaultDuration = v
	}
	if v, ok := stored.ValueJSON[constants.SettingFieldDefaultRole].(string); ok && v != "" {
		settings.DefaultRole = v
	}
	if v, ok := stored.ValueJSON[constants.SettingFieldDefaultRedirect].(string); ok && v != "" {
		settings.DefaultRedirect = v
	}
	if v, ok := jsonInt(stored.ValueJSON[constants.SettingFieldRetentionDays]); ok && v > 0 {
		settings.RetentionDays = v
	}
	return settings
}

// GetSecuritySettings 读取安全设置（库中缺失的字段回退到配置）
func (s *SettingService) GetSecuritySettings() SecuritySettings {
	settings := SecuritySettings{
		MaxAttempts:     s.cfg.Security.MaxAttempts,
		LockoutMinutes:  s.cfg.Security.LockoutMinutes,
		NotifyOnLockout: s.cfg.Security.NotifyOnLockout,
		AlertEmail:      s.cfg.Security.AlertEmail,
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = constants.SecurityDefaultMaxAttempts
	}
	if settings.LockoutMinutes <= 0 {
		settings.LockoutMinutes = constants.SecurityDefaultLockoutMinutes
	}
	stored, err := s.repo.Get(constants.SettingKeySecurityConfig)
	if err != nil || stored == nil {
		return settings
	}
	if v, ok := jsonInt(stored.ValueJSON[constants.SettingFieldMaxAttempts]); ok && v > 0 {
		settings.MaxAttempts = v
	}
	if v, ok := jsonInt(stored.ValueJSON[constants.SettingFieldLockoutMinutes]); ok && v > 0 {
		settings.LockoutMinutes = v
	}
	if v, ok := stored.ValueJSON[constants.SettingFieldNotifyOnLockout].(bool); ok {
		settings.NotifyOnLockout = v
	}
	if v, ok := stored.ValueJSON[constants.SettingFieldAlertEmail].(string); ok && v != "" {
		settings.AlertEmail = v
	}
	return settings
}

// SaveLinkSettings 保存链接设置
func (s *SettingService) SaveLinkSettings(settings LinkSettings) error {
	return s.repo.Upsert(&models.Setting{
		Key: constants.SettingKeyLinkConfig,
		ValueJSON: models.JSON{
			constants.SettingFieldDefaultDuration: settings.DefaultDuration,
			constants.SettingFieldDefaultRole:     settings.DefaultRole,
			constants.SettingFieldDefaultRedirect: settings.DefaultRedirect,
			constants.SettingFieldRetentionDays:   settings.RetentionDays,
		},
	})
}

// SaveSecuritySettings 保存安全设置
func (s *SettingService) SaveSecuritySettings(settings SecuritySettings) error {
	return s.repo.Upsert(&models.Setting{
		Key: constants.SettingKeySecurityConfig,
		ValueJSON: models.JSON{
			constants.SettingFieldMaxAttempts:     settings.MaxAttempts,
			constants.SettingFieldLockoutMinutes:  settings.LockoutMinutes,
			constants.SettingFieldNotifyOnLockout: settings.NotifyOnLockout,
			constants.SettingFieldAlertEmail:      settings.AlertEmail,
		},
	})
}

// jsonInt JSON 解码后的数值统一按 float64 读取
func jsonInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}
