package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/templink-next/internal/config"
	"github.com/templink-next/internal/constants"
	"github.com/templink-next/internal/models"
	"github.com/templink-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupSettingServiceTest(t *testing.T) (*SettingService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:setting_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Setting{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := &config.Config{}
	cfg.Links.DefaultDuration = "7 days"
	cfg.Links.DefaultRole = constants.RoleSubscriber
	cfg.Links.RetentionDays = 30
	cfg.Security.MaxAttempts = 5
	cfg.Security.LockoutMinutes = 30
	return NewSettingService(cfg, repository.NewSettingRepository(db)), db
}

func TestGetLinkSettingsFallsBackToConfig(t *testing.T) {
	svc, _ := setupSettingServiceTest(t)

	settings := svc.GetLinkSettings()
	if settings.DefaultDuration != "7 days" || settings.DefaultRole != constants.RoleSubscriber || settings.RetentionDays != 30 {
		t.Fatalf("unexpected fallback settings: %+v", settings)
	}
}

func TestSaveAndGetLinkSettings(t *testing.T) {
	svc, _ := setupSettingServiceTest(t)

	if err := svc.SaveLinkSettings(LinkSettings{
		DefaultDuration: "3 days",
		DefaultRole:     constants.RoleEditor,
		DefaultRedirect: "/welcome",
		RetentionDays:   14,
	}); err != nil {
		t.Fatalf("SaveLinkSettings error: %v", err)
	}

	settings := svc.GetLinkSettings()
	if settings.DefaultDuration != "3 days" || settings.DefaultRole != constants.RoleEditor {
		t.Fatalf("unexpected stored settings: %+v", settings)
	}
	if settings.DefaultRedirect != "/welcome" || settings.RetentionDays != 14 {
		t.Fatalf("unexpected stored settings: %+v", settings)
	}

	// 覆盖写入应更新而非重复插入
	if err := svc.SaveLinkSettings(LinkSettings{DefaultDuration: "1 day"}); err != nil {
		t.Fatalf("SaveLinkSettings error: %v", err)
	}
	if got := svc.GetLinkSettings().DefaultDuration; got != "1 day" {
		t.Fatalf("expected updated duration, got %s", got)
	}
}

func TestGetSecuritySettingsDefaults(t *testing.T) {
	svc, _ := setupSettingServiceTest(t)

	settings := svc.GetSecuritySettings()
	if settings.MaxAttempts != 5 || settings.LockoutMinutes != 30 {
		t.Fatalf("unexpected fallback settings: %+v", settings)
	}

	// 配置缺失时回退到内置默认
	svc.cfg.Security.MaxAttempts = 0
	svc.cfg.Security.LockoutMinutes = 0
	settings = svc.GetSecuritySettings()
	if settings.MaxAttempts != constants.SecurityDefaultMaxAttempts {
		t.Fatalf("expected builtin max attempts, got %d", settings.MaxAttempts)
	}
	if settings.LockoutMinutes != constants.SecurityDefaultLockoutMinutes {
		t.Fatalf("expected builtin lockout minutes, got %d", settings.LockoutMinutes)
	}
}

func TestSaveAndGetSecuritySettings(t *testing.T) {
	svc, _ := setupSettingServiceTest(t)

	if err := svc.SaveSecuritySettings(SecuritySettings{
		MaxAttempts:     3,
		LockoutMinutes:  10,
		NotifyOnLockout: true,
		AlertEmail:      "sec@example.com",
	}); err != nil {
		t.Fatalf("SaveSecuritySettings error: %v", err)
	}

	settings := svc.GetSecuritySettings()
	if settings.MaxAttempts != 3 || settings.LockoutMinutes != 10 {
		t.Fatalf("unexpected stored settings: %+v", settings)
	}
	if !settings.NotifyOnLockout || settings.AlertEmail != "sec@example.com" {
		t.Fatalf("unexpected stored settings: %+v", settings)
	}
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  User@Example.COM  ")
	if err != nil {
		t.Fatalf("NormalizeEmail error: %v", err)
	}
	if got != "user@example.com" {
		t.Fatalf("expected lowercased address, got %s", got)
	}

	for _, bad := range []string{"", "not-an-email", "a@", "Jane Doe <jane@example.com>"} {
		if _, err := NormalizeEmail(bad); !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("expected ErrInvalidEmail for %q, got: %v", bad, err)
		}
	}
}
