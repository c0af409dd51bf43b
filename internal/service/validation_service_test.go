package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/templink-next/internal/constants"
	"github.com/templink-next/internal/models"
	"github.com/templink-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupValidationServiceTest(t *testing.T) (*ValidationService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:validation_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.LoginLink{},
		&models.AccessLog{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	linkRepo := repository.NewLinkRepository(db)
	userRepo := repository.NewUserRepository(db)
	identity := NewIdentityService(userRepo, NewRoleRegistry(""))
	accessLogs := NewAccessLogService(repository.NewAccessLogRepository(db))
	return NewValidationService(linkRepo, identity, accessLogs), db
}

func seedValidationUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{
		Email:        email,
		Username:     "temp_" + email,
		PasswordHash: "hash",
		Role:         constants.RoleEditor,
		Status:       constants.UserStatusActive,
		IsTemporary:  true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return &user
}

func seedValidationLink(t *testing.T, db *gorm.DB, link *models.LoginLink) *models.LoginLink {
	t.Helper()
	if link.Token == "" {
		token, err := GenerateToken()
		if err != nil {
			t.Fatalf("generate token failed: %v", err)
		}
		link.Token = token
	}
	if link.ExpiresAt.IsZero() {
		link.ExpiresAt = time.Now().Add(time.Hour)
	}
	if err := db.Create(link).Error; err != nil {
		t.Fatalf("create link failed: %v", err)
	}
	return link
}

func countAccessLogs(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.AccessLog{}).Count(&count).Error; err != nil {
		t.Fatalf("count access logs failed: %v", err)
	}
	return count
}

func TestValidateInvalidToken(t *testing.T) {
	svc, db := setupValidationServiceTest(t)

	result, err := svc.Validate(ValidateInput{Token: "no-such-token", SourceIP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if result.OK || result.Status != constants.AccessStatusInvalidToken {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.LinkID != 0 {
		t.Fatalf("unknown token must not leak a link id, got %d", result.LinkID)
	}

	var entry models.AccessLog
	if err := db.First(&entry).Error; err != nil {
		t.Fatalf("expected audit entry: %v", err)
	}
	if entry.LinkID != 0 || entry.Status != constants.AccessStatusInvalidToken {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
	if got := countAccessLogs(t, db); got != 1 {
		t.Fatalf("expected exactly 1 audit entry, got %d", got)
	}
}

func TestValidateInactiveLink(t *testing.T) {
	svc, db := setupValidationServiceTest(t)
	user := seedValidationUser(t, db, "inactive@example.com")
	link := seedValidationLink(t, db, &models.LoginLink{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		IsActive: false,
	})

	result, err := svc.Validate(ValidateInput{Token: link.Token, SourceIP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if result.OK || result.Status != constants.AccessStatusInactive {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.LinkID != link.ID {
		t.Fatalf("expected link id %d, got %d", link.ID, result.LinkID)
	}
}

func TestValidateExpiredLinkDeactivates(t *testing.T) {
	svc, db := setupValidationServiceTest(t)
	user := seedValidationUser(t, db, "expired@example.com")
	link := seedValidationLink(t, db, &models.LoginLink{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		IsActive:  true,
		ExpiresAt: time.Now().Add(-time.Minute),
	})

	result, err := svc.Validate(ValidateInput{Token: link.Token, SourceIP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if result.OK || result.Status != constants.AccessStatusExpired {
		t.Fatalf("unexpected result: %+v", result)
	}

	var stored models.LoginLink
	if err := db.First(&stored, link.ID).Error; err != nil {
		t.Fatalf("load link failed: %v", err)
	}
	if stored.IsActive {
		t.Fatalf("expired link should have been deactivated")
	}

	// 再次出示同一过期令牌：停用检查先于过期检查，结果稳定可重复
	again, err := svc.Validate(ValidateInput{Token: link.Token, SourceIP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if again.OK || again.Status != constants.AccessStatusInactive {
		t.Fatalf("unexpected repeat result: %+v", again)
	}
	if got := countAccessLogs(t, db); got != 2 {
		t.Fatalf("expected 2 audit entries, got %d", got)
	}
}

func TestValidateMaxAccessesReached(t *testing.T) {
	svc, db := setupValidationServiceTest(t)
	user := seedValidationUser(t, db, "capped@example.com")
	link := seedValidationLink(t, db, &models.LoginLink{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		IsActive:    true,
		MaxAccesses: 3,
		AccessCount: 3,
	})

	result, err := svc.Validate(ValidateInput{Token: link.Token, SourceIP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if result.OK || result.Status != constants.AccessStatusMaxAccesses {
		t.Fatalf("unexpected result: %+v", result)
	}

	var stored models.LoginLink
	if err := db.First(&stored, link.ID).Error; err != nil {
		t.Fatalf("load link failed: %v", err)
	}
	if stored.IsActive {
		t.Fatalf("exhausted link should have been deactivated")
	}
}

func TestValidateCapBoundary(t *testing.T) {
	svc, db := setupValidationServiceTest(t)
	user := seedValidationUser(t, db, "boundary@example.com")
	link := seedValidationLink(t, db, &models.LoginLink{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		IsActive:    true,
		MaxAccesses: 2,
	})

	// 前两次成功，第二次登录用尽名额并停用链接
	for i := 0; i < 2; i++ {
		result, err := svc.Validate(ValidateInput{Token: link.Token, SourceIP: "10.0.0.1"})
		if err != nil {
			t.Fatalf("Validate #%d error: %v", i+1, err)
		}
		if !result.OK || result.Status != constants.AccessStatusSuccess {
			t.Fatalf("attempt #%d unexpected result: %+v", i+1, result)
		}
	}

	var stored models.LoginLink
	if err := db.First(&stored, link.ID).Error; err != nil {
		t.Fatalf("load link failed: %v", err)
	}
	if stored.AccessCount != 2 {
		t.Fatalf("expected access_count 2, got %d", stored.AccessCount)
	}
	if stored.IsActive {
		t.Fatalf("link should deactivate once the cap is consumed")
	}
	if stored.LastAccessedAt == nil {
		t.Fatalf("last_accessed_at should be set after a success")
	}

	third, err := svc.Validate(ValidateInput{Token: link.Token, SourceIP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if third.OK {
		t.Fatalf("third attempt must be rejected: %+v", third)
	}
	if got := countAccessLogs(t, db); got != 3 {
		t.Fatalf("expected 3 audit entries, got %d", got)
	}
}

func TestValidateIPRestriction(t *testing.T) {
	svc, db := setupValidationServiceTest(t)
	user := seedValidationUser(t, db, "iprestricted@example.com")
	link := seedValidationLink(t, db, &models.LoginLink{
		UserID:        user.ID,
		Email:         user.Email,
		Role:          user.Role,
		IsActive:      true,
		IPRestriction: "10.0.0.1, 192.168.1.5",
	})

	denied, err := svc.Validate(ValidateInput{Token: link.Token, SourceIP: "10.0.0.2"})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if denied.OK || denied.Status != constants.AccessStatusIPRestricted {
		t.Fatalf("unexpected result: %+v", denied)
	}

	// 白名单命中需要精确匹配，空格不影响
	allowed, err := svc.Validate(ValidateInput{Token: link.Token, SourceIP: "192.168.1.5"})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if !allowed.OK || allowed.Status != constants.AccessStatusSuccess {
		t.Fatalf("unexpected result: %+v", allowed)
	}
}

func TestValidateUserNotFound(t *testing.T) {
	svc, db := setupValidationServiceTest(t)
	link := seedValidationLink(t, db, &models.LoginLink{
		UserID:   9999,
		Email:    "ghost@example.com",
		Role:     constants.RoleEditor,
		IsActive: true,
	})

	result, err := svc.Validate(ValidateInput{Token: link.Token, SourceIP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if result.OK || result.Status != constants.AccessStatusUserNotFound {
		t.Fatalf("unexpected result: %+v", result)
	}

	// 用户缺失不消耗访问次数
	var stored models.LoginLink
	if err := db.First(&stored, link.ID).Error; err != nil {
		t.Fatalf("load link failed: %v", err)
	}
	if stored.AccessCount != 0 {
		t.Fatalf("rejected attempt must not consume the cap, got %d", stored.AccessCount)
	}
}

func TestValidateSuccess(t *testing.T) {
	svc, db := setupValidationServiceTest(t)
	user := seedValidationUser(t, db, "happy@example.com")
	link := seedValidationLink(t, db, &models.LoginLink{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		IsActive:   true,
		RedirectTo: "/wp-admin/",
	})

	result, err := svc.Validate(ValidateInput{
		Token:     link.Token,
		SourceIP:  "10.0.0.1",
		UserAgent: "test-agent",
		RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if !result.OK || result.Status != constants.AccessStatusSuccess {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.UserID != user.ID || result.LinkID != link.ID {
		t.Fatalf("unexpected identity in result: %+v", result)
	}
	if result.RedirectTo != "/wp-admin/" {
		t.Fatalf("expected redirect /wp-admin/, got %s", result.RedirectTo)
	}

	var entry models.AccessLog
	if err := db.First(&entry).Error; err != nil {
		t.Fatalf("expected audit entry: %v", err)
	}
	if entry.Status != constants.AccessStatusSuccess || entry.LinkID != link.ID {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
	if entry.SourceIP != "10.0.0.1" || entry.UserAgent != "test-agent" || entry.RequestID != "req-1" {
		t.Fatalf("audit entry missing request context: %+v", entry)
	}
	if got := countAccessLogs(t, db); got != 1 {
		t.Fatalf("expected exactly 1 audit entry, got %d", got)
	}
}
