package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/templink-next/internal/config"
	"github.com/templink-next/internal/constants"
	"github.com/templink-next/internal/models"
	"github.com/templink-next/internal/queue"
	"github.com/templink-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupLinkServiceTest(t *testing.T) (*LinkService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:link_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.LoginLink{},
		&models.AccessLog{},
		&models.Setting{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.Links.BaseURL = "https://example.com"
	cfg.Links.DefaultDuration = "7 days"
	cfg.Links.DefaultRole = constants.RoleSubscriber
	cfg.Links.DefaultRedirect = "/dashboard"
	cfg.Links.RetentionDays = 30

	linkRepo := repository.NewLinkRepository(db)
	userRepo := repository.NewUserRepository(db)
	identity := NewIdentityService(userRepo, NewRoleRegistry(""))
	accessLogs := NewAccessLogService(repository.NewAccessLogRepository(db))
	settings := NewSettingService(cfg, repository.NewSettingRepository(db))
	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}
	return NewLinkService(cfg, linkRepo, userRepo, identity, accessLogs, settings, queueClient), db
}

func TestCreateLinkWithDefaults(t *testing.T) {
	svc, db := setupLinkServiceTest(t)
	before := time.Now()

	result, err := svc.Create(CreateLinkInput{Email: "Guest@Example.com", CreatedBy: 1})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	link := result.Link

	if link.Email != "guest@example.com" {
		t.Fatalf("email must be normalized, got %s", link.Email)
	}
	if link.Role != constants.RoleSubscriber {
		t.Fatalf("expected default role, got %s", link.Role)
	}
	if link.RedirectTo != "/dashboard" {
		t.Fatalf("expected default redirect, got %s", link.RedirectTo)
	}
	if !link.IsActive {
		t.Fatalf("new link must be active")
	}
	if len(link.Token) != 64 {
		t.Fatalf("expected 64-char token, got %d", len(link.Token))
	}

	wantMin := before.Add(7 * 24 * time.Hour)
	if link.ExpiresAt.Before(wantMin) || link.ExpiresAt.After(wantMin.Add(time.Minute)) {
		t.Fatalf("expected expiry around %v, got %v", wantMin, link.ExpiresAt)
	}

	if !strings.HasPrefix(result.LoginURL, "https://example.com/api/v1/login?token=") {
		t.Fatalf("unexpected login url: %s", result.LoginURL)
	}
	if !strings.Contains(result.LoginURL, link.Token) {
		t.Fatalf("login url must carry the token: %s", result.LoginURL)
	}

	// 临时账号懒创建并回填来源链接
	var user models.User
	if err := db.First(&user, link.UserID).Error; err != nil {
		t.Fatalf("load bound user failed: %v", err)
	}
	if !user.IsTemporary {
		t.Fatalf("bound user must be temporary")
	}
	if user.SourceLinkID != link.ID {
		t.Fatalf("expected source_link_id %d, got %d", link.ID, user.SourceLinkID)
	}
	if !strings.HasPrefix(user.Username, "temp_") {
		t.Fatalf("unexpected ephemeral username: %s", user.Username)
	}
}

func TestCreateLinkInvalidInputs(t *testing.T) {
	svc, _ := setupLinkServiceTest(t)

	if _, err := svc.Create(CreateLinkInput{Email: "not-an-email"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got: %v", err)
	}
	if _, err := svc.Create(CreateLinkInput{Email: "a@b.com", Duration: "soon"}); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got: %v", err)
	}
	if _, err := svc.Create(CreateLinkInput{Email: "a@b.com", Duration: "custom_2020-01-01 00:00:00"}); !errors.Is(err, ErrPastDate) {
		t.Fatalf("expected ErrPastDate, got: %v", err)
	}
	if _, err := svc.Create(CreateLinkInput{Email: "a@b.com", Role: "superhero"}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got: %v", err)
	}
	if _, err := svc.Create(CreateLinkInput{Email: "a@b.com", IPRestriction: "banana, not-an-ip"}); !errors.Is(err, ErrInvalidIPList) {
		t.Fatalf("expected ErrInvalidIPList, got: %v", err)
	}
	if _, err := svc.Create(CreateLinkInput{Email: "a@b.com", IPRestriction: "10.0.0.1, 999.1.2.3"}); !errors.Is(err, ErrInvalidIPList) {
		t.Fatalf("expected ErrInvalidIPList for one bad entry, got: %v", err)
	}
}

func TestCreateLinkNormalizesIPRestriction(t *testing.T) {
	svc, _ := setupLinkServiceTest(t)

	result, err := svc.Create(CreateLinkInput{
		Email:         "allow@example.com",
		IPRestriction: " 10.0.0.1 , , 2001:db8::1 ",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if result.Link.IPRestriction != "10.0.0.1,2001:db8::1" {
		t.Fatalf("unexpected stored restriction: %s", result.Link.IPRestriction)
	}
}

func TestCreateLinkRejectsPermanentAccount(t *testing.T) {
	svc, db := setupLinkServiceTest(t)
	permanent := models.User{
		Email:        "owner@example.com",
		Username:     "owner",
		PasswordHash: "hash",
		Role:         constants.RoleAdministrator,
		Status:       constants.UserStatusActive,
		IsTemporary:  false,
	}
	if err := db.Create(&permanent).Error; err != nil {
		t.Fatalf("create permanent user failed: %v", err)
	}

	if _, err := svc.Create(CreateLinkInput{Email: "owner@example.com"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got: %v", err)
	}
}

func TestCreateLinkReusesEphemeralIdentity(t *testing.T) {
	svc, db := setupLinkServiceTest(t)

	first, err := svc.Create(CreateLinkInput{Email: "shared@example.com", Role: constants.RoleAuthor})
	if err != nil {
		t.Fatalf("Create #1 error: %v", err)
	}
	second, err := svc.Create(CreateLinkInput{Email: "shared@example.com", Role: constants.RoleEditor})
	if err != nil {
		t.Fatalf("Create #2 error: %v", err)
	}

	if first.Link.UserID != second.Link.UserID {
		t.Fatalf("same email must bind the same ephemeral identity: %d vs %d", first.Link.UserID, second.Link.UserID)
	}
	if first.Link.Token == second.Link.Token {
		t.Fatalf("tokens must be unique per link")
	}

	var user models.User
	if err := db.First(&user, first.Link.UserID).Error; err != nil {
		t.Fatalf("load user failed: %v", err)
	}
	if user.Role != constants.RoleEditor {
		t.Fatalf("rebinding must refresh the role, got %s", user.Role)
	}
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		t.Fatalf("count users failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single shared user, got %d", count)
	}
}

func TestDeleteLinkCascades(t *testing.T) {
	svc, db := setupLinkServiceTest(t)

	result, err := svc.Create(CreateLinkInput{Email: "cascade@example.com"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	link := result.Link

	log := models.AccessLog{LinkID: link.ID, Status: constants.AccessStatusSuccess}
	if err := db.Create(&log).Error; err != nil {
		t.Fatalf("create access log failed: %v", err)
	}

	if err := svc.Delete(link.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	var logCount int64
	if err := db.Model(&models.AccessLog{}).Where("link_id = ?", link.ID).Count(&logCount).Error; err != nil {
		t.Fatalf("count logs failed: %v", err)
	}
	if logCount != 0 {
		t.Fatalf("expected logs removed, got %d", logCount)
	}

	// 最后一条链接删除后，临时账号一并清理
	var user models.User
	err = db.First(&user, link.UserID).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ephemeral user removed, got: %v", err)
	}

	if err := svc.Delete(link.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat delete, got: %v", err)
	}
}

func TestDeleteLinkKeepsSharedEphemeralUser(t *testing.T) {
	svc, db := setupLinkServiceTest(t)

	first, err := svc.Create(CreateLinkInput{Email: "keep@example.com"})
	if err != nil {
		t.Fatalf("Create #1 error: %v", err)
	}
	if _, err := svc.Create(CreateLinkInput{Email: "keep@example.com"}); err != nil {
		t.Fatalf("Create #2 error: %v", err)
	}

	if err := svc.Delete(first.Link.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	var user models.User
	if err := db.First(&user, first.Link.UserID).Error; err != nil {
		t.Fatalf("shared ephemeral user must survive: %v", err)
	}
}

func TestDeleteLinkKeepsPermanentUser(t *testing.T) {
	svc, db := setupLinkServiceTest(t)
	permanent := models.User{
		Email:        "staff@example.com",
		Username:     "staff",
		PasswordHash: "hash",
		Role:         constants.RoleEditor,
		Status:       constants.UserStatusActive,
		IsTemporary:  false,
	}
	if err := db.Create(&permanent).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	token, err := GenerateToken()
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	link := models.LoginLink{
		Token:     token,
		UserID:    permanent.ID,
		Email:     permanent.Email,
		Role:      permanent.Role,
		IsActive:  true,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(&link).Error; err != nil {
		t.Fatalf("create link failed: %v", err)
	}

	if err := svc.Delete(link.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	var user models.User
	if err := db.First(&user, permanent.ID).Error; err != nil {
		t.Fatalf("permanent user must never be cascaded: %v", err)
	}
}

func TestExtendReactivatesLink(t *testing.T) {
	svc, db := setupLinkServiceTest(t)

	result, err := svc.Create(CreateLinkInput{Email: "extend@example.com", Duration: "1 hour"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	link := result.Link

	// 先停用并压缩有效期，模拟已失效的链接
	if err := db.Model(&models.LoginLink{}).Where("id = ?", link.ID).
		Updates(map[string]interface{}{
			"is_active":  false,
			"expires_at": time.Now().Add(-time.Hour),
		}).Error; err != nil {
		t.Fatalf("seed expired state failed: %v", err)
	}

	if err := svc.Extend(ExtendInput{ID: link.ID, Duration: "3 days", SourceIP: "10.0.0.1"}); err != nil {
		t.Fatalf("Extend error: %v", err)
	}

	var stored models.LoginLink
	if err := db.First(&stored, link.ID).Error; err != nil {
		t.Fatalf("load link failed: %v", err)
	}
	if !stored.IsActive {
		t.Fatalf("extend must reactivate the link")
	}
	if !stored.ExpiresAt.After(time.Now().Add(2 * 24 * time.Hour)) {
		t.Fatalf("unexpected extended expiry: %v", stored.ExpiresAt)
	}

	var audit models.AccessLog
	if err := db.Where("link_id = ? AND status = ?", link.ID, constants.AccessStatusExtended).First(&audit).Error; err != nil {
		t.Fatalf("expected extended audit entry: %v", err)
	}
}

func TestActivateRefreshesElapsedExpiry(t *testing.T) {
	svc, db := setupLinkServiceTest(t)

	result, err := svc.Create(CreateLinkInput{Email: "revive@example.com", Duration: "1 hour"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	link := result.Link

	if err := db.Model(&models.LoginLink{}).Where("id = ?", link.ID).
		Updates(map[string]interface{}{
			"is_active":  false,
			"expires_at": time.Now().Add(-time.Hour),
		}).Error; err != nil {
		t.Fatalf("seed expired state failed: %v", err)
	}

	if err := svc.SetActive(SetActiveInput{ID: link.ID, Active: true, SourceIP: "10.0.0.1"}); err != nil {
		t.Fatalf("SetActive error: %v", err)
	}

	var stored models.LoginLink
	if err := db.First(&stored, link.ID).Error; err != nil {
		t.Fatalf("load link failed: %v", err)
	}
	if !stored.IsActive {
		t.Fatalf("activation must reactivate the link")
	}
	// 过期的链接重新启用时按默认有效期（7 days）顺延
	if !stored.ExpiresAt.After(time.Now().Add(6 * 24 * time.Hour)) {
		t.Fatalf("activation must refresh the elapsed expiry, got %v", stored.ExpiresAt)
	}
	var audit models.AccessLog
	if err := db.Where("link_id = ? AND status = ?", link.ID, constants.AccessStatusActivated).First(&audit).Error; err != nil {
		t.Fatalf("expected activated audit entry: %v", err)
	}

	// 未过期的链接启用时有效期保持不变
	future := time.Now().Add(30 * time.Minute)
	if err := db.Model(&models.LoginLink{}).Where("id = ?", link.ID).
		Updates(map[string]interface{}{"is_active": false, "expires_at": future}).Error; err != nil {
		t.Fatalf("seed inactive state failed: %v", err)
	}
	if err := svc.SetActive(SetActiveInput{ID: link.ID, Active: true, SourceIP: "10.0.0.1"}); err != nil {
		t.Fatalf("SetActive error: %v", err)
	}
	if err := db.First(&stored, link.ID).Error; err != nil {
		t.Fatalf("load link failed: %v", err)
	}
	if !stored.IsActive {
		t.Fatalf("activation must reactivate the link")
	}
	if diff := stored.ExpiresAt.Sub(future); diff < -time.Second || diff > time.Second {
		t.Fatalf("unexpired expiry must stay at %v, got %v", future, stored.ExpiresAt)
	}
}

func TestSetExpiryRejectsPast(t *testing.T) {
	svc, _ := setupLinkServiceTest(t)

	result, err := svc.Create(CreateLinkInput{Email: "pastset@example.com"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	err = svc.SetExpiry(result.Link.ID, time.Now().Add(-time.Minute), "10.0.0.1", "", "")
	if !errors.Is(err, ErrPastDate) {
		t.Fatalf("expected ErrPastDate, got: %v", err)
	}
}

func TestSetActive(t *testing.T) {
	svc, db := setupLinkServiceTest(t)

	result, err := svc.Create(CreateLinkInput{Email: "toggle@example.com"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	link := result.Link

	if err := svc.SetActive(SetActiveInput{ID: link.ID, Active: false, SourceIP: "10.0.0.1"}); err != nil {
		t.Fatalf("SetActive error: %v", err)
	}
	var stored models.LoginLink
	if err := db.First(&stored, link.ID).Error; err != nil {
		t.Fatalf("load link failed: %v", err)
	}
	if stored.IsActive {
		t.Fatalf("link should be deactivated")
	}
	var audit models.AccessLog
	if err := db.Where("link_id = ? AND status = ?", link.ID, constants.AccessStatusDeactivated).First(&audit).Error; err != nil {
		t.Fatalf("expected deactivated audit entry: %v", err)
	}

	if err := svc.SetActive(SetActiveInput{ID: 9999, Active: true}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	svc, db := setupLinkServiceTest(t)

	recent, err := svc.Create(CreateLinkInput{Email: "recent@example.com"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	stale, err := svc.Create(CreateLinkInput{Email: "stale@example.com"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	// 过期超出保留期（30天）的链接应被清理
	if err := db.Model(&models.LoginLink{}).Where("id = ?", stale.Link.ID).
		Update("expires_at", time.Now().AddDate(0, 0, -40)).Error; err != nil {
		t.Fatalf("seed stale expiry failed: %v", err)
	}

	removed, err := svc.CleanupExpired()
	if err != nil {
		t.Fatalf("CleanupExpired error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed link, got %d", removed)
	}

	var count int64
	if err := db.Model(&models.LoginLink{}).Count(&count).Error; err != nil {
		t.Fatalf("count links failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 remaining link, got %d", count)
	}
	var remaining models.LoginLink
	if err := db.First(&remaining).Error; err != nil {
		t.Fatalf("load remaining link failed: %v", err)
	}
	if remaining.ID != recent.Link.ID {
		t.Fatalf("recent link must survive cleanup")
	}

	// 清理孤儿临时账号
	var user models.User
	err = db.First(&user, stale.Link.UserID).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected stale ephemeral user removed, got: %v", err)
	}
}

func TestStatsFallsBackToDatabase(t *testing.T) {
	svc, db := setupLinkServiceTest(t)

	if _, err := svc.Create(CreateLinkInput{Email: "stats1@example.com"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	expired, err := svc.Create(CreateLinkInput{Email: "stats2@example.com"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := db.Model(&models.LoginLink{}).Where("id = ?", expired.Link.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("seed expired failed: %v", err)
	}

	counts, err := svc.Stats()
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if counts.Total != 2 || counts.Active != 1 || counts.Expired != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}
