package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/templink-next/internal/config"
	"github.com/templink-next/internal/models"
	"github.com/templink-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthServiceTest(t *testing.T) (*AuthService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:auth_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Admin{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := &config.Config{}
	cfg.JWT.SecretKey = "admin-test-secret-0123456789abcdef"
	cfg.JWT.ExpireHours = 24
	return NewAuthService(cfg, repository.NewAdminRepository(db)), db
}

func seedAdmin(t *testing.T, svc *AuthService, db *gorm.DB, username, password string) *models.Admin {
	t.Helper()
	hash, err := svc.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password failed: %v", err)
	}
	admin := models.Admin{
		Username:     username,
		PasswordHash: hash,
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	return &admin
}

func TestAuthLogin(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	seedAdmin(t, svc, db, "ops", "correct-horse")

	admin, token, expiresAt, err := svc.Login("ops", "correct-horse")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if token == "" || !expiresAt.After(time.Now()) {
		t.Fatalf("expected a valid token, got %q until %v", token, expiresAt)
	}
	if admin.LastLoginAt == nil {
		t.Fatalf("login must record last_login_at")
	}

	claims, err := svc.ParseJWT(token)
	if err != nil {
		t.Fatalf("ParseJWT error: %v", err)
	}
	if claims.AdminID != admin.ID || claims.Username != "ops" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestAuthLoginInvalidCredentials(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	seedAdmin(t, svc, db, "ops", "correct-horse")

	if _, _, _, err := svc.Login("ops", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got: %v", err)
	}
	if _, _, _, err := svc.Login("nobody", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got: %v", err)
	}
}

func TestAuthParseJWTRejectsForeignToken(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	admin := seedAdmin(t, svc, db, "ops", "correct-horse")

	token, _, err := svc.GenerateJWT(admin)
	if err != nil {
		t.Fatalf("GenerateJWT error: %v", err)
	}

	other, _ := setupAuthServiceTest(t)
	other.cfg.JWT.SecretKey = "a-different-secret-0123456789abcdef"
	if _, err := other.ParseJWT(token); err == nil {
		t.Fatalf("token signed with another key must be rejected")
	}
}
