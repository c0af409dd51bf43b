package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/templink-next/internal/constants"
	"github.com/templink-next/internal/models"
	"github.com/templink-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupIdentityServiceTest(t *testing.T) (*IdentityService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:identity_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewIdentityService(repository.NewUserRepository(db), NewRoleRegistry("")), db
}

func TestBindCreatesEphemeralUser(t *testing.T) {
	svc, db := setupIdentityServiceTest(t)

	userID, err := svc.Bind(BindInput{
		Email:     "New@Example.com",
		Role:      constants.RoleAuthor,
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	if err != nil {
		t.Fatalf("Bind error: %v", err)
	}

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		t.Fatalf("load user failed: %v", err)
	}
	if user.Email != "new@example.com" {
		t.Fatalf("email must be lowercased, got %s", user.Email)
	}
	if user.Role != constants.RoleAuthor || user.FirstName != "Ada" || user.LastName != "Lovelace" {
		t.Fatalf("unexpected user fields: %+v", user)
	}
	if !user.IsTemporary {
		t.Fatalf("bound user must be temporary")
	}
	if !strings.HasPrefix(user.Username, "temp_") || len(user.Username) != len("temp_")+16 {
		t.Fatalf("unexpected ephemeral username: %s", user.Username)
	}
	if user.PasswordHash == "" {
		t.Fatalf("ephemeral user must carry a throwaway credential hash")
	}
}

func TestBindDefaultRole(t *testing.T) {
	svc, db := setupIdentityServiceTest(t)

	userID, err := svc.Bind(BindInput{Email: "default@example.com"})
	if err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		t.Fatalf("load user failed: %v", err)
	}
	if user.Role != constants.RoleSubscriber {
		t.Fatalf("expected default role subscriber, got %s", user.Role)
	}
}

func TestBindUnknownRole(t *testing.T) {
	svc, _ := setupIdentityServiceTest(t)

	if _, err := svc.Bind(BindInput{Email: "bad@example.com", Role: "warlock"}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got: %v", err)
	}
}

func TestBindRejectsPermanentAccount(t *testing.T) {
	svc, db := setupIdentityServiceTest(t)
	permanent := models.User{
		Email:        "real@example.com",
		Username:     "real",
		PasswordHash: "hash",
		Role:         constants.RoleAdministrator,
		Status:       constants.UserStatusActive,
		IsTemporary:  false,
	}
	if err := db.Create(&permanent).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	if _, err := svc.Bind(BindInput{Email: "real@example.com", Role: constants.RoleEditor}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got: %v", err)
	}

	// 正式账号不受绑定影响
	var stored models.User
	if err := db.First(&stored, permanent.ID).Error; err != nil {
		t.Fatalf("load user failed: %v", err)
	}
	if stored.Role != constants.RoleAdministrator {
		t.Fatalf("permanent account must not be mutated, got role %s", stored.Role)
	}
}

func TestBindReusesAndRefreshesEphemeralUser(t *testing.T) {
	svc, db := setupIdentityServiceTest(t)

	firstID, err := svc.Bind(BindInput{Email: "reuse@example.com", Role: constants.RoleAuthor, FirstName: "First"})
	if err != nil {
		t.Fatalf("Bind #1 error: %v", err)
	}
	secondID, err := svc.Bind(BindInput{Email: "reuse@example.com", Role: constants.RoleEditor, LastName: "Second"})
	if err != nil {
		t.Fatalf("Bind #2 error: %v", err)
	}
	if firstID != secondID {
		t.Fatalf("same email must reuse the ephemeral identity: %d vs %d", firstID, secondID)
	}

	var user models.User
	if err := db.First(&user, firstID).Error; err != nil {
		t.Fatalf("load user failed: %v", err)
	}
	if user.Role != constants.RoleEditor {
		t.Fatalf("rebinding must refresh the role, got %s", user.Role)
	}
	if user.FirstName != "First" || user.LastName != "Second" {
		t.Fatalf("names should only be overwritten when provided: %+v", user)
	}
}

func TestAttachSourceLinkOnlyOnce(t *testing.T) {
	svc, db := setupIdentityServiceTest(t)

	userID, err := svc.Bind(BindInput{Email: "attach@example.com"})
	if err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	if err := svc.AttachSourceLink(userID, 42); err != nil {
		t.Fatalf("AttachSourceLink error: %v", err)
	}
	if err := svc.AttachSourceLink(userID, 77); err != nil {
		t.Fatalf("AttachSourceLink error: %v", err)
	}

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		t.Fatalf("load user failed: %v", err)
	}
	if user.SourceLinkID != 42 {
		t.Fatalf("source link must stick to the first assignment, got %d", user.SourceLinkID)
	}
}

func TestResolve(t *testing.T) {
	svc, _ := setupIdentityServiceTest(t)

	user, err := svc.Resolve(0)
	if err != nil || user != nil {
		t.Fatalf("resolving id 0 must yield nothing, got %v / %v", user, err)
	}
	user, err = svc.Resolve(12345)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if user != nil {
		t.Fatalf("unknown id must resolve to nil, got %+v", user)
	}
}
