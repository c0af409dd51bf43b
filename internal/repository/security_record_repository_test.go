package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/templink-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupSecurityRecordRepositoryTest(t *testing.T) (*GormSecurityRecordRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:security_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.SecurityRecord{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewSecurityRecordRepository(db), db
}

func TestIncrementFailureCreatesThenCounts(t *testing.T) {
	repo, _ := setupSecurityRecordRepositoryTest(t)
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Minute)

	record, err := repo.IncrementFailure("10.1.0.1", first)
	if err != nil {
		t.Fatalf("IncrementFailure error: %v", err)
	}
	if record.FailCount != 1 {
		t.Fatalf("expected fail_count 1 on first failure, got %d", record.FailCount)
	}
	if !record.FirstAttemptAt.Equal(first) {
		t.Fatalf("expected first_attempt_at %v, got %v", first, record.FirstAttemptAt)
	}

	record, err = repo.IncrementFailure("10.1.0.1", second)
	if err != nil {
		t.Fatalf("IncrementFailure error: %v", err)
	}
	if record.FailCount != 2 {
		t.Fatalf("expected fail_count 2, got %d", record.FailCount)
	}
	if !record.FirstAttemptAt.Equal(first) {
		t.Fatalf("first_attempt_at must not move on later failures, got %v", record.FirstAttemptAt)
	}
	if !record.LastAttemptAt.Equal(second) {
		t.Fatalf("expected last_attempt_at %v, got %v", second, record.LastAttemptAt)
	}
}

func TestSaveAttemptsKeepsCounter(t *testing.T) {
	repo, db := setupSecurityRecordRepositoryTest(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	record, err := repo.IncrementFailure("10.1.0.2", now)
	if err != nil {
		t.Fatalf("IncrementFailure error: %v", err)
	}

	// 另一并发请求在摘要回写前又累加了一次
	if _, err := repo.IncrementFailure("10.1.0.2", now.Add(time.Second)); err != nil {
		t.Fatalf("IncrementFailure error: %v", err)
	}

	// 用旧快照回写摘要不得覆盖计数列
	record.Attempts = models.AttemptList{{TokenFragment: "deadbeef", Reason: "invalid_token", At: now.Unix()}}
	if err := repo.SaveAttempts(record); err != nil {
		t.Fatalf("SaveAttempts error: %v", err)
	}

	var stored models.SecurityRecord
	if err := db.Where("ip = ?", "10.1.0.2").First(&stored).Error; err != nil {
		t.Fatalf("load record failed: %v", err)
	}
	if stored.FailCount != 2 {
		t.Fatalf("stale attempts write must not reset fail_count, got %d", stored.FailCount)
	}
	if len(stored.Attempts) != 1 || stored.Attempts[0].TokenFragment != "deadbeef" {
		t.Fatalf("unexpected attempts after write: %+v", stored.Attempts)
	}
}
