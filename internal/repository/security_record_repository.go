package repository

import (
	"errors"
	"time"

	"github.com/templink-next/internal/models"

	"gorm.io/gorm"
)

// SecurityRecordRepository 安全记录数据访问接口
type SecurityRecordRepository interface {
	GetByIP(ip string) (*models.SecurityRecord, error)
	IncrementFailure(ip string, now time.Time) (*models.SecurityRecord, error)
	SaveAttempts(record *models.SecurityRecord) error
	DeleteByIP(ip string) error
	PurgeIdleBefore(cutoff time.Time) (int64, error)
	List(page, pageSize int) ([]models.SecurityRecord, int64, error)
}

// GormSecurityRecordRepository GORM 实现
type GormSecurityRecordRepository struct {
	db *gorm.DB
}

// NewSecurityRecordRepository 创建安全记录仓库
func NewSecurityRecordRepository(db *gorm.DB) *GormSecurityRecordRepository {
	return &GormSecurityRecordRepository{db: db}
}

// GetByIP 根据 IP 获取记录
func (r *GormSecurityRecordRepository) GetByIP(ip string) (*models.SecurityRecord, error) {
	var record models.SecurityRecord
	if err := r.db.Where("ip = ?", ip).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// IncrementFailure 原子累加失败计数并刷新最近失败时间
// 与 RegisterAccess 同理用条件更新保证并发下不丢计数；
// 首次失败插入新行，并发插入撞唯一键时退回更新路径。
func (r *GormSecurityRecordRepository) IncrementFailure(ip string, now time.Time) (*models.SecurityRecord, error) {
	increment := func() (int64, error) {
		result := r.db.Model(&models.SecurityRecord{}).
			Where("ip = ?", ip).
			Updates(map[string]interface{}{
				"fail_count":      gorm.Expr("fail_count + 1"),
				"last_attempt_at": now,
			})
		return result.RowsAffected, result.Error
	}

	affected, err := increment()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		record := &models.SecurityRecord{
			IP:             ip,
			FailCount:      1,
			FirstAttemptAt: now,
			LastAttemptAt:  now,
			Attempts:       models.AttemptList{},
		}
		err := r.db.Create(record).Error
		if err == nil {
			return record, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		if _, err := increment(); err != nil {
			return nil, err
		}
	}

	record, err := r.GetByIP(ip)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return record, nil
}

// SaveAttempts 只回写失败摘要与告警时间，不碰计数列
func (r *GormSecurityRecordRepository) SaveAttempts(record *models.SecurityRecord) error {
	return r.db.Model(&models.SecurityRecord{}).
		Where("ip = ?", record.IP).
		Updates(map[string]interface{}{
			"attempts":    record.Attempts,
			"notified_at": record.NotifiedAt,
		}).Error
}

// DeleteByIP 删除某 IP 的记录（解锁）
func (r *GormSecurityRecordRepository) DeleteByIP(ip string) error {
	return r.db.Where("ip = ?", ip).Delete(&models.SecurityRecord{}).Error
}

// PurgeIdleBefore 清理最后一次尝试早于指定时间的记录
func (r *GormSecurityRecordRepository) PurgeIdleBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("last_attempt_at < ?", cutoff).Delete(&models.SecurityRecord{})
	return result.RowsAffected, result.Error
}

// List 安全记录列表
func (r *GormSecurityRecordRepository) List(page, pageSize int) ([]models.SecurityRecord, int64, error) {
	query := r.db.Model(&models.SecurityRecord{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, page, pageSize)

	var records []models.SecurityRecord
	if err := query.Order("last_attempt_at DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
