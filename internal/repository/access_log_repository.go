package repository

import (
	"github.com/templink-next/internal/models"

	"gorm.io/gorm"
)

// AccessLogRepository 访问日志数据访问接口
type AccessLogRepository interface {
	Create(log *models.AccessLog) error
	List(filter AccessLogListFilter) ([]models.AccessLog, int64, error)
	DeleteByLinkID(linkID uint) error
}

// GormAccessLogRepository GORM 实现
type GormAccessLogRepository struct {
	db *gorm.DB
}

// NewAccessLogRepository 创建访问日志仓库
func NewAccessLogRepository(db *gorm.DB) *GormAccessLogRepository {
	return &GormAccessLogRepository{db: db}
}

// Create 追加一条访问日志
func (r *GormAccessLogRepository) Create(log *models.AccessLog) error {
	return r.db.Create(log).Error
}

// List 访问日志列表
func (r *GormAccessLogRepository) List(filter AccessLogListFilter) ([]models.AccessLog, int64, error) {
	query := r.db.Model(&models.AccessLog{})

	if filter.LinkID != 0 {
		query = query.Where("link_id = ?", filter.LinkID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.SourceIP != "" {
		query = query.Where("source_ip = ?", filter.SourceIP)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		op := likeOperator(r.db)
		query = query.Where(
			"notes "+op+" ? OR link_id IN (?)",
			like,
			r.db.Model(&models.LoginLink{}).Select("id").Where("email "+op+" ?", like),
		)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var logs []models.AccessLog
	if err := query.Order("id DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// DeleteByLinkID 删除某链接的全部访问日志
func (r *GormAccessLogRepository) DeleteByLinkID(linkID uint) error {
	return r.db.Where("link_id = ?", linkID).Delete(&models.AccessLog{}).Error
}
