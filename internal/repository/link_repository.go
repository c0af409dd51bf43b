package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/templink-next/internal/constants"
	"github.com/templink-next/internal/models"

	"gorm.io/gorm"
)

// linkOrderColumns 链接列表允许排序的列（防注入白名单）
var linkOrderColumns = map[string]string{
	"id":               "id",
	"email":            "email",
	"role":             "role",
	"expires_at":       "expires_at",
	"created_at":       "created_at",
	"access_count":     "access_count",
	"last_accessed_at": "last_accessed_at",
}

// LinkStatusCounts 链接状态聚合计数
type LinkStatusCounts struct {
	Total    int64
	Active   int64
	Inactive int64
	Expired  int64
}

// LinkRepository 登录链接数据访问接口
type LinkRepository interface {
	Create(link *models.LoginLink) error
	GetByID(id uint) (*models.LoginLink, error)
	GetByToken(token string) (*models.LoginLink, error)
	Update(link *models.LoginLink) error
	Delete(id uint) (bool, error)
	List(filter LinkListFilter) ([]models.LoginLink, int64, error)
	SetActive(id uint, active bool) (bool, error)
	UpdateExpiry(id uint, expiresAt time.Time, reactivate bool) (bool, error)
	RegisterAccess(id uint, now time.Time) (bool, error)
	Deactivate(id uint) error
	CountByUser(userID uint) (int64, error)
	ListExpiredBefore(cutoff time.Time) ([]models.LoginLink, error)
	DeleteLogsByLinkID(linkID uint) error
	StatusCounts(now time.Time) (LinkStatusCounts, error)
}

// GormLinkRepository GORM 实现
type GormLinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository 创建登录链接仓库
func NewLinkRepository(db *gorm.DB) *GormLinkRepository {
	return &GormLinkRepository{db: db}
}

// IsDuplicateTokenError 判断是否唯一键冲突（token 碰撞时由服务层重新生成）
func IsDuplicateTokenError(err error) bool {
	return isUniqueViolation(err)
}

// isUniqueViolation sqlite 报 "UNIQUE constraint failed"，
// postgres 报 "duplicate key"，统一按错误文本识别
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// Create 创建链接
func (r *GormLinkRepository) Create(link *models.LoginLink) error {
	return r.db.Create(link).Error
}

// GetByID 根据 ID 获取链接
func (r *GormLinkRepository) GetByID(id uint) (*models.LoginLink, error) {
	var link models.LoginLink
	if err := r.db.First(&link, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// GetByToken 根据令牌获取链接
func (r *GormLinkRepository) GetByToken(token string) (*models.LoginLink, error) {
	if token == "" {
		return nil, nil
	}
	var link models.LoginLink
	if err := r.db.Where("token = ?", token).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// Update 更新链接
func (r *GormLinkRepository) Update(link *models.LoginLink) error {
	return r.db.Save(link).Error
}

// Delete 删除链接
func (r *GormLinkRepository) Delete(id uint) (bool, error) {
	result := r.db.Delete(&models.LoginLink{}, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// List 链接列表（状态过滤互斥，与搜索/角色条件 AND 组合）
func (r *GormLinkRepository) List(filter LinkListFilter) ([]models.LoginLink, int64, error) {
	query := r.db.Model(&models.LoginLink{})
	now := time.Now()

	switch filter.Status {
	case constants.LinkFilterActive:
		query = query.Where("is_active = ? AND expires_at > ?", true, now)
	case constants.LinkFilterInactive:
		query = query.Where("is_active = ?", false)
	case constants.LinkFilterExpired:
		query = query.Where("expires_at <= ?", now)
	}

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		op := likeOperator(r.db)
		query = query.Where("email "+op+" ? OR redirect_to "+op+" ?", like, like)
	}
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.CreatedBy != 0 {
		query = query.Where("created_by = ?", filter.CreatedBy)
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

	order := "id DESC"
	if column, ok := linkOrderColumns[filter.OrderBy]; ok {
		direction := "ASC"
		if filter.OrderDesc {
			direction = "DESC"
		}
		order = column + " " + direction
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var links []models.LoginLink
	if err := query.Order(order).Find(&links).Error; err != nil {
		return nil, 0, err
	}
	return links, total, nil
}

// SetActive 设置启用状态
func (r *GormLinkRepository) SetActive(id uint, active bool) (bool, error) {
	result := r.db.Model(&models.LoginLink{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateExpiry 更新过期时间，必要时同步重新启用
func (r *GormLinkRepository) UpdateExpiry(id uint, expiresAt time.Time, reactivate bool) (bool, error) {
	updates := map[string]interface{}{
		"expires_at": expiresAt,
	}
	if reactivate {
		updates["is_active"] = true
	}
	result := r.db.Model(&models.LoginLink{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RegisterAccess 登记一次成功访问
// 通过条件更新保证并发下计数原子：同一链接的两次并发校验不可能同时越过
// max_accesses 上限；恰好达到上限的这次更新会在同一语句内停用链接。
func (r *GormLinkRepository) RegisterAccess(id uint, now time.Time) (bool, error) {
	result := r.db.Model(&models.LoginLink{}).
		Where("id = ? AND is_active = ? AND (max_accesses = 0 OR access_count < max_accesses)", id, true).
		Updates(map[string]interface{}{
			"access_count":     gorm.Expr("access_count + 1"),
			"last_accessed_at": now,
			"is_active":        gorm.Expr("CASE WHEN max_accesses > 0 AND access_count + 1 >= max_accesses THEN ? ELSE is_active END", false),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Deactivate 停用链接（幂等，重复停用无副作用）
func (r *GormLinkRepository) Deactivate(id uint) error {
	return r.db.Model(&models.LoginLink{}).Where("id = ?", id).Update("is_active", false).Error
}

// CountByUser 统计某用户名下的链接数（用于级联删除临时账号的判定）
func (r *GormLinkRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.LoginLink{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListExpiredBefore 列出在指定时间之前过期的链接（清理任务用）
func (r *GormLinkRepository) ListExpiredBefore(cutoff time.Time) ([]models.LoginLink, error) {
	var links []models.LoginLink
	if err := r.db.Where("expires_at < ?", cutoff).Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// DeleteLogsByLinkID 删除链接关联的访问日志（级联清理）
func (r *GormLinkRepository) DeleteLogsByLinkID(linkID uint) error {
	return r.db.Where("link_id = ?", linkID).Delete(&models.AccessLog{}).Error
}

// StatusCounts 统计各状态下的链接数
func (r *GormLinkRepository) StatusCounts(now time.Time) (LinkStatusCounts, error) {
	var counts LinkStatusCounts
	if err := r.db.Model(&models.LoginLink{}).Count(&counts.Total).Error; err != nil {
		return counts, err
	}
	if err := r.db.Model(&models.LoginLink{}).
		Where("is_active = ? AND expires_at > ?", true, now).
		Count(&counts.Active).Error; err != nil {
		return counts, err
	}
	if err := r.db.Model(&models.LoginLink{}).
		Where("is_active = ?", false).
		Count(&counts.Inactive).Error; err != nil {
		return counts, err
	}
	if err := r.db.Model(&models.LoginLink{}).
		Where("expires_at <= ?", now).
		Count(&counts.Expired).Error; err != nil {
		return counts, err
	}
	return counts, nil
}
