package service

import (
	"strings"
	"time"

	"github.com/templink-next/internal/logger"
	"github.com/templink-next/internal/models"
	"github.com/templink-next/internal/repository"
)

// AccessLogService 访问审计日志服务
// 只追加不修改；校验引擎与后台状态变更是仅有的两个写入方。
type AccessLogService struct {
	repo repository.AccessLogRepository
}

// NewAccessLogService 创建访问日志服务
func NewAccessLogService(repo repository.AccessLogRepository) *AccessLogService {
	return &AccessLogService{repo: repo}
}

// RecordAccessInput 访问日志记录输入
type RecordAccessInput struct {
	LinkID    uint // token 未命中任何链接时为 0
	SourceIP  string
	UserAgent string
	Status    string
	Notes     string
	RequestID string
}

// Record 追加一条审计记录
// 日志写入失败不向上传播，只记运行日志，避免影响校验主流程。
func (s *AccessLogService) Record(input RecordAccessInput) {
	if s == nil || s.repo == nil {
		return
	}
	entry := &models.AccessLog{
		LinkID:    input.LinkID,
		SourceIP:  strings.TrimSpace(input.SourceIP),
		UserAgent: strings.TrimSpace(input.UserAgent),
		Status:    input.Status,
		Notes:     input.Notes,
		RequestID: strings.TrimSpace(input.RequestID),
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(entry); err != nil {
		logger.Errorw("access_log_write_failed",
			"link_id", input.LinkID,
			"status", input.Status,
			"error", err,
		)
	}
}

// List 审计日志分页查询
func (s *AccessLogService) List(filter repository.AccessLogListFilter) ([]models.AccessLog, int64, error) {
	if s == nil || s.repo == nil {
		return []models.AccessLog{}, 0, nil
	}
	return s.repo.List(filter)
}
