package worker

import (
	"context"
	"errors"
	"time"

	"github.com/templink-next/internal/config"
	"github.com/templink-next/internal/logger"
	"github.com/templink-next/internal/queue"

	"github.com/hibiken/asynq"
)

const defaultCleanupInterval = 10 * time.Minute

// Service 异步队列服务
type Service struct {
	name            string
	server          *asynq.Server
	mux             *asynq.ServeMux
	consumer        *Consumer
	cleanupInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Queue.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	interval := defaultCleanupInterval
	if cfg.Links.CleanupIntervalMinutes > 0 {
		interval = time.Duration(cfg.Links.CleanupIntervalMinutes) * time.Minute
	}
	return &Service{
		name:            "worker",
		server:          server,
		mux:             mux,
		consumer:        consumer,
		cleanupInterval: interval,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.LinkService != nil {
		go s.runCleanupLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runCleanupLoop 周期清理过期链接与闲置安全记录
func (s *Service) runCleanupLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.LinkService == nil {
		return
	}
	runOnce := func() {
		removed, err := s.consumer.LinkService.CleanupExpired()
		if err != nil {
			logger.Warnw("worker_cleanup_expired_failed", "error", err)
		} else if removed > 0 {
			logger.Infow("worker_cleanup_expired_done", "removed", removed)
		}
		if s.consumer.SecurityService != nil {
			purged, err := s.consumer.SecurityService.PurgeIdle()
			if err != nil {
				logger.Warnw("worker_purge_idle_records_failed", "error", err)
			} else if purged > 0 {
				logger.Infow("worker_purge_idle_records_done", "purged", purged)
			}
		}
	}
	runOnce()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
