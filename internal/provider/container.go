package provider

import (
	"github.com/templink-next/internal/authz"
	"github.com/templink-next/internal/cache"
	"github.com/templink-next/internal/config"
	"github.com/templink-next/internal/logger"
	"github.com/templink-next/internal/models"
	"github.com/templink-next/internal/queue"
	"github.com/templink-next/internal/repository"
	"github.com/templink-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo          repository.AdminRepository
	UserRepo           repository.UserRepository
	LinkRepo           repository.LinkRepository
	AccessLogRepo      repository.AccessLogRepository
	SecurityRecordRepo repository.SecurityRecordRepository
	SettingRepo        repository.SettingRepository

	// Services
	AuthzService      *authz.Service
	AuthService       *service.AuthService
	SessionService    *service.SessionService
	EmailService      *service.EmailService
	SettingService    *service.SettingService
	RoleRegistry      *service.RoleRegistry
	IdentityService   *service.IdentityService
	UserService       *service.UserService
	AccessLogService  *service.AccessLogService
	LinkService       *service.LinkService
	ValidationService *service.ValidationService
	SecurityService   *service.SecurityService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.LinkRepo = repository.NewLinkRepository(db)
	c.AccessLogRepo = repository.NewAccessLogRepository(db)
	c.SecurityRecordRepo = repository.NewSecurityRecordRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.SettingService = service.NewSettingService(c.Config, c.SettingRepo)
	c.EmailService = service.NewEmailService(&c.Config.Email)
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.SessionService = service.NewSessionService(c.Config)
	c.RoleRegistry = service.NewRoleRegistry(c.Config.Links.DefaultRole)
	c.IdentityService = service.NewIdentityService(c.UserRepo, c.RoleRegistry)
	c.UserService = service.NewUserService(c.UserRepo)
	c.AccessLogService = service.NewAccessLogService(c.AccessLogRepo)
	c.LinkService = service.NewLinkService(
		c.Config,
		c.LinkRepo,
		c.UserRepo,
		c.IdentityService,
		c.AccessLogService,
		c.SettingService,
		c.QueueClient,
	)
	c.ValidationService = service.NewValidationService(c.LinkRepo, c.IdentityService, c.AccessLogService)
	c.SecurityService = service.NewSecurityService(c.SecurityRecordRepo, c.SettingService, c.QueueClient)
}
