package router

import (
	"fmt"
	"strings"

	"github.com/templink-next/internal/cache"
	"github.com/templink-next/internal/config"
	adminhandlers "github.com/templink-next/internal/http/handlers/admin"
	publichandlers "github.com/templink-next/internal/http/handlers/public"
	"github.com/templink-next/internal/http/response"
	"github.com/templink-next/internal/logger"
	"github.com/templink-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "tl"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:token_login", redisPrefix),
		WindowSeconds: cfg.Security.RateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.RateLimit.MaxRequests,
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.RateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.RateLimit.MaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 令牌消费端点（对外唯一入口，传输层限流 + 业务层防爆破）
		apiV1.GET("/login",
			RateLimitMiddleware(redisClient, loginRule, KeyByIP),
			publicHandler.TokenLogin,
		)
		apiV1.GET("/session/me", publicHandler.SessionMe)

		// 管理端认证
		apiV1.POST("/admin/login",
			RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP),
			adminHandler.AdminLogin,
		)

		// 管理端接口（JWT + RBAC）
		admin := apiV1.Group("/admin")
		admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
		admin.Use(AdminRBACMiddleware(c.AuthzService))
		{
			admin.GET("/me", adminHandler.GetAdminMe)

			admin.POST("/links", adminHandler.CreateAdminLink)
			admin.GET("/links", adminHandler.GetAdminLinks)
			admin.GET("/links/stats", adminHandler.GetAdminLinkStats)
			admin.GET("/links/durations", adminHandler.GetLinkDurations)
			admin.GET("/links/:id", adminHandler.GetAdminLink)
			admin.DELETE("/links/:id", adminHandler.DeleteAdminLink)
			admin.PUT("/links/:id/active", adminHandler.SetAdminLinkActive)
			admin.PUT("/links/:id/extend", adminHandler.ExtendAdminLink)
			admin.POST("/cleanup", adminHandler.CleanupAdminLinks)

			admin.GET("/access-logs", adminHandler.GetAdminAccessLogs)

			admin.GET("/security-records", adminHandler.GetAdminSecurityRecords)
			admin.DELETE("/security-records/:ip", adminHandler.ResetAdminSecurityRecord)

			admin.GET("/users", adminHandler.GetAdminUsers)
			admin.GET("/users/:id", adminHandler.GetAdminUser)

			admin.GET("/settings", adminHandler.GetAdminSettings)
			admin.PUT("/settings", adminHandler.UpdateAdminSettings)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "接口不存在")
	})

	return r
}
