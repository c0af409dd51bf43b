package public

import "github.com/templink-next/internal/provider"

// Handler 公开接口处理器入口
// 说明：该处理器只承载令牌消费端点，不做任何管理操作。
type Handler struct {
	*provider.Container
}

// New 创建公开处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
