package service

import "errors"

// 服务层业务错误（处理器按错误映射响应码）
var (
	ErrNotFound           = errors.New("记录不存在")
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrInvalidEmail       = errors.New("邮箱格式不正确")
	ErrInvalidRole        = errors.New("角色不存在")
	ErrInvalidDuration    = errors.New("有效期格式不正确")
	ErrPastDate           = errors.New("过期时间不能早于当前时间")
	ErrInvalidIPList      = errors.New("IP白名单格式不正确")
	ErrUserExists         = errors.New("该邮箱已注册正式账号")
	ErrIPLocked           = errors.New("来源IP已被临时锁定")
)
