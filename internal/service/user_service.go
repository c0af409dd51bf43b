package service

import (
	"time"

	"github.com/templink-next/internal/models"
	"github.com/templink-next/internal/repository"
)

// UserService 用户查询服务（后台只读）
type UserService struct {
	repo repository.UserRepository
}

// NewUserService 创建用户服务
func NewUserService(repo repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Get 获取用户详情
func (s *UserService) Get(id uint) (*models.User, error) {
	user, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// List 用户分页查询
func (s *UserService) List(filter repository.UserListFilter) ([]models.User, int64, error) {
	return s.repo.List(filter)
}

// RecordLogin 登录成功后更新最后登录时间
func (s *UserService) RecordLogin(id uint) error {
	user, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}
	now := time.Now()
	user.LastLoginAt = &now
	return s.repo.Update(user)
}
