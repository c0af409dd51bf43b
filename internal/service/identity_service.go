package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/templink-next/internal/constants"
	"github.com/templink-next/internal/models"
	"github.com/templink-next/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// IdentityService 临时身份绑定服务
// 链接签发时按邮箱查找或创建临时账号；正式账号不可被劫持。
type IdentityService struct {
	userRepo repository.UserRepository
	roles    *RoleRegistry
}

// NewIdentityService 创建身份绑定服务
func NewIdentityService(userRepo repository.UserRepository, roles *RoleRegistry) *IdentityService {
	return &IdentityService{
		userRepo: userRepo,
		roles:    roles,
	}
}

// BindInput 身份绑定输入
type BindInput struct {
	Email     string
	Role      string
	FirstName string
	LastName  string
	LinkID    uint // 首次创建时回填 source_link_id，可为 0
}

// Bind 按邮箱绑定或创建临时账号，返回用户ID
// 已存在的正式账号返回 ErrUserExists；已存在的临时账号原地更新
// 角色与姓名后复用（同邮箱多链接共享同一临时身份）。
func (s *IdentityService) Bind(input BindInput) (uint, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	role := input.Role
	if role == "" {
		role = s.roles.Default()
	}
	if !s.roles.Exists(role) {
		return 0, ErrInvalidRole
	}

	existing, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		if !existing.IsTemporary {
			return 0, ErrUserExists
		}
		existing.Role = role
		if input.FirstName != "" {
			existing.FirstName = input.FirstName
		}
		if input.LastName != "" {
			existing.LastName = input.LastName
		}
		if err := s.userRepo.Update(existing); err != nil {
			return 0, err
		}
		return existing.ID, nil
	}

	username, err := generateEphemeralUsername()
	if err != nil {
		return 0, err
	}
	passwordHash, err := generateThrowawayCredential()
	if err != nil {
		return 0, err
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         role,
		Status:       constants.UserStatusActive,
		IsTemporary:  true,
		SourceLinkID: input.LinkID,
	}
	if err := s.userRepo.Create(user); err != nil {
		return 0, err
	}
	return user.ID, nil
}

// Resolve 解析用户ID为有效身份，不存在返回 nil
func (s *IdentityService) Resolve(userID uint) (*models.User, error) {
	if userID == 0 {
		return nil, nil
	}
	return s.userRepo.GetByID(userID)
}

// AttachSourceLink 回填临时账号的来源链接
func (s *IdentityService) AttachSourceLink(userID, linkID uint) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil || user == nil {
		return err
	}
	if !user.IsTemporary || user.SourceLinkID != 0 {
		return nil
	}
	user.SourceLinkID = linkID
	return s.userRepo.Update(user)
}

// generateEphemeralUsername 生成不可预测的临时用户名
func generateEphemeralUsername() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("生成临时用户名失败: %w", err)
	}
	return "temp_" + strings.ReplaceAll(id.String(), "-", "")[:16], nil
}

// generateThrowawayCredential 生成一次性随机凭据的哈希
// 凭据本身不落地也不返回，临时账号只能通过链接登录。
func generateThrowawayCredential() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("生成临时凭据失败: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(buf)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
