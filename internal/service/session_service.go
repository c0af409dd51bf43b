package service

import (
	"errors"
	"time"

	"github.com/templink-next/internal/config"
	"github.com/templink-next/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// SessionService 访客会话服务
// 校验通过后为临时用户签发会话 JWT，交给宿主前端携带。
type SessionService struct {
	cfg *config.Config
}

// NewSessionService 创建会话服务
func NewSessionService(cfg *config.Config) *SessionService {
	return &SessionService{cfg: cfg}
}

// SessionClaims 访客会话 JWT 声明
type SessionClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	LinkID uint   `json:"link_id"`
	jwt.RegisteredClaims
}

// Issue 签发会话 Token
// 会话有效期不超过链接剩余有效期，链接失效后会话随之失效。
func (s *SessionService) Issue(user *models.User, link *models.LoginLink) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(s.cfg.SessionJWT.ExpireHours) * time.Hour)
	if link != nil && link.ExpiresAt.Before(expiresAt) {
		expiresAt = link.ExpiresAt
	}

	linkID := uint(0)
	if link != nil {
		linkID = link.ID
	}

	claims := SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		LinkID: linkID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.SessionJWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse 解析会话 Token
func (s *SessionService) Parse(tokenString string) (*SessionClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.SessionJWT.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("无效的 token")
}
