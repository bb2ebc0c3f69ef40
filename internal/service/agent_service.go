package service

import (
	"context"
	"errors"

	"devtone-chat-go/internal/model"
	"devtone-chat-go/internal/repository"
	"devtone-chat-go/pkg/hash"
	"devtone-chat-go/pkg/log"
	"devtone-chat-go/pkg/token"

	"gorm.io/gorm"
)

// ErrInvalidCredentials 表示用户名或密码不正确。
var ErrInvalidCredentials = errors.New("invalid credentials")

// AgentService 接口定义了坐席控制台的认证操作。
type AgentService interface {
	Login(ctx context.Context, username, password string) (accessToken, refreshToken string, err error)
	RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
	GetProfile(ctx context.Context, username string) (*model.Agent, error)
	// Bootstrap 在坐席表为空时创建默认账号，重复调用是幂等的。
	Bootstrap(ctx context.Context, username, password string) error
}

// agentService 是 AgentService 接口的实现。
type agentService struct {
	agentRepo  repository.AgentRepository
	jwtManager *token.JWTManager
}

// NewAgentService 创建一个新的 AgentService 实例。
func NewAgentService(agentRepo repository.AgentRepository, jwtManager *token.JWTManager) AgentService {
	return &agentService{agentRepo: agentRepo, jwtManager: jwtManager}
}

// Login 校验坐席凭据并签发令牌对。
func (s *agentService) Login(ctx context.Context, username, password string) (string, string, error) {
	agent, err := s.agentRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", err
	}

	if !hash.CheckPassword(password, agent.Password) {
		return "", "", ErrInvalidCredentials
	}

	accessToken, err := s.jwtManager.GenerateToken(agent.ID, agent.Username)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(agent.ID, agent.Username)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// RefreshToken 用有效的 refresh token 换取新的令牌对。
func (s *agentService) RefreshToken(ctx context.Context, refreshTokenString string) (string, string, error) {
	claims, err := s.jwtManager.VerifyToken(refreshTokenString)
	if err != nil {
		return "", "", err
	}

	// 确认坐席仍然存在
	agent, err := s.agentRepo.FindByUsername(ctx, claims.Username)
	if err != nil {
		return "", "", ErrInvalidCredentials
	}

	accessToken, err := s.jwtManager.GenerateToken(agent.ID, agent.Username)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(agent.ID, agent.Username)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// GetProfile 根据用户名返回坐席信息。
func (s *agentService) GetProfile(ctx context.Context, username string) (*model.Agent, error) {
	return s.agentRepo.FindByUsername(ctx, username)
}

// Bootstrap 在默认坐席不存在时创建它。
func (s *agentService) Bootstrap(ctx context.Context, username, password string) error {
	_, err := s.agentRepo.FindByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := hash.HashPassword(password)
	if err != nil {
		return err
	}
	agent := &model.Agent{
		Username:    username,
		Password:    hashed,
		DisplayName: "Support",
	}
	if err := s.agentRepo.Create(ctx, agent); err != nil {
		return err
	}
	log.Infof("已创建默认坐席账号 '%s'，请尽快修改初始密码", username)
	return nil
}
