package repository

import (
	"context"

	"devtone-chat-go/internal/model"

	"gorm.io/gorm"
)

// AgentRepository 接口定义了客服坐席数据的持久化操作。
type AgentRepository interface {
	Create(ctx context.Context, agent *model.Agent) error
	FindByUsername(ctx context.Context, username string) (*model.Agent, error)
}

// agentRepository 是 AgentRepository 接口的 GORM 实现。
type agentRepository struct {
	db *gorm.DB
}

// NewAgentRepository 创建一个新的 AgentRepository 实例。
func NewAgentRepository(db *gorm.DB) AgentRepository {
	return &agentRepository{db: db}
}

// Create 在数据库中创建一条新的坐席记录。
func (r *agentRepository) Create(ctx context.Context, agent *model.Agent) error {
	return r.db.WithContext(ctx).Create(agent).Error
}

// FindByUsername 根据用户名查找一名坐席。
func (r *agentRepository) FindByUsername(ctx context.Context, username string) (*model.Agent, error) {
	var agent model.Agent
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&agent).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}
