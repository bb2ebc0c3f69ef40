// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"

	"devtone-chat-go/internal/model"

	"gorm.io/gorm"
)

// SessionRepository 接口定义了会话记录的持久化操作。
type SessionRepository interface {
	Create(ctx context.Context, session *model.ChatSession) error
	FindByID(ctx context.Context, id string) (*model.ChatSession, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// sessionRepository 是 SessionRepository 接口的 GORM 实现。
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// Create 在数据库中创建一条新的会话记录。
func (r *sessionRepository) Create(ctx context.Context, session *model.ChatSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// FindByID 根据会话 ID 查找一条会话记录。
func (r *sessionRepository) FindByID(ctx context.Context, id string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateStatus 更新会话的状态字段。
func (r *sessionRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).Model(&model.ChatSession{}).
		Where("id = ?", id).
		Update("status", status).Error
}
