package repository

import (
	"context"

	"devtone-chat-go/internal/model"

	"gorm.io/gorm"
)

// MessageRepository 接口定义了消息数据的持久化操作。
// 消息创建后唯一允许的变更是把 is_read 置为 true，正常流程中不会删除。
type MessageRepository interface {
	Create(ctx context.Context, message *model.ChatMessage) error
	FindByID(ctx context.Context, id string) (*model.ChatMessage, error)
	// FindBySession 按 created_at 升序返回会话的全部消息，用于历史回放。
	FindBySession(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	MarkRead(ctx context.Context, id string) error
	// CountUnread 统计 is_user=true 且 is_read=false 的消息数。
	// sessionID 为空串时统计全部会话。计数总是基于权威过滤条件重新计算。
	CountUnread(ctx context.Context, sessionID string) (int64, error)
}

// messageRepository 是 MessageRepository 接口的 GORM 实现。
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create 在数据库中写入一条新消息。
func (r *messageRepository) Create(ctx context.Context, message *model.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// FindByID 根据消息 ID 查找一条消息。
func (r *messageRepository) FindByID(ctx context.Context, id string) (*model.ChatMessage, error) {
	var message model.ChatMessage
	err := r.db.WithContext(ctx).First(&message, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// FindBySession 返回指定会话的消息，按创建时间升序排列。
func (r *messageRepository) FindBySession(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

// MarkRead 将一条消息标记为已读。
func (r *messageRepository) MarkRead(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.ChatMessage{}).
		Where("id = ?", id).
		Update("is_read", true).Error
}

// CountUnread 统计未读的用户消息数量。
func (r *messageRepository) CountUnread(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&model.ChatMessage{}).
		Where("is_user = ? AND is_read = ?", true, false)
	if sessionID != "" {
		query = query.Where("session_id = ?", sessionID)
	}
	err := query.Count(&count).Error
	return count, err
}
