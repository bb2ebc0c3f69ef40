package model

import "time"

// Agent 代表一名客服坐席，用于坐席控制台的登录认证。
type Agent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Password    string    `gorm:"size:255;not null" json:"-"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Agent) TableName() string {
	return "agents"
}
