// Package model 定义了与数据库表对应的 Go 结构体以及在各层之间传递的 DTO。
package model

import "time"

// 会话元数据中使用的键。
const (
	MetaCustomerPersona = "customerPersona"
	MetaAdvisorPersona  = "advisorPersona"
	MetaCustomerID      = "customerId"
	MetaAdvisorID       = "advisorId"
	MetaUserType        = "userType"
	MetaLastSeenAt      = "lastSeenAt"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Session 对应 chat_sessions 表。
// 一个会话至多属于一个 persona（客户或顾问），归属一旦写入便不可更改。
type Session struct {
	ID              string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerID         string            `gorm:"type:varchar(128);index" json:"ownerId"`
	CustomerPersona string            `gorm:"type:varchar(64);index:idx_session_persona" json:"customerPersona,omitempty"`
	AdvisorPersona  string            `gorm:"type:varchar(64);index:idx_session_persona" json:"advisorPersona,omitempty"`
	Metadata        map[string]string `gorm:"type:json;serializer:json" json:"metadata"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	ExpiresAt       time.Time         `gorm:"index" json:"expiresAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Session) TableName() string {
	return "chat_sessions"
}

// Expired 判断会话在给定时间点是否已过期。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Message 对应 chat_messages 表，只追加、不修改。
type Message struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string          `gorm:"type:varchar(36);not null;index:idx_message_session" json:"sessionId"`
	Role      string          `gorm:"type:varchar(16);not null" json:"role"`
	Content   string          `gorm:"type:longtext;not null" json:"content"`
	Metadata  MessageMetadata `gorm:"type:json;serializer:json" json:"metadata"`
	CreatedAt time.Time       `gorm:"autoCreateTime:milli;index:idx_message_session" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Message) TableName() string {
	return "chat_messages"
}

// MessageMetadata 记录助手回复的来源与工具调用，用于向调用方展示出处。
type MessageMetadata struct {
	Sources   []SourceRef `json:"sources,omitempty"`
	ToolsUsed []ToolCall  `json:"toolsUsed,omitempty"`
}

// MessageDTO 是返回给前端的历史消息结构。
type MessageDTO struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Metadata  MessageMetadata `json:"metadata"`
	Timestamp LocalTime       `json:"timestamp"`
}

// ToDTO 转换为对外展示的结构。
func (m Message) ToDTO() MessageDTO {
	return MessageDTO{
		Role:      m.Role,
		Content:   m.Content,
		Metadata:  m.Metadata,
		Timestamp: LocalTime(m.CreatedAt),
	}
}
