// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-agent-go/internal/model"
	"crm-agent-go/pkg/retry"

	"gorm.io/gorm"
)

// SessionRepository 定义了会话与消息的持久化操作。
// 消息只追加；删除只能通过 DeleteSession 整体清空。
type SessionRepository interface {
	// GetSession 按 ID 读取会话，不存在时返回 (nil, nil)。
	GetSession(ctx context.Context, id string) (*model.Session, error)
	// FindActiveByPersona 查找未过期、且元数据恰好属于该 persona 的最新会话。
	FindActiveByPersona(ctx context.Context, kind model.PersonaKind, number string, now time.Time) (*model.Session, error)
	CreateSession(ctx context.Context, session *model.Session) error
	// UpdateSessionMetadata 只刷新 metadata 列，不会改动归属字段。
	UpdateSessionMetadata(ctx context.Context, id string, metadata map[string]string) error
	AppendMessage(ctx context.Context, message *model.Message) error
	// RecentMessages 按时间正序返回最近的 limit 条消息。
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]model.Message, error)
	// DeleteSession 删除会话及其全部消息；会话不存在时不报错。
	DeleteSession(ctx context.Context, id string) error
}

type sessionRepository struct {
	db     *gorm.DB
	policy retry.Policy
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(db *gorm.DB, policy retry.Policy) SessionRepository {
	return &sessionRepository{db: db, policy: policy}
}

func (r *sessionRepository) do(ctx context.Context, op func(db *gorm.DB) error) error {
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return op(r.db.WithContext(ctx))
	})
}

func (r *sessionRepository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.do(ctx, func(db *gorm.DB) error {
		return db.Where("id = ?", id).First(&session).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (r *sessionRepository) FindActiveByPersona(ctx context.Context, kind model.PersonaKind, number string, now time.Time) (*model.Session, error) {
	var sessions []model.Session
	err := r.do(ctx, func(db *gorm.DB) error {
		q := db.Where("expires_at > ?", now)
		switch kind {
		case model.PersonaCustomer:
			q = q.Where("customer_persona = ? AND advisor_persona = ''", number)
		case model.PersonaAdvisor:
			q = q.Where("advisor_persona = ? AND customer_persona = ''", number)
		default:
			return fmt.Errorf("unknown persona kind %q", kind)
		}
		return q.Order("created_at DESC").Limit(1).Find(&sessions).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find session by persona: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

func (r *sessionRepository) CreateSession(ctx context.Context, session *model.Session) error {
	return r.do(ctx, func(db *gorm.DB) error {
		return db.Create(session).Error
	})
}

func (r *sessionRepository) UpdateSessionMetadata(ctx context.Context, id string, metadata map[string]string) error {
	return r.do(ctx, func(db *gorm.DB) error {
		return db.Model(&model.Session{ID: id}).Select("Metadata").Updates(&model.Session{Metadata: metadata}).Error
	})
}

func (r *sessionRepository) AppendMessage(ctx context.Context, message *model.Message) error {
	return r.do(ctx, func(db *gorm.DB) error {
		return db.Create(message).Error
	})
}

func (r *sessionRepository) RecentMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := r.do(ctx, func(db *gorm.DB) error {
		return db.Where("session_id = ?", sessionID).Order("id DESC").Limit(limit).Find(&messages).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	// 反转为时间正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *sessionRepository) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.do(ctx, func(db *gorm.DB) error {
		return db.Where("session_id = ?", sessionID).Order("id ASC").Find(&messages).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (r *sessionRepository) DeleteSession(ctx context.Context, id string) error {
	return r.do(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("session_id = ?", id).Delete(&model.Message{}).Error; err != nil {
				return err
			}
			return tx.Where("id = ?", id).Delete(&model.Session{}).Error
		})
	})
}
