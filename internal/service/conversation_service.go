package service

import (
	"context"
	"fmt"

	"crm-agent-go/internal/model"
	"crm-agent-go/internal/repository"
	"crm-agent-go/pkg/log"
)

// ConversationService 定义了会话历史的查询与清空。
type ConversationService interface {
	GetHistory(ctx context.Context, sessionID, userID string) ([]model.MessageDTO, error)
	// ClearHistory 删除会话的全部消息以及会话本身；会话不存在时不报错。
	ClearHistory(ctx context.Context, sessionID, userID string) error
}

type conversationService struct {
	access   AccessValidator
	sessions repository.SessionRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(access AccessValidator, sessions repository.SessionRepository) ConversationService {
	return &conversationService{access: access, sessions: sessions}
}

// GetHistory 按时间顺序返回会话的完整消息列表。
func (s *conversationService) GetHistory(ctx context.Context, sessionID, userID string) ([]model.MessageDTO, error) {
	session, err := s.access.AuthorizeSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return []model.MessageDTO{}, nil
	}
	messages, err := s.sessions.ListMessages(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	dtos := make([]model.MessageDTO, 0, len(messages))
	for _, m := range messages {
		dtos = append(dtos, m.ToDTO())
	}
	return dtos, nil
}

func (s *conversationService) ClearHistory(ctx context.Context, sessionID, userID string) error {
	session, err := s.access.AuthorizeSession(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		log.Infof("[ConversationService] 会话 %s 不存在，无需清空", sessionID)
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, session.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	log.Infof("[ConversationService] 已清空会话 %s", session.ID)
	return nil
}
