// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"

	"crm-agent-go/internal/agent"
	"crm-agent-go/internal/model"
	"crm-agent-go/internal/repository"
	"crm-agent-go/pkg/llm"
	"crm-agent-go/pkg/log"
)

// ChatRequest 是一轮对话的输入。
type ChatRequest struct {
	Message         string
	RawIdentity     string
	SessionID       string
	CustomerPersona string
	AdvisorPersona  string
	UserType        string
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// Chat 同步完成会话校验并保存用户消息，随后在后台推进本轮对话。
	// 身份错误会直接返回，此时不会产生任何帧。返回的 channel 在本轮结束或 ctx 取消后关闭。
	Chat(ctx context.Context, req ChatRequest) (<-chan model.Frame, error)
}

type chatService struct {
	access       AccessValidator
	sessions     repository.SessionRepository
	orchestrator *agent.Orchestrator
	assembler    *agent.Assembler
	llmClient    llm.Client
	prompts      Prompts
	historyLimit int
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(access AccessValidator, sessions repository.SessionRepository, orchestrator *agent.Orchestrator,
	assembler *agent.Assembler, llmClient llm.Client, prompts Prompts, historyLimit int) ChatService {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &chatService{
		access:       access,
		sessions:     sessions,
		orchestrator: orchestrator,
		assembler:    assembler,
		llmClient:    llmClient,
		prompts:      prompts,
		historyLimit: historyLimit,
	}
}

func (s *chatService) Chat(ctx context.Context, req ChatRequest) (<-chan model.Frame, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, emptyMessage()
	}

	grant, err := s.access.Validate(ctx, AccessRequest{
		RawIdentity:     req.RawIdentity,
		CustomerPersona: req.CustomerPersona,
		AdvisorPersona:  req.AdvisorPersona,
		SessionID:       req.SessionID,
		UserType:        req.UserType,
	})
	if err != nil {
		return nil, err
	}

	// 先落库用户消息，保证中途崩溃也能留下提问记录
	userMsg := &model.Message{SessionID: grant.Session.ID, Role: model.RoleUser, Content: message}
	if err := s.sessions.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	out := make(chan model.Frame)
	go s.runTurn(ctx, grant, userMsg, out)
	return out, nil
}

// runTurn 依次执行：加载历史、工具编排、上下文组装、流式补全、保存回复。
func (s *chatService) runTurn(ctx context.Context, grant *AccessGrant, userMsg *model.Message, out chan<- model.Frame) {
	defer close(out)
	sessionID := grant.Session.ID
	send := func(f model.Frame) bool {
		select {
		case out <- f:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send(model.Frame{Type: model.FrameSession, SessionID: sessionID}) {
		return
	}
	if !send(model.Frame{Type: model.FrameState, StateType: model.StateSearching, Message: "Looking up your information..."}) {
		return
	}

	history := s.loadHistory(ctx, sessionID, userMsg.ID)

	intent := agent.DetectIntent(userMsg.Content)
	log.Infof("[ChatService] 会话 %s 意图: %+v", sessionID, intent)
	outcome := s.orchestrator.Run(ctx, userMsg.Content, intent, grant.Persona)
	contextText := s.assembler.Assemble(outcome, agent.PersonaSummary(grant.Persona))

	if !send(model.Frame{Type: model.FrameMetadata, Sources: outcome.Sources, ToolsUsed: outcome.Calls}) {
		return
	}

	messages := composeMessages(s.prompts.For(grant.Persona), contextText, history, userMsg.Content)
	if !send(model.Frame{Type: model.FrameState, StateType: model.StateGenerating, Message: "Generating answer..."}) {
		return
	}

	stream, err := s.llmClient.StreamChat(ctx, messages, nil)
	if err != nil {
		if ctx.Err() != nil {
			log.Infof("[ChatService] 会话 %s 在补全开始前被取消", sessionID)
			return
		}
		s.fail(sessionID, err, send)
		return
	}

	var answer strings.Builder
	var streamErr error
	for d := range stream {
		if d.Err != nil {
			streamErr = d.Err
			break
		}
		answer.WriteString(d.Content)
		if !send(model.Frame{Type: model.FrameContent, Content: d.Content}) {
			break
		}
	}

	// 被取消的一轮不保存任何助手消息
	if ctx.Err() != nil {
		log.Infof("[ChatService] 会话 %s 的流式响应已取消，丢弃 %d 字符的部分回复", sessionID, answer.Len())
		return
	}
	if streamErr != nil {
		s.fail(sessionID, streamErr, send)
		return
	}

	if !send(model.Frame{Type: model.FrameState, StateType: model.StateSaving, Message: "Saving conversation..."}) {
		return
	}
	if answer.Len() > 0 {
		assistantMsg := &model.Message{
			SessionID: sessionID,
			Role:      model.RoleAssistant,
			Content:   answer.String(),
			Metadata:  model.MessageMetadata{Sources: outcome.Sources, ToolsUsed: outcome.Calls},
		}
		// 流已经完整结束，保存不再受调用方取消的影响
		if err := s.sessions.AppendMessage(context.WithoutCancel(ctx), assistantMsg); err != nil {
			log.Errorf("[ChatService] 保存会话 %s 的助手消息失败: %v", sessionID, err)
		}
	} else {
		log.Warnf("[ChatService] 会话 %s 的补全结果为空，未保存助手消息", sessionID)
	}
	send(model.Frame{Type: model.FrameDone})
}

func (s *chatService) fail(sessionID string, err error, send func(model.Frame) bool) {
	log.Errorf("[ChatService] 会话 %s 的补全失败: %v", sessionID, err)
	if send(model.Frame{Type: model.FrameError, Message: RetryMessage}) {
		send(model.Frame{Type: model.FrameDone})
	}
}

// loadHistory 读取最近的历史消息，不包含本轮刚保存的用户消息。失败时返回空历史。
func (s *chatService) loadHistory(ctx context.Context, sessionID string, currentID uint) []model.Message {
	recent, err := s.sessions.RecentMessages(ctx, sessionID, s.historyLimit+1)
	if err != nil {
		log.Warnf("[ChatService] 加载会话 %s 历史失败，按空历史继续: %v", sessionID, err)
		return nil
	}
	history := make([]model.Message, 0, len(recent))
	for _, m := range recent {
		if m.ID == currentID {
			continue
		}
		history = append(history, m)
	}
	if len(history) > s.historyLimit {
		history = history[len(history)-s.historyLimit:]
	}
	return history
}

// composeMessages 顺序为：系统提示词、上下文、历史、本轮用户消息。
func composeMessages(systemPrompt, contextText string, history []model.Message, userInput string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+3)
	msgs = append(msgs, llm.Message{Role: model.RoleSystem, Content: systemPrompt})
	msgs = append(msgs, llm.Message{Role: model.RoleSystem, Content: "Context:\n" + contextText})
	for _, m := range history {
		if m.Role != model.RoleUser && m.Role != model.RoleAssistant {
			continue
		}
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: model.RoleUser, Content: userInput})
	return msgs
}
