package handler

import (
	"net/http"

	"crm-agent-go/internal/service"
	"crm-agent-go/pkg/errx"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理会话历史的查询与清空。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

type clearRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	UserID    string `json:"userId"`
}

// Clear 删除会话的全部消息和会话本身。会话不存在时同样返回成功。
func (h *ConversationHandler) Clear(c *gin.Context) {
	var req clearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errx.New(err, http.StatusBadRequest, "sessionId is required"))
		return
	}
	if err := h.service.ClearHistory(c.Request.Context(), req.SessionID, rawIdentity(c, req.UserID)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "success", nil)
}

// History 按时间顺序返回会话消息。
func (h *ConversationHandler) History(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		respond(c, http.StatusBadRequest, "sessionId is required", nil)
		return
	}
	history, err := h.service.GetHistory(c.Request.Context(), sessionID, rawIdentity(c, c.Query("userId")))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "success", history)
}
