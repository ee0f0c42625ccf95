package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"crm-agent-go/internal/model"
	"crm-agent-go/internal/service"
	"crm-agent-go/pkg/errx"
	"crm-agent-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// chatMetadata 是前端随消息一起发送的会话信息。
type chatMetadata struct {
	SessionID               string `json:"sessionId"`
	SelectedCustomerPersona string `json:"selectedCustomerPersona"`
	SelectedAdvisorPersona  string `json:"selectedAdvisorPersona"`
	UserType                string `json:"userType"`
	UserID                  string `json:"userId"`
}

type chatMessage struct {
	Type     string       `json:"type"`
	Message  string       `json:"message"`
	Metadata chatMetadata `json:"metadata"`
}

func (m chatMessage) toRequest(identity string) service.ChatRequest {
	return service.ChatRequest{
		Message:         m.Message,
		RawIdentity:     identity,
		SessionID:       m.Metadata.SessionID,
		CustomerPersona: m.Metadata.SelectedCustomerPersona,
		AdvisorPersona:  m.Metadata.SelectedAdvisorPersona,
		UserType:        m.Metadata.UserType,
	}
}


// ChatHandler 负责聊天的 NDJSON 流式接口与 WebSocket 连接。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Send 处理一轮对话，以换行分隔的 JSON 帧返回，最后写出 [DONE]。
func (h *ChatHandler) Send(c *gin.Context) {
	msg, err := bindChatMessage(c)
	if err != nil {
		respondError(c, errx.New(err, http.StatusBadRequest, "invalid chat request"))
		return
	}

	frames, err := h.chatService.Chat(c.Request.Context(), msg.toRequest(rawIdentity(c, msg.Metadata.UserID)))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "application/x-ndjson; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	for f := range frames {
		if err := enc.Encode(f); err != nil {
			log.Warnf("[ChatHandler] 写出帧失败，客户端可能已断开: %v", err)
			continue
		}
		c.Writer.Flush()
	}
	if c.Request.Context().Err() == nil {
		_, _ = c.Writer.WriteString(model.DoneSentinel + "\n")
		c.Writer.Flush()
	}
}

// bindChatMessage 同时支持 JSON 与 multipart（message + metadata 字段）两种请求体。
func bindChatMessage(c *gin.Context) (chatMessage, error) {
	var msg chatMessage
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		msg.Message = c.PostForm("message")
		if raw := c.PostForm("metadata"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &msg.Metadata); err != nil {
				return msg, err
			}
		}
		if form, err := c.MultipartForm(); err == nil && len(form.File) > 0 {
			// 附件暂不参与检索，只记录数量
			log.Infof("[ChatHandler] 请求携带 %d 组附件，已忽略", len(form.File))
		}
		return msg, nil
	}
	if err := c.ShouldBindJSON(&msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// wsConn 保证同一连接上的写操作串行。
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

func (w *wsConn) writeText(s string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, []byte(s))
}

// Handle 处理一个 WebSocket 连接。每条消息是一轮对话，{"type":"stop"} 会取消进行中的一轮。
func (h *ChatHandler) Handle(c *gin.Context) {
	identity := rawIdentity(c, c.Query("userId"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	ws := &wsConn{conn: conn}
	log.Infof("[ChatHandler] WebSocket 连接已建立, identity: %q", identity)

	connCtx, closeConn := context.WithCancel(c.Request.Context())
	defer closeConn()

	var (
		mu       sync.Mutex
		stopTurn context.CancelFunc
		turns    sync.WaitGroup
	)
	defer turns.Wait()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Infof("[ChatHandler] WebSocket 连接关闭: %v", err)
			closeConn()
			return
		}

		var msg chatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = ws.writeJSON(model.Frame{Type: model.FrameError, Message: "invalid chat request"})
			continue
		}

		if msg.Type == "stop" {
			mu.Lock()
			if stopTurn != nil {
				stopTurn()
				log.Info("[ChatHandler] 收到停止指令，正在中断流式响应...")
			}
			mu.Unlock()
			continue
		}

		mu.Lock()
		busy := stopTurn != nil
		mu.Unlock()
		if busy {
			_ = ws.writeJSON(model.Frame{Type: model.FrameError, Message: "a response is already in progress"})
			continue
		}

		turnCtx, cancel := context.WithCancel(connCtx)
		frames, err := h.chatService.Chat(turnCtx, msg.toRequest(rawIdentity(c, firstNonEmpty(msg.Metadata.UserID, identity))))
		if err != nil {
			cancel()
			_, message := errx.StatusOf(err)
			log.Warnf("[ChatHandler] WebSocket 对话被拒绝: %v", err)
			_ = ws.writeJSON(model.Frame{Type: model.FrameError, Message: message})
			_ = ws.writeText(model.DoneSentinel)
			continue
		}

		mu.Lock()
		stopTurn = cancel
		mu.Unlock()
		turns.Add(1)
		go func() {
			defer turns.Done()
			defer func() {
				mu.Lock()
				stopTurn = nil
				mu.Unlock()
				cancel()
			}()
			for f := range frames {
				if err := ws.writeJSON(f); err != nil {
					cancel()
				}
			}
			_ = ws.writeText(model.DoneSentinel)
		}()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
