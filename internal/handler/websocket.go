package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dak-1306/pyctalk-sub001/internal/middleware"
	"github.com/dak-1306/pyctalk-sub001/internal/presence"
	"github.com/dak-1306/pyctalk-sub001/internal/service"
	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшене нужно проверять origin
	},
}

type WebSocketHandler struct {
	chatService service.ChatService
	verifier    service.TokenVerifier
	registry    *presence.Registry
	log         logger.Logger
}

func NewWebSocketHandler(chatService service.ChatService, verifier service.TokenVerifier, registry *presence.Registry, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		chatService: chatService,
		verifier:    verifier,
		registry:    registry,
		log:         log,
	}
}

// HandleChat поднимает websocket-сессию. Личность отправителя берется из
// токена рукопожатия и дальше используется для всех действий сессии.
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	user, err := h.verifier.Verify(c.Request.Context(), middleware.BearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn := newWSConn(user, ws, h.log)

	// Повторное подключение вытесняет старый handle того же пользователя
	if prev := h.registry.Register(user, conn); prev != nil {
		if old, ok := prev.(*wsConn); ok {
			old.close(websocket.CloseGoingAway, "replaced by new connection")
		}
	}

	h.log.Info("User connected", "user", user, "session", conn.id)
	conn.start()
	h.readLoop(conn)

	// Снимаем presence только если запись все еще принадлежит этой сессии
	if cur, ok := h.registry.Lookup(user); ok && cur == conn {
		h.registry.Unregister(user)
	}
	conn.close(websocket.CloseNormalClosure, "")
	h.log.Info("User disconnected", "user", user, "session", conn.id)
}

func (h *WebSocketHandler) readLoop(c *wsConn) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Connection closed unexpectedly", "error", err, "user", c.user)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.respond(Response{Success: false, Message: "invalid request envelope"})
			continue
		}

		c.respond(h.dispatch(context.Background(), c, req))
	}
}

func (h *WebSocketHandler) dispatch(ctx context.Context, c *wsConn, req Request) Response {
	switch req.Action {
	case ActionSendMessage:
		return h.handleSend(ctx, c, req.Data)
	case ActionGetChatHistory:
		return h.handleHistory(ctx, c, req.Data)
	case ActionMarkAsRead:
		return h.handleMarkRead(ctx, c, req.Data)
	case ActionGetUnreadCount:
		count, err := h.chatService.UnreadCount(ctx, c.user)
		if err != nil {
			return Response{Success: false, Message: err.Error()}
		}
		return Response{Success: true, Data: gin.H{"count": count}}
	case ActionGetOnlineUsers:
		return Response{Success: true, Data: gin.H{"users": h.chatService.OnlineUsers(ctx)}}
	default:
		return Response{Success: false, Message: "unknown action: " + req.Action}
	}
}

func (h *WebSocketHandler) handleSend(ctx context.Context, c *wsConn, data json.RawMessage) Response {
	var p sendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Response{Success: false, Message: "invalid send_message payload"}
	}

	// Поле from из запроса не используется: отправитель - аутентифицированная
	// личность соединения
	if p.From != "" && p.From != c.user {
		h.log.Debug("Payload sender ignored", "claimed", p.From, "actual", c.user)
	}

	msg, err := h.chatService.Send(ctx, c.user, p.To, p.Message, p.Type, p.Attachment)
	if err != nil {
		return Response{Success: false, Message: err.Error()}
	}
	return Response{Success: true, MessageID: msg.ID}
}

func (h *WebSocketHandler) handleHistory(ctx context.Context, c *wsConn, data json.RawMessage) Response {
	var p chatHistoryPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Response{Success: false, Message: "invalid get_chat_history payload"}
	}

	// История доступна только участнику диалога
	var other string
	switch c.user {
	case p.User1:
		other = p.User2
	case p.User2:
		other = p.User1
	default:
		return Response{Success: false, Message: "history is limited to own conversations"}
	}

	msgs, err := h.chatService.History(ctx, c.user, other, p.Limit, p.Offset)
	if err != nil {
		return Response{Success: false, Message: err.Error()}
	}
	return Response{Success: true, Data: gin.H{"messages": msgs}}
}

func (h *WebSocketHandler) handleMarkRead(ctx context.Context, c *wsConn, data json.RawMessage) Response {
	var p markAsReadPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Response{Success: false, Message: "invalid mark_as_read payload"}
	}

	marked, err := h.chatService.MarkRead(ctx, c.user, p.ChatPartner)
	if err != nil {
		return Response{Success: false, Message: err.Error()}
	}
	return Response{Success: true, Data: gin.H{"marked": marked}}
}
