package handler

import (
	"encoding/json"

	"github.com/dak-1306/pyctalk-sub001/internal/domain"
)

// Действия, которые клиент шлет по постоянному соединению
const (
	ActionSendMessage    = "send_message"
	ActionGetChatHistory = "get_chat_history"
	ActionMarkAsRead     = "mark_as_read"
	ActionGetUnreadCount = "get_unread_count"
	ActionGetOnlineUsers = "get_online_users"

	// Событие, которое сервер пушит онлайн-получателю
	ActionReceiveMessage = "receive_message"
)

// Request - конверт запроса клиента
type Request struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Response - конверт ответа сервера
type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
}

// Event - конверт пуш-события
type Event struct {
	Action string      `json:"action"`
	Data   interface{} `json:"data"`
}

type sendMessagePayload struct {
	From       string             `json:"from"`
	To         string             `json:"to"`
	Message    string             `json:"message"`
	Type       string             `json:"type"`
	Attachment *domain.Attachment `json:"attachment"`
}

type chatHistoryPayload struct {
	User1  string `json:"user1"`
	User2  string `json:"user2"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type markAsReadPayload struct {
	User        string `json:"user"`
	ChatPartner string `json:"chat_partner"`
}
