package service

import (
	"context"
	"fmt"

	"github.com/dak-1306/pyctalk-sub001/internal/domain"
	"github.com/dak-1306/pyctalk-sub001/internal/presence"
	"github.com/dak-1306/pyctalk-sub001/internal/repository"
	apperrors "github.com/dak-1306/pyctalk-sub001/pkg/errors"
	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

// HistoryMessage - сообщение истории с флагом перспективы запрашивающего
type HistoryMessage struct {
	domain.Message
	IsSent bool `json:"is_sent"`
}

type ChatService interface {
	// Send валидирует, записывает сообщение в журнал и доставляет его
	// онлайн-получателю. Сбой доставки не является сбоем отправки.
	Send(ctx context.Context, sender, recipient, content, messageType string, att *domain.Attachment) (domain.Message, error)

	// History возвращает окно [offset, offset+limit) диалога viewer-other
	// по возрастанию времени
	History(ctx context.Context, viewer, other string, limit, offset int) ([]HistoryMessage, error)

	// MarkRead помечает прочитанными сообщения от sender к reader
	MarkRead(ctx context.Context, reader, sender string) (int, error)

	// UnreadCount считает непрочитанные сообщения пользователя по всем диалогам
	UnreadCount(ctx context.Context, user string) (int, error)

	// OnlineUsers возвращает пользователей с живым соединением
	OnlineUsers(ctx context.Context) []string
}

type chatService struct {
	convs    *repository.ConversationStore
	registry *presence.Registry
	log      logger.Logger
}

func NewChatService(convs *repository.ConversationStore, registry *presence.Registry, log logger.Logger) ChatService {
	return &chatService{
		convs:    convs,
		registry: registry,
		log:      log,
	}
}

func (s *chatService) Send(ctx context.Context, sender, recipient, content, messageType string, att *domain.Attachment) (domain.Message, error) {
	if sender == "" || recipient == "" {
		return domain.Message{}, fmt.Errorf("%w: sender and recipient are required", apperrors.ErrValidation)
	}
	if content == "" && att == nil {
		return domain.Message{}, fmt.Errorf("%w: message or attachment is required", apperrors.ErrValidation)
	}

	// Тип вложения имеет приоритет над типом из запроса
	if att != nil && att.MessageType != "" {
		messageType = att.MessageType
	}
	if messageType == "" {
		messageType = domain.MessageTypeText
	}

	msg := s.convs.Append(sender, recipient, content, messageType, att)

	// Доставка best-effort: сообщение уже записано, поэтому ошибки пуша
	// логируются и глотаются
	if conn, ok := s.registry.Lookup(recipient); ok {
		if err := conn.Push("receive_message", msg); err != nil {
			s.log.Warn("Failed to push message to recipient",
				"error", err, "recipient", recipient, "message_id", msg.ID)
		}
	}

	return msg, nil
}

func (s *chatService) History(ctx context.Context, viewer, other string, limit, offset int) ([]HistoryMessage, error) {
	if viewer == "" || other == "" {
		return nil, fmt.Errorf("%w: both chat participants are required", apperrors.ErrValidation)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	msgs := s.convs.History(viewer, other, limit, offset)
	out := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, HistoryMessage{
			Message: m,
			IsSent:  m.Sender == viewer,
		})
	}
	return out, nil
}

func (s *chatService) MarkRead(ctx context.Context, reader, sender string) (int, error) {
	if reader == "" || sender == "" {
		return 0, fmt.Errorf("%w: reader and sender are required", apperrors.ErrValidation)
	}

	marked := s.convs.MarkRead(reader, sender)
	if marked > 0 {
		s.log.Debug("Messages marked as read", "reader", reader, "sender", sender, "count", marked)
	}
	return marked, nil
}

func (s *chatService) UnreadCount(ctx context.Context, user string) (int, error) {
	if user == "" {
		return 0, fmt.Errorf("%w: user is required", apperrors.ErrValidation)
	}
	return s.convs.UnreadCount(user), nil
}

func (s *chatService) OnlineUsers(ctx context.Context) []string {
	return s.registry.ListOnline()
}
