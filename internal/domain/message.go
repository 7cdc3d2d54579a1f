package domain

import (
	"time"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeAudio = "audio"
	MessageTypeFile  = "file"
)

// Attachment - метаданные медиафайла, прикрепленного к сообщению.
// Формат полей совпадает с объектом, который возвращает пайплайн загрузки.
type Attachment struct {
	MessageType   string `json:"message_type"`
	FilePath      string `json:"file_path"`
	FileName      string `json:"file_name"`
	FileSize      int64  `json:"file_size"`
	MimeType      string `json:"mime_type"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
}

// Message - одно сообщение в диалоге. Неизменяемо после создания,
// кроме флага IsRead, который переходит только false -> true.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Sender         string      `json:"from"`
	Recipient      string      `json:"to"`
	Content        string      `json:"message"`
	MessageType    string      `json:"message_type"`
	Attachment     *Attachment `json:"attachment,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	IsRead         bool        `json:"is_read"`
}
