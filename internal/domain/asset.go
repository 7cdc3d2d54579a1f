package domain

import (
	"time"
)

// MediaAsset - сохраненный медиафайл и производные метаданные
type MediaAsset struct {
	ID            string    `json:"id"`
	Category      string    `json:"category"`
	Hash          string    `json:"hash"` // SHA-256 содержимого
	FilePath      string    `json:"file_path"`
	FileName      string    `json:"file_name"`   // оригинальное имя при загрузке
	StoredName    string    `json:"stored_name"` // сгенерированное имя в хранилище
	FileSize      int64     `json:"file_size"`
	MimeType      string    `json:"mime_type"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Attachment возвращает метаданные в форме, которую клиент вкладывает
// в send_message
func (a *MediaAsset) Attachment() *Attachment {
	return &Attachment{
		MessageType:   a.Category,
		FilePath:      a.FilePath,
		FileName:      a.FileName,
		FileSize:      a.FileSize,
		MimeType:      a.MimeType,
		ThumbnailPath: a.ThumbnailPath,
	}
}
