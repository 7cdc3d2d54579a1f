package handler

import (
	"github.com/dak-1306/pyctalk-sub001/internal/config"
	"github.com/dak-1306/pyctalk-sub001/internal/presence"
	"github.com/dak-1306/pyctalk-sub001/internal/service"
	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Media     *MediaHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, registry *presence.Registry, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(cfg),
		Media:     NewMediaHandler(services.Media, cfg.Media, log),
		WebSocket: NewWebSocketHandler(services.Chat, services.Auth, registry, log),
	}
}
