package service

import (
	"github.com/dak-1306/pyctalk-sub001/internal/config"
	"github.com/dak-1306/pyctalk-sub001/internal/presence"
	"github.com/dak-1306/pyctalk-sub001/internal/repository"
	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

type Services struct {
	Auth      TokenVerifier
	Chat      ChatService
	Media     MediaService
	RateLimit RateLimitService
}

func NewServices(repos *repository.Repositories, registry *presence.Registry, cfg *config.Config, log logger.Logger) *Services {
	services := &Services{
		Auth:  NewTokenVerifier(cfg.Auth, log),
		Chat:  NewChatService(repos.Conversation, registry, log),
		Media: NewMediaService(cfg.Media, log),
	}

	// Rate limiting доступен только при включенном Redis
	if repos.RateLimit != nil {
		services.RateLimit = NewRateLimitService(repos.RateLimit, log)
	}

	return services
}
