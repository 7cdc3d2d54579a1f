package repository

import (
	"github.com/redis/go-redis/v9"

	"github.com/dak-1306/pyctalk-sub001/internal/config"
	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

type Repositories struct {
	Conversation *ConversationStore
	Snapshot     SnapshotRepository
	RateLimit    RateLimitRepository
}

// NewRepositories собирает слой хранения. Redis-клиент может быть nil -
// тогда снапшоты и rate limiting отключены, ядро работает только в памяти.
func NewRepositories(rdb *redis.Client, cfg *config.Config, log logger.Logger) *Repositories {
	repos := &Repositories{
		Conversation: NewConversationStore(log),
	}

	if rdb != nil {
		repos.Snapshot = NewSnapshotRepository(rdb, cfg.Redis.SnapshotTTL, log)
		repos.RateLimit = NewRateLimitRepository(rdb, log)
		log.Info("Redis collaborators initialized")
	} else {
		log.Info("Redis disabled, running memory-only")
	}

	return repos
}
