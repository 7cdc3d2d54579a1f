package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dak-1306/pyctalk-sub001/internal/domain"
	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

const (
	// Шаблон ключа снапшота диалога
	snapshotKeyPattern = "chat:pair:%s:messages"
	snapshotKeyScan    = "chat:pair:*:messages"
)

// SnapshotRepository - внешний коллаборатор, переживающий рестарт процесса.
// Ядро работает только с памятью; снапшоты опциональны.
type SnapshotRepository interface {
	// Save перезаписывает снапшот одного диалога
	Save(ctx context.Context, key domain.PairKey, msgs []domain.Message) error

	// Load читает все снапшоты диалогов
	Load(ctx context.Context) (map[domain.PairKey][]domain.Message, error)
}

type snapshotRepository struct {
	rdb *redis.Client
	ttl time.Duration
	log logger.Logger
}

func NewSnapshotRepository(rdb *redis.Client, ttl time.Duration, log logger.Logger) SnapshotRepository {
	return &snapshotRepository{
		rdb: rdb,
		ttl: ttl,
		log: log,
	}
}

func snapshotKey(key domain.PairKey) string {
	return fmt.Sprintf(snapshotKeyPattern, key.ID())
}

func (r *snapshotRepository) Save(ctx context.Context, key domain.PairKey, msgs []domain.Message) error {
	redisKey := snapshotKey(key)

	members := make([]redis.Z, 0, len(msgs))
	for i := range msgs {
		data, err := json.Marshal(&msgs[i])
		if err != nil {
			r.log.Error("Failed to marshal message for snapshot", "error", err)
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		// Timestamp в миллисекундах как score для сортировки
		members = append(members, redis.Z{
			Score:  float64(msgs[i].CreatedAt.UnixMilli()),
			Member: data,
		})
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, redisKey)
	if len(members) > 0 {
		pipe.ZAdd(ctx, redisKey, members...)
		if r.ttl > 0 {
			pipe.Expire(ctx, redisKey, r.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("Failed to save snapshot", "error", err, "pair", key.ID())
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepository) Load(ctx context.Context) (map[domain.PairKey][]domain.Message, error) {
	out := make(map[domain.PairKey][]domain.Message)

	iter := r.rdb.Scan(ctx, 0, snapshotKeyScan, 0).Iterator()
	for iter.Next(ctx) {
		redisKey := iter.Val()

		raw, err := r.rdb.ZRange(ctx, redisKey, 0, -1).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			r.log.Error("Failed to read snapshot", "error", err, "key", redisKey)
			return nil, fmt.Errorf("failed to read snapshot: %w", err)
		}

		for _, item := range raw {
			var msg domain.Message
			if err := json.Unmarshal([]byte(item), &msg); err != nil {
				r.log.Warn("Failed to unmarshal snapshot message", "error", err)
				continue
			}
			// Канонический ключ восстанавливается из участников сообщения
			key := domain.NewPairKey(msg.Sender, msg.Recipient)
			out[key] = append(out[key], msg)
		}
	}
	if err := iter.Err(); err != nil {
		r.log.Error("Snapshot scan failed", "error", err)
		return nil, fmt.Errorf("snapshot scan failed: %w", err)
	}

	return out, nil
}
