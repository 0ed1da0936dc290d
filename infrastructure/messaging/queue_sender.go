package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recordhub/config"
	"recordhub/domain/shared"
	"recordhub/infrastructure/persistence"
	"recordhub/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ListPusher is the part of a redis client the queue sender needs.
// *redis.Client satisfies it.
type ListPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// Envelope 队列中每条消息的格式
type Envelope struct {
	EventID       string         `json:"event_id"`
	Event         string         `json:"event"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	Payload       map[string]any `json:"payload"`
	OccurredAt    time.Time      `json:"occurred_at"`
	RequestID     string         `json:"request_id,omitempty"`
}

// QueueSender 把事件 RPUSH 到 redis list，超过 maxLen 时丢弃最旧的消息
type QueueSender struct {
	client  ListPusher
	key     string
	maxLen  int64
	timeout time.Duration
	kind    shared.EventKind
	log     *zap.Logger
}

func NewQueueSender(client ListPusher, cfg config.EventsConfig, kind shared.EventKind, log *zap.Logger) *QueueSender {
	if log == nil {
		log = logger.Get()
	}
	timeout := cfg.QueueTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &QueueSender{
		client:  client,
		key:     cfg.QueueKey,
		maxLen:  cfg.QueueMaxLen,
		timeout: timeout,
		kind:    kind,
		log:     log.Named("queue"),
	}
}

func (s *QueueSender) Send(ctx context.Context, agg shared.AggregateRoot) bool {
	log := logger.WithRequestIDFrom(s.log, ctx)
	env := Envelope{
		EventID:       uuid.NewString(),
		Event:         agg.AggregateType() + "." + string(s.kind),
		AggregateType: agg.AggregateType(),
		AggregateID:   agg.ID(),
		Payload:       snapshot(agg),
		OccurredAt:    time.Now().UTC(),
		RequestID:     persistence.RequestIDFromContext(ctx),
	}
	body, err := json.Marshal(env)
	if err != nil {
		log.Error("Failed to encode event", zap.String("event", env.Event), zap.Error(err))
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.RPush(ctx, s.key, body).Err(); err != nil {
		log.Error("Failed to push event",
			zap.String("key", s.key),
			zap.String("event", env.Event),
			zap.String("aggregate_id", env.AggregateID),
			zap.Error(err),
		)
		return false
	}
	if s.maxLen > 0 {
		// 推送已经成功，裁剪失败只记录
		if err := s.client.LTrim(ctx, s.key, -s.maxLen, -1).Err(); err != nil {
			log.Warn("Failed to trim event queue", zap.String("key", s.key), zap.Error(err))
		}
	}
	return true
}

// NewRedisClient 创建并 ping redis 客户端
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

var (
	_ shared.EventSender = (*QueueSender)(nil)
	_ ListPusher         = (*redis.Client)(nil)
)
