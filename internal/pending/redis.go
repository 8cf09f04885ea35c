package pending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edgard/matchbot/internal/domain"
)

const defaultKeyPrefix = "matchbot:pending:"

var removeIfScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisQueue stores one string key per recipient.
type RedisQueue struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisQueue connects to redisURL and verifies the connection.
func NewRedisQueue(ctx context.Context, redisURL, prefix string, logger *slog.Logger) (*RedisQueue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Connected to Redis for pending notices", "addr", opt.Addr)
	return &RedisQueue{client: client, prefix: prefix, logger: logger}, nil
}

func (q *RedisQueue) key(recipient domain.UserID) string {
	return q.prefix + formatID(recipient)
}

func (q *RedisQueue) Put(ctx context.Context, recipient, sender domain.UserID) error {
	if err := q.client.Set(ctx, q.key(recipient), formatID(sender), 0).Err(); err != nil {
		q.logger.ErrorContext(ctx, "Failed to park notice", "recipient", recipient, "error", err)
		return fmt.Errorf("failed to park notice for %d: %w", recipient, err)
	}
	return nil
}

func (q *RedisQueue) Peek(ctx context.Context, recipient domain.UserID) (domain.UserID, bool, error) {
	return q.read(ctx, q.client.Get(ctx, q.key(recipient)))
}

func (q *RedisQueue) Take(ctx context.Context, recipient domain.UserID) (domain.UserID, bool, error) {
	return q.read(ctx, q.client.GetDel(ctx, q.key(recipient)))
}

func (q *RedisQueue) read(ctx context.Context, cmd *redis.StringCmd) (domain.UserID, bool, error) {
	val, err := cmd.Result()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, false, nil
	case err != nil:
		q.logger.ErrorContext(ctx, "Failed to read pending notice", "key", cmd.Args()[1], "error", err)
		return 0, false, fmt.Errorf("failed to read pending notice: %w", err)
	}
	sender, err := parseID(val)
	if err != nil {
		return 0, false, err
	}
	return sender, true, nil
}

func (q *RedisQueue) Remove(ctx context.Context, recipient domain.UserID) error {
	if err := q.client.Del(ctx, q.key(recipient)).Err(); err != nil {
		return fmt.Errorf("failed to remove pending notice for %d: %w", recipient, err)
	}
	return nil
}

func (q *RedisQueue) RemoveIf(ctx context.Context, recipient, sender domain.UserID) (bool, error) {
	n, err := removeIfScript.Run(ctx, q.client, []string{q.key(recipient)}, formatID(sender)).Int()
	if err != nil {
		return false, fmt.Errorf("failed to remove pending notice for %d: %w", recipient, err)
	}
	return n == 1, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
