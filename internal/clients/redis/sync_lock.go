package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dueday/dueday-backend/internal/logger"
)

// SyncLocker serializes sync cycles per user across service instances. A
// lease is held for at most ttl; a crashed holder simply lets it expire.
type SyncLocker interface {
	TryAcquire(ctx context.Context, job string, userID uuid.UUID, ttl time.Duration) (release func(), acquired bool, err error)
	Close() error
}

type syncLocker struct {
	log *logger.Logger
	rdb *goredis.Client
}

// releaseScript deletes the lease only when it is still ours.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewSyncLocker(log *logger.Logger) (SyncLocker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &syncLocker{
		log: log.With("client", "SyncLocker"),
		rdb: rdb,
	}, nil
}

func (sl *syncLocker) TryAcquire(ctx context.Context, job string, userID uuid.UUID, ttl time.Duration) (func(), bool, error) {
	key := fmt.Sprintf("sync:lease:%s:%s", job, userID)
	token := uuid.NewString()

	ok, err := sl.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lease acquire failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, sl.rdb, []string{key}, token).Err(); err != nil {
			sl.log.Warn("Lease release failed, lease will expire on its own", "key", key, "error", err)
		}
	}
	return release, true, nil
}

func (sl *syncLocker) Close() error {
	return sl.rdb.Close()
}
