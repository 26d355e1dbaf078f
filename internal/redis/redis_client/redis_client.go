package redis_client

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"drawboardgo/internal/config"
)

const pingTimeout = 5 * time.Second

// NewBoardsClient connects to the Redis instance that backs board state:
// the per-room event channels, the canvas op logs, the dirty-room set and
// the membership cache. One pooled client serves all four concerns; the
// pool is sized for the relay's fan-out bursts.
func NewBoardsClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	maxPool := runtime.NumCPU() * 8
	if maxPool > 512 {
		maxPool = 512
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.RedisBoardsHost, cfg.RedisBoardsPort),
		PoolSize: maxPool,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		err = fmt.Errorf("boards redis at %s:%d: %w", cfg.RedisBoardsHost, cfg.RedisBoardsPort, err)
		zap.L().Error("redis.boards_connect", zap.Error(err))
		return nil, err
	}
	return rc, nil
}
