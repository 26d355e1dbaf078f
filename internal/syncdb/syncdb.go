package syncdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"drawboardgo/internal/services/canvas"
)

const (
	opsKeyPrefix = "board:"
	opsKeySuffix = ":ops"
	pipeTimeout  = 1500 * time.Millisecond
)

// Every 10 s, mirror dirty room canvases from Redis -> Postgres.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	tk := time.NewTicker(10 * time.Second)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				syncOnce(ctx, rdc, db)
			}
		}
	}()
}

func syncOnce(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	codes, err := rdc.SMembers(ctx, canvas.DirtySet).Result()
	if err != nil || len(codes) == 0 {
		return
	}

	// 1. fetch all op logs in one pipelined round-trip
	pipe := rdc.Pipeline()
	cmds := make([]*redis.StringCmd, len(codes))
	for i, code := range codes {
		cmds[i] = pipe.Get(ctx, opsKeyPrefix+code+opsKeySuffix)
	}
	if _, err = pipe.Exec(ctx); err != nil && err != redis.Nil {
		zap.L().Error("syncdb.pipeline", zap.Error(err))
		return
	}

	// 2. upsert into Postgres, one statement per room. Rooms stay isolated:
	// a row the database rejects keeps its dirty flag and is retried next
	// tick, while the rest of the batch still lands.
	const upsert = `
	INSERT INTO canvases (room_code, ops, updated_at)
	     VALUES ($1, $2, now())
	ON CONFLICT (room_code) DO UPDATE
	       SET ops = EXCLUDED.ops,
	           updated_at = EXCLUDED.updated_at`

	synced := make([]interface{}, 0, len(codes))
	for i, cmd := range cmds {
		raw, err := cmd.Result()
		if err != nil || raw == "" {
			continue // key disappeared between SMEMBERS and GET
		}
		if _, err := db.ExecContext(ctx, upsert, codes[i], raw); err != nil {
			zap.L().Error("syncdb.upsert", zap.String("room", codes[i]), zap.Error(err))
			continue
		}
		synced = append(synced, codes[i])
	}

	if len(synced) > 0 {
		if err := rdc.SRem(ctx, canvas.DirtySet, synced...).Err(); err != nil {
			zap.L().Debug("syncdb.srem", zap.Error(err))
		}
	}
}
