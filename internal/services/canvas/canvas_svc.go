package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Operation kinds. Stroke-type kinds carry a point sequence, shape kinds
// carry a start/end pair.
const (
	KindStroke = "stroke"
	KindErase  = "erase"
	KindRect   = "rect"
	KindCircle = "circle"
)

const (
	redisOpsKeyPrefix = "board:"
	redisOpsKeySuffix = ":ops"

	// DirtySet tracks rooms with unmirrored canvas mutations. Consumed by
	// the Postgres synchroniser.
	DirtySet = "boards:dirty"

	persistTimeout = 4 * time.Second
)

var ErrCanvasFull = errors.New("canvas operation limit reached")

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Operation struct {
	ID     string  `json:"id,omitempty"`
	Kind   string  `json:"kind"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	Points []Point `json:"points,omitempty"`
	Start  *Point  `json:"start,omitempty"`
	End    *Point  `json:"end,omitempty"`
}

// matches reports whether other is a resend of the same logical operation.
// The first frame of an in-progress stroke may arrive without an id, so
// stroke-type kinds fall back to the derived key: same starting point,
// same color, same width.
func (op Operation) matches(other Operation) bool {
	if op.ID != "" && other.ID != "" {
		return op.ID == other.ID
	}
	if op.Kind != other.Kind || op.Color != other.Color || op.Width != other.Width {
		return false
	}
	switch op.Kind {
	case KindStroke, KindErase:
		if len(op.Points) == 0 || len(other.Points) == 0 {
			return false
		}
		return op.Points[0] == other.Points[0]
	default:
		return false
	}
}

type ICanvasService interface {
	// Upsert replaces the matching operation in place (preserving z-order)
	// or appends. The in-memory mutation is complete when Upsert returns;
	// durability is asynchronous and best-effort.
	Upsert(ctx context.Context, roomCode string, op Operation) error
	Clear(ctx context.Context, roomCode string) error
	Snapshot(ctx context.Context, roomCode string) ([]Operation, error)
}

type boardLog struct {
	ops    []Operation
	loaded bool
}

type canvasService struct {
	rdc    *redis.Client
	maxOps int

	mu     sync.Mutex
	boards map[string]*boardLog
}

func NewCanvasService(rdc *redis.Client, maxOps int) ICanvasService {
	return &canvasService{
		rdc:    rdc,
		maxOps: maxOps,
		boards: make(map[string]*boardLog),
	}
}

func (svc *canvasService) Upsert(ctx context.Context, roomCode string, op Operation) error {
	svc.mu.Lock()
	b := svc.board(ctx, roomCode)

	replaced := false
	for i := range b.ops {
		if b.ops[i].matches(op) {
			b.ops[i] = op
			replaced = true
			break
		}
	}
	if !replaced {
		if svc.maxOps > 0 && len(b.ops) >= svc.maxOps {
			svc.mu.Unlock()
			return ErrCanvasFull
		}
		b.ops = append(b.ops, op)
	}
	snapshot := cloneOps(b.ops)
	svc.mu.Unlock()

	go svc.persist(roomCode, snapshot)
	return nil
}

func (svc *canvasService) Clear(ctx context.Context, roomCode string) error {
	svc.mu.Lock()
	b := svc.board(ctx, roomCode)
	b.ops = nil
	svc.mu.Unlock()

	go svc.persist(roomCode, nil)
	return nil
}

func (svc *canvasService) Snapshot(ctx context.Context, roomCode string) ([]Operation, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return cloneOps(svc.board(ctx, roomCode).ops), nil
}

// board returns the room's log, reloading it from Redis on first touch so
// the canvas survives process restarts. Caller holds svc.mu.
func (svc *canvasService) board(ctx context.Context, roomCode string) *boardLog {
	b, ok := svc.boards[roomCode]
	if !ok {
		b = &boardLog{}
		svc.boards[roomCode] = b
	}
	if b.loaded {
		return b
	}
	b.loaded = true

	raw, err := svc.rdc.Get(ctx, opsKey(roomCode)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("canvas.reload", zap.String("room", roomCode), zap.Error(err))
		}
		return b
	}
	if err := json.Unmarshal(raw, &b.ops); err != nil {
		zap.L().Warn("canvas.reload_decode", zap.String("room", roomCode), zap.Error(err))
		b.ops = nil
	}
	return b
}

// persist mirrors the full op sequence to Redis and flags the room for the
// Postgres synchroniser. Failures are logged; the in-memory log stays
// authoritative for the live session.
func (svc *canvasService) persist(roomCode string, ops []Operation) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	raw, err := json.Marshal(ops)
	if err != nil {
		zap.L().Error("canvas.persist_encode", zap.String("room", roomCode), zap.Error(err))
		return
	}
	if ops == nil {
		raw = []byte("[]")
	}

	pipe := svc.rdc.Pipeline()
	pipe.Set(ctx, opsKey(roomCode), raw, 0)
	pipe.SAdd(ctx, DirtySet, roomCode)
	if _, err := pipe.Exec(ctx); err != nil {
		zap.L().Error("canvas.persist", zap.String("room", roomCode), zap.Error(err))
	}
}

func opsKey(roomCode string) string {
	return redisOpsKeyPrefix + roomCode + redisOpsKeySuffix
}

func cloneOps(ops []Operation) []Operation {
	if len(ops) == 0 {
		return nil
	}
	out := make([]Operation, len(ops))
	copy(out, ops)
	return out
}
