package room

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Membership status values. A room owner is always present in the member
// list with StatusApproved.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const (
	redisRoomKeyPrefix = "room:"
	roomCacheTTL       = 30 * time.Second
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrRoomExists     = errors.New("room already exists")
	ErrNotOwner       = errors.New("only the room owner may change member status")
	ErrInvalidStatus  = errors.New("invalid member status")
	ErrAlreadyMember  = errors.New("user already requested to join")
)

type Member struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
}

type RoomDTO struct {
	Code      string    `json:"code"`
	OwnerID   string    `json:"owner_id"`
	Members   []Member  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

type IRoomService interface {
	CreateRoom(ctx context.Context, code, ownerID, ownerName string) error
	GetRoom(ctx context.Context, code string) (*RoomDTO, error)
	RequestJoin(ctx context.Context, code, userID, displayName string) error
	SetMemberStatus(ctx context.Context, code, actorID, memberID, status string) error
}

type roomService struct {
	rdc *redis.Client
	db  *sql.DB
}

func NewRoomService(rdc *redis.Client, db *sql.DB) IRoomService {
	return &roomService{rdc: rdc, db: db}
}

// NormalizeCode maps a room code to its canonical (upper-case) form.
// Codes are case-insensitive everywhere.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CanDraw reports whether userID may submit drawing operations into room:
// the owner always may, everyone else needs an approved membership. Pure
// over already-loaded membership data.
func CanDraw(userID string, room *RoomDTO) bool {
	if room == nil || userID == "" {
		return false
	}
	if userID == room.OwnerID {
		return true
	}
	for _, m := range room.Members {
		if m.UserID == userID && m.Status == StatusApproved {
			return true
		}
	}
	return false
}

func (svc *roomService) CreateRoom(ctx context.Context, code, ownerID, ownerName string) error {
	code = NormalizeCode(code)

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (code, owner_id) VALUES ($1, $2)
		 ON CONFLICT (code) DO NOTHING`, code, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoomExists
	}

	// Owner is seeded as an approved member so the gate invariant holds
	// even when membership is read without special-casing the owner.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO room_members (room_code, user_id, display_name, status)
		      VALUES ($1, $2, $3, $4)
		 ON CONFLICT (room_code, user_id) DO NOTHING`,
		code, ownerID, ownerName, StatusApproved)
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	svc.dropCache(ctx, code)
	return nil
}

func (svc *roomService) GetRoom(ctx context.Context, code string) (*RoomDTO, error) {
	code = NormalizeCode(code)

	// Fast path - serve from the Redis cache when fresh.
	if raw, err := svc.rdc.Get(ctx, redisRoomKeyPrefix+code).Result(); err == nil {
		dto := &RoomDTO{}
		if err := json.Unmarshal([]byte(raw), dto); err == nil {
			return dto, nil
		}
		zap.L().Warn("room.cache_decode", zap.String("code", code))
	}

	dto, err := svc.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	svc.fillCache(ctx, dto)
	return dto, nil
}

func (svc *roomService) RequestJoin(ctx context.Context, code, userID, displayName string) error {
	code = NormalizeCode(code)

	if _, err := svc.loadRoomHeader(ctx, code); err != nil {
		return err
	}

	res, err := svc.db.ExecContext(ctx,
		`INSERT INTO room_members (room_code, user_id, display_name, status)
		      VALUES ($1, $2, $3, $4)
		 ON CONFLICT (room_code, user_id) DO NOTHING`,
		code, userID, displayName, StatusPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyMember
	}

	svc.dropCache(ctx, code)
	return nil
}

func (svc *roomService) SetMemberStatus(ctx context.Context, code, actorID, memberID, status string) error {
	code = NormalizeCode(code)

	if status != StatusApproved && status != StatusRejected {
		return ErrInvalidStatus
	}

	ownerID, err := svc.loadRoomHeader(ctx, code)
	if err != nil {
		return err
	}
	if actorID != ownerID {
		return ErrNotOwner
	}

	res, err := svc.db.ExecContext(ctx,
		`UPDATE room_members SET status = $1, updated_at = now()
		  WHERE room_code = $2 AND user_id = $3`,
		status, code, memberID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMemberNotFound
	}

	svc.dropCache(ctx, code)
	return nil
}

// ─────────────────────────────── helpers ───────────────────────────────

func (svc *roomService) loadRoomHeader(ctx context.Context, code string) (string, error) {
	var ownerID string
	err := svc.db.QueryRowContext(ctx,
		`SELECT owner_id FROM rooms WHERE code = $1`, code).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRoomNotFound
	}
	return ownerID, err
}

func (svc *roomService) loadRoom(ctx context.Context, code string) (*RoomDTO, error) {
	dto := &RoomDTO{Code: code}
	err := svc.db.QueryRowContext(ctx,
		`SELECT owner_id, created_at FROM rooms WHERE code = $1`, code).
		Scan(&dto.OwnerID, &dto.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", code, ErrRoomNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := svc.db.QueryContext(ctx,
		`SELECT user_id, display_name, status FROM room_members
		  WHERE room_code = $1 ORDER BY updated_at ASC`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.DisplayName, &m.Status); err != nil {
			return nil, err
		}
		dto.Members = append(dto.Members, m)
	}
	return dto, rows.Err()
}

func (svc *roomService) fillCache(ctx context.Context, dto *RoomDTO) {
	raw, err := json.Marshal(dto)
	if err != nil {
		return
	}
	if err := svc.rdc.Set(ctx, redisRoomKeyPrefix+dto.Code, raw, roomCacheTTL).Err(); err != nil {
		zap.L().Debug("room.cache_set", zap.Error(err))
	}
}

func (svc *roomService) dropCache(ctx context.Context, code string) {
	if err := svc.rdc.Del(ctx, redisRoomKeyPrefix+code).Err(); err != nil {
		zap.L().Debug("room.cache_del", zap.Error(err))
	}
}
