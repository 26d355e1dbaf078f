package room

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanDraw(t *testing.T) {
	dto := &RoomDTO{
		Code:    "ABC123",
		OwnerID: "u1",
		Members: []Member{
			{UserID: "u1", Status: StatusApproved},
			{UserID: "u2", Status: StatusApproved},
			{UserID: "u3", Status: StatusPending},
			{UserID: "u4", Status: StatusRejected},
		},
	}

	tests := []struct {
		name   string
		userID string
		room   *RoomDTO
		want   bool
	}{
		{"owner", "u1", dto, true},
		{"approved member", "u2", dto, true},
		{"pending member", "u3", dto, false},
		{"rejected member", "u4", dto, false},
		{"stranger", "u9", dto, false},
		{"empty identity", "", dto, false},
		{"nil room", "u1", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanDraw(tt.userID, tt.room))
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ABC123", NormalizeCode("abc123"))
	assert.Equal(t, "ABC123", NormalizeCode("  Abc123 "))
}

func TestGetRoom_CacheMissFallsBackToPostgres(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdc, redisMock := redismock.NewClientMock()

	svc := NewRoomService(rdc, db)
	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	redisMock.ExpectGet("room:ABC123").RedisNil()

	dbMock.ExpectQuery("SELECT owner_id, created_at FROM rooms").
		WithArgs("ABC123").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id", "created_at"}).
			AddRow("u1", createdAt))
	dbMock.ExpectQuery("SELECT user_id, display_name, status FROM room_members").
		WithArgs("ABC123").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "display_name", "status"}).
			AddRow("u1", "Owner", StatusApproved).
			AddRow("u2", "Guest", StatusPending))

	want := &RoomDTO{
		Code:    "ABC123",
		OwnerID: "u1",
		Members: []Member{
			{UserID: "u1", DisplayName: "Owner", Status: StatusApproved},
			{UserID: "u2", DisplayName: "Guest", Status: StatusPending},
		},
		CreatedAt: createdAt,
	}
	raw, err := json.Marshal(want)
	require.NoError(t, err)
	redisMock.ExpectSet("room:ABC123", raw, roomCacheTTL).SetVal("OK")

	got, err := svc.GetRoom(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.NoError(t, dbMock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestGetRoom_CacheHitSkipsPostgres(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdc, redisMock := redismock.NewClientMock()

	svc := NewRoomService(rdc, db)

	cached := &RoomDTO{Code: "ABC123", OwnerID: "u1"}
	raw, _ := json.Marshal(cached)
	redisMock.ExpectGet("room:ABC123").SetVal(string(raw))

	got, err := svc.GetRoom(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.OwnerID)

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestGetRoom_NotFound(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdc, redisMock := redismock.NewClientMock()

	svc := NewRoomService(rdc, db)

	redisMock.ExpectGet("room:NOPE").RedisNil()
	dbMock.ExpectQuery("SELECT owner_id, created_at FROM rooms").
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id", "created_at"}))

	_, err = svc.GetRoom(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSetMemberStatus_OwnerOnly(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdc, _ := redismock.NewClientMock()

	svc := NewRoomService(rdc, db)

	dbMock.ExpectQuery("SELECT owner_id FROM rooms").
		WithArgs("ABC123").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("u1"))

	err = svc.SetMemberStatus(context.Background(), "ABC123", "u2", "u3", StatusApproved)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestSetMemberStatus_Approve(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdc, redisMock := redismock.NewClientMock()

	svc := NewRoomService(rdc, db)

	dbMock.ExpectQuery("SELECT owner_id FROM rooms").
		WithArgs("ABC123").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("u1"))
	dbMock.ExpectExec("UPDATE room_members SET status").
		WithArgs(StatusApproved, "ABC123", "u2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	redisMock.ExpectDel("room:ABC123").SetVal(1)

	err = svc.SetMemberStatus(context.Background(), "ABC123", "u1", "u2", StatusApproved)
	require.NoError(t, err)
	assert.NoError(t, dbMock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestSetMemberStatus_RejectsBogusStatus(t *testing.T) {
	rdc, _ := redismock.NewClientMock()
	svc := NewRoomService(rdc, nil)

	err := svc.SetMemberStatus(context.Background(), "ABC123", "u1", "u2", "banished")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestRequestJoin_DuplicateIsConflict(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdc, _ := redismock.NewClientMock()

	svc := NewRoomService(rdc, db)

	dbMock.ExpectQuery("SELECT owner_id FROM rooms").
		WithArgs("ABC123").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("u1"))
	dbMock.ExpectExec("INSERT INTO room_members").
		WithArgs("ABC123", "u2", "Guest", StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = svc.RequestJoin(context.Background(), "ABC123", "u2", "Guest")
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestCreateRoom(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdc, redisMock := redismock.NewClientMock()

	svc := NewRoomService(rdc, db)

	dbMock.ExpectBegin()
	dbMock.ExpectExec("INSERT INTO rooms").
		WithArgs("ABC123", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("INSERT INTO room_members").
		WithArgs("ABC123", "u1", "Owner", StatusApproved).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()
	redisMock.ExpectDel("room:ABC123").SetVal(0)

	err = svc.CreateRoom(context.Background(), "abc123", "u1", "Owner")
	require.NoError(t, err)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCreateRoom_Duplicate(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdc, _ := redismock.NewClientMock()

	svc := NewRoomService(rdc, db)

	dbMock.ExpectBegin()
	dbMock.ExpectExec("INSERT INTO rooms").
		WithArgs("ABC123", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectRollback()

	err = svc.CreateRoom(context.Background(), "ABC123", "u1", "Owner")
	assert.ErrorIs(t, err, ErrRoomExists)
}
