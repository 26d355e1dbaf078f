package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"drawboardgo/internal/services/canvas"
	roomsvc "drawboardgo/internal/services/room"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 12 * time.Second
	pingPeriod = 3 * time.Second // must be < pongWait

	// A freehand stroke resend carries its full point sequence, so frames
	// grow well past a chat-sized limit.
	maxMessageSize = 64 << 10
)

var errNotAuthorized = errors.New("not_authorized")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
}

// roomSubscriber is the cross-instance subscription side of the relay.
type roomSubscriber interface {
	Subscribe(roomCode string)
	Unsubscribe(roomCode string)
}

type WsServer struct {
	hub       *Hub
	registry  *Registry
	subMgr    roomSubscriber
	router    *Router
	publisher *Publisher
	roomSvc   roomsvc.IRoomService
	canvasSvc canvas.ICanvasService

	roomLocks sync.Map // roomCode -> *sync.Mutex, serializes log mutation + publish
}

func NewWsServer(h *Hub, rdc *redis.Client, roomSvc roomsvc.IRoomService, canvasSvc canvas.ICanvasService) *WsServer {
	registry := NewRegistry()
	srv := &WsServer{
		hub:       h,
		registry:  registry,
		subMgr:    newSubscriptionManager(rdc, h, registry),
		router:    NewRouter(),
		publisher: NewPublisher(rdc),
		roomSvc:   roomSvc,
		canvasSvc: canvasSvc,
	}
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// Publisher exposes the relay's publish side to the HTTP layer, which
// originates membership events.
func (s *WsServer) Publisher() *Publisher { return s.publisher }

// lockRoom returns the room's relay mutex. Canvas mutation and the fan-out
// publish of the same event must happen under one holder, otherwise two
// concurrent draws on the same stroke can publish in the inverse order of
// their log writes and subscribers last-render the superseded version.
func (s *WsServer) lockRoom(roomCode string) *sync.Mutex {
	v, _ := s.roomLocks.LoadOrStore(roomCode, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxMessageSize)
	_ = rawConn.SetReadDeadline(time.Now().Add(pongWait))
	rawConn.SetPongHandler(func(string) error {
		return rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	wsConn := &clientConn{rawConn: rawConn}
	go s.reader(wsConn)
	go s.pinger(wsConn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	Register(s.router, EventJoinRoom, s.handleJoinRoom)
	Register(s.router, EventLeave, s.handleLeaveRoom)
	Register(s.router, EventDraw, s.handleDraw)
	Register(s.router, EventClear, s.handleClear)
	Register(s.router, EventViewport, s.handleViewport)
}

// handleJoinRoom subscribes the connection to the room's broadcast group,
// claims the user identity in the registry (last-write-wins), and pushes
// the canvas snapshot so a late joiner starts from current state.
func (s *WsServer) handleJoinRoom(ctx context.Context, cc *ConnContext, req JoinRoomBody) (AckBody, error) {
	code := roomsvc.NormalizeCode(req.RoomCode)

	if _, joined := cc.rooms[code]; !joined {
		s.hub.Join(code, cc.conn)
		s.subMgr.Subscribe(code)
		cc.rooms[code] = struct{}{}
	}
	s.registry.Register(req.UserID, cc.conn)
	cc.UserID = req.UserID

	snap, err := s.canvasSvc.Snapshot(ctx, code)
	if err != nil {
		zap.L().Warn("ws.snapshot", zap.String("room", code), zap.Error(err))
		snap = nil
	}
	if err := cc.conn.writeJSON(map[string]any{
		"event": EventInitialState,
		"body":  InitialStateBody{Operations: snap},
	}); err != nil {
		return AckBody{}, err
	}
	return AckBody{}, nil
}

func (s *WsServer) handleLeaveRoom(_ context.Context, cc *ConnContext, req LeaveRoomBody) (AckBody, error) {
	code := roomsvc.NormalizeCode(req.RoomCode)

	if _, joined := cc.rooms[code]; joined {
		s.hub.Leave(code, cc.conn)
		s.subMgr.Unsubscribe(code)
		delete(cc.rooms, code)
	}
	// Only drops the entry while this connection still owns the identity;
	// a reconnect that superseded us keeps its registration.
	s.registry.Remove(req.UserID, cc.conn)
	return AckBody{}, nil
}

// handleDraw is the gated write path: the sender must be the room owner or
// an approved member, checked server-side on every operation. The log
// mutation completes before the fan-out publish, so subscribers never see
// an operation that is not in the log.
func (s *WsServer) handleDraw(ctx context.Context, cc *ConnContext, req DrawBody) (AckBody, error) {
	code := roomsvc.NormalizeCode(req.RoomCode)

	dto, err := s.roomSvc.GetRoom(ctx, code)
	if err != nil {
		return AckBody{}, err
	}
	if !roomsvc.CanDraw(cc.UserID, dto) {
		return AckBody{}, errNotAuthorized
	}

	mu := s.lockRoom(code)
	mu.Lock()
	defer mu.Unlock()

	if err := s.canvasSvc.Upsert(ctx, code, req.Operation); err != nil {
		return AckBody{}, err
	}
	err = s.publisher.Publish(ctx, code, EventDraw, cc.UserID, "",
		DrawRelayBody{Operation: req.Operation})
	return AckBody{}, err
}

// handleClear wipes the room canvas and fans the signal out to every
// subscriber, sender included — clients wipe unconditionally, so the echo
// is idempotent.
func (s *WsServer) handleClear(ctx context.Context, cc *ConnContext, req ClearBody) (AckBody, error) {
	code := roomsvc.NormalizeCode(req.RoomCode)

	mu := s.lockRoom(code)
	mu.Lock()
	defer mu.Unlock()

	if err := s.canvasSvc.Clear(ctx, code); err != nil {
		return AckBody{}, err
	}
	err := s.publisher.Publish(ctx, code, EventClear, "", "", AckBody{})
	return AckBody{}, err
}

// handleViewport relays advisory pan/zoom state to the other subscribers.
// Never stored, never gated.
func (s *WsServer) handleViewport(ctx context.Context, cc *ConnContext, req ViewportBody) (AckBody, error) {
	code := roomsvc.NormalizeCode(req.RoomCode)

	err := s.publisher.Publish(ctx, code, EventViewportState, cc.UserID, "",
		ViewportStateBody{Pan: req.Pan, Zoom: req.Zoom})
	return AckBody{}, err
}

func (s *WsServer) reader(conn *clientConn) {
	cc := &ConnContext{Server: s, conn: conn, rooms: make(map[string]struct{})}

	defer func() {
		// Disconnect cleanup runs exactly once per connection: drop every
		// room subscription, then reverse-scan the registry.
		for code := range cc.rooms {
			s.hub.Leave(code, conn)
			s.subMgr.Unsubscribe(code)
		}
		s.registry.RemoveConn(conn)
		conn.close()
	}()

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1900*time.Millisecond)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = conn.writeJSON(map[string]any{
				"event": "error",
				"body":  ErrorBody{Error: err.Error()},
			})
			if errors.Is(err, errBadRoomCode) {
				return // malformed input terminates the connection
			}
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		reply := map[string]any{"event": env.Event + "-ack"}
		if res != nil {
			reply["body"] = res
		}
		_ = conn.writeJSON(reply)
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.write(websocket.PingMessage, nil); err != nil {
			conn.close()
			return
		}
	}
}
