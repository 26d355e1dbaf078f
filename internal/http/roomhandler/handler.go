package roomhandler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"drawboardgo/internal/services/canvas"
	"drawboardgo/internal/services/room"
	"drawboardgo/internal/ws"
)

// Handler is the membership side-channel: the REST surface that room
// owners and joiners use. Every mutation it performs is also pushed into
// the realtime relay so connected clients observe it immediately.
type Handler struct {
	svc       room.IRoomService
	canvasSvc canvas.ICanvasService
	publisher *ws.Publisher
}

func New(svc room.IRoomService, canvasSvc canvas.ICanvasService, publisher *ws.Publisher) *Handler {
	return &Handler{svc: svc, canvasSvc: canvasSvc, publisher: publisher}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/rooms", h.create)
	r.GET("/rooms/:code", h.info)
	r.POST("/rooms/:code/join", h.join)
	r.POST("/rooms/:code/members/:userId", h.setStatus)
	r.DELETE("/rooms/:code/canvas", h.clearCanvas)
}

// create registers a new room with the caller as owner (seeded as an
// approved member).
func (h *Handler) create(ginCtx *gin.Context) {
	var body CreateRoomBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	err := h.svc.CreateRoom(ginCtx.Request.Context(), body.Code, body.OwnerID, body.OwnerName)
	if errors.Is(err, room.ErrRoomExists) {
		ginCtx.JSON(http.StatusConflict, &ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		ginCtx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.Status(http.StatusCreated)
}

// info returns the room snapshot (owner + members).
func (h *Handler) info(ginCtx *gin.Context) {
	dto, err := h.svc.GetRoom(ginCtx.Request.Context(), ginCtx.Param("code"))
	if err != nil {
		ginCtx.JSON(http.StatusNotFound, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusOK, dto)
}

// join files a pending membership and notifies the owner's live
// connection, if any. Offline owners simply miss the notification.
func (h *Handler) join(ginCtx *gin.Context) {
	var body JoinRequestBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	code := ginCtx.Param("code")

	err := h.svc.RequestJoin(ginCtx.Request.Context(), code, body.UserID, body.DisplayName)
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		ginCtx.JSON(http.StatusNotFound, &ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, room.ErrAlreadyMember):
		ginCtx.JSON(http.StatusConflict, &ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		ginCtx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: err.Error()})
		return
	}

	if dto, err := h.svc.GetRoom(ginCtx.Request.Context(), code); err == nil {
		_ = h.publisher.NotifyJoinRequest(ginCtx.Request.Context(), dto, body.UserID, body.DisplayName)
	}
	ginCtx.Status(http.StatusAccepted)
}

// setStatus approves or rejects a pending member. Owner-only. On success
// the relay delivers targeted notices plus a room-wide snapshot refresh.
func (h *Handler) setStatus(ginCtx *gin.Context) {
	var body SetStatusBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	code := ginCtx.Param("code")
	memberID := ginCtx.Param("userId")

	err := h.svc.SetMemberStatus(ginCtx.Request.Context(), code, body.ActorID, memberID, body.Status)
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrMemberNotFound):
		ginCtx.JSON(http.StatusNotFound, &ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, room.ErrNotOwner):
		ginCtx.JSON(http.StatusForbidden, &ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, room.ErrInvalidStatus):
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		ginCtx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: err.Error()})
		return
	}

	if dto, err := h.svc.GetRoom(ginCtx.Request.Context(), code); err == nil {
		_ = h.publisher.NotifyMemberStatus(ginCtx.Request.Context(), dto, memberID, body.Status, body.Message)
	}
	ginCtx.Status(http.StatusAccepted)
}

// clearCanvas is the HTTP twin of the realtime clear event.
func (h *Handler) clearCanvas(ginCtx *gin.Context) {
	code := room.NormalizeCode(ginCtx.Param("code"))

	if err := h.canvasSvc.Clear(ginCtx.Request.Context(), code); err != nil {
		ginCtx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: err.Error()})
		return
	}
	_ = h.publisher.Publish(ginCtx.Request.Context(), code, ws.EventClear, "", "", struct{}{})
	ginCtx.Status(http.StatusAccepted)
}
