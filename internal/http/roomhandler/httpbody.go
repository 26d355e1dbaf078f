package roomhandler

type CreateRoomBody struct {
	Code      string `json:"code"       binding:"required,alphanum,max=20"`
	OwnerID   string `json:"owner_id"   binding:"required"`
	OwnerName string `json:"owner_name" binding:"omitempty"`
}

type JoinRequestBody struct {
	UserID      string `json:"user_id"      binding:"required"`
	DisplayName string `json:"display_name" binding:"omitempty"`
}

type SetStatusBody struct {
	ActorID string `json:"actor_id" binding:"required"`
	Status  string `json:"status"   binding:"required,oneof=approved rejected"`
	Message string `json:"message"  binding:"omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
