package ws

// ConnContext carries per-connection state across handler invocations. It
// is owned by the connection's reader goroutine; handlers run on that
// goroutine, so no locking is needed here.
type ConnContext struct {
	UserID string
	Server *WsServer

	conn  sink
	rooms map[string]struct{} // joined room codes, for disconnect cleanup
}
