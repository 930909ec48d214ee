package room

// Broadcaster delivers protocol events to sessions. This is defined here to
// break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(code string, msgID uint16, data []byte) error
	BroadcastToOthers(code, exceptPlayerID string, msgID uint16, data []byte) error
	SendToPlayer(playerID string, msgID uint16, data []byte) error
}
