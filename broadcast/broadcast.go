// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/guessbox/gameserver/session"
)

var ErrSessionNotFound = errors.New("session not found")

// Directory exposes room membership to the broadcaster. Implemented by the
// room registry; declared here to break the import cycle between broadcast
// and room.
type Directory interface {
	PlayerIDs(code string) []string
}

// RoomBroadcaster 把协议事件扇出给房间内的所有会话
type RoomBroadcaster struct {
	directory Directory
	sessions  *session.Manager
}

func NewRoomBroadcaster(directory Directory, sessions *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		directory: directory,
		sessions:  sessions,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(code string, msgID uint16, data []byte) error {
	for _, id := range b.directory.PlayerIDs(code) {
		s, exists := b.sessions.Get(id)
		if !exists {
			continue
		}
		if err := s.Send(msgID, data); err != nil {
			// a failed send only affects that connection; its read
			// loop will notice and clean up
			continue
		}
	}
	return nil
}

func (b *RoomBroadcaster) BroadcastToOthers(code, exceptPlayerID string, msgID uint16, data []byte) error {
	for _, id := range b.directory.PlayerIDs(code) {
		if id == exceptPlayerID {
			continue
		}
		s, exists := b.sessions.Get(id)
		if !exists {
			continue
		}
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}
	return nil
}

func (b *RoomBroadcaster) SendToPlayer(playerID string, msgID uint16, data []byte) error {
	s, exists := b.sessions.Get(playerID)
	if !exists {
		return ErrSessionNotFound
	}
	return s.Send(msgID, data)
}
