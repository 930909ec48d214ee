// network/protocol.go
package network

import (
	"github.com/guessbox/gameserver/catalog"
)

// 消息ID。Inbound ids are what clients send, outbound ids are what the
// server pushes to room members.
const (
	MsgTypeHeartbeat uint16 = 1

	MsgTypeJoinRoom    uint16 = 101
	MsgTypeAskQuestion uint16 = 201
	MsgTypeMakeGuess   uint16 = 202
	MsgTypeForfeit     uint16 = 203
	MsgTypeNewGame     uint16 = 204

	MsgTypeRoomJoined       uint16 = 301
	MsgTypePlayerJoined     uint16 = 302
	MsgTypePlayerLeft       uint16 = 303
	MsgTypeWaitingForPlayer uint16 = 304
	MsgTypeGameStarted      uint16 = 305
	MsgTypeQuestionAnswered uint16 = 306
	MsgTypeGuessResult      uint16 = 307
	MsgTypeGameOver         uint16 = 308
	MsgTypeScoresUpdated    uint16 = 309
	MsgTypePlayerForfeited  uint16 = 310

	MsgTypeErrorMessage uint16 = 401
)

// --- inbound payloads ---

type JoinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type AskQuestionRequest struct {
	RoomCode    string `json:"roomCode"`
	QuestionKey string `json:"questionKey"`
	// QuestionText is optional custom wording, used only as the display
	// and dedup label.
	QuestionText string `json:"questionText,omitempty"`
}

type MakeGuessRequest struct {
	RoomCode string `json:"roomCode"`
	Guess    string `json:"guess"`
}

type ForfeitRequest struct {
	RoomCode string `json:"roomCode"`
}

type NewGameRequest struct {
	RoomCode string `json:"roomCode"`
}

// --- outbound payloads ---

// PlayerInfo is the scoreboard entry shared by several events.
type PlayerInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type RoomJoinedEvent struct {
	RoomCode   string       `json:"roomCode"`
	PlayerName string       `json:"playerName"`
	Players    []PlayerInfo `json:"players"`
}

type PlayerJoinedEvent struct {
	PlayerName string       `json:"playerName"`
	Players    []PlayerInfo `json:"players"`
}

type PlayerLeftEvent struct {
	Players []PlayerInfo `json:"players"`
}

type WaitingForPlayerEvent struct {
	Message string `json:"message"`
}

type GameStartedEvent struct {
	Message string `json:"message"`
}

type QuestionAnsweredEvent struct {
	QuestionKey   string         `json:"questionKey"`
	QuestionLabel string         `json:"questionLabel"`
	Answer        catalog.Answer `json:"answer"`
	PlayerName    string         `json:"playerName"`
}

// GuessResultEvent is sent to the guesser only; wrong guesses are not
// announced to the rest of the room.
type GuessResultEvent struct {
	Correct bool   `json:"correct"`
	Message string `json:"message"`
}

type GameOverEvent struct {
	Winner       *string `json:"winner"` // nil when everyone forfeited
	SecretObject string  `json:"secretObject"`
}

type ScoresUpdatedEvent struct {
	Players []PlayerInfo `json:"players"`
}

type PlayerForfeitedEvent struct {
	PlayerName string `json:"playerName"`
}

type ErrorMessageEvent struct {
	Message string `json:"message"`
}
