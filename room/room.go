// room/room.go
package room

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/guessbox/gameserver/catalog"
	"github.com/guessbox/gameserver/game"
	"github.com/guessbox/gameserver/logger"
	"github.com/guessbox/gameserver/network"
)

var (
	ErrRoomFull     = errors.New("room is full")
	ErrInvalidInput = errors.New("room code and name required")
)

// 每个房间最多两名玩家
const maxPlayers = 2

// Player is one seat in a room. Scores live here and are discarded with
// the room.
type Player struct {
	ID    string
	Name  string
	Score int
}

// Room 是一个对局房间：成员、比分、本房间已用过的秘密对象和当前回合
type Room struct {
	Code      string
	Players   []*Player // join order
	Round     *game.Round
	used      map[string]bool // lowercase entity names drawn in this room
	CreatedAt time.Time
}

func newRoom(code string) *Room {
	return &Room{
		Code:      code,
		used:      make(map[string]bool),
		CreatedAt: time.Now(),
	}
}

func (rm *Room) playerByID(id string) *Player {
	for _, p := range rm.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (rm *Room) removePlayer(id string) bool {
	for i, p := range rm.Players {
		if p.ID == id {
			rm.Players = append(rm.Players[:i], rm.Players[i+1:]...)
			return true
		}
	}
	return false
}

func (rm *Room) playerIDs() []string {
	ids := make([]string, 0, len(rm.Players))
	for _, p := range rm.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

func (rm *Room) playerList() []network.PlayerInfo {
	players := make([]network.PlayerInfo, 0, len(rm.Players))
	for _, p := range rm.Players {
		players = append(players, network.PlayerInfo{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	return players
}

// --- 房间注册表 ---

// Registry owns every active room. It is not safe for concurrent use: the
// gateway serializes all calls onto a single dispatch queue, so each
// mutation is atomic with respect to every other.
type Registry struct {
	rooms       map[string]*Room
	catalog     *catalog.Catalog
	resolver    *catalog.Resolver
	broadcaster Broadcaster
}

func NewRegistry(cat *catalog.Catalog, resolver *catalog.Resolver) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		catalog:  cat,
		resolver: resolver,
	}
}

// SetBroadcaster wires the outbound event sink. Must be called before any
// registry operation.
func (r *Registry) SetBroadcaster(b Broadcaster) {
	r.broadcaster = b
}

func (r *Registry) GetRoom(code string) (*Room, bool) {
	rm, exists := r.rooms[code]
	return rm, exists
}

func (r *Registry) RoomCount() int {
	return len(r.rooms)
}

// PlayerIDs implements the broadcast directory lookup.
func (r *Registry) PlayerIDs(code string) []string {
	rm, exists := r.rooms[code]
	if !exists {
		return nil
	}
	return rm.playerIDs()
}

// Join adds the player to the room, creating the room on first use. A
// re-join of an identity already seated is not duplicated. When the second
// player arrives and no round is active, a round starts; otherwise the
// joiner is told to wait.
func (r *Registry) Join(code, playerID, displayName string) error {
	if strings.TrimSpace(code) == "" || strings.TrimSpace(displayName) == "" {
		return ErrInvalidInput
	}

	rm, exists := r.rooms[code]
	if !exists {
		rm = newRoom(code)
		r.rooms[code] = rm
		logger.Log.Infof("Room %s created", code)
	}

	if rm.playerByID(playerID) == nil {
		if len(rm.Players) >= maxPlayers {
			return ErrRoomFull
		}
		rm.Players = append(rm.Players, &Player{ID: playerID, Name: displayName})
	}

	r.sendToPlayer(playerID, network.MsgTypeRoomJoined, network.RoomJoinedEvent{
		RoomCode:   code,
		PlayerName: displayName,
		Players:    rm.playerList(),
	})
	r.broadcastToOthers(rm, playerID, network.MsgTypePlayerJoined, network.PlayerJoinedEvent{
		PlayerName: displayName,
		Players:    rm.playerList(),
	})

	if len(rm.Players) == maxPlayers && (rm.Round == nil || !rm.Round.Active()) {
		r.startRound(rm)
	} else {
		r.sendToPlayer(playerID, network.MsgTypeWaitingForPlayer, network.WaitingForPlayerEvent{
			Message: "Waiting for another player...",
		})
	}
	return nil
}

// Leave removes the player from every room it belongs to, destroying rooms
// that empty out. Triggered by the transport disconnect, not by a player
// command.
func (r *Registry) Leave(playerID string) {
	for code, rm := range r.rooms {
		if !rm.removePlayer(playerID) {
			continue
		}
		if len(rm.Players) == 0 {
			delete(r.rooms, code)
			logger.Log.Infof("Room %s destroyed", code)
			continue
		}
		r.broadcastToRoom(rm, network.MsgTypePlayerLeft, network.PlayerLeftEvent{
			Players: rm.playerList(),
		})
	}
}

// NewGame starts a fresh round in an existing room. Unknown rooms are
// ignored.
func (r *Registry) NewGame(code string) {
	rm, exists := r.rooms[code]
	if !exists {
		return
	}
	r.startRound(rm)
}

func (r *Registry) startRound(rm *Room) {
	rm.Round = game.Start(r.catalog, rm.used)
	logger.Log.Debugf("Room %s secret object: %s", rm.Code, rm.Round.SecretName())

	r.broadcastToRoom(rm, network.MsgTypeGameStarted, network.GameStartedEvent{
		Message: "New game started! Ask yes/no questions or try to guess the object.",
	})
	r.broadcastToRoom(rm, network.MsgTypeScoresUpdated, network.ScoresUpdatedEvent{
		Players: rm.playerList(),
	})
}

// AskQuestion answers one question against the room's secret entity and
// broadcasts the result. Duplicate labels and unknown question keys are
// reported back to the asker only; anything else that cannot apply is a
// silent no-op.
func (r *Registry) AskQuestion(code, playerID, questionKey, customText string) error {
	rm, exists := r.rooms[code]
	if !exists || rm.Round == nil {
		return nil
	}
	asker := rm.playerByID(playerID)
	if asker == nil {
		return nil
	}

	result, err := rm.Round.AskQuestion(r.resolver, questionKey, customText)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	r.broadcastToRoom(rm, network.MsgTypeQuestionAnswered, network.QuestionAnsweredEvent{
		QuestionKey:   questionKey,
		QuestionLabel: result.Label,
		Answer:        result.Answer,
		PlayerName:    asker.Name,
	})
	return nil
}

// Guess evaluates a guess. Wrong guesses are reported to the guesser only;
// a correct one ends the round, credits the guesser's seat and announces
// the result with the refreshed scoreboard.
func (r *Registry) Guess(code, playerID, text string) {
	rm, exists := r.rooms[code]
	if !exists || rm.Round == nil {
		return
	}
	guesser := rm.playerByID(playerID)
	if guesser == nil {
		return
	}

	switch rm.Round.Guess(text, playerID) {
	case game.GuessIgnored:

	case game.GuessIncorrect:
		r.sendToPlayer(playerID, network.MsgTypeGuessResult, network.GuessResultEvent{
			Correct: false,
			Message: "Nope! Keep guessing.",
		})

	case game.GuessCorrect:
		guesser.Score++
		winner := guesser.Name
		r.broadcastToRoom(rm, network.MsgTypeGameOver, network.GameOverEvent{
			Winner:       &winner,
			SecretObject: rm.Round.SecretName(),
		})
		r.broadcastToRoom(rm, network.MsgTypeScoresUpdated, network.ScoresUpdatedEvent{
			Players: rm.playerList(),
		})
	}
}

// Forfeit records the player's forfeit and announces it regardless of round
// state. When every current member of an active round has forfeited, the
// round ends with no winner and the secret is revealed.
func (r *Registry) Forfeit(code, playerID string) {
	rm, exists := r.rooms[code]
	if !exists {
		return
	}
	p := rm.playerByID(playerID)
	if p == nil {
		return
	}

	r.broadcastToRoom(rm, network.MsgTypePlayerForfeited, network.PlayerForfeitedEvent{
		PlayerName: p.Name,
	})

	if rm.Round == nil {
		return
	}
	if rm.Round.Forfeit(playerID, rm.playerIDs()) {
		logger.Log.Infof("All players forfeited in room %s, the object was %s", rm.Code, rm.Round.SecretName())
		r.broadcastToRoom(rm, network.MsgTypeGameOver, network.GameOverEvent{
			Winner:       nil,
			SecretObject: rm.Round.SecretName(),
		})
	}
}

// --- broadcast helpers ---

func (r *Registry) broadcastToRoom(rm *Room, msgID uint16, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = r.broadcaster.BroadcastToRoom(rm.Code, msgID, data)
}

func (r *Registry) broadcastToOthers(rm *Room, exceptPlayerID string, msgID uint16, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = r.broadcaster.BroadcastToOthers(rm.Code, exceptPlayerID, msgID, data)
}

func (r *Registry) sendToPlayer(playerID string, msgID uint16, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = r.broadcaster.SendToPlayer(playerID, msgID, data)
}
