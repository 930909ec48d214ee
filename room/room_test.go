package room

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/guessbox/gameserver/catalog"
	"github.com/guessbox/gameserver/game"
	"github.com/guessbox/gameserver/logger"
	"github.com/guessbox/gameserver/network"
)

func TestMain(m *testing.M) {
	logger.Init(false)
	os.Exit(m.Run())
}

// sentMessage records one delivery through the RecordingBroadcaster.
type sentMessage struct {
	roomCode string // set on room broadcasts
	playerID string // set on direct sends
	except   string // set on others-broadcasts
	msgID    uint16
	data     []byte
}

// RecordingBroadcaster is a test double for the Broadcaster interface.
type RecordingBroadcaster struct {
	messages []sentMessage
}

func (b *RecordingBroadcaster) BroadcastToRoom(code string, msgID uint16, data []byte) error {
	b.messages = append(b.messages, sentMessage{roomCode: code, msgID: msgID, data: data})
	return nil
}

func (b *RecordingBroadcaster) BroadcastToOthers(code, exceptPlayerID string, msgID uint16, data []byte) error {
	b.messages = append(b.messages, sentMessage{roomCode: code, except: exceptPlayerID, msgID: msgID, data: data})
	return nil
}

func (b *RecordingBroadcaster) SendToPlayer(playerID string, msgID uint16, data []byte) error {
	b.messages = append(b.messages, sentMessage{playerID: playerID, msgID: msgID, data: data})
	return nil
}

func (b *RecordingBroadcaster) ofType(msgID uint16) []sentMessage {
	var out []sentMessage
	for _, m := range b.messages {
		if m.msgID == msgID {
			out = append(out, m)
		}
	}
	return out
}

func (b *RecordingBroadcaster) reset() {
	b.messages = nil
}

func newTestRegistry() (*Registry, *RecordingBroadcaster) {
	registry := NewRegistry(catalog.Default(), catalog.NewResolver())
	recorder := &RecordingBroadcaster{}
	registry.SetBroadcaster(recorder)
	return registry, recorder
}

func decodePayload(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
}

func TestJoin_FirstPlayerWaits(t *testing.T) {
	registry, recorder := newTestRegistry()

	if err := registry.Join("ABCD", "p1", "Alice"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	rm, exists := registry.GetRoom("ABCD")
	if !exists {
		t.Fatal("The room should be created on first join")
	}
	if len(rm.Players) != 1 {
		t.Fatalf("Expected 1 player, got %d", len(rm.Players))
	}
	if rm.Round != nil {
		t.Error("No round should start with a single player")
	}

	if got := recorder.ofType(network.MsgTypeRoomJoined); len(got) != 1 || got[0].playerID != "p1" {
		t.Errorf("Expected one room_joined to the joiner, got %+v", got)
	}
	if got := recorder.ofType(network.MsgTypeWaitingForPlayer); len(got) != 1 || got[0].playerID != "p1" {
		t.Errorf("Expected one waiting_for_player to the joiner, got %+v", got)
	}
	if got := recorder.ofType(network.MsgTypeGameStarted); len(got) != 0 {
		t.Errorf("No game_started expected yet, got %d", len(got))
	}
}

func TestJoin_SecondPlayerStartsRound(t *testing.T) {
	registry, recorder := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	recorder.reset()
	if err := registry.Join("ABCD", "p2", "Bob"); err != nil {
		t.Fatalf("Second join failed: %v", err)
	}

	rm, _ := registry.GetRoom("ABCD")
	if rm.Round == nil || !rm.Round.Active() {
		t.Fatal("The round should start when the second player joins")
	}

	if got := recorder.ofType(network.MsgTypePlayerJoined); len(got) != 1 || got[0].except != "p2" {
		t.Errorf("Expected player_joined to the rest of the room, got %+v", got)
	}
	if got := recorder.ofType(network.MsgTypeGameStarted); len(got) != 1 || got[0].roomCode != "ABCD" {
		t.Errorf("Expected one game_started broadcast, got %+v", got)
	}
	if got := recorder.ofType(network.MsgTypeScoresUpdated); len(got) != 1 {
		t.Errorf("Expected one scores_updated broadcast, got %d", len(got))
	}
	if got := recorder.ofType(network.MsgTypeWaitingForPlayer); len(got) != 0 {
		t.Errorf("The second joiner should not be told to wait, got %d", len(got))
	}
}

func TestJoin_RoomFull(t *testing.T) {
	registry, _ := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	_ = registry.Join("ABCD", "p2", "Bob")

	err := registry.Join("ABCD", "p3", "Carol")
	if !errors.Is(err, ErrRoomFull) {
		t.Fatalf("Expected ErrRoomFull, got %v", err)
	}

	rm, _ := registry.GetRoom("ABCD")
	if len(rm.Players) != 2 {
		t.Errorf("The room must never hold more than 2 players, got %d", len(rm.Players))
	}
}

func TestJoin_RejoinIsIdempotent(t *testing.T) {
	registry, _ := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	if err := registry.Join("ABCD", "p1", "Alice"); err != nil {
		t.Fatalf("Re-join of an existing identity should not fail: %v", err)
	}

	rm, _ := registry.GetRoom("ABCD")
	if len(rm.Players) != 1 {
		t.Errorf("Re-join must not duplicate the player, got %d seats", len(rm.Players))
	}
}

func TestJoin_InvalidInput(t *testing.T) {
	registry, _ := newTestRegistry()

	if err := registry.Join("", "p1", "Alice"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty room code, got %v", err)
	}
	if err := registry.Join("ABCD", "p1", "   "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for blank name, got %v", err)
	}
	if registry.RoomCount() != 0 {
		t.Errorf("No room should be created on invalid input, got %d", registry.RoomCount())
	}
}

func TestLeave_BroadcastsAndDestroysEmptyRoom(t *testing.T) {
	registry, recorder := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	_ = registry.Join("ABCD", "p2", "Bob")
	recorder.reset()

	registry.Leave("p1")

	if got := recorder.ofType(network.MsgTypePlayerLeft); len(got) != 1 {
		t.Fatalf("Expected one player_left broadcast, got %d", len(got))
	} else {
		var event network.PlayerLeftEvent
		decodePayload(t, got[0].data, &event)
		if len(event.Players) != 1 || event.Players[0].Name != "Bob" {
			t.Errorf("Expected the remaining player list, got %+v", event.Players)
		}
	}

	recorder.reset()
	registry.Leave("p2")

	if _, exists := registry.GetRoom("ABCD"); exists {
		t.Error("An emptied room should be destroyed")
	}
	if len(recorder.messages) != 0 {
		t.Errorf("Destroying a room should broadcast nothing, got %d messages", len(recorder.messages))
	}
}

func TestRoomRecreatedWithFreshScores(t *testing.T) {
	registry, _ := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	_ = registry.Join("ABCD", "p2", "Bob")

	rm, _ := registry.GetRoom("ABCD")
	registry.Guess("ABCD", "p1", rm.Round.SecretName())
	if rm.Players[0].Score != 1 {
		t.Fatalf("Setup failed: expected Alice to have scored, got %d", rm.Players[0].Score)
	}

	registry.Leave("p1")
	registry.Leave("p2")

	_ = registry.Join("ABCD", "p3", "Alice")
	fresh, _ := registry.GetRoom("ABCD")
	if fresh == rm {
		t.Fatal("A re-used code should produce a brand-new room")
	}
	if len(fresh.Players) != 1 || fresh.Players[0].Score != 0 {
		t.Errorf("The new room must not remember prior scores, got %+v", fresh.Players[0])
	}
}

func TestAskQuestion_BroadcastsAnswer(t *testing.T) {
	registry, recorder := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	_ = registry.Join("ABCD", "p2", "Bob")
	recorder.reset()

	if err := registry.AskQuestion("ABCD", "p1", "alive", "Is it alive?"); err != nil {
		t.Fatalf("AskQuestion failed: %v", err)
	}

	got := recorder.ofType(network.MsgTypeQuestionAnswered)
	if len(got) != 1 || got[0].roomCode != "ABCD" {
		t.Fatalf("Expected one question_answered broadcast, got %+v", got)
	}

	var event network.QuestionAnsweredEvent
	decodePayload(t, got[0].data, &event)
	if event.QuestionLabel != "Is it alive?" || event.PlayerName != "Alice" {
		t.Errorf("Unexpected event contents: %+v", event)
	}

	rm, _ := registry.GetRoom("ABCD")
	resolver := catalog.NewResolver()
	var secret *catalog.Entity
	for _, e := range catalog.Default().Entities() {
		if e.Name == rm.Round.SecretName() {
			secret = e
		}
	}
	want, err := resolver.Resolve(secret, "alive")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if event.Answer != want {
		t.Errorf("Answer %s does not match the secret entity's attribute %s", event.Answer, want)
	}
}

func TestAskQuestion_DuplicateReturnsErrorWithoutBroadcast(t *testing.T) {
	registry, recorder := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	_ = registry.Join("ABCD", "p2", "Bob")
	recorder.reset()

	_ = registry.AskQuestion("ABCD", "p1", "alive", "")
	err := registry.AskQuestion("ABCD", "p1", "alive", "")
	if !errors.Is(err, game.ErrDuplicateQuestion) {
		t.Fatalf("Expected ErrDuplicateQuestion, got %v", err)
	}

	if got := recorder.ofType(network.MsgTypeQuestionAnswered); len(got) != 1 {
		t.Errorf("A duplicate question must not broadcast, got %d broadcasts", len(got))
	}
}

func TestAskQuestion_UnknownKey(t *testing.T) {
	registry, _ := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	_ = registry.Join("ABCD", "p2", "Bob")

	err := registry.AskQuestion("ABCD", "p1", "smells_nice", "")
	if !errors.Is(err, catalog.ErrUnknownQuestion) {
		t.Errorf("Expected ErrUnknownQuestion, got %v", err)
	}
}

func TestAskQuestion_NoRoomOrRoundIsNoOp(t *testing.T) {
	registry, recorder := newTestRegistry()

	if err := registry.AskQuestion("NOPE", "p1", "alive", ""); err != nil {
		t.Errorf("Asking in a nonexistent room should be a silent no-op, got %v", err)
	}

	_ = registry.Join("ABCD", "p1", "Alice")
	recorder.reset()
	if err := registry.AskQuestion("ABCD", "p1", "alive", ""); err != nil {
		t.Errorf("Asking before any round should be a silent no-op, got %v", err)
	}
	if len(recorder.messages) != 0 {
		t.Errorf("No broadcast expected, got %d messages", len(recorder.messages))
	}
}

func TestGuess_WrongGuessGoesToGuesserOnly(t *testing.T) {
	registry, recorder := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	_ = registry.Join("ABCD", "p2", "Bob")
	recorder.reset()

	registry.Guess("ABCD", "p2", "definitely-not-an-object")

	got := recorder.ofType(network.MsgTypeGuessResult)
	if len(got) != 1 || got[0].playerID != "p2" {
		t.Fatalf("Expected one guess_result to the guesser only, got %+v", got)
	}

	var event network.GuessResultEvent
	decodePayload(t, got[0].data, &event)
	if event.Correct {
		t.Error("The guess should be reported incorrect")
	}
	if len(recorder.messages) != 1 {
		t.Errorf("The rest of the room must not be notified, got %d messages", len(recorder.messages))
	}
}

func TestGuess_CorrectGuessEndsGameAndScores(t *testing.T) {
	registry, recorder := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	_ = registry.Join("ABCD", "p2", "Bob")

	rm, _ := registry.GetRoom("ABCD")
	secretName := rm.Round.SecretName()
	recorder.reset()

	registry.Guess("ABCD", "p1", "  "+secretName+"  ")

	got := recorder.ofType(network.MsgTypeGameOver)
	if len(got) != 1 || got[0].roomCode != "ABCD" {
		t.Fatalf("Expected one game_over broadcast, got %+v", got)
	}
	var over network.GameOverEvent
	decodePayload(t, got[0].data, &over)
	if over.Winner == nil || *over.Winner != "Alice" {
		t.Errorf("Expected Alice as winner, got %v", over.Winner)
	}
	if over.SecretObject != secretName {
		t.Errorf("Expected the secret name revealed, got %q", over.SecretObject)
	}

	scores := recorder.ofType(network.MsgTypeScoresUpdated)
	if len(scores) != 1 {
		t.Fatalf("Expected one scores_updated broadcast, got %d", len(scores))
	}
	var board network.ScoresUpdatedEvent
	decodePayload(t, scores[0].data, &board)
	if board.Players[0].Score != 1 || board.Players[1].Score != 0 {
		t.Errorf("Expected scores 1/0, got %d/%d", board.Players[0].Score, board.Players[1].Score)
	}

	if rm.Round.Active() {
		t.Error("The round should be over")
	}
}

func TestGuess_ScoreAttributedByIdentityNotName(t *testing.T) {
	registry, _ := newTestRegistry()

	// both players share a display name
	_ = registry.Join("ABCD", "p1", "Alex")
	_ = registry.Join("ABCD", "p2", "Alex")

	rm, _ := registry.GetRoom("ABCD")
	registry.Guess("ABCD", "p2", rm.Round.SecretName())

	if rm.Players[0].Score != 0 || rm.Players[1].Score != 1 {
		t.Errorf("The score must go to the guessing seat, got %d/%d",
			rm.Players[0].Score, rm.Players[1].Score)
	}
}

func TestGuess_AfterGameOverIsNoOp(t *testing.T) {
	registry, recorder := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	_ = registry.Join("ABCD", "p2", "Bob")

	rm, _ := registry.GetRoom("ABCD")
	secretName := rm.Round.SecretName()
	registry.Guess("ABCD", "p1", secretName)
	recorder.reset()

	registry.Guess("ABCD", "p2", secretName)

	if len(recorder.messages) != 0 {
		t.Errorf("Guessing after game over should broadcast nothing, got %d messages", len(recorder.messages))
	}
	if rm.Players[1].Score != 0 {
		t.Error("No score may be awarded after the round ended")
	}
}

func TestForfeit_SequenceEndsGameOnlyWhenAllForfeit(t *testing.T) {
	registry, recorder := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	_ = registry.Join("ABCD", "p2", "Bob")

	rm, _ := registry.GetRoom("ABCD")
	secretName := rm.Round.SecretName()
	recorder.reset()

	registry.Forfeit("ABCD", "p1")

	if got := recorder.ofType(network.MsgTypePlayerForfeited); len(got) != 1 {
		t.Fatalf("Expected one player_forfeited broadcast, got %d", len(got))
	}
	if got := recorder.ofType(network.MsgTypeGameOver); len(got) != 0 {
		t.Fatal("game_over must not be emitted after the first forfeit")
	}

	registry.Forfeit("ABCD", "p2")

	got := recorder.ofType(network.MsgTypeGameOver)
	if len(got) != 1 {
		t.Fatalf("Expected game_over after the second forfeit, got %d", len(got))
	}
	var over network.GameOverEvent
	decodePayload(t, got[0].data, &over)
	if over.Winner != nil {
		t.Errorf("Expected no winner on a full forfeit, got %v", *over.Winner)
	}
	if over.SecretObject != secretName {
		t.Errorf("Expected the secret name revealed, got %q", over.SecretObject)
	}
}

func TestForfeit_AfterGameOverStillAnnounced(t *testing.T) {
	registry, recorder := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	_ = registry.Join("ABCD", "p2", "Bob")

	rm, _ := registry.GetRoom("ABCD")
	registry.Guess("ABCD", "p1", rm.Round.SecretName())
	recorder.reset()

	registry.Forfeit("ABCD", "p1")
	registry.Forfeit("ABCD", "p2")

	if got := recorder.ofType(network.MsgTypePlayerForfeited); len(got) != 2 {
		t.Errorf("Forfeits are announced even after the round ended, got %d", len(got))
	}
	if got := recorder.ofType(network.MsgTypeGameOver); len(got) != 0 {
		t.Errorf("An ended round must not end again, got %d game_over", len(got))
	}
}

func TestNewGame_StartsFreshRoundKeepingScores(t *testing.T) {
	registry, recorder := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	_ = registry.Join("ABCD", "p2", "Bob")

	rm, _ := registry.GetRoom("ABCD")
	firstSecret := rm.Round.SecretName()
	registry.Guess("ABCD", "p1", firstSecret)
	recorder.reset()

	registry.NewGame("ABCD")

	if rm.Round == nil || !rm.Round.Active() {
		t.Fatal("NewGame should start a fresh active round")
	}
	if rm.Round.SecretName() == firstSecret {
		t.Error("The new secret must not repeat before the catalog is exhausted")
	}
	if rm.Players[0].Score != 1 {
		t.Error("NewGame must keep the accumulated scores")
	}

	if got := recorder.ofType(network.MsgTypeGameStarted); len(got) != 1 {
		t.Errorf("Expected one game_started broadcast, got %d", len(got))
	}
	if got := recorder.ofType(network.MsgTypeScoresUpdated); len(got) != 1 {
		t.Errorf("Expected one scores_updated broadcast, got %d", len(got))
	}
}

func TestNewGame_UnknownRoomIsNoOp(t *testing.T) {
	registry, recorder := newTestRegistry()

	registry.NewGame("NOPE")

	if len(recorder.messages) != 0 {
		t.Errorf("NewGame on an unknown room should broadcast nothing, got %d", len(recorder.messages))
	}
}

func TestPlayerIDs_DirectoryLookup(t *testing.T) {
	registry, _ := newTestRegistry()

	_ = registry.Join("ABCD", "p1", "Alice")
	_ = registry.Join("ABCD", "p2", "Bob")

	ids := registry.PlayerIDs("ABCD")
	if len(ids) != 2 || ids[0] != "p1" || ids[1] != "p2" {
		t.Errorf("Expected player ids in join order, got %v", ids)
	}
	if ids := registry.PlayerIDs("NOPE"); ids != nil {
		t.Errorf("Expected nil for an unknown room, got %v", ids)
	}
}
